package valuer

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// Value 是结构体实例和记录之间的桥梁
type Value interface {
	// Field 读取属性值, 返回的是规整过的值
	Field(name string) (any, error)
	// SetField 写回单个属性, 例如生成的主键
	SetField(name string, val any) error
	// SetRecord 把一条记录装配进结构体, 记录里没有的属性保持原样
	SetRecord(rec map[string]any) error
}

type Creator func(e *model.Entity, entity any) Value

// Normalize 把 Go 值规整成执行期使用的几种类型:
// int64, float64, string, bool, []any, nil
func Normalize(val any) any {
	if val == nil {
		return nil
	}
	if v, ok := val.(driver.Valuer); ok {
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		dv, err := v.Value()
		if err != nil {
			return nil
		}
		return Normalize(dv)
	}
	switch v := val.(type) {
	case int64, float64, string, bool:
		return v
	case []byte:
		return string(v)
	}
	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
		if v, ok := rv.Interface().(driver.Valuer); ok {
			return Normalize(v)
		}
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Slice, reflect.Array:
		res := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			res = append(res, Normalize(rv.Index(i).Interface()))
		}
		return res
	}
	return rv.Interface()
}

// Assign 把规整过的值写进字段, fd 必须可写
func Assign(fd reflect.Value, val any) error {
	if val == nil {
		fd.Set(reflect.Zero(fd.Type()))
		return nil
	}
	// *sql.NullString 之类
	if fd.Kind() == reflect.Pointer {
		if _, ok := reflect.New(fd.Type().Elem()).Interface().(sql.Scanner); ok {
			ptr := reflect.New(fd.Type().Elem())
			if err := ptr.Interface().(sql.Scanner).Scan(val); err != nil {
				return err
			}
			fd.Set(ptr)
			return nil
		}
		ptr := reflect.New(fd.Type().Elem())
		if err := Assign(ptr.Elem(), val); err != nil {
			return err
		}
		fd.Set(ptr)
		return nil
	}
	if scanner, ok := fd.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(val)
	}
	src := reflect.ValueOf(val)
	if fd.Kind() == reflect.Slice && src.Kind() == reflect.Slice {
		res := reflect.MakeSlice(fd.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := Assign(res.Index(i), src.Index(i).Interface()); err != nil {
				return err
			}
		}
		fd.Set(res)
		return nil
	}
	srcKind := model.KindOf(src.Type())
	dstKind := model.KindOf(fd.Type())
	// reflect 允许 int -> string 的转换, 这里要拦住
	if srcKind != dstKind && !(srcKind.Numeric() && dstKind.Numeric()) {
		return fmt.Errorf("%w: 不能把 %T 赋值给 %s", errs.ErrTypeMismatch, val, fd.Type())
	}
	if !src.Type().ConvertibleTo(fd.Type()) {
		return fmt.Errorf("%w: 不能把 %T 赋值给 %s", errs.ErrTypeMismatch, val, fd.Type())
	}
	fd.Set(src.Convert(fd.Type()))
	return nil
}
