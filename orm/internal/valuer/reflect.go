package valuer

import (
	"reflect"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

type reflectValue struct {
	entity *model.Entity

	//对应于T的指针指向的结构体
	val reflect.Value
}

func NewReflectValue(e *model.Entity, val any) Value {
	return reflectValue{
		entity: e,
		val:    reflect.ValueOf(val).Elem(),
	}
}

var _ Creator = NewReflectValue

func (r reflectValue) field(name string) (reflect.Value, error) {
	attr, ok := r.entity.AttrMap[name]
	if !ok || attr.GoName == "" {
		return reflect.Value{}, errs.NewUnknownAttribute(r.entity.Name, name)
	}
	return r.val.FieldByName(attr.GoName), nil
}

func (r reflectValue) Field(name string) (any, error) {
	fd, err := r.field(name)
	if err != nil {
		return nil, err
	}
	return Normalize(fd.Interface()), nil
}

func (r reflectValue) SetField(name string, val any) error {
	fd, err := r.field(name)
	if err != nil {
		return err
	}
	return Assign(fd, val)
}

func (r reflectValue) SetRecord(rec map[string]any) error {
	for _, attr := range r.entity.Attributes {
		val, ok := rec[attr.Name]
		if !ok || attr.GoName == "" {
			continue
		}
		if err := Assign(r.val.FieldByName(attr.GoName), val); err != nil {
			return err
		}
	}
	return nil
}
