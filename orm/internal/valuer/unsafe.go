package valuer

import (
	"reflect"
	"unsafe"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

type unsafeValue struct {
	entity *model.Entity
	//基准地址
	address unsafe.Pointer
}

func NewUnsafeValue(e *model.Entity, val any) Value {
	return unsafeValue{
		entity: e,
		//UnsafePointer 会帮助维持指针, GC 之后也是对的
		address: reflect.ValueOf(val).UnsafePointer(),
	}
}

var _ Creator = NewUnsafeValue

// field 起始地址+字段偏移量
func (u unsafeValue) field(attr *model.Attribute) reflect.Value {
	fdAddress := unsafe.Pointer(uintptr(u.address) + attr.Offset)
	return reflect.NewAt(attr.Type, fdAddress).Elem()
}

func (u unsafeValue) Field(name string) (any, error) {
	attr, ok := u.entity.AttrMap[name]
	if !ok || attr.Type == nil {
		return nil, errs.NewUnknownAttribute(u.entity.Name, name)
	}
	return Normalize(u.field(attr).Interface()), nil
}

func (u unsafeValue) SetField(name string, val any) error {
	attr, ok := u.entity.AttrMap[name]
	if !ok || attr.Type == nil {
		return errs.NewUnknownAttribute(u.entity.Name, name)
	}
	return Assign(u.field(attr), val)
}

func (u unsafeValue) SetRecord(rec map[string]any) error {
	for _, attr := range u.entity.Attributes {
		val, ok := rec[attr.Name]
		if !ok || attr.Type == nil {
			continue
		}
		if err := Assign(u.field(attr), val); err != nil {
			return err
		}
	}
	return nil
}
