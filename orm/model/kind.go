package model

import (
	"database/sql"
	"reflect"
	"strconv"
)

// Kind 是表达式和属性的静态类型
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindNull 只有 nil 常量是这个类型，和任何类型兼容
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	// KindRelation 关系的维护端，值是目标实体的主键
	KindRelation
	// KindList 反向关系和子查询结果集
	KindList
)

var kindNames = [...]string{"invalid", "null", "bool", "int", "float", "string", "relation", "list"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Ordered 能否使用 < > 比较
func (k Kind) Ordered() bool {
	return k.Numeric() || k == KindString || k == KindNull
}

// Compatible 判断两个类型能否相互比较
func Compatible(a Kind, b Kind) bool {
	switch {
	case a == KindInvalid || b == KindInvalid:
		return false
	case a == KindNull || b == KindNull:
		return true
	case a == b:
		return true
	case a.Numeric() && b.Numeric():
		return true
	// 外键和主键比较
	case a == KindRelation && b == KindInt, a == KindInt && b == KindRelation:
		return true
	}
	return false
}

var (
	nullStringType  = reflect.TypeOf(sql.NullString{})
	nullInt64Type   = reflect.TypeOf(sql.NullInt64{})
	nullInt32Type   = reflect.TypeOf(sql.NullInt32{})
	nullFloat64Type = reflect.TypeOf(sql.NullFloat64{})
	nullBoolType    = reflect.TypeOf(sql.NullBool{})
)

// KindOf 推断 Go 类型对应的 Kind
func KindOf(typ reflect.Type) Kind {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ {
	case nullStringType:
		return KindString
	case nullInt64Type, nullInt32Type:
		return KindInt
	case nullFloat64Type:
		return KindFloat
	case nullBoolType:
		return KindBool
	}
	switch typ.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.String:
		return KindString
	case reflect.Slice, reflect.Array:
		return KindList
	}
	return KindInvalid
}
