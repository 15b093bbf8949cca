package orm

import (
	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// Column 属性引用, 是不可变对象
type Column struct {
	//表示代表的是哪个table
	table Table
	attr  *model.Attribute
	alias string
	err   error
}

func (c Column) Name() string {
	if c.attr == nil {
		return ""
	}
	return c.attr.Name
}

// Table 列所在的表
func (c Column) Table() Table {
	return c.table
}

func (c Column) Attribute() *model.Attribute {
	return c.attr
}

// qualified m.Username
func (c Column) qualified() string {
	return c.table.alias + "." + c.Name()
}

// As 此种是不可变设计(不使用指针，Column是不可变对象)可稍稍减少内存逃逸的概率
func (c Column) As(alias string) Column {
	return Column{
		table: c.table,
		attr:  c.attr,
		alias: alias,
		err:   c.err,
	}
}

func (c Column) Kind() model.Kind {
	if c.err != nil || c.attr == nil {
		return model.KindInvalid
	}
	return c.attr.Kind
}

func (c Column) Err() error {
	if c.err == nil && c.attr == nil {
		return errs.NewUnsupportedExpression(c)
	}
	return c.err
}

// Eq m.C("Username").Eq("yoobin")
func (c Column) Eq(arg any) Predicate {
	return compare(opEq, c, arg)
}

func (c Column) Ne(arg any) Predicate {
	return compare(opNe, c, arg)
}

func (c Column) Lt(arg any) Predicate {
	return compare(opLT, c, arg)
}

func (c Column) Le(arg any) Predicate {
	return compare(opLE, c, arg)
}

func (c Column) Gt(arg any) Predicate {
	return compare(opGT, c, arg)
}

func (c Column) Ge(arg any) Predicate {
	return compare(opGE, c, arg)
}

// In 参数可以是若干常量, 也可以是一个单列子查询
func (c Column) In(vals ...any) Predicate {
	return in(opIn, c, vals)
}

func (c Column) NotIn(vals ...any) Predicate {
	return in(opNotIn, c, vals)
}

func (c Column) IsNull() Predicate {
	return isNull(opIsNull, c)
}

func (c Column) IsNotNull() Predicate {
	return isNull(opIsNotNull, c)
}

func (c Column) Add(arg any) Arith {
	return arith(opAdd, c, arg)
}

func (c Column) Sub(arg any) Arith {
	return arith(opSub, c, arg)
}

func (c Column) Mul(arg any) Arith {
	return arith(opMul, c, arg)
}

func (c Column) Div(arg any) Arith {
	return arith(opDiv, c, arg)
}

// Concat m.Username.Concat("_")
func (c Column) Concat(arg any) StringExpr {
	return concat(c, ValueOf(arg))
}

func (c Column) Append(arg any) StringExpr {
	return c.Concat(arg)
}

func (c Column) Prepend(arg any) StringExpr {
	return concat(ValueOf(arg), c)
}

func (c Column) Lower() StringExpr {
	return stringFn(opLower, c)
}

func (c Column) Upper() StringExpr {
	return stringFn(opUpper, c)
}

// StringValue 转成字符串, 数字之类的列拼接前必须先转
func (c Column) StringValue() StringExpr {
	return StringValue(c)
}

func (c Column) Avg() Aggregate {
	return Avg(c)
}

func (c Column) Sum() Aggregate {
	return Sum(c)
}

func (c Column) Count() Aggregate {
	return Count(c)
}

func (c Column) Max() Aggregate {
	return Max(c)
}

func (c Column) Min() Aggregate {
	return Min(c)
}

func (c Column) Asc() OrderBy {
	return Asc(c)
}

func (c Column) Desc() OrderBy {
	return Desc(c)
}

// 标记Column是一个表达式
func (c Column) expr() {}

// 标记Column是可选列
func (c Column) selectable() {}
