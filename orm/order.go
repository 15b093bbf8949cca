package orm

import "querydemo/orm/internal/errs"

type nullOrder uint8

const (
	// nullsDefault 空值当作最小值
	nullsDefault nullOrder = iota
	nullsFirst
	nullsLast
)

// OrderBy 排序键, 多个 OrderBy 按调用顺序, 第一个是主键
type OrderBy struct {
	expr  Expression
	desc  bool
	nulls nullOrder
}

func Asc(e Expression) OrderBy {
	return OrderBy{expr: e}
}

func Desc(e Expression) OrderBy {
	return OrderBy{expr: e, desc: true}
}

func (o OrderBy) NullsFirst() OrderBy {
	o.nulls = nullsFirst
	return o
}

func (o OrderBy) NullsLast() OrderBy {
	o.nulls = nullsLast
	return o
}

func (o OrderBy) Err() error {
	if o.expr == nil {
		return errs.NewUnsupportedExpression(o.expr)
	}
	return o.expr.Err()
}

// nullFirst 空值是否排在前面
func (o OrderBy) nullFirst() bool {
	switch o.nulls {
	case nullsFirst:
		return true
	case nullsLast:
		return false
	}
	return !o.desc
}
