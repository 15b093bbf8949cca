package orm

import (
	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// Aggregate 代表聚合函数
// 聚合函数就是一个函数名一个表达式 AVG(m.Age),SUM(m.Age),COUNT(m.Age),MAX(m.Age),MIN(m.Age)
// 只能出现在 SELECT, HAVING 和 ORDER BY 里
type Aggregate struct {
	fn    string
	arg   Expression
	alias string
	err   error
}

func newAggregate(fn string, arg Expression, numeric bool) Aggregate {
	a := Aggregate{fn: fn, arg: arg}
	if arg == nil {
		a.err = errs.NewUnsupportedExpression(arg)
		return a
	}
	if a.err = firstErr(arg); a.err != nil {
		return a
	}
	if numeric && !arg.Kind().Numeric() {
		a.err = errs.NewTypeMismatch(fn, arg.Kind(), model.KindFloat)
	}
	return a
}

// Avg 结果总是浮点数
func Avg(arg Expression) Aggregate {
	return newAggregate("AVG", arg, true)
}

func Sum(arg Expression) Aggregate {
	return newAggregate("SUM", arg, true)
}

// Count 统计非空值的个数
func Count(arg Expression) Aggregate {
	return newAggregate("COUNT", arg, false)
}

func Max(arg Expression) Aggregate {
	return newAggregate("MAX", arg, false)
}

func Min(arg Expression) Aggregate {
	return newAggregate("MIN", arg, false)
}

func (a Aggregate) As(alias string) Aggregate {
	return Aggregate{
		fn:    a.fn,
		arg:   a.arg,
		alias: alias,
		err:   a.err,
	}
}

func (a Aggregate) Kind() model.Kind {
	if a.err != nil {
		return model.KindInvalid
	}
	switch a.fn {
	case "AVG":
		return model.KindFloat
	case "COUNT":
		return model.KindInt
	}
	if k := a.arg.Kind(); k != model.KindRelation {
		return k
	}
	return model.KindInt
}

func (a Aggregate) Err() error {
	return a.err
}

func (a Aggregate) Eq(arg any) Predicate {
	return compare(opEq, a, arg)
}

func (a Aggregate) Ne(arg any) Predicate {
	return compare(opNe, a, arg)
}

func (a Aggregate) Lt(arg any) Predicate {
	return compare(opLT, a, arg)
}

func (a Aggregate) Le(arg any) Predicate {
	return compare(opLE, a, arg)
}

func (a Aggregate) Gt(arg any) Predicate {
	return compare(opGT, a, arg)
}

func (a Aggregate) Ge(arg any) Predicate {
	return compare(opGE, a, arg)
}

func (a Aggregate) Add(arg any) Arith {
	return arith(opAdd, a, arg)
}

func (a Aggregate) StringValue() StringExpr {
	return StringValue(a)
}

func (a Aggregate) Asc() OrderBy {
	return Asc(a)
}

func (a Aggregate) Desc() OrderBy {
	return Desc(a)
}

func (a Aggregate) expr()       {}
func (a Aggregate) selectable() {}
