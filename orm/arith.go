package orm

import (
	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// Arith 四则运算, 只接受数值
type Arith struct {
	op    op
	left  Expression
	right Expression
	alias string
	err   error
}

func arith(o op, left Expression, arg any) Arith {
	right := ValueOf(arg)
	a := Arith{op: o, left: left, right: right}
	if a.err = firstErr(left, right); a.err != nil {
		return a
	}
	if sq, ok := right.(Subquery); ok {
		if a.err = sq.scalar(); a.err != nil {
			return a
		}
	}
	lk, rk := left.Kind(), right.Kind()
	if !(lk.Numeric() || lk == model.KindNull) || !(rk.Numeric() || rk == model.KindNull) {
		a.err = errs.NewTypeMismatch(o.String(), lk, rk)
	}
	return a
}

func (a Arith) As(alias string) Arith {
	a.alias = alias
	return a
}

func (a Arith) Add(arg any) Arith {
	return arith(opAdd, a, arg)
}

func (a Arith) Sub(arg any) Arith {
	return arith(opSub, a, arg)
}

func (a Arith) Mul(arg any) Arith {
	return arith(opMul, a, arg)
}

func (a Arith) Div(arg any) Arith {
	return arith(opDiv, a, arg)
}

func (a Arith) Eq(arg any) Predicate {
	return compare(opEq, a, arg)
}

func (a Arith) Gt(arg any) Predicate {
	return compare(opGT, a, arg)
}

func (a Arith) Lt(arg any) Predicate {
	return compare(opLT, a, arg)
}

func (a Arith) StringValue() StringExpr {
	return StringValue(a)
}

func (a Arith) Asc() OrderBy {
	return Asc(a)
}

func (a Arith) Desc() OrderBy {
	return Desc(a)
}

// Kind 两边都是整数结果才是整数
func (a Arith) Kind() model.Kind {
	if a.err != nil {
		return model.KindInvalid
	}
	if a.left.Kind() == model.KindFloat || a.right.Kind() == model.KindFloat {
		return model.KindFloat
	}
	return model.KindInt
}

func (a Arith) Err() error {
	return a.err
}

func (a Arith) expr()       {}
func (a Arith) selectable() {}

// StringExpr 字符串函数, CONCAT 的参数必须都是字符串
type StringExpr struct {
	op    op
	args  []Expression
	alias string
	err   error
}

func concat(args ...Expression) StringExpr {
	s := StringExpr{op: opConcat}
	// 嵌套的 CONCAT 拍平
	for _, a := range args {
		if inner, ok := a.(StringExpr); ok && inner.op == opConcat && inner.alias == "" {
			s.args = append(s.args, inner.args...)
			continue
		}
		s.args = append(s.args, a)
	}
	if s.err = firstErr(args...); s.err != nil {
		return s
	}
	for _, a := range args {
		if sq, ok := a.(Subquery); ok {
			if s.err = sq.scalar(); s.err != nil {
				return s
			}
		}
		if k := a.Kind(); k != model.KindString && k != model.KindNull {
			s.err = errs.NewTypeMismatch(opConcat.String(), model.KindString, k)
			return s
		}
	}
	return s
}

func stringFn(o op, arg Expression) StringExpr {
	s := StringExpr{op: o, args: []Expression{arg}}
	if s.err = firstErr(arg); s.err != nil {
		return s
	}
	if k := arg.Kind(); k != model.KindString && k != model.KindNull {
		s.err = errs.NewTypeMismatch(o.String(), model.KindString, k)
	}
	return s
}

// Concat 拼接任意多个字符串表达式或常量
func Concat(args ...any) StringExpr {
	exprs := make([]Expression, 0, len(args))
	for _, a := range args {
		exprs = append(exprs, ValueOf(a))
	}
	return concat(exprs...)
}

// StringValue 标量转字符串: 整数十进制, 浮点最短表示, 布尔 true/false
func StringValue(arg Expression) StringExpr {
	s := StringExpr{op: opCast, args: []Expression{arg}}
	if s.err = firstErr(arg); s.err != nil {
		return s
	}
	switch arg.Kind() {
	case model.KindList, model.KindInvalid:
		s.err = errs.NewTypeMismatch(opCast.String(), arg.Kind(), model.KindString)
	}
	return s
}

func (s StringExpr) As(alias string) StringExpr {
	s.alias = alias
	return s
}

func (s StringExpr) Concat(arg any) StringExpr {
	return concat(s, ValueOf(arg))
}

func (s StringExpr) Append(arg any) StringExpr {
	return s.Concat(arg)
}

func (s StringExpr) Prepend(arg any) StringExpr {
	return concat(ValueOf(arg), s)
}

func (s StringExpr) Lower() StringExpr {
	return stringFn(opLower, s)
}

func (s StringExpr) Upper() StringExpr {
	return stringFn(opUpper, s)
}

func (s StringExpr) Eq(arg any) Predicate {
	return compare(opEq, s, arg)
}

func (s StringExpr) Ne(arg any) Predicate {
	return compare(opNe, s, arg)
}

func (s StringExpr) Asc() OrderBy {
	return Asc(s)
}

func (s StringExpr) Desc() OrderBy {
	return Desc(s)
}

func (s StringExpr) Kind() model.Kind {
	if s.err != nil {
		return model.KindInvalid
	}
	return model.KindString
}

func (s StringExpr) Err() error {
	return s.err
}

func (s StringExpr) expr()       {}
func (s StringExpr) selectable() {}
