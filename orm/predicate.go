package orm

import (
	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// 衍生类型，由string衍生过来
type op string

const (
	opEq        op = "="
	opNe        op = "<>"
	opLT        op = "<"
	opLE        op = "<="
	opGT        op = ">"
	opGE        op = ">="
	opIn        op = "IN"
	opNotIn     op = "NOT IN"
	opIsNull    op = "IS NULL"
	opIsNotNull op = "IS NOT NULL"
	opNot       op = "NOT"
	opAnd       op = "AND"
	opOr        op = "OR"

	opAdd op = "+"
	opSub op = "-"
	opMul op = "*"
	opDiv op = "/"

	opConcat op = "CONCAT"
	opLower  op = "LOWER"
	opUpper  op = "UPPER"
	opCast   op = "STRINGVALUE"
)

func (o op) String() string {
	return string(o)
}

func (o op) ordering() bool {
	return o == opLT || o == opLE || o == opGT || o == opGE
}

// Predicate 结果是三值逻辑: true, false, 未知(nil)
type Predicate struct {
	left  Expression
	op    op
	right Expression
	err   error
}

func compare(o op, left Expression, arg any) Predicate {
	right := ValueOf(arg)
	p := Predicate{left: left, op: o, right: right}
	if p.err = firstErr(left, right); p.err != nil {
		return p
	}
	if sq, ok := right.(Subquery); ok {
		if p.err = sq.scalar(); p.err != nil {
			return p
		}
	}
	if sq, ok := left.(Subquery); ok {
		if p.err = sq.scalar(); p.err != nil {
			return p
		}
	}
	lk, rk := left.Kind(), right.Kind()
	if !model.Compatible(lk, rk) {
		p.err = errs.NewTypeMismatch(o.String(), lk, rk)
		return p
	}
	if o.ordering() && (!lk.Ordered() || !rk.Ordered()) {
		p.err = errs.NewTypeMismatch(o.String(), lk, rk)
	}
	return p
}

func in(o op, left Expression, vals []any) Predicate {
	p := Predicate{left: left, op: o}
	if p.err = firstErr(left); p.err != nil {
		return p
	}
	if len(vals) == 1 {
		if sq, ok := vals[0].(Subquery); ok {
			p.right = sq
			if p.err = sq.Err(); p.err != nil {
				return p
			}
			if p.err = sq.scalar(); p.err != nil {
				return p
			}
			if !model.Compatible(left.Kind(), sq.Kind()) {
				p.err = errs.NewTypeMismatch(o.String(), left.Kind(), sq.Kind())
			}
			return p
		}
	}
	list := make([]any, 0, len(vals))
	for _, v := range vals {
		c := Constant(v)
		if p.err = c.Err(); p.err != nil {
			return p
		}
		if !model.Compatible(left.Kind(), c.Kind()) {
			p.err = errs.NewTypeMismatch(o.String(), left.Kind(), c.Kind())
			return p
		}
		list = append(list, c.(value).val)
	}
	p.right = value{val: list, kind: model.KindList}
	return p
}

func isNull(o op, left Expression) Predicate {
	return Predicate{
		left: left,
		op:   o,
		err:  firstErr(left),
	}
}

func Eq(left Expression, right any) Predicate {
	return compare(opEq, left, right)
}

func Ne(left Expression, right any) Predicate {
	return compare(opNe, left, right)
}

func Lt(left Expression, right any) Predicate {
	return compare(opLT, left, right)
}

func Le(left Expression, right any) Predicate {
	return compare(opLE, left, right)
}

func Gt(left Expression, right any) Predicate {
	return compare(opGT, left, right)
}

func Ge(left Expression, right any) Predicate {
	return compare(opGE, left, right)
}

// Not(m.C("Username").Eq("Tom"))
func Not(p Predicate) Predicate {
	return Predicate{
		op:    opNot,
		right: p,
		err:   p.err,
	}
}

// m.C("Username").Eq("yoobin").And(m.C("Age").Eq(31))
func (left Predicate) And(right Predicate) Predicate {
	return Predicate{
		left:  left,
		op:    opAnd,
		right: right,
		err:   firstErr(left, right),
	}
}

// m.C("Username").Eq("yoobin").Or(m.C("Age").Eq(31))
func (left Predicate) Or(right Predicate) Predicate {
	return Predicate{
		left:  left,
		op:    opOr,
		right: right,
		err:   firstErr(left, right),
	}
}

func (p Predicate) Not() Predicate {
	return Not(p)
}

func (p Predicate) Kind() model.Kind {
	if p.err != nil {
		return model.KindInvalid
	}
	return model.KindBool
}

func (p Predicate) Err() error {
	return p.err
}

// 让Predicate实现expression,标记Predicate是一个表达式
func (p Predicate) expr() {}

func (p Predicate) selectable() {}

// and 把多个谓词合成一个
func and(ps []Predicate) (Predicate, bool) {
	if len(ps) == 0 {
		return Predicate{}, false
	}
	p := ps[0]
	for i := 1; i < len(ps); i++ {
		p = p.And(ps[i])
	}
	return p, true
}
