package orm

import (
	"fmt"
	"strings"

	"querydemo/orm/internal/errs"
	"querydemo/orm/internal/valuer"
	"querydemo/orm/model"
)

// Expression 是一个标记接口, 代表表达式
// 构造时发现的错误记录在节点上, 所有用到该节点的构造步骤都会失败
type Expression interface {
	Kind() model.Kind
	Err() error
	expr()
	selectable()
}

// Selectable 可以出现在 SELECT 后面的东西
type Selectable interface {
	selectable()
}

type value struct {
	val  any
	kind model.Kind
	err  error
}

// Constant 包装常量, 类型由 Go 类型推断
func Constant(val any) Expression {
	v := valuer.Normalize(val)
	res := value{val: v}
	switch vv := v.(type) {
	case nil:
		res.kind = model.KindNull
	case int64:
		res.kind = model.KindInt
	case float64:
		res.kind = model.KindFloat
	case string:
		res.kind = model.KindString
	case bool:
		res.kind = model.KindBool
	case []any:
		res.kind = model.KindList
		for _, elem := range vv {
			if _, ok := elem.([]any); ok {
				res.err = errs.NewUnsupportedValue(val)
			}
		}
	default:
		res.err = errs.NewUnsupportedValue(val)
	}
	return res
}

// ValueOf 表达式原样返回, 其余当作常量
func ValueOf(arg any) Expression {
	switch val := arg.(type) {
	case Expression:
		return val
	case interface{ leaf() (Table, bool) }:
		return value{err: errs.NewUnsupportedExpression(arg)}
	default:
		return Constant(val)
	}
}

func (v value) Kind() model.Kind {
	if v.err != nil {
		return model.KindInvalid
	}
	return v.kind
}
func (v value) Err() error  { return v.err }
func (v value) expr()       {}
func (v value) selectable() {}

// firstErr 返回第一个出错节点的错误
func firstErr(exprs ...Expression) error {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if err := e.Err(); err != nil {
			return err
		}
	}
	return nil
}

// exprName 投影结果的名字, Tuple 按它查找
func exprName(s Selectable) string {
	switch e := s.(type) {
	case Table:
		return e.alias
	case Column:
		if e.alias != "" {
			return e.alias
		}
		return e.qualified()
	case Aggregate:
		if e.alias != "" {
			return e.alias
		}
		return strings.ToLower(e.fn) + "(" + exprName(e.arg.(Selectable)) + ")"
	case Arith:
		if e.alias != "" {
			return e.alias
		}
		return "(" + exprName(e.left.(Selectable)) + " " + e.op.String() + " " + exprName(e.right.(Selectable)) + ")"
	case StringExpr:
		if e.alias != "" {
			return e.alias
		}
		names := make([]string, 0, len(e.args))
		for _, a := range e.args {
			names = append(names, exprName(a.(Selectable)))
		}
		return strings.ToLower(e.op.String()) + "(" + strings.Join(names, ", ") + ")"
	case value:
		return fmt.Sprint(e.val)
	case Subquery:
		return "subquery"
	case interface{ leaf() (Table, bool) }:
		if t, ok := e.leaf(); ok {
			return t.alias
		}
	}
	return fmt.Sprintf("%v", s)
}

// fingerprint 忽略别名的结构签名, 用来判断两个表达式是否等价
func fingerprint(e Expression) string {
	switch x := e.(type) {
	case Column:
		return x.qualified()
	case value:
		return fmt.Sprintf("%#v", x.val)
	case Aggregate:
		return x.fn + "(" + fingerprint(x.arg) + ")"
	case Arith:
		return "(" + fingerprint(x.left) + x.op.String() + fingerprint(x.right) + ")"
	case StringExpr:
		sb := strings.Builder{}
		sb.WriteString(x.op.String())
		sb.WriteByte('(')
		for i, a := range x.args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(fingerprint(a))
		}
		sb.WriteByte(')')
		return sb.String()
	case Predicate:
		return "(" + fingerprint(x.left) + " " + x.op.String() + " " + fingerprint(x.right) + ")"
	case Subquery:
		return fmt.Sprintf("subquery(%p)", x.q)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", e)
}

// children 子节点, 不进入子查询
func children(e Expression) []Expression {
	switch x := e.(type) {
	case Predicate:
		return []Expression{x.left, x.right}
	case Arith:
		return []Expression{x.left, x.right}
	case StringExpr:
		return x.args
	case Aggregate:
		return []Expression{x.arg}
	}
	return nil
}

// walk 先序遍历, fn 返回 false 时不再进入该节点的子节点
func walk(e Expression, fn func(e Expression) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range children(e) {
		walk(c, fn)
	}
}

func hasAggregate(e Expression) bool {
	found := false
	walk(e, func(e Expression) bool {
		if _, ok := e.(Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}
