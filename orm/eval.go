package orm

import (
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// row 是 JOIN 之后的一行, 别名到记录. 左连接补空时记录为 nil
type row map[string]Record

// env 求值环境. 分组查询时 group 是该组所有行, row 是第一行
type env struct {
	row     row
	group   []row
	grouped bool
	// keys 分组键的 fingerprint, having 为 true 时非分组键的列按组求值
	keys   map[string]bool
	having bool
	outer   *env
	exec    *executor
}

func (e *executor) eval(x Expression, en *env) (any, error) {
	switch v := x.(type) {
	case value:
		return v.val, nil
	case Column:
		return e.evalColumn(v, en)
	case Predicate:
		return e.evalPredicate(v, en)
	case Arith:
		l, err := e.eval(v.left, en)
		if err != nil {
			return nil, err
		}
		r, err := e.eval(v.right, en)
		if err != nil {
			return nil, err
		}
		return arithValue(v.op, l, r), nil
	case StringExpr:
		return e.evalString(v, en)
	case Aggregate:
		return e.evalAggregate(v, en)
	case Subquery:
		vals, err := e.subquery(v, en)
		if err != nil {
			return nil, err
		}
		switch len(vals) {
		case 0:
			return nil, nil
		case 1:
			return vals[0], nil
		}
		return nil, errs.NewNonUniqueResult(len(vals))
	}
	return nil, errs.NewUnsupportedExpression(x)
}

// evalColumn 先找当前行, 找不到再找外层查询的行
func (e *executor) evalColumn(c Column, en *env) (any, error) {
	for cur := en; cur != nil; cur = cur.outer {
		rec, ok := cur.row[c.table.alias]
		if !ok {
			continue
		}
		if cur.grouped && cur.having && !cur.keys[c.qualified()] {
			return e.groupAvg(c, cur)
		}
		if rec == nil {
			return nil, nil
		}
		if c.attr.IsRelation() && c.attr.Direction == model.Inverse {
			return e.inverseIDs(c, rec)
		}
		return rec[c.attr.Name], nil
	}
	return nil, errs.NewInvalidQueryShape("表 " + c.table.alias + " 不在 FROM 中")
}

// groupAvg Having 里不在分组键中的数值列取组内平均值
func (e *executor) groupAvg(c Column, en *env) (any, error) {
	if !c.Kind().Numeric() {
		return nil, errs.NewInvalidQueryShape("HAVING 中的列不在 GROUP BY 中: " + c.qualified())
	}
	return e.evalAggregate(c.Avg(), &env{group: en.group, grouped: true, outer: en.outer, exec: e})
}

func (e *executor) evalPredicate(p Predicate, en *env) (any, error) {
	switch p.op {
	case opAnd, opOr:
		l, err := e.eval(p.left, en)
		if err != nil {
			return nil, err
		}
		// 短路
		if p.op == opAnd && l == false {
			return false, nil
		}
		if p.op == opOr && l == true {
			return true, nil
		}
		r, err := e.eval(p.right, en)
		if err != nil {
			return nil, err
		}
		if p.op == opAnd {
			return and3(l, r), nil
		}
		return or3(l, r), nil
	case opNot:
		r, err := e.eval(p.right, en)
		if err != nil || r == nil {
			return nil, err
		}
		return !r.(bool), nil
	case opIsNull, opIsNotNull:
		l, err := e.eval(p.left, en)
		if err != nil {
			return nil, err
		}
		return (l == nil) == (p.op == opIsNull), nil
	case opIn, opNotIn:
		l, err := e.eval(p.left, en)
		if err != nil {
			return nil, err
		}
		var list []any
		if sq, ok := p.right.(Subquery); ok {
			list, err = e.subquery(sq, en)
			if err != nil {
				return nil, err
			}
		} else {
			list = p.right.(value).val.([]any)
		}
		res := inList(l, list)
		if res == nil || p.op == opIn {
			return res, nil
		}
		return !res.(bool), nil
	}
	l, err := e.eval(p.left, en)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(p.right, en)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	c, ok := compareValues(l, r)
	if !ok {
		return nil, errs.NewTypeMismatch(p.op.String(), l, r)
	}
	switch p.op {
	case opEq:
		return c == 0, nil
	case opNe:
		return c != 0, nil
	case opLT:
		return c < 0, nil
	case opLE:
		return c <= 0, nil
	case opGT:
		return c > 0, nil
	case opGE:
		return c >= 0, nil
	}
	return nil, errs.NewUnsupportedExpression(p)
}

// inList SQL 语义: 命中为 true, 没命中但列表里有空值为未知
func inList(l any, list []any) any {
	if l == nil {
		return nil
	}
	hasNull := false
	for _, v := range list {
		if v == nil {
			hasNull = true
			continue
		}
		if c, ok := compareValues(l, v); ok && c == 0 {
			return true
		}
	}
	if hasNull {
		return nil
	}
	return false
}

func and3(l, r any) any {
	if l == false || r == false {
		return false
	}
	if l == nil || r == nil {
		return nil
	}
	return true
}

func or3(l, r any) any {
	if l == true || r == true {
		return true
	}
	if l == nil || r == nil {
		return nil
	}
	return false
}

// arithValue 整数和整数得整数, 除零得空
func arithValue(o op, l, r any) any {
	if l == nil || r == nil {
		return nil
	}
	li, lok := l.(int64)
	ri, rok := r.(int64)
	if lok && rok {
		switch o {
		case opAdd:
			return li + ri
		case opSub:
			return li - ri
		case opMul:
			return li * ri
		case opDiv:
			if ri == 0 {
				return nil
			}
			return li / ri
		}
		return nil
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil
	}
	switch o {
	case opAdd:
		return lf + rf
	case opSub:
		return lf - rf
	case opMul:
		return lf * rf
	case opDiv:
		if rf == 0 {
			return nil
		}
		return lf / rf
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (e *executor) evalString(s StringExpr, en *env) (any, error) {
	vals := make([]any, 0, len(s.args))
	for _, a := range s.args {
		v, err := e.eval(a, en)
		if err != nil {
			return nil, err
		}
		// 空值传播
		if v == nil {
			return nil, nil
		}
		vals = append(vals, v)
	}
	switch s.op {
	case opConcat:
		sb := strings.Builder{}
		for _, v := range vals {
			str, ok := v.(string)
			if !ok {
				return nil, errs.NewTypeMismatch(opConcat.String(), model.KindString, v)
			}
			sb.WriteString(str)
		}
		return sb.String(), nil
	case opLower:
		return strings.ToLower(vals[0].(string)), nil
	case opUpper:
		return strings.ToUpper(vals[0].(string)), nil
	case opCast:
		return toString(vals[0]), nil
	}
	return nil, errs.NewUnsupportedExpression(s)
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

func (e *executor) evalAggregate(a Aggregate, en *env) (any, error) {
	if !en.grouped {
		return nil, errs.NewInvalidQueryShape("聚合函数只能用于分组查询")
	}
	vals := make([]any, 0, len(en.group))
	for _, r := range en.group {
		v, err := e.eval(a.arg, &env{row: r, outer: en.outer, exec: e})
		if err != nil {
			return nil, err
		}
		if v != nil {
			vals = append(vals, v)
		}
	}
	switch a.fn {
	case "COUNT":
		return int64(len(vals)), nil
	case "SUM":
		return sum(vals, a.Kind() == model.KindInt), nil
	case "AVG":
		if len(vals) == 0 {
			return nil, nil
		}
		s, _ := toFloat(sum(vals, false))
		return s / float64(len(vals)), nil
	case "MAX", "MIN":
		var res any
		for _, v := range vals {
			if res == nil {
				res = v
				continue
			}
			c, ok := compareValues(v, res)
			if !ok {
				return nil, errs.NewTypeMismatch(a.fn, v, res)
			}
			if (a.fn == "MAX" && c > 0) || (a.fn == "MIN" && c < 0) {
				res = v
			}
		}
		return res, nil
	}
	return nil, errs.NewUnsupportedExpression(a)
}

func sum(vals []any, integer bool) any {
	if integer {
		var res int64
		for _, v := range vals {
			res += v.(int64)
		}
		return res
	}
	var res float64
	for _, v := range vals {
		f, _ := toFloat(v)
		res += f
	}
	return res
}

func cmpOrdered[V constraints.Ordered](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareValues 两个非空值比较, 类型不可比时返回 false
func compareValues(a, b any) (int, bool) {
	switch l := a.(type) {
	case int64:
		switch r := b.(type) {
		case int64:
			return cmpOrdered(l, r), true
		case float64:
			return cmpOrdered(float64(l), r), true
		}
	case float64:
		switch r := b.(type) {
		case int64:
			return cmpOrdered(l, float64(r)), true
		case float64:
			return cmpOrdered(l, r), true
		}
	case string:
		if r, ok := b.(string); ok {
			return cmpOrdered(l, r), true
		}
	case bool:
		if r, ok := b.(bool); ok {
			switch {
			case l == r:
				return 0, true
			case !l:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// sortValues 排序用的全序: 空值最小, 不同类型按类型排
func sortValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return cmpOrdered(rank(a), rank(b))
}

func rank(v any) int {
	switch v.(type) {
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func orderValues(a, b any, o OrderBy) int {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0
		}
		if (a == nil) == o.nullFirst() {
			return -1
		}
		return 1
	}
	c := sortValues(a, b)
	if o.desc {
		return -c
	}
	return c
}
