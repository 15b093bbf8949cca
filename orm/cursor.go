package orm

import (
	"reflect"

	"querydemo/orm/internal/errs"
	"querydemo/orm/internal/valuer"
	"querydemo/orm/model"
)

// resultSet 分页之后的结果, 投影在遍历时才计算
type resultSet struct {
	exec  *executor
	plan  *plan
	units []*env
	// total 分页之前的行数
	total int
}

func (rs *resultSet) project(u *env) ([]any, error) {
	vals := make([]any, 0, len(rs.plan.items))
	for _, item := range rs.plan.items {
		switch v := item.(type) {
		case Table:
			rec := u.row[v.alias]
			if rec == nil {
				vals = append(vals, nil)
				continue
			}
			vals = append(vals, rec.Clone())
		case Expression:
			val, err := rs.exec.eval(v, u)
			if err != nil {
				return nil, err
			}
			vals = append(vals, val)
		default:
			return nil, errs.NewUnsupportedExpression(item)
		}
	}
	return vals, nil
}

// Cursor 有限, 只能遍历一次
type Cursor[T any] struct {
	rs     *resultSet
	conv   converter[T]
	pos    int
	cur    T
	err    error
	closed bool
}

func newCursor[T any](rs *resultSet, conv converter[T]) *Cursor[T] {
	return &Cursor[T]{rs: rs, conv: conv}
}

func (c *Cursor[T]) Next() bool {
	if c.closed || c.err != nil || c.pos >= len(c.rs.units) {
		return false
	}
	if err := c.rs.exec.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	vals, err := c.rs.project(c.rs.units[c.pos])
	c.pos++
	if err != nil {
		c.err = err
		return false
	}
	c.cur, c.err = c.conv(vals)
	return c.err == nil
}

func (c *Cursor[T]) Value() T {
	return c.cur
}

func (c *Cursor[T]) Err() error {
	return c.err
}

// Len 剩余的行数
func (c *Cursor[T]) Len() int {
	if c.closed {
		return 0
	}
	return len(c.rs.units) - c.pos
}

func (c *Cursor[T]) Close() error {
	c.closed = true
	c.rs.units = nil
	return nil
}

// Drain 取出剩余所有结果并关闭
func (c *Cursor[T]) Drain() ([]T, error) {
	res := make([]T, 0, c.Len())
	for c.Next() {
		res = append(res, c.Value())
	}
	err := c.Err()
	_ = c.Close()
	if err != nil {
		return nil, err
	}
	return res, nil
}

type converter[T any] func(vals []any) (T, error)

var (
	recordType = reflect.TypeOf(Record{})
	tupleType  = reflect.TypeOf(Tuple{})
)

// newConverter 根据 T 和投影决定结果怎么组装
func newConverter[T any](c core, p *plan) (converter[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	names := p.names
	single := len(p.items) == 1
	switch {
	case typ == tupleType:
		return func(vals []any) (T, error) {
			return any(NewTuple(names, vals)).(T), nil
		}, nil
	case typ.Kind() == reflect.Interface:
		return func(vals []any) (T, error) {
			var res any = NewTuple(names, vals)
			if single {
				res = vals[0]
			}
			if res == nil {
				var zero T
				return zero, nil
			}
			t, ok := res.(T)
			if !ok {
				var zero T
				return zero, errs.NewTypeMismatch("fetch", res, typ)
			}
			return t, nil
		}, nil
	}
	if !single {
		return nil, errs.NewTypeMismatch("fetch", "tuple", typ)
	}
	table, isTable := p.items[0].(Table)
	switch {
	case typ == recordType:
		if !isTable {
			return nil, errs.NewTypeMismatch("fetch", exprName(p.items[0]), typ)
		}
		return func(vals []any) (T, error) {
			rec, _ := vals[0].(Record)
			return any(rec).(T), nil
		}, nil
	case typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct:
		if !isTable {
			return nil, errs.NewTypeMismatch("fetch", exprName(p.items[0]), typ)
		}
		e, err := c.r.Of(reflect.New(typ.Elem()).Interface())
		if err != nil {
			return nil, err
		}
		if e.Name != table.entity.Name {
			return nil, errs.NewTypeMismatch("fetch", table.entity.Name, e.Name)
		}
		return structConverter[T](c.creator, e), nil
	}
	if isTable {
		return nil, errs.NewTypeMismatch("fetch", table.entity.Name, typ)
	}
	// 标量只允许同类转换
	if k := p.items[0].(Expression).Kind(); !convertible(k, typ) {
		return nil, errs.NewTypeMismatch("fetch", k, typ)
	}
	return func(vals []any) (T, error) {
		var res T
		err := valuer.Assign(reflect.ValueOf(&res).Elem(), vals[0])
		return res, err
	}, nil
}

func structConverter[T any](creator valuer.Creator, e *model.Entity) converter[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return func(vals []any) (T, error) {
		var zero T
		rec, ok := vals[0].(Record)
		if !ok {
			return zero, nil
		}
		ptr := reflect.New(typ.Elem())
		if err := creator(e, ptr.Interface()).SetRecord(rec); err != nil {
			return zero, err
		}
		return ptr.Interface().(T), nil
	}
}

func convertible(k model.Kind, typ reflect.Type) bool {
	tk := model.KindOf(typ)
	switch {
	case k == tk, k == model.KindNull:
		return true
	case k.Numeric() && tk.Numeric():
		return true
	case k == model.KindRelation && tk == model.KindInt:
		return true
	}
	return false
}
