package orm

import (
	"context"

	"querydemo/orm/internal/errs"
)

// query 是查询描述, 只在构造步骤里按值复制, 从不原地修改
type query struct {
	columns []Selectable
	from    TableReference
	where   []Predicate
	groupBy []Expression
	having  []Predicate
	orderBy []OrderBy
	offset  int
	// limit 小于 0 表示不限制
	limit   int
	dialect Dialect
	err     error
}

// Selector 每一步都返回新的 Selector, 所以构造到一半的查询可以安全分叉
type Selector[T any] struct {
	q query
}

// Select 指定投影. 一个投影项时结果就是该项本身, 多个时是 Tuple
func Select[T any](cols ...Selectable) *Selector[T] {
	s := &Selector[T]{q: query{limit: -1}}
	s.q.columns = make([]Selectable, 0, len(cols))
	for _, col := range cols {
		if ref, ok := col.(TableReference); ok {
			col = normalizeRef(ref).(Selectable)
		}
		s.q.columns = append(s.q.columns, col)
		s.q.err = firstNonNil(s.q.err, selectableErr(col))
	}
	return s
}

// SelectFrom 投影和 FROM 都是同一张表
func SelectFrom[T any](table TableReference) *Selector[T] {
	s := &Selector[T]{q: query{limit: -1}}
	t, ok := normalizeRef(table).(Table)
	if !ok {
		s.q.err = errs.NewUnsupportedTableReference(table)
		return s
	}
	s.q.columns = []Selectable{t}
	s.q.from = t
	s.q.err = t.Err()
	return s
}

func selectableErr(s Selectable) error {
	switch v := s.(type) {
	case nil:
		return errs.NewUnsupportedExpression(s)
	case Expression:
		return v.Err()
	case TableReference:
		return v.Err()
	}
	return errs.NewUnsupportedExpression(s)
}

func firstNonNil(errList ...error) error {
	for _, err := range errList {
		if err != nil {
			return err
		}
	}
	return nil
}

// next 复制一份, 切片的容量截断, 之后的 append 一定会重新分配
func (s *Selector[T]) next() *Selector[T] {
	q := s.q
	q.columns = q.columns[:len(q.columns):len(q.columns)]
	q.where = q.where[:len(q.where):len(q.where)]
	q.groupBy = q.groupBy[:len(q.groupBy):len(q.groupBy)]
	q.having = q.having[:len(q.having):len(q.having)]
	q.orderBy = q.orderBy[:len(q.orderBy):len(q.orderBy)]
	return &Selector[T]{q: q}
}

func (s *Selector[T]) fail(err error) *Selector[T] {
	res := s.next()
	if res.q.err == nil {
		res.q.err = err
	}
	return res
}

func (s *Selector[T]) From(table TableReference) *Selector[T] {
	if table == nil {
		return s.fail(errs.NewUnsupportedTableReference(table))
	}
	res := s.next()
	res.q.from = normalizeRef(table)
	res.q.err = firstNonNil(res.q.err, table.Err())
	return res
}

// Join 沿关系属性内连接, m.C("Department") 对应 d
func (s *Selector[T]) Join(relation Column, target Table) *Selector[T] {
	return s.joinPath(relation, target, "JOIN")
}

// LeftJoin 没有匹配时右边补空
func (s *Selector[T]) LeftJoin(relation Column, target Table) *Selector[T] {
	return s.joinPath(relation, target, "LEFT JOIN")
}

func (s *Selector[T]) joinPath(relation Column, target Table, typ string) *Selector[T] {
	left := s.q.from
	if left == nil {
		left = relation.table
	}
	res := s.next()
	res.q.from = joinPath(left, relation, target, typ)
	res.q.err = firstNonNil(res.q.err, res.q.from.Err())
	return res
}

// JoinOn 显式给出连接条件
func (s *Selector[T]) JoinOn(target TableReference, on ...Predicate) *Selector[T] {
	if s.q.from == nil {
		return s.fail(errs.NewInvalidQueryShape("JOIN 之前必须先有 FROM"))
	}
	j := (&JoinBuilder{left: s.q.from, right: target, typ: "JOIN"}).On(on...)
	res := s.next()
	res.q.from = j
	res.q.err = firstNonNil(res.q.err, j.Err())
	return res
}

// Where 多次调用用 AND 连接
func (s *Selector[T]) Where(ps ...Predicate) *Selector[T] {
	res := s.next()
	for _, p := range ps {
		res.q.err = firstNonNil(res.q.err, p.Err())
		if hasAggregate(p) {
			res.q.err = firstNonNil(res.q.err, errs.NewInvalidQueryShape("WHERE 里不能使用聚合函数"))
		}
	}
	res.q.where = append(res.q.where, ps...)
	return res
}

func (s *Selector[T]) GroupBy(exprs ...Expression) *Selector[T] {
	res := s.next()
	for _, e := range exprs {
		if e == nil {
			res.q.err = firstNonNil(res.q.err, errs.NewUnsupportedExpression(e))
			continue
		}
		res.q.err = firstNonNil(res.q.err, e.Err())
		if hasAggregate(e) {
			res.q.err = firstNonNil(res.q.err, errs.NewInvalidQueryShape("GROUP BY 里不能使用聚合函数"))
		}
	}
	res.q.groupBy = append(res.q.groupBy, exprs...)
	return res
}

// Having 没有 GroupBy 时作用于整张表这一个分组
func (s *Selector[T]) Having(ps ...Predicate) *Selector[T] {
	res := s.next()
	for _, p := range ps {
		res.q.err = firstNonNil(res.q.err, p.Err())
	}
	res.q.having = append(res.q.having, ps...)
	return res
}

// OrderBy 第一个是主排序键
func (s *Selector[T]) OrderBy(orders ...OrderBy) *Selector[T] {
	res := s.next()
	for _, o := range orders {
		res.q.err = firstNonNil(res.q.err, o.Err())
	}
	res.q.orderBy = append(res.q.orderBy, orders...)
	return res
}

func (s *Selector[T]) Offset(offset int) *Selector[T] {
	if offset < 0 {
		return s.fail(errs.NewInvalidQueryShape("offset 不能为负数"))
	}
	res := s.next()
	res.q.offset = offset
	return res
}

func (s *Selector[T]) Limit(limit int) *Selector[T] {
	if limit < 0 {
		return s.fail(errs.NewInvalidQueryShape("limit 不能为负数"))
	}
	res := s.next()
	res.q.limit = limit
	return res
}

// Dialect 只影响 Build 生成的 SQL
func (s *Selector[T]) Dialect(d Dialect) *Selector[T] {
	res := s.next()
	res.q.dialect = d
	return res
}

func (s *Selector[T]) Err() error {
	return s.q.err
}

func (s *Selector[T]) descriptor() *query {
	return &s.q
}

func (s *Selector[T]) Build() (*Query, error) {
	p, err := s.q.plan()
	if err != nil {
		return nil, err
	}
	d := s.q.dialect
	if d == nil {
		d = DialectMySQL
	}
	b := &builder{dialect: d}
	if err = b.buildQuery(p); err != nil {
		return nil, err
	}
	b.sb.WriteByte(';')
	return &Query{
		SQL:  b.sb.String(),
		Args: b.args,
	}, nil
}

// Fetch 结果是惰性的, 只能遍历一次
func (s *Selector[T]) Fetch(ctx context.Context, sess Session) (*Cursor[T], error) {
	c := sess.getCore()
	sel := s
	if sel.q.dialect == nil {
		sel = s.Dialect(c.dialect)
	}
	p, err := sel.q.plan()
	if err != nil {
		return nil, err
	}
	conv, err := newConverter[T](c, p)
	if err != nil {
		return nil, err
	}
	res := run(ctx, sess, c, &QueryContext{
		Type:    "SELECT",
		Builder: sel,
		Entity:  p.entity(),
	}, selectHandler)
	if res.Err != nil {
		return nil, res.Err
	}
	return newCursor[T](res.Result.(*resultSet), conv), nil
}

func (s *Selector[T]) FetchAll(ctx context.Context, sess Session) ([]T, error) {
	cur, err := s.Fetch(ctx, sess)
	if err != nil {
		return nil, err
	}
	return cur.Drain()
}

// FetchOne 没有结果时返回 false, 多于一行返回 ErrNonUniqueResult
func (s *Selector[T]) FetchOne(ctx context.Context, sess Session) (T, bool, error) {
	var zero T
	cur, err := s.Fetch(ctx, sess)
	if err != nil {
		return zero, false, err
	}
	defer cur.Close()
	if cnt := cur.Len(); cnt > 1 {
		return zero, false, errs.NewNonUniqueResult(cnt)
	}
	if !cur.Next() {
		return zero, false, cur.Err()
	}
	return cur.Value(), true, nil
}

// FetchCount 不考虑 offset 和 limit 的结果行数
func (s *Selector[T]) FetchCount(ctx context.Context, sess Session) (int64, error) {
	c := sess.getCore()
	sel := s
	if sel.q.dialect == nil {
		sel = s.Dialect(c.dialect)
	}
	p, err := sel.q.plan()
	if err != nil {
		return 0, err
	}
	res := run(ctx, sess, c, &QueryContext{
		Type:    "COUNT",
		Builder: sel,
		Entity:  p.entity(),
	}, selectHandler)
	if res.Err != nil {
		return 0, res.Err
	}
	return int64(res.Result.(*resultSet).total), nil
}
