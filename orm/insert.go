package orm

import (
	"context"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// Inserter 持久化实体, 对应 persist. 生成的主键会写回结构体
type Inserter[T any] struct {
	sess    Session
	values  []*T
	columns []string
}

func NewInserter[T any](sess Session) *Inserter[T] {
	return &Inserter[T]{
		sess: sess,
	}
}

// Columns 只写这些属性, 其余的留给数据源默认值
func (i *Inserter[T]) Columns(cols ...string) *Inserter[T] {
	i.columns = cols
	return i
}

// Values 指定插入的数据
func (i *Inserter[T]) Values(vals ...*T) *Inserter[T] {
	i.values = vals
	return i
}

func (i *Inserter[T]) entity() (*model.Entity, error) {
	return i.sess.getCore().r.Of(new(T))
}

func (i *Inserter[T]) attributes(e *model.Entity) ([]*model.Attribute, error) {
	//如果用户指定列，重构attrs
	if len(i.columns) == 0 {
		return e.Columns(), nil
	}
	attrs := make([]*model.Attribute, 0, len(i.columns))
	for _, name := range i.columns {
		attr, err := e.Attribute(name)
		if err != nil {
			return nil, err
		}
		if !attr.Persisted() {
			return nil, errs.NewUnsupportedExpression(name)
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// records 把结构体读成记录, 主键是零值时记为空, 交给数据源生成
func (i *Inserter[T]) records(c core, e *model.Entity) ([]Record, error) {
	attrs, err := i.attributes(e)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(i.values))
	for _, v := range i.values {
		val := c.creator(e, v)
		rec := make(Record, len(attrs))
		for _, attr := range attrs {
			fd, err := val.Field(attr.Name)
			if err != nil {
				return nil, err
			}
			if attr.Identity && (fd == int64(0) || fd == "") {
				fd = nil
			}
			rec[attr.Name] = fd
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (i *Inserter[T]) Build() (*Query, error) {
	if len(i.values) == 0 {
		return nil, errs.ErrInsertZeroRow
	}
	c := i.sess.getCore()
	e, err := i.entity()
	if err != nil {
		return nil, err
	}
	attrs, err := i.attributes(e)
	if err != nil {
		return nil, err
	}
	b := &builder{dialect: c.dialect}
	b.sb.WriteString("INSERT INTO ")
	b.quote(e.TableName)
	//一定要显式的指定列的顺序，不然我们不知道数据库中默认的数据顺序
	b.sb.WriteByte('(')
	for idx, attr := range attrs {
		if idx > 0 {
			b.sb.WriteByte(',')
		}
		b.quote(attr.ColName)
	}
	b.sb.WriteByte(')')
	b.sb.WriteString(" VALUES ")
	//预估的参数数量是，我有多少行乘有多少个字段
	b.args = make([]any, 0, len(i.values)*len(attrs))
	for j, v := range i.values {
		if j > 0 {
			b.sb.WriteByte(',')
		}
		b.sb.WriteByte('(')
		val := c.creator(e, v)
		for idx, attr := range attrs {
			if idx > 0 {
				b.sb.WriteByte(',')
			}
			b.sb.WriteByte('?')
			//把参数读出来
			arg, err := val.Field(attr.Name)
			if err != nil {
				return nil, err
			}
			b.addArgs(arg)
		}
		b.sb.WriteByte(')')
	}
	b.sb.WriteByte(';')
	return &Query{
		SQL:  b.sb.String(),
		Args: b.args,
	}, nil
}

func (i *Inserter[T]) Exec(ctx context.Context) Result {
	if len(i.values) == 0 {
		return Result{err: errs.ErrInsertZeroRow}
	}
	e, err := i.entity()
	if err != nil {
		return Result{err: err}
	}
	c := i.sess.getCore()
	res := run(ctx, i.sess, c, &QueryContext{
		Type:    "INSERT",
		Builder: i,
		Entity:  e,
	}, i.insertHandler)
	if r, ok := res.Result.(Result); ok {
		r.err = res.Err
		return r
	}
	return Result{err: res.Err}
}

func (i *Inserter[T]) insertHandler(ctx context.Context, sess Session, c core, qc *QueryContext) *QueryResult {
	w, ok := sess.source().(Writer)
	if !ok {
		return &QueryResult{Err: errs.ErrReadOnlySource}
	}
	recs, err := i.records(c, qc.Entity)
	if err != nil {
		return &QueryResult{Err: err}
	}
	if err = w.Insert(ctx, qc.Entity, recs); err != nil {
		return &QueryResult{Err: err}
	}
	res := Result{affected: int64(len(recs))}
	id := qc.Entity.ID.Name
	for j, rec := range recs {
		if err = c.creator(qc.Entity, i.values[j]).SetField(id, rec[id]); err != nil {
			return &QueryResult{Err: err}
		}
		if v, ok := rec[id].(int64); ok {
			res.lastID = v
		}
	}
	return &QueryResult{Result: res}
}

// Result 对应 sql.Result
type Result struct {
	affected int64
	lastID   int64
	err      error
}

func (r Result) Err() error {
	return r.err
}

func (r Result) LastInsertId() (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.lastID, nil
}

func (r Result) RowsAffected() (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.affected, nil
}
