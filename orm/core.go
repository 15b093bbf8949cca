package orm

import (
	"context"

	"querydemo/orm/internal/errs"
	"querydemo/orm/internal/valuer"
	"querydemo/orm/model"
)

type core struct {
	dialect Dialect
	creator valuer.Creator
	r       model.Registry
	mdls    []Middleware
}

type handlerFunc func(ctx context.Context, sess Session, c core, qc *QueryContext) *QueryResult

// run 按注册顺序包装中间件, 第一个注册的在最外层
func run(ctx context.Context, sess Session, c core, qc *QueryContext, h handlerFunc) *QueryResult {
	var root Handler = func(ctx context.Context, qc *QueryContext) *QueryResult {
		return h(ctx, sess, c, qc)
	}
	for i := len(c.mdls) - 1; i >= 0; i-- {
		root = c.mdls[i](root)
	}
	return root(ctx, qc)
}

// selectHandler 中间件可能替换了 Builder, 所以从 qc 里重新取查询
func selectHandler(ctx context.Context, sess Session, c core, qc *QueryContext) *QueryResult {
	d, ok := qc.Builder.(interface{ descriptor() *query })
	if !ok {
		return &QueryResult{Err: errs.NewUnsupportedExpression(qc.Builder)}
	}
	p, err := d.descriptor().plan()
	if err != nil {
		return &QueryResult{Err: err}
	}
	exec := newExecutor(ctx, sess.source(), c.r)
	units, err := exec.units(p, nil)
	if err != nil {
		return &QueryResult{Err: err}
	}
	return &QueryResult{
		Result: &resultSet{
			exec:  exec,
			plan:  p,
			units: page(units, p.q.offset, p.q.limit),
			total: len(units),
		},
	}
}
