package orm

import (
	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// plan 是校验过的查询, FROM 和投影都已经补全
type plan struct {
	q       *query
	from    TableReference
	items   []Selectable
	names   []string
	grouped bool
	aliases map[string]Table
}

func (q *query) plan() (*plan, error) {
	if q.err != nil {
		return nil, q.err
	}
	p := &plan{q: q, from: q.from, items: q.columns}
	if p.from == nil {
		from, err := q.inferFrom()
		if err != nil {
			return nil, err
		}
		p.from = from
	}
	if err := p.from.Err(); err != nil {
		return nil, err
	}
	p.aliases = make(map[string]Table, 2)
	for _, t := range p.from.tables() {
		if _, ok := p.aliases[t.alias]; ok {
			return nil, errs.NewInvalidQueryShape("表别名重复: " + t.alias)
		}
		p.aliases[t.alias] = t
	}
	if len(p.items) == 0 {
		p.items = []Selectable{p.from.tables()[0]}
	}
	p.names = make([]string, 0, len(p.items))
	for _, item := range p.items {
		p.names = append(p.names, exprName(item))
	}

	p.grouped = len(q.groupBy) > 0
	for _, item := range p.items {
		if e, ok := item.(Expression); ok && hasAggregate(e) {
			p.grouped = true
		}
	}
	// 只有 Having 时不分组, 执行时 Having 作用于整张表这一个分组
	for _, o := range q.orderBy {
		if hasAggregate(o.expr) {
			p.grouped = true
		}
	}
	if err := p.checkNesting(); err != nil {
		return nil, err
	}
	if p.grouped {
		if err := p.checkGroupedProjection(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// inferFrom 没有 From 时用投影里唯一的表
func (q *query) inferFrom() (TableReference, error) {
	var found []Table
	seen := make(map[string]bool, 2)
	add := func(t Table) {
		if !seen[t.alias] {
			seen[t.alias] = true
			found = append(found, t)
		}
	}
	for _, item := range q.columns {
		switch v := item.(type) {
		case Table:
			add(v)
		case Expression:
			walk(v, func(e Expression) bool {
				if c, ok := e.(Column); ok {
					add(c.table)
				}
				return true
			})
		}
	}
	if len(found) != 1 {
		return nil, errs.NewInvalidQueryShape("无法推断 FROM")
	}
	return found[0], nil
}

// checkNesting 聚合函数不能嵌套
func (p *plan) checkNesting() error {
	var err error
	check := func(e Expression) {
		walk(e, func(e Expression) bool {
			if a, ok := e.(Aggregate); ok {
				if hasAggregate(a.arg) {
					err = errs.NewInvalidQueryShape("聚合函数不能嵌套")
				}
				return false
			}
			return true
		})
	}
	for _, item := range p.items {
		if e, ok := item.(Expression); ok {
			check(e)
		}
	}
	for _, h := range p.q.having {
		check(h)
	}
	for _, o := range p.q.orderBy {
		check(o.expr)
	}
	return err
}

// checkGroupedProjection 分组查询的投影只能是分组键, 聚合函数或者常量
func (p *plan) checkGroupedProjection() error {
	keys := p.keys()
	for _, item := range p.items {
		e, ok := item.(Expression)
		if !ok {
			return errs.NewInvalidQueryShape("分组查询不能投影整张表")
		}
		if !covered(e, keys) {
			if len(p.q.groupBy) == 0 {
				return errs.NewInvalidQueryShape("聚合函数不能和普通列混用: " + exprName(item))
			}
			return errs.NewInvalidQueryShape("投影的列不在 GROUP BY 中: " + exprName(item))
		}
	}
	return nil
}

// keys 分组键的 fingerprint
func (p *plan) keys() map[string]bool {
	keys := make(map[string]bool, len(p.q.groupBy))
	for _, k := range p.q.groupBy {
		keys[fingerprint(k)] = true
	}
	return keys
}

func covered(e Expression, keys map[string]bool) bool {
	if keys[fingerprint(e)] {
		return true
	}
	switch e.(type) {
	case Aggregate, value, Subquery:
		return true
	case Column:
		return false
	}
	for _, c := range children(e) {
		if c != nil && !covered(c, keys) {
			return false
		}
	}
	return true
}

// entity 主表, 给中间件用
func (p *plan) entity() *model.Entity {
	return p.from.tables()[0].entity
}
