package orm

import (
	"context"
	"sort"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// executor 一次执行内共享: 每个实体只扫描一次, 不相关子查询只算一次
type executor struct {
	ctx   context.Context
	src   DataSource
	r     model.Registry
	scans map[string][]Record
	subs  map[*query][]any
	corr  map[*query]bool
}

func newExecutor(ctx context.Context, src DataSource, r model.Registry) *executor {
	return &executor{
		ctx:   ctx,
		src:   src,
		r:     r,
		scans: make(map[string][]Record, 2),
		subs:  make(map[*query][]any, 2),
		corr:  make(map[*query]bool, 2),
	}
}

// units 执行到排序为止: 连接, 过滤, 分组, having, 排序
func (e *executor) units(p *plan, outer *env) ([]*env, error) {
	rows, err := e.source(p.from, p.pushDown())
	if err != nil {
		return nil, err
	}
	if where, ok := and(p.q.where); ok {
		filtered := rows[:0:0]
		for _, r := range rows {
			v, err := e.eval(where, &env{row: r, outer: outer, exec: e})
			if err != nil {
				return nil, err
			}
			if v == true {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	var units []*env
	if p.grouped {
		units, err = e.group(p, rows, outer)
		if err != nil {
			return nil, err
		}
	} else {
		units = make([]*env, 0, len(rows))
		for _, r := range rows {
			units = append(units, &env{row: r, outer: outer, exec: e})
		}
	}

	if having, ok := and(p.q.having); ok {
		units, err = e.having(p, having, rows, units, outer)
		if err != nil {
			return nil, err
		}
	}

	if len(p.q.orderBy) > 0 {
		if err = e.sort(p, units); err != nil {
			return nil, err
		}
	}
	return units, nil
}

// having 没有分组时整张表是一个分组, 不满足条件就什么都不返回
func (e *executor) having(p *plan, having Predicate, rows []row, units []*env, outer *env) ([]*env, error) {
	if !p.grouped {
		whole := &env{row: e.nullRow(p), group: rows, grouped: true, having: true, outer: outer, exec: e}
		if len(rows) > 0 {
			whole.row = rows[0]
		}
		v, err := e.eval(having, whole)
		if err != nil {
			return nil, err
		}
		if v != true {
			return units[:0], nil
		}
		return units, nil
	}
	filtered := units[:0:0]
	for _, u := range units {
		hu := *u
		hu.having = true
		v, err := e.eval(having, &hu)
		if err != nil {
			return nil, err
		}
		if v == true {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// group 按键排序后切分, 分组按键升序输出
func (e *executor) group(p *plan, rows []row, outer *env) ([]*env, error) {
	if len(p.q.groupBy) == 0 {
		first := e.nullRow(p)
		if len(rows) > 0 {
			first = rows[0]
		}
		return []*env{{row: first, group: rows, grouped: true, keys: p.keys(), outer: outer, exec: e}}, nil
	}
	type keyed struct {
		keys []any
		row  row
	}
	keySet := p.keys()
	ks := make([]keyed, 0, len(rows))
	for _, r := range rows {
		keys := make([]any, 0, len(p.q.groupBy))
		for _, g := range p.q.groupBy {
			v, err := e.eval(g, &env{row: r, outer: outer, exec: e})
			if err != nil {
				return nil, err
			}
			keys = append(keys, v)
		}
		ks = append(ks, keyed{keys: keys, row: r})
	}
	cmpKeys := func(a, b []any) int {
		for i := range a {
			if c := sortValues(a[i], b[i]); c != 0 {
				return c
			}
		}
		return 0
	}
	sort.SliceStable(ks, func(i, j int) bool {
		return cmpKeys(ks[i].keys, ks[j].keys) < 0
	})
	var units []*env
	for i := 0; i < len(ks); {
		j := i + 1
		for j < len(ks) && cmpKeys(ks[i].keys, ks[j].keys) == 0 {
			j++
		}
		group := make([]row, 0, j-i)
		for _, k := range ks[i:j] {
			group = append(group, k.row)
		}
		units = append(units, &env{row: group[0], group: group, grouped: true, keys: keySet, outer: outer, exec: e})
		i = j
	}
	return units, nil
}

func (e *executor) nullRow(p *plan) row {
	r := make(row, len(p.aliases))
	for alias := range p.aliases {
		r[alias] = nil
	}
	return r
}

// sort 稳定排序, 排序键预先算好
func (e *executor) sort(p *plan, units []*env) error {
	keys := make(map[*env][]any, len(units))
	for _, u := range units {
		vals := make([]any, 0, len(p.q.orderBy))
		for _, o := range p.q.orderBy {
			v, err := e.eval(o.expr, u)
			if err != nil {
				return err
			}
			vals = append(vals, v)
		}
		keys[u] = vals
	}
	sort.SliceStable(units, func(i, j int) bool {
		ki, kj := keys[units[i]], keys[units[j]]
		for idx, o := range p.q.orderBy {
			if c := orderValues(ki[idx], kj[idx], o); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return nil
}

// source 把 FROM 展开成行
func (e *executor) source(ref TableReference, pushed []Predicate) ([]row, error) {
	if err := e.ctx.Err(); err != nil {
		return nil, err
	}
	if t, ok := ref.leaf(); ok {
		recs, err := e.scan(t, pushed)
		if err != nil {
			return nil, err
		}
		rows := make([]row, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, row{t.alias: rec})
		}
		return rows, nil
	}
	j, ok := ref.(Join)
	if !ok {
		return nil, errs.NewUnsupportedTableReference(ref)
	}
	if j.relation != nil {
		return e.joinRelation(j)
	}
	return e.joinOn(j)
}

func (e *executor) scan(t Table, pushed []Predicate) ([]Record, error) {
	if f, ok := e.src.(Filterer); ok && len(pushed) > 0 {
		return f.ScanFiltered(e.ctx, t.entity, t.alias, pushed)
	}
	if recs, ok := e.scans[t.entity.Name]; ok {
		return recs, nil
	}
	recs, err := e.src.Scan(e.ctx, t.entity)
	if err != nil {
		return nil, err
	}
	e.scans[t.entity.Name] = recs
	return recs, nil
}

// joinRelation 通过数据源解析关系, 可以额外带 ON 条件
func (e *executor) joinRelation(j Join) ([]row, error) {
	left, err := e.source(j.left, nil)
	if err != nil {
		return nil, err
	}
	target, _ := j.right.leaf()
	rel := Relation{
		Owner:  j.relation.table.entity,
		Attr:   j.relation.attr,
		Target: target.entity,
	}
	on, hasOn := and(j.on)
	res := make([]row, 0, len(left))
	for _, lr := range left {
		var targets []Record
		if owner := lr[j.relation.table.alias]; owner != nil && relationKey(rel, owner) != nil {
			targets, err = e.src.Resolve(e.ctx, rel, owner)
			if err != nil {
				return nil, err
			}
		}
		matched := false
		for _, rec := range targets {
			r := merge(lr, row{target.alias: rec})
			if hasOn {
				v, err := e.eval(on, &env{row: r, exec: e})
				if err != nil {
					return nil, err
				}
				if v != true {
					continue
				}
			}
			matched = true
			res = append(res, r)
		}
		if !matched && j.typ == "LEFT JOIN" {
			res = append(res, merge(lr, row{target.alias: nil}))
		}
	}
	return res, nil
}

// relationKey 维护端是外键, 反向端是自己的主键, 为空时没有关联的记录
func relationKey(rel Relation, owner Record) any {
	if rel.Attr.Direction == model.Inverse {
		return owner[rel.Owner.ID.Name]
	}
	return owner[rel.Attr.Name]
}

// joinOn 嵌套循环连接, 行的顺序是左边的顺序
func (e *executor) joinOn(j Join) ([]row, error) {
	left, err := e.source(j.left, nil)
	if err != nil {
		return nil, err
	}
	right, err := e.source(j.right, nil)
	if err != nil {
		return nil, err
	}
	on, err := e.joinPredicate(j)
	if err != nil {
		return nil, err
	}
	match := func(r row) (bool, error) {
		if on == nil {
			return true, nil
		}
		v, err := e.eval(*on, &env{row: r, exec: e})
		return v == true, err
	}
	outer, inner := left, right
	innerRef := j.right
	if j.typ == "RIGHT JOIN" {
		outer, inner = right, left
		innerRef = j.left
	}
	res := make([]row, 0, len(outer))
	for _, o := range outer {
		matched := false
		for _, i := range inner {
			r := merge(o, i)
			ok, err := match(r)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				res = append(res, r)
			}
		}
		if !matched && j.typ != "JOIN" {
			nulls := make(row, 2)
			for _, t := range innerRef.tables() {
				nulls[t.alias] = nil
			}
			res = append(res, merge(o, nulls))
		}
	}
	return res, nil
}

// joinPredicate ON 和 USING 合成一个谓词
func (e *executor) joinPredicate(j Join) (*Predicate, error) {
	ps := append([]Predicate{}, j.on...)
	for _, name := range j.using {
		l, err := findColumn(j.left, name)
		if err != nil {
			return nil, err
		}
		r, err := findColumn(j.right, name)
		if err != nil {
			return nil, err
		}
		ps = append(ps, l.Eq(r))
	}
	p, ok := and(ps)
	if !ok {
		return nil, nil
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func findColumn(ref TableReference, name string) (Column, error) {
	for _, t := range ref.tables() {
		if c, err := t.Attr(name); err == nil {
			return c, nil
		}
	}
	return Column{}, errs.NewUnknownAttribute(ref.tables()[0].entity.Name, name)
}

func merge(a, b row) row {
	res := make(row, len(a)+len(b))
	for k, v := range a {
		res[k] = v
	}
	for k, v := range b {
		res[k] = v
	}
	return res
}

// inverseIDs 反向关系按需解析成目标主键列表
func (e *executor) inverseIDs(c Column, owner Record) (any, error) {
	target, err := e.r.Get(c.attr.Target)
	if err != nil {
		return nil, err
	}
	recs, err := e.src.Resolve(e.ctx, Relation{
		Owner:  c.table.entity,
		Attr:   c.attr,
		Target: target,
	}, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec[target.ID.Name])
	}
	return ids, nil
}

// subquery 结果是第一列的值
func (e *executor) subquery(sq Subquery, en *env) ([]any, error) {
	correlated := e.correlated(sq.q)
	if !correlated {
		if vals, ok := e.subs[sq.q]; ok {
			return vals, nil
		}
	}
	p, err := sq.q.plan()
	if err != nil {
		return nil, err
	}
	units, err := e.units(p, en)
	if err != nil {
		return nil, err
	}
	units = page(units, p.q.offset, p.q.limit)
	vals := make([]any, 0, len(units))
	for _, u := range units {
		v, err := e.eval(p.items[0].(Expression), u)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if !correlated {
		e.subs[sq.q] = vals
	}
	return vals, nil
}

// correlated 子查询是否引用了外层的表
func (e *executor) correlated(q *query) bool {
	if res, ok := e.corr[q]; ok {
		return res
	}
	res := len(outerAliases(q)) > 0
	e.corr[q] = res
	return res
}

func outerAliases(q *query) map[string]bool {
	own := make(map[string]bool, 2)
	if q.from != nil {
		for _, t := range q.from.tables() {
			own[t.alias] = true
		}
	} else if from, err := q.inferFrom(); err == nil {
		for _, t := range from.tables() {
			own[t.alias] = true
		}
	}
	res := make(map[string]bool)
	visit := func(x Expression) {
		walkDeep(x, func(x Expression) {
			switch v := x.(type) {
			case Column:
				if !own[v.table.alias] {
					res[v.table.alias] = true
				}
			case Subquery:
				for alias := range outerAliases(v.q) {
					if !own[alias] {
						res[alias] = true
					}
				}
			}
		})
	}
	for _, item := range q.columns {
		if x, ok := item.(Expression); ok {
			visit(x)
		}
	}
	for _, p := range q.where {
		visit(p)
	}
	for _, g := range q.groupBy {
		visit(g)
	}
	for _, h := range q.having {
		visit(h)
	}
	for _, o := range q.orderBy {
		visit(o.expr)
	}
	return res
}

// walkDeep 遍历所有节点, 包括子查询节点本身
func walkDeep(x Expression, fn func(x Expression)) {
	walk(x, func(x Expression) bool {
		fn(x)
		return true
	})
}

func page[E any](units []E, offset int, limit int) []E {
	if offset >= len(units) {
		return units[:0]
	}
	units = units[offset:]
	if limit >= 0 && limit < len(units) {
		units = units[:limit]
	}
	return units
}

// pushDown 单表时可以下推的 where 条件, 执行器仍然会再过滤一遍
func (p *plan) pushDown() []Predicate {
	t, ok := p.from.leaf()
	if !ok {
		return nil
	}
	var res []Predicate
	for _, w := range p.q.where {
		local := true
		walk(w, func(x Expression) bool {
			switch v := x.(type) {
			case Subquery:
				local = false
			case Column:
				if v.table.alias != t.alias || !v.attr.Persisted() {
					local = false
				}
			}
			return local
		})
		if local {
			res = append(res, w)
		}
	}
	return res
}
