package orm

import (
	"strings"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

type Query struct {
	SQL  string
	Args []any
}

type QueryBuilder interface {
	Build() (*Query, error)
}

// builder 把查询描述渲染成 SQL, 只用于下推和观测
type builder struct {
	sb      strings.Builder
	args    []any
	dialect Dialect
	// havingKeys 渲染 HAVING 时的分组键, 其余数值列按组取平均
	havingKeys map[string]bool
}

func (b *builder) quote(name string) {
	b.sb.WriteByte(b.dialect.quoter())
	b.sb.WriteString(name)
	b.sb.WriteByte(b.dialect.quoter())
}

func (b *builder) addArgs(vals ...any) {
	if len(vals) == 0 {
		return
	}
	if b.args == nil {
		b.args = make([]any, 0, 8)
	}
	b.args = append(b.args, vals...)
}

func (b *builder) buildQuery(p *plan) error {
	outerKeys := b.havingKeys
	b.havingKeys = nil
	defer func() {
		b.havingKeys = outerKeys
	}()
	b.sb.WriteString("SELECT ")
	for i, item := range p.items {
		if i > 0 {
			b.sb.WriteByte(',')
		}
		if err := b.buildItem(item); err != nil {
			return err
		}
	}
	b.sb.WriteString(" FROM ")
	if err := b.buildTable(p.from); err != nil {
		return err
	}
	if where, ok := and(p.q.where); ok {
		b.sb.WriteString(" WHERE ")
		if err := b.buildExpression(where); err != nil {
			return err
		}
	}
	if len(p.q.groupBy) > 0 {
		b.sb.WriteString(" GROUP BY ")
		for i, g := range p.q.groupBy {
			if i > 0 {
				b.sb.WriteByte(',')
			}
			if err := b.buildExpression(g); err != nil {
				return err
			}
		}
	}
	if having, ok := and(p.q.having); ok {
		b.sb.WriteString(" HAVING ")
		b.havingKeys = p.keys()
		err := b.buildExpression(having)
		b.havingKeys = nil
		if err != nil {
			return err
		}
	}
	if len(p.q.orderBy) > 0 {
		b.sb.WriteString(" ORDER BY ")
		for i, o := range p.q.orderBy {
			if i > 0 {
				b.sb.WriteByte(',')
			}
			if err := b.dialect.buildOrderBy(b, o); err != nil {
				return err
			}
		}
	}
	if p.q.offset > 0 || p.q.limit >= 0 {
		b.dialect.buildLimit(b, p.q.offset, p.q.limit)
	}
	return nil
}

func (b *builder) buildItem(item Selectable) error {
	switch v := item.(type) {
	case Table:
		for i, attr := range v.entity.Columns() {
			if i > 0 {
				b.sb.WriteByte(',')
			}
			b.quote(v.alias)
			b.sb.WriteByte('.')
			b.quote(attr.ColName)
		}
		return nil
	case Expression:
		if err := b.buildExpression(v); err != nil {
			return err
		}
		if alias := itemAlias(v); alias != "" {
			b.sb.WriteString(" AS ")
			b.quote(alias)
		}
		return nil
	}
	return errs.NewUnsupportedExpression(item)
}

func itemAlias(e Expression) string {
	switch v := e.(type) {
	case Column:
		return v.alias
	case Aggregate:
		return v.alias
	case Arith:
		return v.alias
	case StringExpr:
		return v.alias
	}
	return ""
}

// buildTable 因为Join查询和predicate相似，所以定义出的方法也差不多
func (b *builder) buildTable(ref TableReference) error {
	if t, ok := ref.leaf(); ok {
		b.quote(t.entity.TableName)
		b.sb.WriteString(" AS ")
		b.quote(t.alias)
		return nil
	}
	j, ok := ref.(Join)
	if !ok {
		return errs.NewUnsupportedTableReference(ref)
	}
	b.sb.WriteByte('(')
	//构造左侧
	if err := b.buildTable(j.left); err != nil {
		return err
	}
	b.sb.WriteByte(' ')
	b.sb.WriteString(j.typ)
	b.sb.WriteByte(' ')
	//构造右侧
	if err := b.buildTable(j.right); err != nil {
		return err
	}
	if len(j.using) > 0 {
		b.sb.WriteString(" USING (")
		//拼接 USING(xx,xx)
		for i, name := range j.using {
			if i > 0 {
				b.sb.WriteByte(',')
			}
			c, err := findColumn(j.right, name)
			if err != nil {
				return err
			}
			b.quote(c.attr.ColName)
		}
		b.sb.WriteByte(')')
	}
	on := j.on
	if j.relation != nil {
		p, err := relationPredicate(j)
		if err != nil {
			return err
		}
		on = append([]Predicate{p}, on...)
	}
	if p, ok := and(on); ok {
		b.sb.WriteString(" ON ")
		if err := b.buildExpression(p); err != nil {
			return err
		}
	}
	b.sb.WriteByte(')')
	return nil
}

// relationPredicate 关系 JOIN 对应的等值条件
func relationPredicate(j Join) (Predicate, error) {
	target, _ := j.right.leaf()
	rel := *j.relation
	if rel.attr.Direction == model.Inverse {
		fk, err := target.Attr(rel.attr.MappedBy)
		if err != nil {
			return Predicate{}, err
		}
		id := Column{table: rel.table, attr: rel.table.entity.ID}
		return id.Eq(fk), nil
	}
	id := Column{table: target, attr: target.entity.ID}
	return rel.Eq(id), nil
}

func (b *builder) buildExpression(expr Expression) error {
	switch exp := expr.(type) {
	case nil:
		return nil
	case Predicate:
		return b.buildPredicate(exp)
	case Column:
		if b.havingKeys != nil && !b.havingKeys[exp.qualified()] {
			if !exp.Kind().Numeric() {
				return errs.NewInvalidQueryShape("HAVING 中的列不在 GROUP BY 中: " + exp.qualified())
			}
			return b.buildExpression(exp.Avg())
		}
		return b.buildColumn(exp)
	case value:
		if list, ok := exp.val.([]any); ok {
			b.sb.WriteByte('(')
			if len(list) == 0 {
				b.sb.WriteString("NULL")
			}
			for i, v := range list {
				if i > 0 {
					b.sb.WriteByte(',')
				}
				b.sb.WriteByte('?')
				b.addArgs(v)
			}
			b.sb.WriteByte(')')
			return nil
		}
		b.sb.WriteByte('?')
		b.addArgs(exp.val)
	case Aggregate:
		//聚合函数名
		b.sb.WriteString(exp.fn)
		b.sb.WriteByte('(')
		keys := b.havingKeys
		b.havingKeys = nil
		err := b.buildExpression(exp.arg)
		b.havingKeys = keys
		if err != nil {
			return err
		}
		b.sb.WriteByte(')')
	case Arith:
		if exp.op == opDiv && exp.Kind() == model.KindInt {
			return b.dialect.buildIntDiv(b, exp)
		}
		return b.buildArith(exp, exp.op.String())
	case StringExpr:
		switch exp.op {
		case opConcat:
			return b.dialect.buildConcat(b, exp.args)
		case opCast:
			return b.dialect.buildCast(b, exp.args[0])
		}
		b.sb.WriteString(exp.op.String())
		b.sb.WriteByte('(')
		if err := b.buildExpression(exp.args[0]); err != nil {
			return err
		}
		b.sb.WriteByte(')')
	case Subquery:
		p, err := exp.q.plan()
		if err != nil {
			return err
		}
		b.sb.WriteByte('(')
		if err = b.buildQuery(p); err != nil {
			return err
		}
		b.sb.WriteByte(')')
	default:
		return errs.NewUnsupportedExpression(exp)
	}
	return nil
}

func (b *builder) buildArith(a Arith, op string) error {
	b.sb.WriteByte('(')
	if err := b.buildExpression(a.left); err != nil {
		return err
	}
	b.sb.WriteByte(' ')
	b.sb.WriteString(op)
	b.sb.WriteByte(' ')
	if err := b.buildExpression(a.right); err != nil {
		return err
	}
	b.sb.WriteByte(')')
	return nil
}

func (b *builder) buildPredicate(p Predicate) error {
	switch p.op {
	case opNot:
		b.sb.WriteString("NOT (")
		if err := b.buildExpression(p.right); err != nil {
			return err
		}
		b.sb.WriteByte(')')
		return nil
	case opIsNull, opIsNotNull:
		if err := b.buildExpression(p.left); err != nil {
			return err
		}
		b.sb.WriteByte(' ')
		b.sb.WriteString(p.op.String())
		return nil
	}
	_, ok := p.left.(Predicate)
	if ok {
		b.sb.WriteByte('(')
	}
	if err := b.buildExpression(p.left); err != nil {
		return err
	}
	if ok {
		b.sb.WriteByte(')')
	}
	b.sb.WriteByte(' ')
	b.sb.WriteString(p.op.String())
	b.sb.WriteByte(' ')
	_, ok = p.right.(Predicate)
	if ok {
		b.sb.WriteByte('(')
	}
	if err := b.buildExpression(p.right); err != nil {
		return err
	}
	if ok {
		b.sb.WriteByte(')')
	}
	return nil
}

func (b *builder) buildColumn(c Column) error {
	if !c.attr.Persisted() {
		return errs.NewUnsupportedExpression(c.qualified())
	}
	b.quote(c.table.alias)
	b.sb.WriteByte('.')
	b.quote(c.attr.ColName)
	return nil
}
