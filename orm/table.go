package orm

import (
	"unicode"

	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// TableReference FROM 后面可以跟的东西: 表, 或者 JOIN
type TableReference interface {
	// leaf 单表时返回 true
	leaf() (Table, bool)
	// tables 按出现顺序的所有表
	tables() []Table
	Err() error
}

// Table 带别名的实体
type Table struct {
	entity *model.Entity
	alias  string
	err    error
}

// TableOf 默认别名是首字母小写的实体名
func TableOf(e *model.Entity) Table {
	if e == nil {
		return Table{err: errs.NewUnknownEntity(e)}
	}
	return Table{
		entity: e,
		alias:  lowerFirst(e.Name),
	}
}

func (t Table) As(alias string) Table {
	return Table{
		entity: t.entity,
		alias:  alias,
		err:    t.err,
	}
}

func (t Table) Alias() string {
	return t.alias
}

func (t Table) Entity() *model.Entity {
	return t.entity
}

// C 属性不存在时错误记录在 Column 上
func (t Table) C(name string) Column {
	c, err := t.Attr(name)
	if err != nil {
		return Column{table: t, err: err}
	}
	return c
}

func (t Table) Attr(name string) (Column, error) {
	if err := t.Err(); err != nil {
		return Column{}, err
	}
	attr, err := t.entity.Attribute(name)
	if err != nil {
		return Column{}, err
	}
	return Column{table: t, attr: attr}, nil
}

func (t Table) Join(right TableReference) *JoinBuilder {
	return &JoinBuilder{left: t, right: right, typ: "JOIN"}
}

func (t Table) LeftJoin(right TableReference) *JoinBuilder {
	return &JoinBuilder{left: t, right: right, typ: "LEFT JOIN"}
}

func (t Table) RightJoin(right TableReference) *JoinBuilder {
	return &JoinBuilder{left: t, right: right, typ: "RIGHT JOIN"}
}

// JoinPath 沿着关系属性 JOIN, 不需要写 ON
func (t Table) JoinPath(relation Column, target Table) Join {
	return joinPath(t, relation, target, "JOIN")
}

func (t Table) Err() error {
	if t.err == nil && t.entity == nil {
		return errs.NewUnsupportedTableReference(t)
	}
	return t.err
}

func (t Table) leaf() (Table, bool) {
	return t, true
}

func (t Table) tables() []Table {
	return []Table{t}
}

func (t Table) selectable() {}

// Join 是一棵二叉树, 左边先行
type Join struct {
	left  TableReference
	right TableReference
	typ   string
	on    []Predicate
	using []string
	// relation 不为空时按关系 JOIN
	relation *Column
	err      error
}

func joinPath(left TableReference, relation Column, target Table, typ string) Join {
	j := Join{left: left, right: target, typ: typ, relation: &relation}
	if left != nil {
		if j.err = left.Err(); j.err != nil {
			return j
		}
	}
	if j.err = firstErr(relation); j.err != nil {
		return j
	}
	if j.err = target.Err(); j.err != nil {
		return j
	}
	if !relation.attr.IsRelation() {
		j.err = errs.NewTypeMismatch(typ, relation.Kind(), model.KindRelation)
		return j
	}
	if relation.attr.Target != target.entity.Name {
		j.err = errs.NewTypeMismatch(typ, relation.attr.Target, target.entity.Name)
	}
	return j
}

func (j Join) Join(right TableReference) *JoinBuilder {
	return &JoinBuilder{left: j, right: right, typ: "JOIN"}
}

func (j Join) LeftJoin(right TableReference) *JoinBuilder {
	return &JoinBuilder{left: j, right: right, typ: "LEFT JOIN"}
}

func (j Join) RightJoin(right TableReference) *JoinBuilder {
	return &JoinBuilder{left: j, right: right, typ: "RIGHT JOIN"}
}

func (j Join) JoinPath(relation Column, target Table) Join {
	return joinPath(j, relation, target, "JOIN")
}

func (j Join) Err() error {
	return j.err
}

func (j Join) leaf() (Table, bool) {
	return Table{}, false
}

func (j Join) tables() []Table {
	var res []Table
	if j.left != nil {
		res = append(res, j.left.tables()...)
	}
	return append(res, j.right.tables()...)
}

type JoinBuilder struct {
	left  TableReference
	right TableReference
	typ   string
}

// On t1.Join(t2).On(t1.C("Department").Eq(t2.C("ID")))
func (j *JoinBuilder) On(ps ...Predicate) Join {
	res := j.join()
	res.on = ps
	if res.err == nil {
		for _, p := range ps {
			if res.err = p.Err(); res.err != nil {
				break
			}
		}
	}
	return res
}

// Using 两边同名属性相等
func (j *JoinBuilder) Using(attrs ...string) Join {
	res := j.join()
	res.using = attrs
	return res
}

func (j *JoinBuilder) join() Join {
	res := Join{
		left:  normalizeRef(j.left),
		right: normalizeRef(j.right),
		typ:   j.typ,
	}
	for _, ref := range []TableReference{j.left, j.right} {
		if ref == nil {
			res.err = errs.NewUnsupportedTableReference(ref)
			return res
		}
		if res.err = ref.Err(); res.err != nil {
			return res
		}
	}
	return res
}

// normalizeRef 嵌入了 Table 的类型统一还原成 Table
func normalizeRef(ref TableReference) TableReference {
	if ref == nil {
		return nil
	}
	if t, ok := ref.leaf(); ok {
		return t
	}
	return ref
}

func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
