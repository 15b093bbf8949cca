package entity

import (
	"querydemo/orm"
	"querydemo/orm/model"
)

// Schema 启动时注册一次, 之后只读
type Schema struct {
	Registry   model.Registry
	Member     *model.Entity
	Department *model.Entity
}

func NewSchema(r model.Registry) (*Schema, error) {
	de, err := r.Register(&Department{})
	if err != nil {
		return nil, err
	}
	me, err := r.Register(&Member{})
	if err != nil {
		return nil, err
	}
	return &Schema{Registry: r, Member: me, Department: de}, nil
}

// QMember Member 的查询句柄, 每个属性一个 Column
type QMember struct {
	orm.Table
	ID         orm.Column
	Username   orm.Column
	Age        orm.Column
	Team       orm.Column
	Department orm.Column
}

func (s *Schema) QMember(alias string) QMember {
	t := orm.TableOf(s.Member).As(alias)
	return QMember{
		Table:      t,
		ID:         t.C("ID"),
		Username:   t.C("Username"),
		Age:        t.C("Age"),
		Team:       t.C("Team"),
		Department: t.C("Department"),
	}
}

type QDepartment struct {
	orm.Table
	ID      orm.Column
	DName   orm.Column
	Members orm.Column
}

func (s *Schema) QDepartment(alias string) QDepartment {
	t := orm.TableOf(s.Department).As(alias)
	return QDepartment{
		Table:   t,
		ID:      t.C("ID"),
		DName:   t.C("DName"),
		Members: t.C("Members"),
	}
}
