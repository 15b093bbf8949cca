// Package ormtest 中间件和数据源测试共用的实体和数据
package ormtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"querydemo/orm"
	"querydemo/orm/memory"
)

type Member struct {
	ID         int64 `orm:"id,column=member_id"`
	Username   string
	Age        int
	Department *int64 `orm:"ref=Department,column=department_id"`
}

type Department struct {
	ID      int64 `orm:"id,column=department_id"`
	DName   string
	Members []int64 `orm:"ref=Member,mappedBy=Department"`
}

type Env struct {
	DB *orm.DB
	M  orm.Table
	D  orm.Table
}

// NewEnv 内存数据源, 两个部门三个成员
func NewEnv(t *testing.T, opts ...orm.DBOption) *Env {
	db, err := orm.Open(memory.NewStore(), opts...)
	require.NoError(t, err)
	me, err := db.Registry().Of(&Member{})
	require.NoError(t, err)
	de, err := db.Registry().Of(&Department{})
	require.NoError(t, err)
	env := &Env{DB: db, M: orm.TableOf(me).As("m"), D: orm.TableOf(de).As("d")}

	ctx := context.Background()
	d1 := &Department{DName: "department1"}
	d2 := &Department{DName: "department2"}
	// 装数据时中间件也会被调用
	require.NoError(t, orm.NewInserter[Department](db).Values(d1, d2).Exec(ctx).Err())
	require.NoError(t, orm.NewInserter[Member](db).Values(
		&Member{Username: "yoobin", Age: 31, Department: &d1.ID},
		&Member{Username: "jihyun", Age: 22, Department: &d1.ID},
		&Member{Username: "musk", Age: 28, Department: &d2.ID},
	).Exec(ctx).Err())
	return env
}
