package entity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"querydemo/orm"
	"querydemo/orm/memory"
	"querydemo/orm/model"
	"querydemo/orm/sqlstore"
)

type fixture struct {
	db     *orm.DB
	schema *Schema
	m      QMember
	d      QDepartment
	d1, d2 *Department
}

// sources 每个场景都在这几种数据源上各跑一遍
var sources = []string{"memory", "sqlite3"}

func newFixture(t *testing.T, source string) *fixture {
	schema, err := NewSchema(model.NewRegistry())
	require.NoError(t, err)
	var src orm.DataSource
	opts := []orm.DBOption{orm.DBWithRegistry(schema.Registry)}
	switch source {
	case "memory":
		src = memory.NewStore()
	case "sqlite3":
		store, err := sqlstore.Open("sqlite3", "file:"+uuid.New().String()+"?mode=memory&cache=shared")
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = store.Close()
		})
		require.NoError(t, store.Migrate(context.Background(), schema.Department, schema.Member))
		src = store
		opts = append(opts, orm.DBWithDialect(store.Dialect()))
	default:
		t.Fatalf("unknown source %s", source)
	}
	db, err := orm.Open(src, opts...)
	require.NoError(t, err)
	f := &fixture{
		db:     db,
		schema: schema,
		m:      schema.QMember("m"),
		d:      schema.QDepartment("d"),
	}
	f.load(t)
	return f
}

func (f *fixture) load(t *testing.T) {
	ctx := context.Background()
	f.d1 = NewDepartment("department1")
	f.d2 = NewDepartment("department2")
	require.NoError(t, orm.NewInserter[Department](f.db).Values(f.d1, f.d2).Exec(ctx).Err())

	job1 := "Front Engineering"
	job2 := "Back Engineering"
	require.NoError(t, orm.NewInserter[Member](f.db).Values(
		NewMember("yoobin", 31, job1, f.d1),
		NewMember("jihyun", 22, job1, f.d1),
		NewMember("musk", 28, job2, f.d2),
		NewMember("minsu", 35, job2, f.d2),
		// 分组的例子用到
		NewMember("uiui", 32, job2, f.d1),
		NewMember("toobi", 28, job2, f.d2),
	).Exec(ctx).Err())
}

func (f *fixture) add(t *testing.T, members ...*Member) {
	require.NoError(t, orm.NewInserter[Member](f.db).Values(members...).Exec(context.Background()).Err())
}

func usernames(members []*Member) []string {
	res := make([]string, 0, len(members))
	for _, m := range members {
		res = append(res, m.Username)
	}
	return res
}
