//go:build e2e

package integration

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"querydemo/entity"
	"querydemo/orm"
	"querydemo/orm/model"
	"querydemo/orm/sqlstore"
)

type Suite struct {
	suite.Suite
	driver string
	dsn    string

	store  *sqlstore.Store
	db     *orm.DB
	schema *entity.Schema
}

// SetupSuite 所有suite执行前的钩子
func (s *Suite) SetupSuite() {
	store, err := sqlstore.Open(s.driver, s.dsn)
	require.NoError(s.T(), err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(s.T(), store.Wait(ctx))
	schema, err := entity.NewSchema(model.NewRegistry())
	require.NoError(s.T(), err)
	require.NoError(s.T(), store.Migrate(ctx, schema.Department, schema.Member))
	db, err := orm.Open(store, orm.DBWithRegistry(schema.Registry), orm.DBWithDialect(store.Dialect()))
	require.NoError(s.T(), err)
	s.store = store
	s.db = db
	s.schema = schema
}

func (s *Suite) TearDownSuite() {
	_ = s.store.Close()
}
