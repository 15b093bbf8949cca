//go:build e2e

package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"querydemo/entity"
	"querydemo/orm"
)

type SelectSuite struct {
	Suite
}

func TestMySQLTest(t *testing.T) {
	suite.Run(t, &SelectSuite{
		Suite{
			driver: "mysql",
			dsn:    "root:root@tcp(localhost:13306)/integration_test",
		},
	})
}

func (s *SelectSuite) SetupSuite() {
	s.Suite.SetupSuite()
	ctx := context.Background()
	d1 := entity.NewDepartment("department1")
	d2 := entity.NewDepartment("department2")
	require.NoError(s.T(), orm.NewInserter[entity.Department](s.db).Values(d1, d2).Exec(ctx).Err())
	require.NoError(s.T(), orm.NewInserter[entity.Member](s.db).Values(
		entity.NewMember("yoobin", 31, "Front Engineering", d1),
		entity.NewMember("jihyun", 22, "Front Engineering", d1),
		entity.NewMember("musk", 28, "Back Engineering", d2),
		entity.NewMember("minsu", 35, "Back Engineering", d2),
	).Exec(ctx).Err())
}

// TearDownSuite 所有都跑完清数据
func (s *SelectSuite) TearDownSuite() {
	db, err := sql.Open(s.driver, s.dsn)
	if err == nil {
		_, _ = db.Exec("TRUNCATE TABLE `member`")
		_, _ = db.Exec("TRUNCATE TABLE `department`")
		_ = db.Close()
	}
	s.Suite.TearDownSuite()
}

func (s *SelectSuite) TestSelect() {
	m := s.schema.QMember("m")
	d := s.schema.QDepartment("d")
	testCases := []struct {
		name    string
		s       *orm.Selector[string]
		wantRes []string
		wantErr error
	}{
		{
			name:    "push down",
			s:       orm.Select[string](m.Username).Where(m.Age.Gt(25)).OrderBy(m.Age.Desc()),
			wantRes: []string{"minsu", "yoobin", "musk"},
		},
		{
			name: "join",
			s: orm.Select[string](m.Username).
				Join(m.Department, d.Table).
				Where(d.DName.Eq("department1")),
			wantRes: []string{"yoobin", "jihyun"},
		},
		{
			name:    "concat pushed down",
			s:       orm.Select[string](m.Username).Where(m.Username.Concat("_").Concat(m.Age.StringValue()).Eq("musk_28")),
			wantRes: []string{"musk"},
		},
		{
			name: "no row",
			s:    orm.Select[string](m.Username).Where(m.Age.Gt(100)),
		},
		{
			name:    "type mismatch",
			s:       orm.Select[string](m.Username).Where(m.Age.Eq("old")),
			wantErr: orm.ErrTypeMismatch,
		},
	}

	for _, tc := range testCases {
		s.T().Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			defer cancel()
			res, err := tc.s.FetchAll(ctx, s.db)
			assert.ErrorIs(t, err, tc.wantErr)
			if err != nil {
				return
			}
			if len(tc.wantRes) == 0 {
				assert.Empty(t, res)
				return
			}
			assert.Equal(t, tc.wantRes, res)
		})
	}
}

func (s *SelectSuite) TestDoTx() {
	d := s.schema.QDepartment("d")
	ctx := context.Background()
	err := s.db.DoTx(ctx, func(ctx context.Context, tx *orm.Tx) error {
		return orm.NewInserter[entity.Department](tx).Values(entity.NewDepartment("department3")).Exec(ctx).Err()
	})
	require.NoError(s.T(), err)
	cnt, err := orm.SelectFrom[*entity.Department](d).Where(d.DName.Eq("department3")).FetchCount(ctx, s.db)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), cnt)
}
