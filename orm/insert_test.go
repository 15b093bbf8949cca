package orm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydemo/orm/internal/errs"
)

func TestInserter_Build(t *testing.T) {
	db := MustOpen(newFakeSource())
	dept := int64(1)
	testCases := []struct {
		name      string
		builder   QueryBuilder
		wantQuery *Query
		wantErr   error
	}{
		{
			name:    "no row",
			builder: NewInserter[Member](db).Values(),
			wantErr: errs.ErrInsertZeroRow,
		},
		{
			name: "single row",
			builder: NewInserter[Member](db).Values(&Member{
				ID:         1,
				Username:   "yoobin",
				Age:        31,
				Job:        "Front Engineering",
				Department: &dept,
			}),
			wantQuery: &Query{
				SQL:  "INSERT INTO `member`(`member_id`,`username`,`age`,`job`,`department_id`) VALUES (?,?,?,?,?);",
				Args: []any{int64(1), "yoobin", int64(31), "Front Engineering", int64(1)},
			},
		},
		{
			name: "multiple rows",
			builder: NewInserter[Department](db).Values(
				&Department{ID: 1, DName: "department1"},
				&Department{ID: 2, DName: "department2", Members: []int64{1}},
			),
			wantQuery: &Query{
				SQL:  "INSERT INTO `department`(`department_id`,`d_name`) VALUES (?,?),(?,?);",
				Args: []any{int64(1), "department1", int64(2), "department2"},
			},
		},
		{
			name: "partial columns",
			builder: NewInserter[Member](db).Columns("Username", "Department").Values(&Member{
				Username: "musk",
			}),
			wantQuery: &Query{
				SQL:  "INSERT INTO `member`(`username`,`department_id`) VALUES (?,?);",
				Args: []any{"musk", nil},
			},
		},
		{
			name:    "unknown column",
			builder: NewInserter[Member](db).Columns("Nickname").Values(&Member{}),
			wantErr: errs.NewUnknownAttribute("Member", "Nickname"),
		},
		{
			name:    "inverse column",
			builder: NewInserter[Department](db).Columns("Members").Values(&Department{}),
			wantErr: errs.NewUnsupportedExpression("Members"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.builder.Build()
			assert.Equal(t, tc.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, tc.wantQuery, q)
		})
	}
}

func TestInserter_Build_SQLite(t *testing.T) {
	db := MustOpen(newFakeSource(), DBWithDialect(DialectSQLite))
	q, err := NewInserter[Department](db).Values(&Department{ID: 3, DName: "d3"}).Build()
	require.NoError(t, err)
	assert.Equal(t, &Query{
		SQL:  "INSERT INTO `department`(`department_id`,`d_name`) VALUES (?,?);",
		Args: []any{int64(3), "d3"},
	}, q)
}

func TestInserter_Exec(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	d := &Department{DName: "department3"}
	res := NewInserter[Department](te.db).Values(d).Exec(ctx)
	require.NoError(t, res.Err())
	// 主键写回
	assert.Equal(t, int64(3), d.ID)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	members := []*Member{
		{Username: "a", Age: 20, Department: &d.ID},
		{Username: "b", Age: 21},
		{ID: 100, Username: "c", Age: 22},
	}
	res = NewInserter[Member](te.db).Values(members...).Exec(ctx)
	require.NoError(t, res.Err())
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.Equal(t, int64(7), members[0].ID)
	assert.Equal(t, int64(8), members[1].ID)
	assert.Equal(t, int64(100), members[2].ID)

	// 立刻可以查到
	got, ok, err := SelectFrom[*Member](te.m).Where(te.m.C("Department").Eq(d.ID)).FetchOne(ctx, te.db)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, members[0], got)

	res = NewInserter[Member](te.db).Exec(ctx)
	assert.Equal(t, errs.ErrInsertZeroRow, res.Err())
	_, err = res.RowsAffected()
	assert.Equal(t, errs.ErrInsertZeroRow, err)

	ro := newTestEnvWith(t, readOnlySource{DataSource: te.src}, te.src)
	res = NewInserter[Member](ro.db).Values(&Member{Username: "x"}).Exec(ctx)
	assert.Equal(t, errs.ErrReadOnlySource, res.Err())
}
