package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydemo/orm/internal/errs"
)

func TestOpen(t *testing.T) {
	_, err := Open(nil)
	assert.Equal(t, errs.ErrNilDataSource, err)
	assert.Panics(t, func() {
		MustOpen(nil)
	})

	db := MustOpen(newFakeSource(), DBWithDialect(DialectSQLite), DBWithReflect())
	assert.Equal(t, DialectSQLite, db.dialect)
	assert.NotNil(t, db.Registry())
}

func TestDB_DoTx(t *testing.T) {
	bizErr := errors.New("biz")
	testCases := []struct {
		name         string
		fn           func(ctx context.Context, tx *Tx) error
		wantErr      error
		wantCommit   bool
		wantRollback bool
	}{
		{
			name: "commit",
			fn: func(ctx context.Context, tx *Tx) error {
				return nil
			},
			wantCommit: true,
		},
		{
			name: "rollback",
			fn: func(ctx context.Context, tx *Tx) error {
				return bizErr
			},
			wantErr:      bizErr,
			wantRollback: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			te := newTestEnv(t)
			var got *fakeTx
			err := te.db.DoTx(context.Background(), func(ctx context.Context, tx *Tx) error {
				got = tx.src.(*fakeTx)
				return tc.fn(ctx, tx)
			})
			assert.Equal(t, tc.wantErr, err)
			assert.Equal(t, tc.wantCommit, got.committed)
			assert.Equal(t, tc.wantRollback, got.rolledBack)
		})
	}

	t.Run("panic", func(t *testing.T) {
		te := newTestEnv(t)
		var got *fakeTx
		assert.Panics(t, func() {
			_ = te.db.DoTx(context.Background(), func(ctx context.Context, tx *Tx) error {
				got = tx.src.(*fakeTx)
				panic("boom")
			})
		})
		assert.True(t, got.rolledBack)
		assert.False(t, got.committed)
	})
}

func TestDB_BeginTx(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	ctx, tx, err := te.db.BeginTxV2(ctx)
	require.NoError(t, err)
	// ctx 里的事务没有结束就复用
	_, same, err := te.db.BeginTxV2(ctx)
	require.NoError(t, err)
	assert.Same(t, tx, same)

	// 事务也是 Session
	names, err := Select[string](te.m.C("Username")).Where(te.m.C("Age").Gt(32)).FetchAll(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, []string{"minsu"}, names)

	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.RollbackIfNotCommit())
	assert.False(t, tx.src.(*fakeTx).rolledBack)
	_, other, err := te.db.BeginTxV2(ctx)
	require.NoError(t, err)
	assert.NotSame(t, tx, other)
	assert.NoError(t, other.RollbackIfNotCommit())
	assert.True(t, other.src.(*fakeTx).rolledBack)

	ro := newTestEnvWith(t, readOnlySource{DataSource: te.src}, te.src)
	_, err = ro.db.BeginTx(ctx)
	assert.Equal(t, errs.ErrTxNotSupported, err)
}

func TestCursor(t *testing.T) {
	te := newTestEnv(t)
	m := te.m
	ctx := context.Background()

	cur, err := Select[string](m.C("Username")).OrderBy(m.C("Age").Desc()).Fetch(ctx, te.db)
	require.NoError(t, err)
	assert.Equal(t, 6, cur.Len())
	require.True(t, cur.Next())
	assert.Equal(t, "minsu", cur.Value())
	assert.Equal(t, 5, cur.Len())
	rest, err := cur.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"uiui", "yoobin", "musk", "toobi", "jihyun"}, rest)
	// 只能遍历一次
	assert.False(t, cur.Next())
	assert.Equal(t, 0, cur.Len())

	cur, err = Select[string](m.C("Username")).Fetch(ctx, te.db)
	require.NoError(t, err)
	require.NoError(t, cur.Close())
	assert.False(t, cur.Next())
	assert.NoError(t, cur.Err())

	// 投影是惰性的, 遍历时 ctx 取消
	cctx, cancel := context.WithCancel(ctx)
	cur, err = Select[string](m.C("Username")).Fetch(cctx, te.db)
	require.NoError(t, err)
	require.True(t, cur.Next())
	cancel()
	assert.False(t, cur.Next())
	assert.ErrorIs(t, cur.Err(), context.Canceled)
}
