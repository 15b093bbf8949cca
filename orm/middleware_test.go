package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	var calls []string
	var types []string
	var entities []string
	mdl := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, qc *QueryContext) *QueryResult {
				calls = append(calls, name)
				if name == "first" {
					types = append(types, qc.Type)
					entities = append(entities, qc.Entity.Name)
				}
				return next(ctx, qc)
			}
		}
	}
	te := newTestEnv(t, DBWithMiddleware(mdl("first"), mdl("second")))
	ctx := context.Background()

	_, err := SelectFrom[*Member](te.m).FetchAll(ctx, te.db)
	require.NoError(t, err)
	_, err = Select[string](te.d.C("DName")).FetchCount(ctx, te.db)
	require.NoError(t, err)
	res := NewInserter[Department](te.db).Values(&Department{DName: "d3"}).Exec(ctx)
	require.NoError(t, res.Err())

	assert.Equal(t, []string{"first", "second", "first", "second", "first", "second"}, calls)
	assert.Equal(t, []string{"SELECT", "COUNT", "INSERT"}, types)
	assert.Equal(t, []string{"Member", "Department", "Department"}, entities)
}

func TestMiddleware_ShortCircuit(t *testing.T) {
	blocked := errors.New("blocked")
	te := newTestEnv(t, DBWithMiddleware(func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			if qc.Type == "INSERT" {
				return &QueryResult{Err: blocked}
			}
			return next(ctx, qc)
		}
	}))
	ctx := context.Background()

	d := &Department{DName: "d3"}
	res := NewInserter[Department](te.db).Values(d).Exec(ctx)
	assert.Equal(t, blocked, res.Err())
	assert.Equal(t, int64(0), d.ID)

	cnt, err := SelectFrom[*Department](te.d).FetchCount(ctx, te.db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)
}

func TestMiddleware_ReplaceBuilder(t *testing.T) {
	te := newTestEnv(t, DBWithMiddleware(func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			// 只看第一行
			if s, ok := qc.Builder.(*Selector[string]); ok {
				qc.Builder = s.Limit(1)
			}
			return next(ctx, qc)
		}
	}))
	names, err := Select[string](te.m.C("Username")).FetchAll(context.Background(), te.db)
	require.NoError(t, err)
	assert.Equal(t, []string{"yoobin"}, names)
}
