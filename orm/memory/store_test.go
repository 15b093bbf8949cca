package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"querydemo/orm"
	"querydemo/orm/model"
)

type schema struct {
	r      model.Registry
	member *model.Entity
	dept   *model.Entity
}

type Member struct {
	ID         int64 `orm:"id"`
	Username   string
	Age        int
	Department *int64 `orm:"ref=Department"`
}

type Department struct {
	ID      int64 `orm:"id"`
	DName   string
	Members []int64 `orm:"ref=Member,mappedBy=Department"`
}

func newSchema(t *testing.T) schema {
	r := model.NewRegistry()
	dept, err := r.Of(&Department{})
	require.NoError(t, err)
	member, err := r.Of(&Member{})
	require.NoError(t, err)
	return schema{r: r, member: member, dept: dept}
}

func (s schema) load(t *testing.T, w orm.Writer) {
	ctx := context.Background()
	require.NoError(t, w.Insert(ctx, s.dept, []orm.Record{
		{"ID": nil, "DName": "department1"},
		{"ID": nil, "DName": "department2"},
	}))
	require.NoError(t, w.Insert(ctx, s.member, []orm.Record{
		{"ID": nil, "Username": "yoobin", "Age": int64(31), "Department": int64(1)},
		{"ID": nil, "Username": "jihyun", "Age": int64(22), "Department": int64(1)},
		{"ID": nil, "Username": "musk", "Age": int64(28), "Department": int64(2)},
	}))
}

func TestStore_Insert(t *testing.T) {
	s := newSchema(t)
	testCases := []struct {
		name    string
		recs    []orm.Record
		wantIDs []any
		wantErr error
	}{
		{
			name:    "generated",
			recs:    []orm.Record{{"ID": nil, "DName": "a"}, {"ID": nil, "DName": "b"}},
			wantIDs: []any{int64(3), int64(4)},
		},
		{
			name:    "explicit then generated",
			recs:    []orm.Record{{"ID": int64(10), "DName": "a"}, {"ID": nil, "DName": "b"}},
			wantIDs: []any{int64(10), int64(11)},
		},
		{
			name:    "duplicate with table",
			recs:    []orm.Record{{"ID": nil, "DName": "a"}, {"ID": int64(1), "DName": "b"}},
			wantErr: ErrDuplicateKey,
		},
		{
			name:    "duplicate in batch",
			recs:    []orm.Record{{"ID": int64(7), "DName": "a"}, {"ID": int64(7), "DName": "b"}},
			wantErr: ErrDuplicateKey,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore()
			s.load(t, store)
			before := recordIDs(tc.recs)
			err := store.Insert(context.Background(), s.dept, tc.recs)
			assert.ErrorIs(t, err, tc.wantErr)
			recs, scanErr := store.Scan(context.Background(), s.dept)
			require.NoError(t, scanErr)
			if err != nil {
				// 失败时什么都不写, 主键也不回填
				assert.Len(t, recs, 2)
				assert.Equal(t, before, recordIDs(tc.recs))
				return
			}
			assert.Equal(t, tc.wantIDs, recordIDs(tc.recs))
			assert.Len(t, recs, 2+len(tc.recs))
		})
	}
}

func recordIDs(recs []orm.Record) []any {
	ids := make([]any, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec["ID"])
	}
	return ids
}

func TestStore_Resolve(t *testing.T) {
	s := newSchema(t)
	store := NewStore()
	s.load(t, store)
	ctx := context.Background()
	owning := orm.Relation{Owner: s.member, Attr: s.member.AttrMap["Department"], Target: s.dept}
	inverse := orm.Relation{Owner: s.dept, Attr: s.dept.AttrMap["Members"], Target: s.member}

	recs, err := store.Resolve(ctx, owning, orm.Record{"ID": int64(3), "Department": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, []orm.Record{{"ID": int64(2), "DName": "department2"}}, recs)

	recs, err = store.Resolve(ctx, owning, orm.Record{"ID": int64(9), "Department": nil})
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = store.Resolve(ctx, inverse, orm.Record{"ID": int64(1)})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "yoobin", recs[0]["Username"])
	assert.Equal(t, "jihyun", recs[1]["Username"])

	// 写入之后索引失效
	require.NoError(t, store.Insert(ctx, s.member, []orm.Record{
		{"ID": nil, "Username": "uiui", "Age": int64(32), "Department": int64(1)},
	}))
	recs, err = store.Resolve(ctx, inverse, orm.Record{"ID": int64(1)})
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	// 返回的是副本
	recs[0]["Username"] = "changed"
	again, err := store.Resolve(ctx, inverse, orm.Record{"ID": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "yoobin", again[0]["Username"])

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Resolve(cctx, inverse, orm.Record{"ID": int64(1)})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Scan(cctx, s.member)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Query(t *testing.T) {
	s := newSchema(t)
	store := NewStore()
	s.load(t, store)
	db, err := orm.Open(store, orm.DBWithRegistry(s.r))
	require.NoError(t, err)
	m := orm.TableOf(s.member).As("m")
	d := orm.TableOf(s.dept).As("d")
	ctx := context.Background()

	names, err := orm.Select[string](m.C("Username")).
		Join(m.C("Department"), d).
		Where(d.C("DName").Eq("department1")).
		OrderBy(m.C("Age").Asc()).
		FetchAll(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"jihyun", "yoobin"}, names)

	members, err := orm.Select[any](d.C("Members")).OrderBy(d.C("ID").Asc()).FetchAll(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1), int64(2)}, []any{int64(3)}}, members)

	// 并发读
	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			cnt, err := orm.SelectFrom[orm.Record](m).Where(m.C("Age").Gt(25)).FetchCount(ctx, db)
			if err == nil && cnt != 2 {
				t.Errorf("count = %d", cnt)
			}
			return err
		})
	}
	require.NoError(t, eg.Wait())
}

func TestUnitOfWork(t *testing.T) {
	s := newSchema(t)
	var buf bytes.Buffer
	store := NewStore(WithLogger(zerolog.New(&buf)))
	s.load(t, store)
	db, err := orm.Open(store, orm.DBWithRegistry(s.r))
	require.NoError(t, err)
	m := orm.TableOf(s.member).As("m")
	ctx := context.Background()
	count := func(sess orm.Session) int64 {
		cnt, err := orm.SelectFrom[orm.Record](m).FetchCount(ctx, sess)
		require.NoError(t, err)
		return cnt
	}

	uow, err := store.BeginTx(ctx)
	require.NoError(t, err)
	u := uow.(*UnitOfWork)
	require.NoError(t, u.Insert(ctx, s.member, []orm.Record{
		{"ID": nil, "Username": "minsu", "Age": int64(35), "Department": int64(2)},
	}))
	// 自己的写入可见, 其他人看不到
	recs, err := u.Scan(ctx, s.member)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	assert.Equal(t, int64(4), recs[3]["ID"])
	assert.Equal(t, int64(3), count(db))
	inverse := orm.Relation{Owner: s.dept, Attr: s.dept.AttrMap["Members"], Target: s.member}
	recs, err = u.Resolve(ctx, inverse, orm.Record{"ID": int64(2)})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// 同一个主键不能在事务里重复写
	err = u.Insert(ctx, s.member, []orm.Record{{"ID": int64(4), "Username": "x"}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	require.NoError(t, u.Commit())
	assert.Equal(t, int64(4), count(db))
	assert.Equal(t, ErrTxDone, u.Commit())
	assert.Equal(t, ErrTxDone, u.Rollback())
	_, err = u.Scan(ctx, s.member)
	assert.Equal(t, ErrTxDone, err)
	assert.Equal(t, ErrTxDone, u.Insert(ctx, s.member, []orm.Record{{"ID": nil}}))
	assert.Contains(t, buf.String(), u.ID())
	assert.Contains(t, buf.String(), `"message":"commit"`)
}

func TestUnitOfWork_CommitConflict(t *testing.T) {
	s := newSchema(t)
	var buf bytes.Buffer
	store := NewStore(WithLogger(zerolog.New(&buf)))
	s.load(t, store)
	ctx := context.Background()
	begin := func() *UnitOfWork {
		uow, err := store.BeginTx(ctx)
		require.NoError(t, err)
		return uow.(*UnitOfWork)
	}
	first, second := begin(), begin()
	require.NoError(t, first.Insert(ctx, s.dept, []orm.Record{{"ID": int64(9), "DName": "a"}}))
	require.NoError(t, second.Insert(ctx, s.dept, []orm.Record{
		{"ID": nil, "DName": "c"},
		{"ID": int64(9), "DName": "b"},
	}))
	require.NoError(t, first.Commit())

	// 后提交的事务主键冲突, 整个事务都不落表
	err := second.Commit()
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, ErrTxDone, second.Rollback())
	recs, err := store.Scan(ctx, s.dept)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(9)}, recordIDs(recs))
	assert.Equal(t, "a", recs[2]["DName"])
	assert.Contains(t, buf.String(), second.ID())
}

func TestUnitOfWork_DoTx(t *testing.T) {
	s := newSchema(t)
	var buf bytes.Buffer
	store := NewStore(WithLogger(zerolog.New(&buf)))
	s.load(t, store)
	db, err := orm.Open(store, orm.DBWithRegistry(s.r))
	require.NoError(t, err)
	d := orm.TableOf(s.dept).As("d")
	ctx := context.Background()
	errRollback := errors.New("rollback")

	testCases := []struct {
		name    string
		fnErr   error
		wantErr error
		wantCnt int64
		wantLog string
	}{
		{
			name:    "rollback",
			fnErr:   errRollback,
			wantErr: errRollback,
			wantCnt: 2,
			wantLog: `"message":"rollback"`,
		},
		{
			name:    "commit",
			wantCnt: 3,
			wantLog: `"message":"commit"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			err := db.DoTx(ctx, func(ctx context.Context, tx *orm.Tx) error {
				d3 := &Department{DName: "department3"}
				require.NoError(t, orm.NewInserter[Department](tx).Values(d3).Exec(ctx).Err())
				// 主键在写入时就分配好了
				assert.Greater(t, d3.ID, int64(2))
				cnt, err := orm.SelectFrom[orm.Record](d).Where(d.C("DName").Eq("department3")).FetchCount(ctx, tx)
				require.NoError(t, err)
				assert.Equal(t, int64(1), cnt)
				return tc.fnErr
			})
			assert.Equal(t, tc.wantErr, err)
			cnt, err := orm.SelectFrom[orm.Record](d).FetchCount(ctx, db)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCnt, cnt)
			assert.Contains(t, buf.String(), tc.wantLog)
		})
	}
}
