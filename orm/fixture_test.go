package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"querydemo/orm/model"
)

type Member struct {
	ID         int64 `orm:"id,column=member_id"`
	Username   string
	Age        int
	Job        string
	Department *int64 `orm:"ref=Department,column=department_id"`
}

type Department struct {
	ID      int64 `orm:"id,column=department_id"`
	DName   string
	Members []int64 `orm:"ref=Member,mappedBy=Department"`
}

// fakeSource 按实体名存记录的数据源, 记录扫描和解析的次数
type fakeSource struct {
	tables   map[string][]Record
	seq      map[string]int64
	scans    map[string]int
	resolves int
	scanErr  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tables: make(map[string][]Record),
		seq:    make(map[string]int64),
		scans:  make(map[string]int),
	}
}

func (f *fakeSource) Scan(ctx context.Context, e *model.Entity) ([]Record, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	f.scans[e.Name]++
	res := make([]Record, 0, len(f.tables[e.Name]))
	for _, rec := range f.tables[e.Name] {
		res = append(res, rec.Clone())
	}
	return res, nil
}

func (f *fakeSource) Resolve(ctx context.Context, rel Relation, owner Record) ([]Record, error) {
	f.resolves++
	var res []Record
	if rel.Attr.Direction == model.Inverse {
		id := owner[rel.Owner.ID.Name]
		for _, rec := range f.tables[rel.Target.Name] {
			if rec[rel.Attr.MappedBy] == id {
				res = append(res, rec.Clone())
			}
		}
		return res, nil
	}
	fk := owner[rel.Attr.Name]
	if fk == nil {
		return nil, nil
	}
	for _, rec := range f.tables[rel.Target.Name] {
		if rec[rel.Target.ID.Name] == fk {
			res = append(res, rec.Clone())
		}
	}
	return res, nil
}

func (f *fakeSource) Insert(ctx context.Context, e *model.Entity, recs []Record) error {
	for _, rec := range recs {
		if rec[e.ID.Name] == nil {
			f.seq[e.Name]++
			rec[e.ID.Name] = f.seq[e.Name]
		}
		f.tables[e.Name] = append(f.tables[e.Name], rec.Clone())
	}
	return nil
}

func (f *fakeSource) BeginTx(ctx context.Context) (TxSource, error) {
	return &fakeTx{fakeSource: f}, nil
}

type fakeTx struct {
	*fakeSource
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit() error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback() error {
	f.rolledBack = true
	return nil
}

// readOnlySource 没有 Insert 也没有事务
type readOnlySource struct {
	DataSource
}

// filterSource 记录下推的条件, 返回的记录不过滤
type filterSource struct {
	*fakeSource
	pushed []Predicate
}

func (f *filterSource) ScanFiltered(ctx context.Context, e *model.Entity, alias string, preds []Predicate) ([]Record, error) {
	f.pushed = append(f.pushed, preds...)
	return f.Scan(ctx, e)
}

type testEnv struct {
	db  *DB
	src *fakeSource
	m   Table
	d   Table
	// 部门主键
	d1 int64
	d2 int64
}

func newTestEnv(t *testing.T, opts ...DBOption) *testEnv {
	src := newFakeSource()
	return newTestEnvWith(t, src, src, opts...)
}

func newTestEnvWith(t *testing.T, src DataSource, fake *fakeSource, opts ...DBOption) *testEnv {
	db, err := Open(src, opts...)
	require.NoError(t, err)
	me, err := db.Registry().Of(&Member{})
	require.NoError(t, err)
	de, err := db.Registry().Of(&Department{})
	require.NoError(t, err)
	env := &testEnv{
		db:  db,
		src: fake,
		m:   TableOf(me).As("m"),
		d:   TableOf(de).As("d"),
	}
	env.load(t)
	return env
}

// load 两个部门六个成员
func (te *testEnv) load(t *testing.T) {
	ctx := context.Background()
	w, ok := te.db.src.(Writer)
	if !ok {
		// 只读数据源直接写底层
		w = te.src
	}
	d1 := &Department{DName: "department1"}
	d2 := &Department{DName: "department2"}
	insert := func(e *model.Entity, vals ...Record) {
		require.NoError(t, w.Insert(ctx, e, vals))
	}
	de := te.d.Entity()
	insert(de, Record{"ID": nil, "DName": d1.DName}, Record{"ID": nil, "DName": d2.DName})
	te.d1, te.d2 = 1, 2
	me := te.m.Entity()
	members := []struct {
		name string
		age  int64
		job  string
		dept int64
	}{
		{"yoobin", 31, "Front Engineering", te.d1},
		{"jihyun", 22, "Front Engineering", te.d1},
		{"musk", 28, "Back Engineering", te.d2},
		{"minsu", 35, "Back Engineering", te.d2},
		{"uiui", 32, "Back Engineering", te.d1},
		{"toobi", 28, "Back Engineering", te.d2},
	}
	for _, m := range members {
		insert(me, Record{
			"ID":         nil,
			"Username":   m.name,
			"Age":        m.age,
			"Job":        m.job,
			"Department": m.dept,
		})
	}
}

func (te *testEnv) usernames(t *testing.T, s *Selector[*Member]) []string {
	res, err := s.FetchAll(context.Background(), te.db)
	require.NoError(t, err)
	names := make([]string, 0, len(res))
	for _, m := range res {
		names = append(names, m.Username)
	}
	return names
}

var errScan = errors.New("scan failed")
