package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"querydemo/orm"
	"querydemo/orm/model"
)

var (
	ErrDuplicateKey = errors.New("memory: 主键重复")
	ErrTxDone       = errors.New("memory: 事务已经结束")
)

var (
	_ orm.DataSource = &Store{}
	_ orm.Writer     = &Store{}
	_ orm.TxBeginner = &Store{}
	_ orm.TxSource   = &UnitOfWork{}
	_ orm.Writer     = &UnitOfWork{}
)

type Option func(s *Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store 内存数据源, 每个实体一张表, 记录按插入顺序保存
type Store struct {
	mutex  sync.RWMutex
	tables map[string][]orm.Record
	// seq 每个实体的主键序列
	seq map[string]int64
	// index 由表派生的索引, 任何写入都会整体清空
	index  *cache.Cache
	logger zerolog.Logger
}

func NewStore(opts ...Option) *Store {
	res := &Store{
		tables: make(map[string][]orm.Record, 4),
		seq:    make(map[string]int64, 4),
		index:  cache.New(cache.NoExpiration, 0),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(res)
	}
	res.logger = res.logger.With().Str("component", "memory").Logger()
	return res
}

func (s *Store) Scan(ctx context.Context, e *model.Entity) ([]orm.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return clone(s.tables[e.Name]), nil
}

func (s *Store) Resolve(ctx context.Context, rel orm.Relation, owner orm.Record) ([]orm.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, attr := indexKey(rel, owner)
	if key == nil {
		return nil, nil
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return clone(s.lookup(rel.Target, attr)[key]), nil
}

// indexKey 维护端按目标主键找, 反向端按目标上的外键找
func indexKey(rel orm.Relation, owner orm.Record) (any, string) {
	if rel.Attr.Direction == model.Inverse {
		return owner[rel.Owner.ID.Name], rel.Attr.MappedBy
	}
	return owner[rel.Attr.Name], rel.Target.ID.Name
}

// lookup 调用方持有读锁
func (s *Store) lookup(e *model.Entity, attr string) map[any][]orm.Record {
	key := e.Name + "." + attr
	if idx, ok := s.index.Get(key); ok {
		return idx.(map[any][]orm.Record)
	}
	idx := make(map[any][]orm.Record, len(s.tables[e.Name]))
	for _, rec := range s.tables[e.Name] {
		if v := rec[attr]; v != nil {
			idx[v] = append(idx[v], rec)
		}
	}
	s.index.Set(key, idx, cache.NoExpiration)
	s.logger.Debug().Str("index", key).Int("keys", len(idx)).Msg("build index")
	return idx
}

// Insert 主键为空的记录从序列里取号, 并写回 recs
func (s *Store) Insert(ctx context.Context, e *model.Entity, recs []orm.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.assign(e, recs, s.tables[e.Name]); err != nil {
		return err
	}
	s.apply(e.Name, recs)
	s.logger.Debug().Str("entity", e.Name).Int("rows", len(recs)).Msg("insert")
	return nil
}

// assign 调用方持有写锁. 要么全部成功, 要么一条都不分配
func (s *Store) assign(e *model.Entity, recs []orm.Record, existing ...[]orm.Record) error {
	id := e.ID.Name
	seen := make(map[any]bool, len(recs))
	for _, list := range existing {
		for _, rec := range list {
			seen[rec[id]] = true
		}
	}
	for _, rec := range recs {
		v := rec[id]
		if v == nil {
			continue
		}
		if seen[v] {
			return fmt.Errorf("%w: %s %v", ErrDuplicateKey, e.Name, v)
		}
		seen[v] = true
	}
	for _, rec := range recs {
		if v, ok := rec[id].(int64); ok {
			if v > s.seq[e.Name] {
				s.seq[e.Name] = v
			}
			continue
		}
		if rec[id] != nil {
			continue
		}
		s.seq[e.Name]++
		// 跳过手动指定过的主键
		for seen[s.seq[e.Name]] {
			s.seq[e.Name]++
		}
		rec[id] = s.seq[e.Name]
		seen[rec[id]] = true
	}
	return nil
}

func (s *Store) apply(name string, recs []orm.Record) {
	for _, rec := range recs {
		s.tables[name] = append(s.tables[name], rec.Clone())
	}
	s.index.Flush()
}

// BeginTx 开启一个工作单元, 写入在提交之前只对自己可见
func (s *Store) BeginTx(ctx context.Context) (orm.TxSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := &UnitOfWork{
		id:      uuid.New().String(),
		store:   s,
		pending: make(map[string][]orm.Record, 2),
	}
	s.logger.Debug().Str("unit", u.id).Msg("begin")
	return u, nil
}

func clone(recs []orm.Record) []orm.Record {
	res := make([]orm.Record, 0, len(recs))
	for _, rec := range recs {
		res = append(res, rec.Clone())
	}
	return res
}
