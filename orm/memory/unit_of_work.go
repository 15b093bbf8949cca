package memory

import (
	"context"
	"sync"

	"querydemo/orm"
	"querydemo/orm/model"
)

// UnitOfWork 读到的是已提交的数据加上自己的写入
type UnitOfWork struct {
	id    string
	store *Store

	mutex   sync.Mutex
	pending map[string][]orm.Record
	// order 实体第一次写入的顺序, 提交时按这个顺序落表
	order []*model.Entity
	done  bool
}

func (u *UnitOfWork) ID() string {
	return u.id
}

func (u *UnitOfWork) Scan(ctx context.Context, e *model.Entity) ([]orm.Record, error) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.done {
		return nil, ErrTxDone
	}
	recs, err := u.store.Scan(ctx, e)
	if err != nil {
		return nil, err
	}
	return append(recs, clone(u.pending[e.Name])...), nil
}

func (u *UnitOfWork) Resolve(ctx context.Context, rel orm.Relation, owner orm.Record) ([]orm.Record, error) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.done {
		return nil, ErrTxDone
	}
	recs, err := u.store.Resolve(ctx, rel, owner)
	if err != nil {
		return nil, err
	}
	pending := u.pending[rel.Target.Name]
	key, attr := indexKey(rel, owner)
	if key == nil || len(pending) == 0 {
		return recs, nil
	}
	for _, rec := range pending {
		if rec[attr] == key {
			recs = append(recs, rec.Clone())
		}
	}
	return recs, nil
}

// Insert 主键立刻分配, 回滚之后这些主键也不会再用
func (u *UnitOfWork) Insert(ctx context.Context, e *model.Entity, recs []orm.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.done {
		return ErrTxDone
	}
	u.store.mutex.Lock()
	err := u.store.assign(e, recs, u.store.tables[e.Name], u.pending[e.Name])
	u.store.mutex.Unlock()
	if err != nil {
		return err
	}
	if _, ok := u.pending[e.Name]; !ok {
		u.order = append(u.order, e)
	}
	for _, rec := range recs {
		u.pending[e.Name] = append(u.pending[e.Name], rec.Clone())
	}
	return nil
}

func (u *UnitOfWork) Commit() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.done {
		return ErrTxDone
	}
	u.done = true
	s := u.store
	s.mutex.Lock()
	defer s.mutex.Unlock()
	// 其他事务可能已经提交了同样的主键, 冲突时整个事务作废
	for _, e := range u.order {
		if err := s.assign(e, u.pending[e.Name], s.tables[e.Name]); err != nil {
			u.pending = nil
			s.logger.Warn().Err(err).Str("unit", u.id).Msg("rollback")
			return err
		}
	}
	rows := 0
	for _, e := range u.order {
		s.apply(e.Name, u.pending[e.Name])
		rows += len(u.pending[e.Name])
	}
	u.pending = nil
	s.logger.Info().Str("unit", u.id).Int("rows", rows).Msg("commit")
	return nil
}

func (u *UnitOfWork) Rollback() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.done {
		return ErrTxDone
	}
	u.done = true
	rows := 0
	for _, recs := range u.pending {
		rows += len(recs)
	}
	u.pending = nil
	u.store.logger.Info().Str("unit", u.id).Int("rows", rows).Msg("rollback")
	return nil
}
