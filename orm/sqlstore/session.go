package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"querydemo/orm"
	"querydemo/orm/model"
)

var (
	_ orm.TxSource = &Tx{}
	_ orm.Filterer = &Tx{}
	_ orm.Writer   = &Tx{}
)

// session 事务内外共用的读写逻辑, tx 为空时直接用连接池
type session struct {
	store *Store
	tx    *sql.Tx
}

// stmt 事务里的语句直接在事务连接上预编译, 事务结束时自动关闭
func (s session) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if s.tx != nil {
		return s.tx.PrepareContext(ctx, query)
	}
	return s.store.stmt(ctx, query)
}

func (s session) Scan(ctx context.Context, e *model.Entity) ([]orm.Record, error) {
	return s.ScanFiltered(ctx, e, e.TableName, nil)
}

// ScanFiltered 条件翻译不成 SQL 时退化成全表扫描, 执行器会再过滤一遍
func (s session) ScanFiltered(ctx context.Context, e *model.Entity, alias string, preds []orm.Predicate) ([]orm.Record, error) {
	t := orm.TableOf(e).As(alias)
	q, err := orm.SelectFrom[orm.Record](t).Where(preds...).Dialect(s.store.dialect).Build()
	if err != nil && len(preds) > 0 {
		s.store.logger.Debug().Err(err).Str("entity", e.Name).Msg("push down")
		q, err = orm.SelectFrom[orm.Record](t).Dialect(s.store.dialect).Build()
	}
	if err != nil {
		return nil, err
	}
	return s.query(ctx, e, q)
}

// Resolve 维护端按目标主键查, 反向端按目标上的外键查
func (s session) Resolve(ctx context.Context, rel orm.Relation, owner orm.Record) ([]orm.Record, error) {
	t := orm.TableOf(rel.Target)
	var where orm.Predicate
	if rel.Attr.Direction == model.Inverse {
		id := owner[rel.Owner.ID.Name]
		if id == nil {
			return nil, nil
		}
		where = t.C(rel.Attr.MappedBy).Eq(id)
	} else {
		fk := owner[rel.Attr.Name]
		if fk == nil {
			return nil, nil
		}
		where = t.C(rel.Target.ID.Name).Eq(fk)
	}
	q, err := orm.SelectFrom[orm.Record](t).
		Where(where).
		OrderBy(t.C(rel.Target.ID.Name).Asc()).
		Dialect(s.store.dialect).
		Build()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, rel.Target, q)
}

func (s session) query(ctx context.Context, e *model.Entity, q *orm.Query) ([]orm.Record, error) {
	stmt, err := s.stmt(ctx, q.SQL)
	if err != nil {
		return nil, err
	}
	s.store.logger.Debug().Str("sql", q.SQL).Interface("args", q.Args).Msg("query")
	rows, err := stmt.QueryContext(ctx, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := e.Columns()
	res := make([]orm.Record, 0, 16)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(orm.Record, len(cols))
		for i, attr := range cols {
			rec[attr.Name], err = coerce(attr, vals[i])
			if err != nil {
				return nil, err
			}
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Insert 一行一条语句, 主键为空时不写主键列, 用 LastInsertId 回填
func (s session) Insert(ctx context.Context, e *model.Entity, recs []orm.Record) error {
	for _, rec := range recs {
		query, args := s.insertQuery(e, rec)
		stmt, err := s.stmt(ctx, query)
		if err != nil {
			return err
		}
		s.store.logger.Debug().Str("sql", query).Interface("args", args).Msg("insert")
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		if rec[e.ID.Name] != nil {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rec[e.ID.Name] = id
	}
	return nil
}

func (s session) insertQuery(e *model.Entity, rec orm.Record) (string, []any) {
	d := s.store.dialect
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.Quote(e.TableName))
	sb.WriteByte('(')
	cols := e.Columns()
	args := make([]any, 0, len(cols))
	for _, attr := range cols {
		if attr.Identity && rec[attr.Name] == nil {
			continue
		}
		if len(args) > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(d.Quote(attr.ColName))
		args = append(args, rec[attr.Name])
	}
	sb.WriteString(") VALUES (")
	for i := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('?')
	}
	sb.WriteString(");")
	return sb.String(), args
}

// coerce 驱动返回的值统一成记录里的几种类型
func coerce(attr *model.Attribute, val any) (any, error) {
	if val == nil {
		return nil, nil
	}
	if bs, ok := val.([]byte); ok {
		val = string(bs)
	}
	switch attr.Kind {
	case model.KindInt, model.KindRelation:
		switch v := val.(type) {
		case int64:
			return v, nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		}
	case model.KindFloat:
		switch v := val.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case model.KindString:
		if v, ok := val.(string); ok {
			return v, nil
		}
	case model.KindBool:
		switch v := val.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		}
	}
	return nil, fmt.Errorf("sqlstore: 列 %s 的值 %v(%T) 无法转换成 %s", attr.ColName, val, val, attr.Kind)
}

type Tx struct {
	session
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
