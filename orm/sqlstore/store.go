package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"querydemo/orm"
	"querydemo/orm/model"
)

var (
	_ orm.DataSource = &Store{}
	_ orm.Filterer   = &Store{}
	_ orm.Writer     = &Store{}
	_ orm.TxBeginner = &Store{}
)

type Option func(s *Store)

func WithDialect(d orm.Dialect) Option {
	return func(s *Store) {
		s.dialect = d
	}
}

// WithStmtCacheSize 预编译语句缓存的条数
func WithStmtCacheSize(size int) Option {
	return func(s *Store) {
		s.cacheSize = size
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store 基于 database/sql 的数据源, 读写都用 orm 渲染出来的 SQL
type Store struct {
	db        *sql.DB
	dialect   orm.Dialect
	cacheSize int
	// stmts SQL 到 *sql.Stmt, 淘汰时关闭
	stmts  *lru.Cache
	mutex  sync.Mutex
	logger zerolog.Logger
}

// Open 方言按驱动名推断, 可以用 WithDialect 覆盖
func Open(driverName string, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		opts = append([]Option{WithDialect(orm.DialectSQLite)}, opts...)
	}
	return OpenDB(db, opts...)
}

func OpenDB(db *sql.DB, opts ...Option) (*Store, error) {
	res := &Store{
		db:        db,
		dialect:   orm.DialectMySQL,
		cacheSize: 64,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(res)
	}
	res.logger = res.logger.With().Str("component", "sqlstore").Str("dialect", res.dialect.Name()).Logger()
	stmts, err := lru.NewWithEvict(res.cacheSize, func(key interface{}, value interface{}) {
		if err := value.(*sql.Stmt).Close(); err != nil {
			res.logger.Warn().Err(err).Str("sql", key.(string)).Msg("close stmt")
		}
	})
	if err != nil {
		return nil, err
	}
	res.stmts = stmts
	return res, nil
}

func (s *Store) Dialect() orm.Dialect {
	return s.dialect
}

// Wait 主动等待数据库启动
func (s *Store) Wait(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	for errors.Is(err, driver.ErrBadConn) {
		s.logger.Info().Msg("等待数据库启动...")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		err = s.db.PingContext(ctx)
	}
	return err
}

// Close 先关掉缓存的语句
func (s *Store) Close() error {
	s.stmts.Purge()
	return s.db.Close()
}

// Migrate 按实体建表, 已存在的表不动
func (s *Store) Migrate(ctx context.Context, entities ...*model.Entity) error {
	for _, e := range entities {
		var sb strings.Builder
		sb.WriteString("CREATE TABLE IF NOT EXISTS ")
		sb.WriteString(s.dialect.Quote(e.TableName))
		sb.WriteString(" (")
		for i, attr := range e.Columns() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.dialect.Quote(attr.ColName))
			sb.WriteByte(' ')
			sb.WriteString(s.dialect.ColumnType(attr))
		}
		sb.WriteString(");")
		if _, err := s.db.ExecContext(ctx, sb.String()); err != nil {
			return err
		}
		s.logger.Debug().Str("entity", e.Name).Msg("migrate")
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, e *model.Entity) ([]orm.Record, error) {
	return s.session(nil).Scan(ctx, e)
}

func (s *Store) ScanFiltered(ctx context.Context, e *model.Entity, alias string, preds []orm.Predicate) ([]orm.Record, error) {
	return s.session(nil).ScanFiltered(ctx, e, alias, preds)
}

func (s *Store) Resolve(ctx context.Context, rel orm.Relation, owner orm.Record) ([]orm.Record, error) {
	return s.session(nil).Resolve(ctx, rel, owner)
}

func (s *Store) Insert(ctx context.Context, e *model.Entity, recs []orm.Record) error {
	return s.session(nil).Insert(ctx, e, recs)
}

func (s *Store) BeginTx(ctx context.Context) (orm.TxSource, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{session: s.session(tx)}, nil
}

func (s *Store) session(tx *sql.Tx) session {
	return session{store: s, tx: tx}
}

// stmt 同一条 SQL 只预编译一次
func (s *Store) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if val, ok := s.stmts.Get(query); ok {
		return val.(*sql.Stmt), nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	// double check
	if val, ok := s.stmts.Get(query); ok {
		return val.(*sql.Stmt), nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.stmts.Add(query, stmt)
	s.logger.Debug().Str("sql", query).Msg("prepare")
	return stmt, nil
}
