package orm

import (
	"context"

	"querydemo/orm/internal/errs"
	"querydemo/orm/internal/valuer"
	"querydemo/orm/model"
)

type DBOption func(db *DB)

// DB 是数据源的装饰器, 带上元数据, 方言和中间件
type DB struct {
	//为了得到core让DB持有core
	core
	src DataSource
}

func Open(src DataSource, opts ...DBOption) (*DB, error) {
	if src == nil {
		return nil, errs.ErrNilDataSource
	}
	res := &DB{
		core: core{
			r:       model.NewRegistry(),
			creator: valuer.NewUnsafeValue,
			dialect: DialectMySQL,
		},
		src: src,
	}
	for _, opt := range opts {
		opt(res)
	}
	return res, nil
}

func MustOpen(src DataSource, opts ...DBOption) *DB {
	res, err := Open(src, opts...)
	if err != nil {
		panic(err)
	}
	return res
}

func DBWithMiddleware(mdls ...Middleware) DBOption {
	return func(db *DB) {
		db.mdls = mdls
	}
}

func DBWithDialect(dialect Dialect) DBOption {
	return func(db *DB) {
		db.dialect = dialect
	}
}

// DBWithRegistry 和实体定义共用一个注册中心
func DBWithRegistry(r model.Registry) DBOption {
	return func(db *DB) {
		db.r = r
	}
}

func DBWithReflect() DBOption {
	return func(db *DB) {
		db.creator = valuer.NewReflectValue
	}
}

func (db *DB) Registry() model.Registry {
	return db.r
}

func (db *DB) BeginTx(ctx context.Context) (*Tx, error) {
	b, ok := db.src.(TxBeginner)
	if !ok {
		return nil, errs.ErrTxNotSupported
	}
	tx, err := b.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{
		src: tx,
		db:  db,
	}, nil
}

type txKey struct{}

// BeginTxV2 ctx 里已经有没结束的事务时直接复用
// ctx,tx,err:=db.BeginTxV2(ctx)
// doSomething(ctx,tx)
func (db *DB) BeginTxV2(ctx context.Context) (context.Context, *Tx, error) {
	val := ctx.Value(txKey{})
	tx, ok := val.(*Tx)
	if ok && !tx.done {
		return ctx, tx, nil
	}
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	ctx = context.WithValue(ctx, txKey{}, tx)
	return ctx, tx, nil
}

// DoTx fn 返回错误或者 panic 时回滚, 否则提交
func (db *DB) DoTx(ctx context.Context,
	fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	panicked := true
	defer func() {
		if panicked || err != nil {
			e := tx.Rollback()
			if e != nil {
				err = errs.NewErrFailedToRollbackTx(err, e, panicked)
			}
		} else {
			err = tx.Commit()
		}
	}()
	err = fn(ctx, tx)
	panicked = false
	return err
}

func (db *DB) getCore() core {
	return db.core
}

func (db *DB) source() DataSource {
	return db.src
}
