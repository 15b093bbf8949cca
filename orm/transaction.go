package orm

var (
	_ Session = &Tx{}
	_ Session = &DB{}
)

// Session 每个终结操作都显式传入, 没有全局的查询工厂
type Session interface {
	getCore() core
	source() DataSource
}

type Tx struct {
	src TxSource
	//tx为了得到core,保留自己创建的db
	db *DB

	//给事务扩散方案
	done bool
}

func (t *Tx) getCore() core {
	return t.db.core
}

func (t *Tx) source() DataSource {
	return t.src
}

func (t *Tx) Commit() error {
	t.done = true
	return t.src.Commit()
}

func (t *Tx) Rollback() error {
	t.done = true
	return t.src.Rollback()
}

// RollbackIfNotCommit 已经提交或者回滚过就什么都不做
func (t *Tx) RollbackIfNotCommit() error {
	if t.done {
		return nil
	}
	return t.Rollback()
}
