package orm

import (
	"context"

	"querydemo/orm/model"
)

//go:generate mockgen -source=datasource.go -destination=mocks/data_source.mock.go -package=mocks

// Record 一条实体记录, 属性名到值. 值只有 int64, float64, string, bool, nil 几种,
// 维护端关系存的是目标主键, 反向关系不在记录里
type Record map[string]any

func (r Record) Clone() Record {
	res := make(Record, len(r))
	for k, v := range r {
		res[k] = v
	}
	return res
}

// Relation 要解析的关系
type Relation struct {
	Owner  *model.Entity
	Attr   *model.Attribute
	Target *model.Entity
}

// DataSource 执行器需要的最小能力: 全表扫描和关系解析
type DataSource interface {
	// Scan 按插入顺序返回实体的所有记录
	Scan(ctx context.Context, e *model.Entity) ([]Record, error)
	// Resolve 维护端返回零或一条目标记录, 反向端返回所有外键指向 owner 的记录
	Resolve(ctx context.Context, rel Relation, owner Record) ([]Record, error)
}

// Filterer 可以把过滤条件下推给数据源. 执行器不信任下推结果, 会再过滤一遍
type Filterer interface {
	ScanFiltered(ctx context.Context, e *model.Entity, alias string, preds []Predicate) ([]Record, error)
}

// Writer 持久化, 主键为空时由数据源生成并写回记录
type Writer interface {
	Insert(ctx context.Context, e *model.Entity, recs []Record) error
}

// TxSource 一个工作单元
type TxSource interface {
	DataSource
	Commit() error
	Rollback() error
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (TxSource, error)
}
