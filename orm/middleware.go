package orm

import (
	"context"

	"querydemo/orm/model"
)

type QueryContext struct {
	// 查询类型，SELECT, COUNT, INSERT
	Type string

	//代表的是查询本身,大多数情况下需要转化到具体的类型才能篡改查询
	Builder QueryBuilder
	// Entity 主表对应的实体
	Entity *model.Entity
}

type QueryResult struct {
	//Result 在不同查询下类型不同
	//SELECT 和 COUNT 是内部的结果集, INSERT 是 Result
	Result any
	//查询本身出的问题
	Err error
}

type Handler func(ctx context.Context, qc *QueryContext) *QueryResult

type Middleware func(next Handler) Handler
