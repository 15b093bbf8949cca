package querylog

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"querydemo/orm"
)

type MiddlewareBuilder struct {
	logger  zerolog.Logger
	logFunc func(query string, args []any)
}

func NewMiddlewareBuilder() *MiddlewareBuilder {
	m := &MiddlewareBuilder{
		logger: log.Logger.With().Str("component", "querylog").Logger(),
	}
	m.logFunc = func(query string, args []any) {
		m.logger.Debug().Str("sql", query).Interface("args", args).Msg("query")
	}
	return m
}

func (m *MiddlewareBuilder) Logger(logger zerolog.Logger) *MiddlewareBuilder {
	m.logger = logger
	return m
}

// LogFunc 交给用户输出
func (m *MiddlewareBuilder) LogFunc(fn func(query string, args []any)) *MiddlewareBuilder {
	m.logFunc = fn
	return m
}

func (m *MiddlewareBuilder) Build() orm.Middleware {
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			q, err := qc.Builder.Build()
			if err != nil {
				// 有的查询翻译不成 SQL 但是可以执行, 比如投影反向关系
				m.logger.Warn().Err(err).Str("type", qc.Type).Str("entity", qc.Entity.Name).Msg("render sql")
				return next(ctx, qc)
			}
			m.logFunc(q.SQL, q.Args)
			return next(ctx, qc)
		}
	}
}
