package slowquery

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"querydemo/orm"
)

type MiddlewareBuilder struct {
	//慢查询阈值
	threshold time.Duration
	logger    zerolog.Logger
	logFunc   func(qc *orm.QueryContext, duration time.Duration)
}

func NewMiddlewareBuilder(threshold time.Duration) *MiddlewareBuilder {
	m := &MiddlewareBuilder{
		threshold: threshold,
		logger:    log.Logger.With().Str("component", "slowquery").Logger(),
	}
	m.logFunc = m.log
	return m
}

func (m *MiddlewareBuilder) Logger(logger zerolog.Logger) *MiddlewareBuilder {
	m.logger = logger
	return m
}

func (m *MiddlewareBuilder) LogFunc(fn func(qc *orm.QueryContext, duration time.Duration)) *MiddlewareBuilder {
	m.logFunc = fn
	return m
}

func (m *MiddlewareBuilder) log(qc *orm.QueryContext, duration time.Duration) {
	evt := m.logger.Warn().Str("type", qc.Type).Str("entity", qc.Entity.Name).Dur("duration", duration)
	// 翻译不成 SQL 的只记实体
	if q, err := qc.Builder.Build(); err == nil {
		evt = evt.Str("sql", q.SQL)
	}
	evt.Msg("slow query")
}

func (m *MiddlewareBuilder) Build() orm.Middleware {
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			startTime := time.Now()
			defer func() {
				duration := time.Since(startTime)
				if duration < m.threshold {
					return
				}
				m.logFunc(qc, duration)
			}()
			return next(ctx, qc)
		}
	}
}
