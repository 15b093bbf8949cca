package opentelemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"querydemo/orm"
)

const instrumentationName = "querydemo/orm/middlewares/opentelemetry"

type MiddlewareBuilder struct {
	Tracer trace.Tracer
}

func (m MiddlewareBuilder) Build() orm.Middleware {
	if m.Tracer == nil {
		m.Tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			// span name: SELECT-Member, INSERT-Department
			entity := qc.Entity.Name
			spanCtx, span := m.Tracer.Start(ctx, fmt.Sprintf("%s-%s", qc.Type, entity))
			defer span.End()
			// 参数可能很大, 只记 SQL
			if q, err := qc.Builder.Build(); err == nil {
				span.SetAttributes(attribute.String("sql", q.SQL))
			}
			span.SetAttributes(
				attribute.String("entity", entity),
				attribute.String("table", qc.Entity.TableName),
				attribute.String("component", "orm"),
			)
			res := next(spanCtx, qc)
			if res.Err != nil {
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, res.Err.Error())
			}
			return res
		}
	}
}
