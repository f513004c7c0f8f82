package oteladapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xinjiayu/rxgo/v2/ecs"
)

// 追踪的 span 名称
const (
	SpanWorldUpdate    = "rxgo.ecs.update"
	SpanSubscribeError = "rxgo.ecs.subscribe_error"
)

// Tracer 为世界的更新循环创建 span
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer 使用 tracer 创建
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{tracer: tracer}
}

// Update 在 span 中执行一次 world.Update，统计写入 span 属性
func (t *Tracer) Update(ctx context.Context, world *ecs.World, delta time.Duration) ecs.UpdateReport {
	_, span := t.tracer.Start(ctx, SpanWorldUpdate,
		trace.WithAttributes(attribute.Int64("rxgo.delta_us", delta.Microseconds())),
	)
	defer span.End()

	report := world.Update(delta)
	span.SetAttributes(
		attribute.Int("rxgo.commands_applied", report.CommandsApplied),
		attribute.Int("rxgo.subscribe_retries", report.Retried),
		attribute.Int("rxgo.entities_alive", report.Alive),
	)
	span.SetStatus(codes.Ok, "")
	return report
}

// ErrorHandler 为每个被放弃的订阅命令记录一个出错的 span，然后交给 next；next 为 nil 时使用 ecs.LogSubscribeError
func (t *Tracer) ErrorHandler(next ecs.ErrorHandler) ecs.ErrorHandler {
	if next == nil {
		next = ecs.LogSubscribeError
	}
	return func(world *ecs.World, err *ecs.SubscribeError) {
		_, span := t.tracer.Start(context.Background(), SpanSubscribeError,
			trace.WithAttributes(
				attribute.String("rxgo.subscribe_error.kind", err.Kind.String()),
				attribute.String("rxgo.target", err.Target.String()),
				attribute.Int("rxgo.attempts", err.Attempts),
			),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()

		next(world, err)
	}
}
