package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/spendagg/log/logger"
	"github.com/hatlonely/spendagg/search"
)

// Stage 请求生命周期阶段
type Stage string

const (
	StageReceived       Stage = "received"
	StageFilterCompiled Stage = "filter_compiled"
	StageSized          Stage = "sized"
	StageExecuted       Stage = "executed"
	StageMerged         Stage = "merged"
	StagePaged          Stage = "paged"
	StageResponded      Stage = "responded"
	StageRejected       Stage = "rejected"
	StageTooManyValues  Stage = "too_many_values"
)

// 搜索调用类型
const (
	callCount     = "count"
	callAggregate = "aggregate"
	callPartition = "partition"
)

type observer struct {
	logger   logger.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	searcher search.Searcher
}

func newObserver(searcher search.Searcher, l logger.Logger, metrics *Metrics, enableTracing bool) *observer {
	obs := &observer{
		logger:   l,
		metrics:  metrics,
		searcher: searcher,
	}
	if enableTracing {
		obs.tracer = otel.Tracer("spendagg.engine")
	}
	return obs
}

// request 开始一次请求，返回的 finish 记录结果
func (obs *observer) request(ctx context.Context, op string, strategy string) (context.Context, func(err error)) {
	start := time.Now()
	id := RequestID(ctx)
	if id == "" {
		id = newRequestID()
		ctx = WithRequestID(ctx, id)
	}
	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, "engine."+op, trace.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("request_id", id),
		))
	}
	obs.logger.DebugContext(ctx, "request stage", "request_id", id, "op", op, "strategy", strategy, "stage", StageReceived)

	return ctx, func(err error) {
		result := outcome(err)
		obs.metrics.observeRequest(strategy, result)

		final := StageResponded
		switch Describe(err).kindOrEmpty() {
		case KindValidation:
			final = StageRejected
		case KindTooManyValues:
			final = StageTooManyValues
		}

		if span != nil {
			span.AddEvent(string(final))
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}

		if err != nil {
			obs.logger.WarnContext(ctx, "request failed",
				"request_id", id, "op", op, "strategy", strategy, "stage", final, "outcome", result,
				"duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
			return
		}
		obs.logger.InfoContext(ctx, "request completed",
			"request_id", id, "op", op, "strategy", strategy, "stage", final,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// stage 记录一个阶段完成
func (obs *observer) stage(ctx context.Context, stage Stage, start time.Time, args ...any) {
	obs.metrics.observeStage(stage, time.Since(start).Seconds())
	if span := trace.SpanFromContext(ctx); obs.tracer != nil && span.IsRecording() {
		span.AddEvent(string(stage))
	}
	obs.logger.DebugContext(ctx, "request stage", append([]any{"request_id", RequestID(ctx), "stage", stage}, args...)...)
}

// search 带指标和追踪的搜索调用
func (obs *observer) search(ctx context.Context, kind string, req *search.Request) (*search.Response, error) {
	obs.metrics.observeSearch(kind)

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, "engine.search", trace.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("index", req.Index),
		))
		defer span.End()
	}

	res, err := obs.searcher.Search(ctx, req)
	if span != nil && err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return res, err
}
