// Package telemetry wires one tracer provider per process and wraps the
// per-tick, per-phase span pattern used by masterd and workerd. Grounded
// on cmd/ployzd/main.go's bare sdktrace.NewTracerProvider() wiring and
// pkg/sdk/telemetry/operation.go's RunStep span-with-error shape.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewProvider installs a process-wide tracer provider. There is no
// exporter configured: no outward telemetry sink is in scope here, but
// keeping the same SDK wiring as the rest of the corpus leaves span
// helpers usable verbatim, and a real exporter is one WithSyncer call
// away for anyone wiring this into a collector later.
func NewProvider() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp
}

// Shutdown flushes and releases the provider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	return tp.Shutdown(ctx)
}

// Tick is one open span covering a full simulation tick, with child
// spans for each pipeline phase nested inside it.
type Tick struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// StartTick opens the per-tick span.
func StartTick(ctx context.Context, tracer trace.Tracer, workerID int32, tickNum int64) *Tick {
	spanCtx, span := tracer.Start(ctx, "tick", trace.WithAttributes(
		attribute.Int64("worker_id", int64(workerID)),
		attribute.Int64("tick", tickNum),
	))
	return &Tick{ctx: spanCtx, tracer: tracer, span: span}
}

// Phase runs fn inside a child span named for the pipeline phase
// (move, exchange, sense, decide, ...), recording any error onto the
// span before propagating it.
func (t *Tick) Phase(name string, fn func(context.Context) error) error {
	if t == nil || t.tracer == nil {
		return fn(context.Background())
	}
	ctx, span := t.tracer.Start(t.ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// End closes the tick span, recording err if non-nil.
func (t *Tick) End(err error) {
	if t == nil || t.span == nil {
		return
	}
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	t.span.End()
}
