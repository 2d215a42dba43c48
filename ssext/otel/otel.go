// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// Package ssextotel provides OpenTelemetry instrumentation for ssext
// servers. It implements the [ssext.DispatchHook] interface to add
// distributed tracing and metrics to call dispatch.
//
// Usage:
//
//	hook := ssextotel.NewHook(ssextotel.DefaultConfig())
//	srv := ssext.NewServer(reg, ssext.WithDispatchHook(hook))
package ssextotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldray/ssext/ssext"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"
)

const instrumentationName = "ssext"

// Config configures OpenTelemetry instrumentation for an ssext server.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator extracts trace context from call metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed calls.
	// Default true.
	RecordExceptions bool
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with sensible defaults.
// TracerProvider, MeterProvider, and Propagator are resolved from the
// global OTel SDK when the hook is built.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// NewHook builds an [ssext.DispatchHook] carrying OpenTelemetry tracing
// and metrics. Install it with [ssext.WithDispatchHook].
func NewHook(cfg Config) ssext.DispatchHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.requestCounter, _ = meter.Int64Counter("rpc.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of RPC requests"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("rpc.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of RPC requests"),
		)
	}

	return hook
}

// otelHook implements ssext.DispatchHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               Config
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// metadataCarrier adapts inbound gRPC metadata to the propagation API.
type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	vals := metadata.MD(c).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// OnDispatchStart extracts parent trace context from the call metadata
// and starts a server span.
func (h *otelHook) OnDispatchStart(ctx context.Context, info ssext.DispatchInfo) (context.Context, ssext.HookToken) {
	if h.cfg.Propagator != nil {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = h.cfg.Propagator.Extract(ctx, metadataCarrier(md))
		}
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	spanName := fmt.Sprintf("%s/%s", ssext.ServiceName, info.CallKind)

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", ssext.ServiceName),
		attribute.String("rpc.ssext.call_kind", info.CallKind),
		attribute.String("rpc.ssext.plugin_id", info.PluginID),
	}
	if info.SessionID != "" {
		attrs = append(attrs, attribute.String("rpc.ssext.session_id", info.SessionID))
	}
	if info.AppID != "" {
		attrs = append(attrs, attribute.String("rpc.ssext.app_id", info.AppID))
	}
	if info.FunctionName != "" {
		attrs = append(attrs,
			attribute.String("rpc.ssext.function_name", info.FunctionName),
			attribute.Int64("rpc.ssext.function_id", int64(info.FunctionID)),
		)
	}
	if info.Cardinality > 0 {
		attrs = append(attrs, attribute.Int64("rpc.ssext.cardinality", info.Cardinality))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token ssext.HookToken, info ssext.DispatchInfo, stats *ssext.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", ssext.ServiceName),
			attribute.String("rpc.ssext.call_kind", info.CallKind),
			attribute.String("status", status),
		)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("rpc.ssext.input_bundles", stats.InputBundles),
				attribute.Int64("rpc.ssext.output_bundles", stats.OutputBundles),
				attribute.Int64("rpc.ssext.input_rows", stats.InputRows),
				attribute.Int64("rpc.ssext.output_rows", stats.OutputRows),
				attribute.Int64("rpc.ssext.input_bytes", stats.InputBytes),
				attribute.Int64("rpc.ssext.output_bytes", stats.OutputBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			errType := fmt.Sprintf("%T", err)
			var engineErr *ssext.Error
			if errors.As(err, &engineErr) {
				errType = engineErr.Kind.String()
			}
			st.span.SetAttributes(attribute.String("rpc.ssext.error_kind", errType))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}

		st.span.End()
	}
}
