/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the
// orchestration bus. The dashboard HTTP server starts one span per
// request; the one-shot `orchestra run` command follows the OTel
// GenAI semantic conventions for its LLM call.
//
// Custom span attributes use the `orchestra.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/marcus-qen/orchestra"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP
// gRPC exporter. If endpoint is empty, tracing is disabled (the global
// no-op provider stays in place). Returns a shutdown function that
// must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("orchestra"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartHTTPSpan creates one span per dashboard HTTP request.
func StartHTTPSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dashboard."+route,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndHTTPSpan enriches the request span with its outcome.
func EndHTTPSpan(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	span.End()
}

// StartToolCallSpan creates a span for a single tool-registry dispatch.
func StartToolCallSpan(ctx context.Context, tool, action string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "tool.call",
		trace.WithAttributes(
			attribute.String("orchestra.tool", tool),
			attribute.String("orchestra.action", action),
		),
	)
}

// EndToolCallSpan enriches the tool span with its outcome.
func EndToolCallSpan(span trace.Span, ok bool) {
	span.SetAttributes(attribute.Bool("orchestra.ok", ok))
	span.End()
}

// StartRunSpan creates the parent span for the one-shot `orchestra
// run` command.
func StartRunSpan(ctx context.Context, agent string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "orchestrator.run",
		trace.WithAttributes(
			attribute.String("orchestra.agent", agent),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartLLMCallSpan creates a child span for an LLM call, following
// GenAI semantic conventions.
func StartLLMCallSpan(ctx context.Context, model, provider string, iteration int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gen_ai.chat",
		trace.WithAttributes(
			attribute.String("gen_ai.system", provider),
			attribute.String("gen_ai.request.model", model),
			attribute.Int("orchestra.iteration", iteration),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndLLMCallSpan enriches the LLM span with usage data.
func EndLLMCallSpan(span trace.Span, inputTokens, outputTokens int64, hasToolCalls bool) {
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", inputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", outputTokens),
		attribute.Bool("orchestra.has_tool_calls", hasToolCalls),
	)
	span.End()
}
