// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package telemetry wires an OpenTelemetry tracer provider around the
// Engine's process_event/execute_automation and the Scheduler's tick, per
// SPEC_FULL.md's domain-stack wiring for go.opentelemetry.io/otel. No
// external OTLP collector is specified for this deployment shape, so spans
// are exported through a small SpanExporter that forwards finished spans to
// the same logger.Manager every other package logs through, matching how
// 99souls-ariadne's OpenTelemetryTracer sets up a tracer provider with no
// external exporter to avoid depending on a collector endpoint.
package telemetry

import (
	"context"
	"time"

	"github.com/sk-pkg/logger"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config controls whether tracing is installed and how the resource
// describes this service to whatever backend reads the log-forwarded spans.
type Config struct {
	Enabled     bool
	ServiceName string
	Environment string
}

// Provider owns the process-wide TracerProvider lifecycle.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs a TracerProvider as the global otel tracer provider.
// When cfg.Enabled is false, it installs nothing and Tracer() falls back to
// otel's default no-op provider.
func NewProvider(cfg Config, log *logger.Manager) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(&logExporter{log: log}),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Shutdown flushes and stops the tracer provider. A no-op when tracing was
// never enabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// Tracer returns the named tracer from whichever provider is currently
// installed globally (real or otel's default no-op).
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// logExporter is a minimal sdktrace.SpanExporter that writes finished spans
// through logger.Manager instead of shipping them to a collector, since this
// deployment shape specifies no OTLP endpoint.
type logExporter struct {
	log *logger.Manager
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.log == nil {
		return nil
	}
	for _, s := range spans {
		e.log.Info(ctx, "span finished",
			zap.String("name", s.Name()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("spanID", s.SpanContext().SpanID().String()),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(ctx context.Context) error { return nil }
