// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/seakee/meshomaton/internal/telemetry"
)

var httpTracer = telemetry.Tracer("meshomaton/http")

// SetTraceID returns middleware that binds a trace ID to every request and
// opens the OTel span the request runs under, so the same ID correlates a
// request's structured logs with the engine/scheduler spans it triggers.
//
// Returns:
//   - gin.HandlerFunc: middleware that reads or generates X-Trace-ID.
//
// Behavior:
//   - Reuses client-provided X-Trace-ID when present.
//   - Otherwise derives the trace ID from the request's OTel span when
//     tracing is enabled, falling back to the sequence generator.
func (m middleware) SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := httpTracer.Start(c.Request.Context(), c.FullPath(),
			oteltrace.WithAttributes(attribute.String("http.method", c.Request.Method)))
		defer span.End()

		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			if sc := span.SpanContext(); sc.IsValid() {
				traceID = sc.TraceID().String()
			} else {
				traceID = m.traceID.New()
			}
			c.Writer.Header().Set("X-Trace-ID", traceID)
		}

		c.Set("trace_id", traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
