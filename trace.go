// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slogmongo

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// ExtractTraceSpan extracts OpenTelemetry trace details from ctx.
//
// It returns the 32-char lowercase hex trace ID, the 16-char hex span ID,
// the sampling decision, and whether ctx carried a valid span context. It
// does not create spans or mutate ctx; upstream instrumentation must have
// populated the span context.
func ExtractTraceSpan(ctx context.Context) (traceID, spanID string, sampled, ok bool) {
	if ctx == nil {
		return "", "", false, false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false, false
	}
	return sc.TraceID().String(), sc.SpanID().String(), sc.IsSampled(), true
}

// extractTraceContext returns the trace identifiers on ctx, or nil when ctx
// carries no valid span context.
func extractTraceContext(ctx context.Context) *traceContext {
	traceID, spanID, sampled, ok := ExtractTraceSpan(ctx)
	if !ok {
		return nil
	}
	return &traceContext{TraceID: traceID, SpanID: spanID, Sampled: sampled}
}
