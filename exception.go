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
	"log/slog"
)

// ErrorKey is the attribute key ExceptionAttrs uses for the error.
const ErrorKey = "error"

// ExceptionAttrs returns the attributes that make a record carry err as its
// exception. When err has no trace of its own, the calling goroutine's stack
// is captured and attached under TraceTextKey.
func ExceptionAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}
	attrs := []slog.Attr{slog.Any(ErrorKey, err)}
	if errorTraceText(err) != "" {
		return attrs
	}
	if stack, _ := CaptureStack(nil); stack != "" {
		attrs = append(attrs, slog.String(TraceTextKey, stack))
	}
	return attrs
}

// LogException logs msg at error level with err attached as the exception,
// together with a stack trace of the caller.
func LogException(ctx context.Context, logger *slog.Logger, err error, msg string, args ...any) {
	if logger == nil || err == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !logger.Enabled(ctx, slog.LevelError) {
		return
	}
	r := newRecord(slog.LevelError, msg, 3)
	r.AddAttrs(ExceptionAttrs(err)...)
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}
