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
	"runtime"
	"time"
)

// NoticeContext logs a message at notice severity for operational events that
// should page responders but do not indicate an outage.
func NoticeContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelNotice.Level(), msg, args...)
}

// CriticalContext logs a message at critical severity indicating immediate
// attention is required.
func CriticalContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelCritical.Level(), msg, args...)
}

// AlertContext logs at alert severity.
func AlertContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelAlert.Level(), msg, args...)
}

// EmergencyContext logs at emergency severity highlighting application-wide
// failures.
func EmergencyContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelEmergency.Level(), msg, args...)
}

// logAt logs through logger with the source location of the helper's caller.
func logAt(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !logger.Enabled(ctx, level) {
		return
	}
	r := newRecord(level, msg, 4)
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}

// newRecord builds a record whose PC is skip frames above runtime.Callers.
func newRecord(level slog.Level, msg string, skip int) slog.Record {
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	return slog.NewRecord(time.Now(), level, msg, pcs[0])
}
