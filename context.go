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

// loggerKey is the context key under which a document logger is stored.
type loggerKey struct{}

// ContextWithLogger attaches logger to ctx. Code that receives the context
// can then log documents with the same handler, attributes and groups.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached to ctx. When ctx carries none, records
// go to every handler in DefaultRegistry, or to slog.Default when the
// registry is empty.
func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	if reg := DefaultRegistry(); len(reg.Handlers()) > 0 {
		return slog.New(reg.Handler())
	}
	return slog.Default()
}
