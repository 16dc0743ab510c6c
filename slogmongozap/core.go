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

// Package slogmongozap provides a zapcore.Core that writes zap entries
// through a slogmongo handler.
//
//	h, err := slogmongo.NewHandler()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := zap.New(slogmongozap.NewCore(h))
package slogmongozap

import (
	"context"
	"log/slog"
	"sort"

	"go.uber.org/zap/zapcore"

	"github.com/pjscruggs/slogmongo"
)

// Core is a zapcore.Core backed by an slog.Handler. Fields added with With
// before any namespace become handler attributes. Namespaces nest the fields
// that follow them, while the logger name and stack stay at the top level.
type Core struct {
	handler slog.Handler
	scopes  []scope
}

// scope is an open zap namespace and the fields added inside it.
type scope struct {
	name  string
	attrs []slog.Attr
}

// NewCore returns a Core writing through handler.
func NewCore(handler slog.Handler) *Core {
	return &Core{handler: handler}
}

// Enabled reports whether the handler accepts records at level.
func (c *Core) Enabled(level zapcore.Level) bool {
	return c.handler.Enabled(context.Background(), ConvertLevel(level))
}

// With returns a Core carrying fields.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	next := &Core{handler: c.handler, scopes: cloneScopes(c.scopes)}
	pending := make([]zapcore.Field, 0, len(fields))
	flush := func() {
		attrs := fieldsToAttrs(pending)
		pending = pending[:0]
		if len(attrs) == 0 {
			return
		}
		if n := len(next.scopes); n > 0 {
			next.scopes[n-1].attrs = append(next.scopes[n-1].attrs, attrs...)
			return
		}
		next.handler = next.handler.WithAttrs(attrs)
	}
	for _, f := range fields {
		if f.Type != zapcore.NamespaceType {
			pending = append(pending, f)
			continue
		}
		flush()
		next.scopes = append(next.scopes, scope{name: f.Key})
	}
	flush()
	return next
}

func cloneScopes(scopes []scope) []scope {
	if len(scopes) == 0 {
		return nil
	}
	out := make([]scope, len(scopes))
	for i, s := range scopes {
		out[i] = scope{name: s.name, attrs: append([]slog.Attr(nil), s.attrs...)}
	}
	return out
}

// nest wraps attrs in the open namespaces, innermost last.
func (c *Core) nest(attrs []slog.Attr) []slog.Attr {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		s := c.scopes[i]
		members := append(append([]slog.Attr(nil), s.attrs...), attrs...)
		if len(members) == 0 {
			attrs = nil
			continue
		}
		attrs = []slog.Attr{{Key: s.name, Value: slog.GroupValue(members...)}}
	}
	return attrs
}

// Check adds c to ce when the entry's level is enabled.
func (c *Core) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

// Write converts the entry and fields into a record and handles it. The
// entry's logger name, when set, becomes the document name and its stack,
// when set, the exception trace.
func (c *Core) Write(e zapcore.Entry, fields []zapcore.Field) error {
	var pc uintptr
	if e.Caller.Defined {
		pc = e.Caller.PC
	}
	r := slog.NewRecord(e.Time, ConvertLevel(e.Level), e.Message, pc)
	if e.LoggerName != "" {
		r.AddAttrs(slogmongo.LoggerName(e.LoggerName))
	}
	r.AddAttrs(c.nest(fieldsToAttrs(fields))...)
	if e.Stack != "" {
		r.AddAttrs(slog.String(slogmongo.TraceTextKey, e.Stack))
	}
	return c.handler.Handle(context.Background(), r)
}

// Sync is a no-op; records are written synchronously.
func (c *Core) Sync() error {
	return nil
}

// fieldsToAttrs converts zap fields to attributes. Errors keep their value
// so the handler can treat them as the record's exception. A namespace
// field nests every field after it.
func fieldsToAttrs(fields []zapcore.Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.SkipType:
			continue
		case zapcore.NamespaceType:
			rest := fieldsToAttrs(fields[i+1:])
			if len(rest) == 0 {
				return attrs
			}
			return append(attrs, slog.Attr{Key: f.Key, Value: slog.GroupValue(rest...)})
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				attrs = append(attrs, slog.Any(f.Key, err))
				continue
			}
		}
		attrs = append(attrs, encodeField(f)...)
	}
	return attrs
}

// encodeField renders a single field with zap's map encoder.
func encodeField(f zapcore.Field) []slog.Attr {
	enc := zapcore.NewMapObjectEncoder()
	f.AddTo(enc)
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, enc.Fields[k]))
	}
	return attrs
}

// ConvertLevel maps a zap level to the matching slog level.
func ConvertLevel(l zapcore.Level) slog.Level {
	switch l {
	case zapcore.DebugLevel:
		return slog.LevelDebug
	case zapcore.InfoLevel:
		return slog.LevelInfo
	case zapcore.WarnLevel:
		return slog.LevelWarn
	case zapcore.ErrorLevel:
		return slog.LevelError
	case zapcore.DPanicLevel:
		return slogmongo.LevelCritical.Level()
	case zapcore.PanicLevel:
		return slogmongo.LevelAlert.Level()
	case zapcore.FatalLevel:
		return slogmongo.LevelEmergency.Level()
	default:
		if l < zapcore.DebugLevel {
			return slog.LevelDebug - 4
		}
		return slog.LevelInfo
	}
}
