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

// Package slogmongologrus feeds logrus entries to a slogmongo handler.
//
//	h, err := slogmongo.NewHandler()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logrus.AddHook(slogmongologrus.NewHook(h))
package slogmongologrus

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pjscruggs/slogmongo"
)

// Hook is a logrus hook that converts each entry into an slog.Record and
// passes it to a handler.
type Hook struct {
	handler slog.Handler
	levels  []logrus.Level
}

// Option configures a Hook.
type Option func(*Hook)

// WithLevels restricts the hook to the given logrus levels. The default is
// logrus.AllLevels.
func WithLevels(levels ...logrus.Level) Option {
	return func(h *Hook) {
		h.levels = append([]logrus.Level(nil), levels...)
	}
}

// NewHook creates a hook that writes entries through handler.
func NewHook(handler slog.Handler, opts ...Option) *Hook {
	h := &Hook{handler: handler, levels: logrus.AllLevels}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Levels returns the log levels this hook should fire for.
func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

// Fire converts entry and hands it to the handler. Entry data becomes record
// attributes in key order, except that logrus.ErrorKey comes first so it is
// the record's exception. Errors from the handler are returned to logrus,
// which reports them on stderr.
func (h *Hook) Fire(entry *logrus.Entry) error {
	if h.handler == nil || entry == nil {
		return nil
	}
	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	level := ConvertLevel(entry.Level)
	if !h.handler.Enabled(ctx, level) {
		return nil
	}

	var pc uintptr
	if entry.HasCaller() {
		pc = entry.Caller.PC
	}
	r := slog.NewRecord(entry.Time, level, entry.Message, pc)
	r.AddAttrs(dataAttrs(entry.Data)...)
	return h.handler.Handle(ctx, r)
}

// dataAttrs converts logrus fields to attributes.
func dataAttrs(data logrus.Fields) []slog.Attr {
	if len(data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		if k != logrus.ErrorKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(data))
	if v, ok := data[logrus.ErrorKey]; ok {
		attrs = append(attrs, slog.Any(logrus.ErrorKey, v))
	}
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, data[k]))
	}
	return attrs
}

// ConvertLevel maps a logrus level to the matching slog level.
func ConvertLevel(l logrus.Level) slog.Level {
	switch l {
	case logrus.TraceLevel:
		return slog.LevelDebug - 4
	case logrus.DebugLevel:
		return slog.LevelDebug
	case logrus.InfoLevel:
		return slog.LevelInfo
	case logrus.WarnLevel:
		return slog.LevelWarn
	case logrus.ErrorLevel:
		return slog.LevelError
	case logrus.FatalLevel:
		return slogmongo.LevelCritical.Level()
	case logrus.PanicLevel:
		return slogmongo.LevelEmergency.Level()
	default:
		return slog.LevelInfo
	}
}
