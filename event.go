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
	"math"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Attribute keys with special meaning when they appear outside any group.
const (
	// LoggerKey names the logger stored in the name field. Its value must be a
	// string; it overrides WithLoggerName.
	LoggerKey = "logger"

	// MessageKey carries an arbitrary message payload that replaces the
	// record's string message in the msg field. See [Message].
	MessageKey = "msg"

	// TraceTextKey carries a pre-rendered multi-line trace for the record's
	// exception. It is ignored when the record carries no error.
	TraceTextKey = "exc_text"
)

// Message returns an attribute that stores v, of any type, as the document's
// message payload. Values that cannot be stored natively are replaced by
// their fmt.Sprint form and flagged with msg_converted.
func Message(v any) slog.Attr {
	return slog.Any(MessageKey, v)
}

// LoggerName returns an attribute that sets the document's name field.
func LoggerName(name string) slog.Attr {
	return slog.String(LoggerKey, name)
}

// sourceLocation identifies the call site that emitted a record.
type sourceLocation struct {
	Path     string
	Module   string
	Func     string
	Filename string
	Line     int
}

// traceContext holds OpenTelemetry identifiers taken from the record context.
type traceContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// eventMeta holds the fields of a log event that never need normalization.
type eventMeta struct {
	Name        string
	Level       slog.Level
	Time        time.Time
	ThreadID    int64
	ThreadName  string
	PID         int
	ProcessName string
	Source      sourceLocation
	Trace       *traceContext
}

// exceptionContext is the raw exception attached to a record.
type exceptionContext struct {
	Err       error
	TraceText string
}

// eventAttr is one leaf attribute and the group path leading to it.
type eventAttr struct {
	Groups []string
	Key    string
	Value  any
}

// logEvent is the handler's view of an slog.Record before normalization.
type logEvent struct {
	eventMeta

	Message   any
	Exception *exceptionContext
	Attrs     []eventAttr
}

// groupedAttr is an attribute bound by WithAttrs under the groups active at
// the time.
type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// eventBuilder accumulates a logEvent while walking attributes.
type eventBuilder struct {
	ev        logEvent
	traceText string
	hasTrace  bool
}

// buildEvent assembles the logEvent for r. Handler-bound attributes are
// visited before record attributes so later values win.
func (h *documentHandler) buildEvent(ctx context.Context, r slog.Record) logEvent {
	info := DetectRuntimeInfo()
	tid := goroutineID()

	b := &eventBuilder{}
	b.ev.eventMeta = eventMeta{
		Name:        h.cfg.LoggerName,
		Level:       r.Level,
		Time:        r.Time,
		ThreadID:    tid,
		ThreadName:  goroutineName(tid),
		PID:         info.PID,
		ProcessName: info.ProcessName,
		Source:      resolveSourceLocation(r.PC),
		Trace:       extractTraceContext(ctx),
	}
	if b.ev.Time.IsZero() {
		b.ev.Time = time.Now()
	}
	b.ev.Message = r.Message

	for _, ga := range h.groupedAttrs {
		b.walk(ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		b.walk(h.groups, a)
		return true
	})

	if b.ev.Exception != nil {
		switch {
		case b.hasTrace:
			b.ev.Exception.TraceText = b.traceText
		default:
			b.ev.Exception.TraceText = errorTraceText(b.ev.Exception.Err)
		}
		if b.ev.Exception.TraceText == "" && h.cfg.StackTraceEnabled && r.Level >= h.cfg.StackTraceLevel {
			b.ev.Exception.TraceText, _ = CaptureStack(nil)
		}
	} else if b.hasTrace {
		b.ev.Attrs = append(b.ev.Attrs, eventAttr{Key: TraceTextKey, Value: b.traceText})
	}
	return b.ev
}

// walk records attr under groups, descending into group values.
func (b *eventBuilder) walk(groups []string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()

	if attr.Value.Kind() == slog.KindGroup {
		children := attr.Value.Group()
		if len(children) == 0 {
			return
		}
		next := groups
		if attr.Key != "" {
			next = append(append([]string(nil), groups...), attr.Key)
		}
		for _, child := range children {
			b.walk(next, child)
		}
		return
	}
	if attr.Key == "" {
		return
	}

	if b.ev.Exception == nil {
		if err := extractErrorFromValue(attr.Value); err != nil {
			b.ev.Exception = &exceptionContext{Err: err}
			return
		}
	}

	if len(groups) == 0 {
		switch attr.Key {
		case LoggerKey:
			if attr.Value.Kind() == slog.KindString {
				b.ev.Name = attr.Value.String()
				return
			}
		case MessageKey:
			b.ev.Message = attr.Value.Any()
			return
		case TraceTextKey:
			if attr.Value.Kind() == slog.KindString {
				b.traceText = attr.Value.String()
				b.hasTrace = true
				return
			}
		}
	}

	b.ev.Attrs = append(b.ev.Attrs, eventAttr{Groups: groups, Key: attr.Key, Value: resolveAttrValue(attr.Value)})
}

// extractErrorFromValue unwraps an error from a slog.Value when possible.
func extractErrorFromValue(v slog.Value) error {
	if v.Kind() != slog.KindAny {
		return nil
	}
	if err, ok := v.Any().(error); ok && err != nil {
		return err
	}
	return nil
}

// resolveAttrValue converts a resolved, non-group slog.Value into a Go value
// the BSON encoder understands natively where possible.
func resolveAttrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time()
	case slog.KindUint64:
		u := v.Uint64()
		if u > math.MaxInt64 {
			return strconv.FormatUint(u, 10)
		}
		return int64(u)
	case slog.KindAny:
		return resolveAnyValue(v.Any())
	default:
		return nil
	}
}

// resolveAnyValue unwraps common AnyValue types to storable forms.
func resolveAnyValue(val any) any {
	switch vt := val.(type) {
	case error:
		return safeErrorText(vt)
	case nil:
		return nil
	default:
		return val
	}
}

// resolveSourceLocation maps a program counter to the call site fields. The
// module is the package path and func the remainder of the symbol name.
func resolveSourceLocation(pc uintptr) sourceLocation {
	if pc == 0 {
		return sourceLocation{}
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	module, fn := splitFunctionName(frame.Function)
	return sourceLocation{
		Path:     frame.File,
		Module:   module,
		Func:     fn,
		Filename: filepath.Base(frame.File),
		Line:     frame.Line,
	}
}

// splitFunctionName splits "example.com/pkg.(*T).Method" into
// "example.com/pkg" and "(*T).Method".
func splitFunctionName(full string) (module, fn string) {
	if full == "" {
		return "", ""
	}
	lastSlash := strings.LastIndexByte(full, '/')
	dot := strings.IndexByte(full[lastSlash+1:], '.')
	if dot < 0 {
		return full, ""
	}
	split := lastSlash + 1 + dot
	return full[:split], full[split+1:]
}
