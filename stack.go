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
	"errors"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const maxStackFrames = 64

var stackPCPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, maxStackFrames)
		return &buf
	},
}

// stackTracer matches errors that carry the program counters of the point
// where they were created, as produced by several error-wrapping libraries.
type stackTracer interface {
	StackTrace() []uintptr
}

// traceTexter matches errors that carry a pre-rendered multi-line trace.
type traceTexter interface {
	TraceText() string
}

// errorTraceText returns the trace text carried by err or any error it wraps.
// Pre-rendered text wins over program counters.
func errorTraceText(err error) string {
	var tt traceTexter
	if errors.As(err, &tt) {
		if text := tt.TraceText(); text != "" {
			return text
		}
	}
	var st stackTracer
	if errors.As(err, &st) {
		pcs := st.StackTrace()
		if len(pcs) > maxStackFrames {
			pcs = pcs[:maxStackFrames]
		}
		return formatStack(pcs)
	}
	return ""
}

// formatStack renders pcs in the layout of runtime/debug.Stack: a goroutine
// header followed by a function line and a tab-indented file:line line per
// frame.
func formatStack(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}

	header := currentGoroutineHeader()
	var sb strings.Builder
	sb.Grow(len(header) + 1 + len(pcs)*64)
	sb.WriteString(header)
	sb.WriteByte('\n')

	var intBuf [20]byte
	frames := runtime.CallersFrames(pcs)
	for count := 0; count < maxStackFrames; {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if frame.Function != "" && frame.Function != "runtime.goexit" {
			sb.WriteString(frame.Function)
			sb.WriteString("\n\t")
			sb.WriteString(frame.File)
			sb.WriteByte(':')
			sb.Write(strconv.AppendInt(intBuf[:0], int64(frame.Line), 10))
			if frame.Entry != 0 && frame.PC > frame.Entry {
				sb.WriteString(" +0x")
				sb.Write(strconv.AppendUint(intBuf[:0], uint64(frame.PC-frame.Entry), 16))
			}
			sb.WriteByte('\n')
			count++
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// SkipInternalStackFrame reports whether funcName belongs to the runtime,
// log/slog, the logging bridges, or this package. Captured stacks start at the
// first frame for which it returns false.
func SkipInternalStackFrame(funcName string) bool {
	if funcName == "" {
		return false
	}
	for _, prefix := range []string{
		"runtime.",
		"log/slog.",
		"github.com/pjscruggs/slogmongo.",
		"github.com/pjscruggs/slogmongo/",
		"github.com/sirupsen/logrus.",
		"go.uber.org/zap.",
		"go.uber.org/zap/",
	} {
		if strings.HasPrefix(funcName, prefix) {
			return true
		}
	}
	return false
}

// CaptureStack captures the calling goroutine's stack, dropping leading
// frames for which skipFn returns true. A nil skipFn uses
// SkipInternalStackFrame. It returns the rendered stack and its top frame.
func CaptureStack(skipFn func(string) bool) (string, runtime.Frame) {
	bufPtr := stackPCPool.Get().(*[]uintptr)
	defer stackPCPool.Put(bufPtr)
	pcs := (*bufPtr)[:cap(*bufPtr)]

	n := runtime.Callers(0, pcs)
	if n == 0 {
		return "", runtime.Frame{}
	}
	pcs = pcs[:n]

	if skipFn == nil {
		skipFn = SkipInternalStackFrame
	}
	trimmed := trimStackPCs(pcs, skipFn)
	if len(trimmed) == 0 {
		trimmed = pcs
	}

	top, _ := runtime.CallersFrames(trimmed).Next()
	return formatStack(trimmed), top
}

// trimStackPCs drops leading program counters whose functions match skipFn.
func trimStackPCs(pcs []uintptr, skipFn func(string) bool) []uintptr {
	frames := runtime.CallersFrames(pcs)
	skip := 0
	for {
		frame, more := frames.Next()
		if !skipFn(frame.Function) {
			break
		}
		skip++
		if !more || skip >= len(pcs) {
			return nil
		}
	}
	return pcs[skip:]
}

// currentGoroutineHeader returns the first line of the current goroutine's
// stack dump, e.g. "goroutine 7 [running]:".
func currentGoroutineHeader() string {
	const fallbackHeader = "goroutine 0 [running]:"

	var buf [128]byte
	n := runtime.Stack(buf[:], false)
	if n <= 0 {
		return fallbackHeader
	}

	header := string(buf[:n])
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fallbackHeader
	}
	return header
}
