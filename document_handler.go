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
	"sync/atomic"

	"github.com/pjscruggs/slogmongo/internal/store"
)

// documentWriter persists shaped documents. *store.ClientManager is the
// production implementation.
type documentWriter interface {
	Insert(ctx context.Context, doc any) error
	Capabilities() store.Capabilities
}

// handlerState is shared by a handler and every handler derived from it
// through WithAttrs or WithGroup.
type handlerState struct {
	writer     documentWriter
	recordType atomic.Value // RecordType
	onError    func(error)
}

func newHandlerState(writer documentWriter, rt RecordType, onError func(error)) *handlerState {
	st := &handlerState{writer: writer, onError: onError}
	st.recordType.Store(rt)
	return st
}

func (st *handlerState) currentRecordType() RecordType {
	rt, _ := st.recordType.Load().(RecordType)
	if rt == "" {
		return DefaultRecordType
	}
	return rt
}

func (st *handlerState) report(err error) {
	if st.onError != nil {
		st.onError(err)
	}
}

// documentHandler is the slog.Handler that turns records into documents and
// writes them synchronously.
type documentHandler struct {
	cfg            *handlerConfig
	leveler        slog.Leveler
	state          *handlerState
	internalLogger *slog.Logger

	groupedAttrs []groupedAttr
	groups       []string
}

func newDocumentHandler(cfg *handlerConfig, leveler slog.Leveler, state *handlerState, internalLogger *slog.Logger) *documentHandler {
	if leveler == nil {
		leveler = slog.LevelInfo
	}
	h := &documentHandler{
		cfg:            cfg,
		leveler:        leveler,
		state:          state,
		internalLogger: internalLogger,
		groupedAttrs:   append([]groupedAttr(nil), cfg.InitialGroupedAttrs...),
		groups:         append([]string(nil), cfg.InitialGroups...),
	}
	return h
}

// Enabled reports whether level meets the handler's minimum level.
func (h *documentHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.leveler != nil {
		min = h.leveler.Level()
	}
	return level >= min
}

// Handle normalizes r, shapes it with the current record type and writes it
// in a single attempt. A failed write is reported to the error hook and
// returned as an *EmissionError.
func (h *documentHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ev := h.buildEvent(ctx, r)
	norm := normalizeEvent(ev)
	if norm.MessageConverted || norm.AttrsConverted {
		logDiagnostic(h.internalLogger, slog.LevelDebug, "stored textual fallback for unencodable value",
			slog.Bool("message", norm.MessageConverted),
			slog.Bool("attrs", norm.AttrsConverted),
		)
	}
	doc := shapeDocument(norm, h.state.currentRecordType(), h.cfg.TimeZone)

	if err := h.state.writer.Insert(ctx, doc); err != nil {
		emitErr := &EmissionError{
			Op:  h.state.writer.Capabilities().InsertOp.String(),
			Err: err,
		}
		h.state.report(emitErr)
		return emitErr
	}
	return nil
}

// WithAttrs returns a handler that adds attrs, under the current groups, to
// every document.
func (h *documentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	baseGroups := append([]string(nil), h.groups...)
	grouped := append([]groupedAttr(nil), h.groupedAttrs...)
	for _, attr := range attrs {
		grouped = append(grouped, groupedAttr{groups: baseGroups, attr: attr})
	}
	child := h.clone()
	child.groupedAttrs = grouped
	child.groups = baseGroups
	return child
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *documentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := h.clone()
	child.groupedAttrs = append([]groupedAttr(nil), h.groupedAttrs...)
	child.groups = append(append([]string(nil), h.groups...), name)
	return child
}

func (h *documentHandler) clone() *documentHandler {
	return &documentHandler{
		cfg:            h.cfg,
		leveler:        h.leveler,
		state:          h.state,
		internalLogger: h.internalLogger,
	}
}
