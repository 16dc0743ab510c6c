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
	"errors"
	"log/slog"
	"reflect"
	"sync"
)

// Registry is an ordered set of active handlers. It plays the part of a root
// logger's handler list: Handler fans records out to every member, and the
// Find functions locate a member by type.
type Registry struct {
	mu       sync.RWMutex
	handlers []slog.Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register appends h unless it is already registered.
func (r *Registry) Register(h slog.Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.handlers {
		if sameHandler(existing, h) {
			return
		}
	}
	r.handlers = append(r.handlers, h)
}

// Unregister removes h and reports whether it was registered.
func (r *Registry) Unregister(h slog.Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.handlers {
		if sameHandler(existing, h) {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// sameHandler reports whether a and b are the same handler. Handlers whose
// dynamic values cannot be compared with == are compared by content.
func sameHandler(a, b slog.Handler) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Handlers returns a snapshot of the registered handlers in registration
// order.
func (r *Registry) Handlers() []slog.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]slog.Handler(nil), r.handlers...)
}

// Handler returns an slog.Handler that delivers each record to every handler
// registered at the time of the call. A failing member does not stop
// delivery to the others; their errors are joined.
func (r *Registry) Handler() slog.Handler {
	return &fanoutHandler{registry: r}
}

// FindByType returns the first registered handler of type T.
func FindByType[T slog.Handler](r *Registry) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if t, ok := h.(T); ok {
			return t, true
		}
	}
	return zero, false
}

// FindActiveHandler returns the first *Handler registered with r, or nil
// when there is none.
func FindActiveHandler(r *Registry) *Handler {
	h, _ := FindByType[*Handler](r)
	return h
}

// fanoutHandler replays WithAttrs and WithGroup calls onto each member at
// handling time, so members registered later see them too.
type fanoutHandler struct {
	registry *Registry
	derive   []func(slog.Handler) slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.registry.Handlers() {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.registry.Handlers() {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		for _, d := range f.derive {
			h = d(h)
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return f
	}
	attrs = append([]slog.Attr(nil), attrs...)
	return f.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanoutHandler) with(d func(slog.Handler) slog.Handler) *fanoutHandler {
	derive := make([]func(slog.Handler) slog.Handler, 0, len(f.derive)+1)
	derive = append(derive, f.derive...)
	return &fanoutHandler{registry: f.registry, derive: append(derive, d)}
}
