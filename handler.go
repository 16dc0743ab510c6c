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
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/pjscruggs/slogmongo/internal/store"
)

// Handler persists slog records as MongoDB documents. Each record is written
// synchronously, in a single attempt, on the caller's goroutine.
type Handler struct {
	slog.Handler

	cfg            *handlerConfig
	internalLogger *slog.Logger
	manager        *store.ClientManager
	state          *handlerState
	levelVar       *slog.LevelVar
	registry       *Registry

	closeOnce sync.Once
	closeErr  error
}

// Capabilities describes the write strategy negotiated with the linked
// MongoDB driver.
type Capabilities struct {
	DriverVersion  string
	DriverMajor    int
	ProbeOnConnect bool
	InsertOp       string
}

type diagLogger interface {
	Printf(format string, args ...any)
}

// diagnosticLogger receives user-facing warnings and, by default, emission
// failures.
var diagnosticLogger diagLogger = log.New(os.Stderr, "slogmongo: ", log.LstdFlags)

// NewHandler connects to MongoDB and returns a Handler writing to the
// configured collection. Environment overrides are read first, then opts are
// applied.
//
// The server must answer within the connect timeout or NewHandler returns a
// *ConnectionError and no handler.
//
// Example:
//
//	h, err := slogmongo.NewHandler(
//		slogmongo.WithConnection("mongodb://db.internal:27017/"),
//		slogmongo.WithRecordType(slogmongo.RecordTypeSimple),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close()
//	logger := slog.New(h)
//	logger.Info("ready")
func NewHandler(opts ...Option) (*Handler, error) {
	builder := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	internalLogger := builder.internalLogger
	if internalLogger == nil {
		internalLogger = slog.New(slog.DiscardHandler)
	}

	cfg, err := loadConfigFromEnv(internalLogger)
	if err != nil {
		return nil, err
	}
	applyOptions(&cfg, builder)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Store.Normalize() {
		if diagnosticLogger != nil {
			diagnosticLogger.Printf("no connection configured; connecting to %s (set %s or use slogmongo.WithConnection)", store.DefaultURI, envConnection)
		}
		logDiagnostic(internalLogger, slog.LevelWarn, "using default connection", slog.String("uri", store.DefaultURI))
	}

	manager := store.NewClientManager(cfg.Store, internalLogger, builder.storeOpts...)
	if err := manager.Initialize(); err != nil {
		return nil, &ConnectionError{URI: cfg.Store.URI, Err: err}
	}

	levelVar := builder.levelVar
	if levelVar == nil {
		levelVar = new(slog.LevelVar)
		levelVar.Set(cfg.Level)
	}

	onError := builder.errorHandler
	if onError == nil {
		onError = printEmissionError
	}

	cfgPtr := &cfg
	state := newHandlerState(manager, cfg.RecordType, onError)
	h := &Handler{
		Handler:        newDocumentHandler(cfgPtr, levelVar, state, internalLogger),
		cfg:            cfgPtr,
		internalLogger: internalLogger,
		manager:        manager,
		state:          state,
		levelVar:       levelVar,
		registry:       builder.registry,
	}
	if h.registry != nil {
		h.registry.Register(h)
	}
	return h, nil
}

// printEmissionError is the default error hook.
func printEmissionError(err error) {
	if diagnosticLogger != nil {
		diagnosticLogger.Printf("%v", err)
	}
}

// Close unregisters the handler and disconnects from MongoDB. It is safe to
// call multiple times; only the first invocation performs work. Records
// handled after Close fail with an *EmissionError wrapping ErrClosed.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		if h.registry != nil {
			h.registry.Unregister(h)
		}
		if err := h.manager.Close(); err != nil && !errors.Is(err, store.ErrNotInitialized) {
			h.closeErr = fmt.Errorf("slogmongo: close: %w", err)
			h.internalLogger.Error("failed to close mongo client", slog.Any("error", err))
		}
	})
	return h.closeErr
}

// SetRecordType switches the document schema for subsequent records,
// including those handled by loggers derived from h. Values other than
// RecordTypeSimple and RecordTypeVerbose are rejected with
// ErrInvalidRecordType and leave the schema unchanged. Calls are safe for
// concurrent use.
func (h *Handler) SetRecordType(rt RecordType) error {
	if !rt.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecordType, string(rt))
	}
	h.state.recordType.Store(rt)
	logDiagnostic(h.internalLogger, slog.LevelDebug, "record type changed", slog.String("record_type", string(rt)))
	return nil
}

// RecordType reports the current document schema.
func (h *Handler) RecordType() RecordType {
	return h.state.currentRecordType()
}

// TimeZone reports the clock used by the simple schema.
func (h *Handler) TimeZone() TimeZone {
	return h.cfg.TimeZone
}

// SetLevel updates the minimum slog level accepted by the handler at runtime.
// Calls are safe for concurrent use.
func (h *Handler) SetLevel(level slog.Level) {
	if h == nil || h.levelVar == nil {
		return
	}
	h.levelVar.Set(level)
}

// Level reports the handler's current minimum slog level.
func (h *Handler) Level() slog.Level {
	if h == nil || h.levelVar == nil {
		return slog.LevelInfo
	}
	return h.levelVar.Level()
}

// LevelVar returns the underlying slog.LevelVar used to gate records.
func (h *Handler) LevelVar() *slog.LevelVar {
	if h == nil {
		return nil
	}
	return h.levelVar
}

// Collection returns the driver collection handle documents are written to.
// It is nil once the handler is closed.
func (h *Handler) Collection() *mongo.Collection {
	return h.manager.Collection()
}

// Capabilities reports the write strategy negotiated at construction.
func (h *Handler) Capabilities() Capabilities {
	c := h.manager.Capabilities()
	return Capabilities{
		DriverVersion:  c.DriverVersion,
		DriverMajor:    c.DriverMajor,
		ProbeOnConnect: c.ProbeOnConnect,
		InsertOp:       c.InsertOp.String(),
	}
}

// ServerVersion reports the server version learned while connecting, or ""
// when the connection strategy did not query it.
func (h *Handler) ServerVersion() string {
	return h.manager.ServerVersion()
}

// String returns the connection string with any password masked.
func (h *Handler) String() string {
	return redactURI(h.cfg.Store.URI)
}

// logDiagnostic emits internal diagnostics when logger is configured.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
