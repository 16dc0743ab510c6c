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
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/pjscruggs/slogmongo/internal/store"
)

const (
	envConnection        = "SLOGMONGO_CONNECTION"
	envDatabase          = "SLOGMONGO_DATABASE"
	envCollection        = "SLOGMONGO_COLLECTION"
	envAppName           = "SLOGMONGO_APP_NAME"
	envRecordType        = "SLOGMONGO_RECORD_TYPE"
	envTimeZone          = "SLOGMONGO_TIME_ZONE"
	envLogLevel          = "SLOGMONGO_LEVEL"
	envConnectTimeout    = "SLOGMONGO_CONNECT_TIMEOUT"
	envWriteConcern      = "SLOGMONGO_WRITE_CONCERN"
	envJournal           = "SLOGMONGO_JOURNAL"
	envLogStackEnabled   = "SLOGMONGO_STACK_TRACE_ENABLED"
	envLogStackLevel     = "SLOGMONGO_STACK_TRACE_LEVEL"
	envLoggerName        = "SLOGMONGO_LOGGER_NAME"
	defaultLoggerName    = "root"
	writeConcernMajority = "majority"
)

type handlerConfig struct {
	Level             slog.Level
	RecordType        RecordType
	TimeZone          TimeZone
	LoggerName        string
	StackTraceEnabled bool
	StackTraceLevel   slog.Level

	Store store.Config

	InitialGroupedAttrs []groupedAttr
	InitialGroups       []string
}

// loadConfigFromEnv builds the default configuration and applies any
// SLOGMONGO_* overrides. Malformed record type or time zone values are
// errors; other malformed values are logged and ignored.
func loadConfigFromEnv(logger *slog.Logger) (handlerConfig, error) {
	cfg := handlerConfig{
		Level:           slog.LevelInfo,
		RecordType:      DefaultRecordType,
		TimeZone:        DefaultTimeZone,
		LoggerName:      defaultLoggerName,
		StackTraceLevel: slog.LevelError,
		Store: store.Config{
			ConnectTimeout: store.DefaultConnectTimeout,
		},
	}

	cfg.Store.URI = strings.TrimSpace(os.Getenv(envConnection))
	cfg.Store.Database = strings.TrimSpace(os.Getenv(envDatabase))
	cfg.Store.Collection = strings.TrimSpace(os.Getenv(envCollection))
	cfg.Store.AppName = strings.TrimSpace(os.Getenv(envAppName))
	if name := strings.TrimSpace(os.Getenv(envLoggerName)); name != "" {
		cfg.LoggerName = name
	}

	cfg.Level = parseLevelEnv(os.Getenv(envLogLevel), cfg.Level, logger)
	cfg.StackTraceEnabled = parseBoolEnv(os.Getenv(envLogStackEnabled), cfg.StackTraceEnabled, logger)
	cfg.StackTraceLevel = parseLevelEnv(os.Getenv(envLogStackLevel), cfg.StackTraceLevel, logger)
	cfg.Store.ConnectTimeout = parseDurationEnv(os.Getenv(envConnectTimeout), cfg.Store.ConnectTimeout, logger)
	cfg.Store.WriteConcern = parseWriteConcernEnv(os.Getenv(envWriteConcern), os.Getenv(envJournal), logger)

	if v := strings.TrimSpace(os.Getenv(envRecordType)); v != "" {
		rt, err := ParseRecordType(v)
		if err != nil {
			return handlerConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, envRecordType, err)
		}
		cfg.RecordType = rt
	}
	if v := strings.TrimSpace(os.Getenv(envTimeZone)); v != "" {
		tz, err := ParseTimeZone(v)
		if err != nil {
			return handlerConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, envTimeZone, err)
		}
		cfg.TimeZone = tz
	}

	return cfg, nil
}

// applyOptions merges user-supplied options into the derived handler
// configuration.
func applyOptions(cfg *handlerConfig, o *options) {
	if o.connection != nil {
		cfg.Store.URI = *o.connection
	}
	if o.database != nil {
		cfg.Store.Database = *o.database
	}
	if o.collection != nil {
		cfg.Store.Collection = *o.collection
	}
	if o.appName != nil {
		cfg.Store.AppName = *o.appName
	}
	if o.connectTimeout != nil {
		cfg.Store.ConnectTimeout = *o.connectTimeout
	}
	if o.writeConcern != nil {
		cfg.Store.WriteConcern = o.writeConcern
	}
	if o.recordType != nil {
		cfg.RecordType = *o.recordType
	}
	if o.timeZone != nil {
		cfg.TimeZone = *o.timeZone
	}
	if o.level != nil {
		cfg.Level = *o.level
	}
	if o.levelVar != nil {
		cfg.Level = o.levelVar.Level()
	}
	if o.loggerName != nil {
		cfg.LoggerName = *o.loggerName
	}
	if o.stackTraceEnabled != nil {
		cfg.StackTraceEnabled = *o.stackTraceEnabled
	}
	if o.stackTraceLevel != nil {
		cfg.StackTraceLevel = *o.stackTraceLevel
	}
	if len(o.initialGroupedAttrs) > 0 {
		cfg.InitialGroupedAttrs = append([]groupedAttr(nil), o.initialGroupedAttrs...)
	}
	if o.groupsSet {
		cfg.InitialGroups = append([]string(nil), o.groups...)
	}
}

// validate rejects configurations that options could not check when applied.
func (cfg *handlerConfig) validate() error {
	if !cfg.RecordType.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecordType, string(cfg.RecordType))
	}
	if !cfg.TimeZone.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTimeZone, string(cfg.TimeZone))
	}
	return nil
}

// parseBoolEnv parses boolean environment variables, retaining current on
// failure.
func parseBoolEnv(value string, current bool, logger *slog.Logger) bool {
	if strings.TrimSpace(value) == "" {
		return current
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		logDiagnostic(logger, slog.LevelWarn, "invalid boolean environment variable", slog.String("value", value), slog.Any("error", err))
		return current
	}
	return b
}

// parseLevelEnv parses slog levels from environment variables, retaining the
// current level on failure.
func parseLevelEnv(value string, current slog.Level, logger *slog.Logger) slog.Level {
	if strings.TrimSpace(value) == "" {
		return current
	}
	level, ok := parseLevel(value)
	if !ok {
		logDiagnostic(logger, slog.LevelWarn, "invalid level environment variable", slog.String("value", value))
		return current
	}
	return level
}

// parseDurationEnv accepts a Go duration ("750ms", "5s") or a bare integer
// number of milliseconds.
func parseDurationEnv(value string, current time.Duration, logger *slog.Logger) time.Duration {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return current
	}
	if ms, err := strconv.Atoi(trimmed); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil || d <= 0 {
		logDiagnostic(logger, slog.LevelWarn, "invalid duration environment variable", slog.String("value", value))
		return current
	}
	return d
}

// parseWriteConcernEnv builds a write concern from the w and journal
// variables. It returns nil when neither is set.
func parseWriteConcernEnv(w, journal string, logger *slog.Logger) *writeconcern.WriteConcern {
	w = strings.TrimSpace(w)
	journal = strings.TrimSpace(journal)
	if w == "" && journal == "" {
		return nil
	}

	wc := &writeconcern.WriteConcern{}
	switch {
	case w == "":
	case strings.EqualFold(w, writeConcernMajority):
		wc.W = writeConcernMajority
	default:
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			logDiagnostic(logger, slog.LevelWarn, "invalid write concern environment variable", slog.String("value", w))
			break
		}
		wc.W = n
	}
	if journal != "" {
		j, err := strconv.ParseBool(journal)
		if err != nil {
			logDiagnostic(logger, slog.LevelWarn, "invalid boolean environment variable", slog.String("value", journal), slog.Any("error", err))
		} else {
			wc.Journal = &j
		}
	}
	if wc.W == nil && wc.Journal == nil {
		return nil
	}
	return wc
}
