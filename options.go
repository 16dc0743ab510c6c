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
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/pjscruggs/slogmongo/internal/store"
)

// Option mutates Handler construction behaviour when supplied to [NewHandler].
//
// Options follow the functional options pattern and are applied in the order
// they are provided by the caller, after environment overrides.
type Option func(*options)

// options holds the settings collected from Option values. Pointer fields
// distinguish an explicit zero value from an unset option.
type options struct {
	connection        *string
	database          *string
	collection        *string
	appName           *string
	connectTimeout    *time.Duration
	writeConcern      *writeconcern.WriteConcern
	recordType        *RecordType
	timeZone          *TimeZone
	level             *slog.Level
	levelVar          *slog.LevelVar
	loggerName        *string
	stackTraceEnabled *bool
	stackTraceLevel   *slog.Level

	initialGroupedAttrs []groupedAttr
	groups              []string
	groupsSet           bool

	registry       *Registry
	internalLogger *slog.Logger
	errorHandler   func(error)
	storeOpts      []store.ManagerOption
}

// WithConnection sets the MongoDB connection string. When neither this
// option nor SLOGMONGO_CONNECTION is set, mongodb://localhost:27017/ is used
// and a warning is printed.
func WithConnection(uri string) Option {
	uri = strings.TrimSpace(uri)
	return func(o *options) {
		o.connection = &uri
	}
}

// WithDatabase sets the database name. The default is "mongolog".
func WithDatabase(name string) Option {
	return func(o *options) {
		o.database = &name
	}
}

// WithCollection sets the collection name. The default is "mongolog".
func WithCollection(name string) Option {
	return func(o *options) {
		o.collection = &name
	}
}

// WithAppName sets the application name reported to the server.
func WithAppName(name string) Option {
	return func(o *options) {
		o.appName = &name
	}
}

// WithConnectTimeout bounds the initial reachability check. It also sets the
// driver's server selection timeout. The default is five seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = &d
	}
}

// WithWriteConcern sets the write concern for inserts. w is a node count
// (int) or a mode such as "majority"; journal requests journal
// acknowledgement.
func WithWriteConcern(w any, journal bool) Option {
	return func(o *options) {
		o.writeConcern = &writeconcern.WriteConcern{W: w, Journal: &journal}
	}
}

// WithRecordType selects the document schema. NewHandler rejects values
// other than RecordTypeSimple and RecordTypeVerbose with
// ErrInvalidRecordType.
func WithRecordType(rt RecordType) Option {
	return func(o *options) {
		o.recordType = &rt
	}
}

// WithTimeZone selects the clock used by the simple schema's time field.
func WithTimeZone(tz TimeZone) Option {
	return func(o *options) {
		o.timeZone = &tz
	}
}

// WithLevel sets the minimum level. It is overridden by WithLevelVar.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithLevelVar shares levelVar with the handler so the minimum level can be
// changed at runtime. The variable keeps its current value.
func WithLevelVar(levelVar *slog.LevelVar) Option {
	return func(o *options) {
		o.levelVar = levelVar
	}
}

// WithLoggerName sets the name field used when a record carries no
// [LoggerKey] attribute. The default is "root".
func WithLoggerName(name string) Option {
	return func(o *options) {
		o.loggerName = &name
	}
}

// WithStackTraceEnabled captures a stack for error records whose error does
// not carry a trace of its own.
func WithStackTraceEnabled(enabled bool) Option {
	return func(o *options) {
		o.stackTraceEnabled = &enabled
	}
}

// WithStackTraceLevel sets the minimum level for stack capture. The default
// is slog.LevelError.
func WithStackTraceLevel(level slog.Level) Option {
	return func(o *options) {
		o.stackTraceLevel = &level
	}
}

// WithAttrs adds attrs to every document, under the groups configured so far.
func WithAttrs(attrs []slog.Attr) Option {
	return func(o *options) {
		if len(attrs) == 0 {
			return
		}
		currentGroups := append([]string(nil), o.groups...)
		for _, attr := range attrs {
			o.initialGroupedAttrs = append(o.initialGroupedAttrs, groupedAttr{
				groups: currentGroups,
				attr:   attr,
			})
		}
	}
}

// WithGroup nests subsequent attributes under the supplied group name. An
// empty name clears the configured groups.
func WithGroup(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(o *options) {
		o.groupsSet = true
		if trimmed == "" {
			o.groups = nil
			return
		}
		o.groups = append(o.groups, trimmed)
	}
}

// WithRegistry registers the handler with r on construction. Close removes
// it again.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithInternalLogger sets the logger used for the handler's own diagnostics.
// The default discards them.
func WithInternalLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.internalLogger = logger
	}
}

// WithErrorHandler sets the function called with every *EmissionError. The
// default prints the error to stderr.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// withStoreOptions forwards options to the connection manager.
func withStoreOptions(opts ...store.ManagerOption) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}
