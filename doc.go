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

// Package slogmongo provides an [slog.Handler] that stores every log record
// as a document in a MongoDB collection.
//
// ⚠️ This module is untested, and not recommended for any production use. ⚠️
//
// The primary entry point is [NewHandler]. It connects once, verifies that
// the server is reachable within the connect timeout, and returns a
// [Handler] that writes each record synchronously:
//   - Two document schemas, selected by [RecordType] and switchable at
//     runtime with [Handler.SetRecordType]. The verbose schema nests thread,
//     time, process, level, and source information; the simple schema keeps
//     one flat field per value.
//   - Message payloads of any type via [Message]. Values MongoDB cannot store
//     are replaced by their text and flagged with msg_converted.
//   - Exceptions: the first error attribute becomes an exception
//     sub-document holding a summary and the trace split into lines.
//     [LogException] attaches the caller's stack automatically.
//   - Trace correlation with OpenTelemetry span contexts.
//
// The write strategy is negotiated from the linked driver version; see
// [Handler.Capabilities]. Most settings can also be supplied through
// SLOGMONGO_* environment variables so the same binary can run locally and in
// production without code changes.
//
// A [Registry] tracks active handlers. [FindActiveHandler] returns the first
// registered [Handler], and [Registry.Handler] fans records out to all of
// them.
//
// # Subpackages
//
//   - [github.com/pjscruggs/slogmongo/slogmongologrus] adapts the handler to
//     logrus as a hook.
//   - [github.com/pjscruggs/slogmongo/slogmongozap] adapts the handler to zap
//     as a zapcore.Core.
//
// # Quick Start
//
//	handler, err := slogmongo.NewHandler(
//	    slogmongo.WithConnection("mongodb://localhost:27017/"),
//	)
//	if err != nil {
//	    log.Fatalf("create slogmongo handler: %v", err)
//	}
//	defer handler.Close()
//
//	logger := slog.New(handler)
//	logger.Info("application started")
package slogmongo
