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
	"fmt"
	"strings"

	"github.com/pjscruggs/slogmongo/internal/store"
)

var (
	// ErrInvalidRecordType indicates a record type other than "simple" or
	// "verbose". The handler keeps its previous record type.
	ErrInvalidRecordType = errors.New("slogmongo: record type must be one of [simple verbose]")

	// ErrInvalidTimeZone indicates a time zone preference other than "utc"
	// or "local".
	ErrInvalidTimeZone = errors.New("slogmongo: time zone must be one of [utc local]")

	// ErrInvalidEnvironment indicates an environment override that cannot be
	// ignored safely.
	ErrInvalidEnvironment = errors.New("slogmongo: invalid environment configuration")

	// ErrClosed is returned by Handle after the handler has been closed.
	ErrClosed = store.ErrNotInitialized
)

// ConnectionError reports that the MongoDB server could not be reached while
// constructing a Handler. It is always fatal to construction.
type ConnectionError struct {
	// URI is the connection string as configured, credentials included.
	URI string
	Err error
}

// Error implements error. The password portion of URI is redacted.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("slogmongo: unable to connect to mongo with (%s): %v", redactURI(e.URI), e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error { return e.Err }

// EmissionError reports that a single document could not be written. The log
// event is dropped; it is never retried or buffered.
type EmissionError struct {
	// Op is the insert operation attempted, "insertOne" or "insert".
	Op  string
	Err error
}

// Error implements error.
func (e *EmissionError) Error() string {
	return fmt.Sprintf("slogmongo: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EmissionError) Unwrap() error { return e.Err }

// redactURI masks the password of a connection string. Seed lists such as
// "host1,host2" are not valid URL hosts, so the userinfo is located by hand.
func redactURI(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	authority := rest
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		authority = rest[:slash]
	}
	at := strings.LastIndexByte(authority, '@')
	if at < 0 {
		return raw
	}
	user, _, hasPassword := strings.Cut(authority[:at], ":")
	if !hasPassword {
		return raw
	}
	return scheme + "://" + user + ":xxxxx" + rest[at:]
}
