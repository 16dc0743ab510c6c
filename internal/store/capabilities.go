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

package store

import (
	"fmt"
	"strconv"
	"strings"
)

// InsertOp names the single-document write operation a driver generation
// expects.
type InsertOp int

const (
	// InsertOpInsertOne uses the collection's InsertOne helper.
	InsertOpInsertOne InsertOp = iota
	// InsertOpCommand issues the raw "insert" database command, which is how
	// drivers older than the 2.x line expose single-document writes.
	InsertOpCommand
)

// String returns the operation name as reported in diagnostics and errors.
func (op InsertOp) String() string {
	switch op {
	case InsertOpInsertOne:
		return "insertOne"
	case InsertOpCommand:
		return "insert"
	default:
		return fmt.Sprintf("unknown(%d)", int(op))
	}
}

// Capabilities describes the behaviour selected for the linked driver. It is
// resolved once by Initialize and never re-inspected per write.
type Capabilities struct {
	DriverVersion  string
	DriverMajor    int
	ProbeOnConnect bool
	InsertOp       InsertOp
}

// NegotiateCapabilities derives the capability descriptor from a driver
// version string such as "2.2.2" or "v1.17.0-rc1".
func NegotiateCapabilities(driverVersion string) (Capabilities, error) {
	major, err := parseMajor(driverVersion)
	if err != nil {
		return Capabilities{}, err
	}

	caps := Capabilities{
		DriverVersion: driverVersion,
		DriverMajor:   major,
	}
	if major >= 2 {
		caps.ProbeOnConnect = true
		caps.InsertOp = InsertOpInsertOne
	} else {
		caps.ProbeOnConnect = false
		caps.InsertOp = InsertOpCommand
	}
	return caps, nil
}

// parseMajor extracts the leading numeric component of a version string.
func parseMajor(version string) (int, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(version), "v")
	head, _, _ := strings.Cut(trimmed, ".")
	major, err := strconv.Atoi(head)
	if err != nil || major < 0 {
		return 0, fmt.Errorf("%w: %q", ErrDriverVersion, version)
	}
	return major, nil
}
