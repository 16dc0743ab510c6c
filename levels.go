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
	"strconv"
	"strings"
)

// Level extends slog.Level with the additional severities commonly used by
// operational log consumers. Values are stored verbatim in the level.num
// field of every document, so the standard slog constants keep their usual
// numbers.
type Level slog.Level

const (
	// LevelDebug is the standard slog debug level (-4).
	LevelDebug Level = Level(slog.LevelDebug)

	// LevelInfo is the standard slog info level (0) and the handler default.
	LevelInfo Level = Level(slog.LevelInfo)

	// LevelNotice sits between Info and Warning.
	LevelNotice Level = 2

	// LevelWarning is the standard slog warn level (4).
	LevelWarning Level = Level(slog.LevelWarn)

	// LevelError is the standard slog error level (8).
	LevelError Level = Level(slog.LevelError)

	// LevelCritical sits above Error.
	LevelCritical Level = 12

	// LevelAlert sits above Critical.
	LevelAlert Level = 16

	// LevelEmergency is the highest named severity.
	LevelEmergency Level = 20
)

// String returns the level name stored in level.name. Intermediate values are
// rendered relative to the nearest lower named level, e.g. "ERROR+2".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	case LevelAlert:
		return "ALERT"
	case LevelEmergency:
		return "EMERGENCY"
	}

	var baseLevel Level
	var baseName string

	switch {
	case l < LevelDebug:
		return fmt.Sprintf("DEBUG%+d", int(l-LevelDebug))
	case l < LevelInfo:
		baseLevel, baseName = LevelDebug, "DEBUG"
	case l < LevelNotice:
		baseLevel, baseName = LevelInfo, "INFO"
	case l < LevelWarning:
		baseLevel, baseName = LevelNotice, "NOTICE"
	case l < LevelError:
		baseLevel, baseName = LevelWarning, "WARNING"
	case l < LevelCritical:
		baseLevel, baseName = LevelError, "ERROR"
	case l < LevelAlert:
		baseLevel, baseName = LevelCritical, "CRITICAL"
	case l < LevelEmergency:
		baseLevel, baseName = LevelAlert, "ALERT"
	default:
		baseLevel, baseName = LevelEmergency, "EMERGENCY"
	}

	return fmt.Sprintf("%s+%d", baseName, int(l-baseLevel))
}

// Level returns the slog.Level representation of l.
func (l Level) Level() slog.Level {
	return slog.Level(l)
}

// parseLevel resolves level names and integers as accepted by
// SLOGMONGO_LEVEL and SLOGMONGO_STACK_TRACE_LEVEL.
func parseLevel(value string) (slog.Level, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "notice":
		return LevelNotice.Level(), true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "critical":
		return LevelCritical.Level(), true
	case "alert":
		return LevelAlert.Level(), true
	case "emergency":
		return LevelEmergency.Level(), true
	}
	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n), true
	}
	return 0, false
}
