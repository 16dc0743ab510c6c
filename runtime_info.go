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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// RuntimeInfo captures the process identity recorded on every document.
type RuntimeInfo struct {
	PID         int
	ProcessName string
}

var (
	runtimeInfo     RuntimeInfo
	runtimeInfoOnce sync.Once
)

// DetectRuntimeInfo reports the current process id and name. Results are
// cached for reuse.
func DetectRuntimeInfo() RuntimeInfo {
	runtimeInfoOnce.Do(func() {
		runtimeInfo = detectRuntimeInfo()
	})
	return runtimeInfo
}

// detectRuntimeInfo inspects the process arguments to derive a process name.
func detectRuntimeInfo() RuntimeInfo {
	info := RuntimeInfo{PID: os.Getpid()}
	if len(os.Args) > 0 && os.Args[0] != "" {
		info.ProcessName = strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe")
	}
	if info.ProcessName == "" {
		info.ProcessName = "unknown"
	}
	return info
}

// goroutineID returns the id of the calling goroutine as printed in stack
// dumps, or 0 when it cannot be determined. Go has no thread identity exposed
// to user code, so the goroutine takes its place in thread.num.
func goroutineID() int64 {
	header := currentGoroutineHeader()
	fields := strings.Fields(header)
	if len(fields) < 2 || fields[0] != "goroutine" {
		return 0
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// goroutineName renders the thread.name value for id.
func goroutineName(id int64) string {
	if id == 0 {
		return "goroutine"
	}
	return "goroutine " + strconv.FormatInt(id, 10)
}
