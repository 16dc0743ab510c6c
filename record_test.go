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
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func sampleEvent() normalizedEvent {
	return normalizedEvent{
		eventMeta: eventMeta{
			Name:        "root",
			Level:       slog.LevelWarn,
			Time:        time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
			ThreadID:    7,
			ThreadName:  "goroutine 7",
			PID:         123,
			ProcessName: "app",
			Source: sourceLocation{
				Path:     "/src/app/main.go",
				Module:   "example.com/app",
				Func:     "main",
				Filename: "main.go",
				Line:     12,
			},
		},
		Message: "hello",
	}
}

func withFixedZone(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := localLocation
	localLocation = loc
	t.Cleanup(func() { localLocation = prev })
}

func TestShapeVerbose(t *testing.T) {
	withFixedZone(t, time.FixedZone("EST", -5*60*60))
	got := shapeVerbose(sampleEvent())

	want := bson.D{
		{Key: "name", Value: "root"},
		{Key: "thread", Value: bson.D{{Key: "num", Value: int64(7)}, {Key: "name", Value: "goroutine 7"}}},
		{Key: "time", Value: bson.D{
			{Key: "utc", Value: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)},
			{Key: "loc", Value: time.Date(2025, 6, 1, 5, 30, 0, 0, time.UTC)},
		}},
		{Key: "process", Value: bson.D{{Key: "num", Value: 123}, {Key: "name", Value: "app"}}},
		{Key: "level", Value: bson.D{{Key: "name", Value: "WARNING"}, {Key: "num", Value: 4}}},
		{Key: "info", Value: bson.D{
			{Key: "msg", Value: "hello"},
			{Key: "path", Value: "/src/app/main.go"},
			{Key: "module", Value: "example.com/app"},
			{Key: "line", Value: 12},
			{Key: "func", Value: "main"},
			{Key: "filename", Value: "main.go"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("shapeVerbose() mismatch (-want +got):\n%s", diff)
	}
}

func TestShapeSimple(t *testing.T) {
	withFixedZone(t, time.FixedZone("EST", -5*60*60))
	ev := sampleEvent()
	ev.Message = "<Obj>"
	ev.MessageConverted = true
	ev.Attrs = bson.D{{Key: "k", Value: "v"}}
	ev.Trace = &traceContext{TraceID: "t", SpanID: "s", Sampled: true}

	tests := []struct {
		tz       TimeZone
		wantTime time.Time
	}{
		{tz: TimeZoneUTC, wantTime: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)},
		{tz: TimeZoneLocal, wantTime: time.Date(2025, 6, 1, 5, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.tz), func(t *testing.T) {
			want := bson.D{
				{Key: "name", Value: "root"},
				{Key: "thread", Value: int64(7)},
				{Key: "time", Value: tt.wantTime},
				{Key: "process", Value: 123},
				{Key: "level", Value: "WARNING"},
				{Key: "msg", Value: "<Obj>"},
				{Key: "path", Value: "/src/app/main.go"},
				{Key: "module", Value: "example.com/app"},
				{Key: "line", Value: 12},
				{Key: "func", Value: "main"},
				{Key: "filename", Value: "main.go"},
				{Key: "msg_converted", Value: true},
				{Key: "attrs", Value: bson.D{{Key: "k", Value: "v"}}},
				{Key: "trace_id", Value: "t"},
				{Key: "span_id", Value: "s"},
			}
			if diff := cmp.Diff(want, shapeSimple(ev, tt.tz)); diff != "" {
				t.Errorf("shapeSimple() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Both schemas carry the same information apart from the single timestamp.
func TestShapeSimpleAndVerboseCarrySameInformation(t *testing.T) {
	ev := sampleEvent()
	ev.Exception = &normalizedException{Info: "x", Trace: []string{"a"}}
	verbose := shapeVerbose(ev)
	simple := shapeSimple(ev, TimeZoneUTC)

	pairs := [][2][]string{
		{{"name"}, {"name"}},
		{{"thread", "num"}, {"thread"}},
		{{"time", "utc"}, {"time"}},
		{{"process", "num"}, {"process"}},
		{{"level", "name"}, {"level"}},
		{{"info", "msg"}, {"msg"}},
		{{"info", "path"}, {"path"}},
		{{"info", "module"}, {"module"}},
		{{"info", "line"}, {"line"}},
		{{"info", "func"}, {"func"}},
		{{"info", "filename"}, {"filename"}},
		{{"exception"}, {"exception"}},
	}
	for _, p := range pairs {
		v, ok := lookup(verbose, p[0]...)
		if !ok {
			t.Errorf("verbose document missing %v", p[0])
			continue
		}
		s, ok := lookup(simple, p[1]...)
		if !ok {
			t.Errorf("simple document missing %v", p[1])
			continue
		}
		if diff := cmp.Diff(v, s); diff != "" {
			t.Errorf("%v vs %v mismatch (-verbose +simple):\n%s", p[0], p[1], diff)
		}
	}
}

func TestShapeDocumentOmitsEmptyExceptionTrace(t *testing.T) {
	ev := sampleEvent()
	ev.Exception = &normalizedException{Info: "*errors.errorString: boom"}
	got, _ := lookup(shapeDocument(ev, RecordTypeVerbose, TimeZoneLocal), "exception")
	want := bson.D{{Key: "info", Value: "*errors.errorString: boom"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("exception mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRecordType(t *testing.T) {
	tests := []struct {
		in      string
		want    RecordType
		wantErr bool
	}{
		{in: "simple", want: RecordTypeSimple},
		{in: " VERBOSE ", want: RecordTypeVerbose},
		{in: "compact", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRecordType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRecordType) {
				t.Errorf("ParseRecordType(%q) error = %v, want ErrInvalidRecordType", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseRecordType(%q) = %q, %v, want %q, nil", tt.in, got, err, tt.want)
		}
	}
}

func TestParseTimeZone(t *testing.T) {
	if got, err := ParseTimeZone("UTC"); err != nil || got != TimeZoneUTC {
		t.Errorf("ParseTimeZone(UTC) = %q, %v, want utc, nil", got, err)
	}
	if got, err := ParseTimeZone("local"); err != nil || got != TimeZoneLocal {
		t.Errorf("ParseTimeZone(local) = %q, %v, want local, nil", got, err)
	}
	if _, err := ParseTimeZone("Europe/Paris"); !errors.Is(err, ErrInvalidTimeZone) {
		t.Errorf("ParseTimeZone(Europe/Paris) error = %v, want ErrInvalidTimeZone", err)
	}
}
