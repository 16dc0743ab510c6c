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
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RecordType selects the document schema written for each event.
type RecordType string

const (
	// RecordTypeSimple writes flat documents with one value per field.
	RecordTypeSimple RecordType = "simple"
	// RecordTypeVerbose writes nested documents carrying both timestamps and
	// both the name and number of the level, thread, and process.
	RecordTypeVerbose RecordType = "verbose"
)

// DefaultRecordType is used when no record type is configured.
const DefaultRecordType = RecordTypeVerbose

// ParseRecordType converts s, case-insensitively, into a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecordType, s)
	}
	return rt, nil
}

func (rt RecordType) valid() bool {
	return rt == RecordTypeSimple || rt == RecordTypeVerbose
}

// String returns the record type name.
func (rt RecordType) String() string { return string(rt) }

// TimeZone selects the clock used for the simple schema's time field.
type TimeZone string

const (
	// TimeZoneUTC stores the event time in UTC.
	TimeZoneUTC TimeZone = "utc"
	// TimeZoneLocal stores the local wall-clock reading of the event time.
	TimeZoneLocal TimeZone = "local"
)

// DefaultTimeZone is used when no time zone is configured.
const DefaultTimeZone = TimeZoneLocal

// ParseTimeZone converts s, case-insensitively, into a TimeZone.
func ParseTimeZone(s string) (TimeZone, error) {
	tz := TimeZone(strings.ToLower(strings.TrimSpace(s)))
	if !tz.valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeZone, s)
	}
	return tz, nil
}

func (tz TimeZone) valid() bool {
	return tz == TimeZoneUTC || tz == TimeZoneLocal
}

// String returns the time zone name.
func (tz TimeZone) String() string { return string(tz) }

// shapeDocument lays out ev using the schema selected by rt.
func shapeDocument(ev normalizedEvent, rt RecordType, tz TimeZone) bson.D {
	if rt == RecordTypeSimple {
		return shapeSimple(ev, tz)
	}
	return shapeVerbose(ev)
}

// shapeVerbose builds the nested document.
func shapeVerbose(ev normalizedEvent) bson.D {
	doc := bson.D{
		{Key: "name", Value: ev.Name},
		{Key: "thread", Value: bson.D{
			{Key: "num", Value: ev.ThreadID},
			{Key: "name", Value: ev.ThreadName},
		}},
		{Key: "time", Value: bson.D{
			{Key: "utc", Value: ev.Time.UTC()},
			{Key: "loc", Value: localWallClock(ev.Time)},
		}},
		{Key: "process", Value: bson.D{
			{Key: "num", Value: ev.PID},
			{Key: "name", Value: ev.ProcessName},
		}},
		{Key: "level", Value: bson.D{
			{Key: "name", Value: levelName(ev.Level)},
			{Key: "num", Value: int(ev.Level)},
		}},
		{Key: "info", Value: bson.D{
			{Key: "msg", Value: ev.Message},
			{Key: "path", Value: ev.Source.Path},
			{Key: "module", Value: ev.Source.Module},
			{Key: "line", Value: ev.Source.Line},
			{Key: "func", Value: ev.Source.Func},
			{Key: "filename", Value: ev.Source.Filename},
		}},
	}
	doc = appendOptional(doc, ev)
	if ev.Trace != nil {
		doc = append(doc, bson.E{Key: "trace", Value: bson.D{
			{Key: "id", Value: ev.Trace.TraceID},
			{Key: "span", Value: ev.Trace.SpanID},
			{Key: "sampled", Value: ev.Trace.Sampled},
		}})
	}
	return appendException(doc, ev.Exception)
}

// shapeSimple builds the flat document.
func shapeSimple(ev normalizedEvent, tz TimeZone) bson.D {
	ts := ev.Time.UTC()
	if tz == TimeZoneLocal {
		ts = localWallClock(ev.Time)
	}
	doc := bson.D{
		{Key: "name", Value: ev.Name},
		{Key: "thread", Value: ev.ThreadID},
		{Key: "time", Value: ts},
		{Key: "process", Value: ev.PID},
		{Key: "level", Value: levelName(ev.Level)},
		{Key: "msg", Value: ev.Message},
		{Key: "path", Value: ev.Source.Path},
		{Key: "module", Value: ev.Source.Module},
		{Key: "line", Value: ev.Source.Line},
		{Key: "func", Value: ev.Source.Func},
		{Key: "filename", Value: ev.Source.Filename},
	}
	doc = appendOptional(doc, ev)
	if ev.Trace != nil {
		doc = append(doc,
			bson.E{Key: "trace_id", Value: ev.Trace.TraceID},
			bson.E{Key: "span_id", Value: ev.Trace.SpanID},
		)
	}
	return appendException(doc, ev.Exception)
}

// appendOptional adds the conversion markers and attributes shared by both
// schemas.
func appendOptional(doc bson.D, ev normalizedEvent) bson.D {
	if ev.MessageConverted {
		doc = append(doc, bson.E{Key: "msg_converted", Value: true})
	}
	if len(ev.Attrs) > 0 {
		doc = append(doc, bson.E{Key: "attrs", Value: ev.Attrs})
		if ev.AttrsConverted {
			doc = append(doc, bson.E{Key: "attrs_converted", Value: true})
		}
	}
	return doc
}

func appendException(doc bson.D, ex *normalizedException) bson.D {
	if ex == nil {
		return doc
	}
	exDoc := bson.D{{Key: "info", Value: ex.Info}}
	if len(ex.Trace) > 0 {
		exDoc = append(exDoc, bson.E{Key: "trace", Value: ex.Trace})
	}
	return append(doc, bson.E{Key: "exception", Value: exDoc})
}

// localWallClock returns the local wall-clock reading of t labelled as UTC.
// BSON datetimes carry no zone, so this is how a local reading is stored.
func localWallClock(t time.Time) time.Time {
	lt := t.In(localLocation)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), time.UTC)
}

// localLocation is the zone used for local timestamps.
var localLocation = time.Local

func levelName(l slog.Level) string {
	return Level(l).String()
}
