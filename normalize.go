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
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// normalizedException is the reduced form of an exception context.
type normalizedException struct {
	Info  string
	Trace []string
}

// normalizedEvent is a logEvent whose message, exception and attributes are
// guaranteed encodable.
type normalizedEvent struct {
	eventMeta

	Message          any
	MessageConverted bool
	Exception        *normalizedException
	Attrs            bson.D
	AttrsConverted   bool
}

// normalizeEvent applies the validate-then-convert pipeline to ev. It performs
// no I/O and never panics on account of the payload.
func normalizeEvent(ev logEvent) normalizedEvent {
	out := normalizedEvent{eventMeta: ev.eventMeta}
	out.Message, out.MessageConverted = normalizeValue(ev.Message)
	if ev.Exception != nil {
		out.Exception = normalizeException(*ev.Exception)
	}
	out.Attrs, out.AttrsConverted = normalizeAttrs(ev.Attrs)
	return out
}

// normalizeValue returns v unchanged when it is encodable. Otherwise it
// returns the textual form of v and true.
func normalizeValue(v any) (any, bool) {
	if err := checkEncodable(v); err != nil {
		return textOf(v, err), true
	}
	return v, false
}

// normalizeException reduces an exception context to a summary and an
// ordered list of trace lines.
func normalizeException(ex exceptionContext) *normalizedException {
	out := &normalizedException{Info: exceptionInfo(ex.Err)}
	if ex.TraceText != "" {
		out.Trace = normalizeTraceLines(ex.TraceText)
	}
	return out
}

// exceptionInfo renders the identity of err as "<type>: <message>".
func exceptionInfo(err error) string {
	if err == nil {
		return "<nil error>"
	}
	info, _ := normalizeValue(fmt.Sprintf("%T: %s", err, safeErrorText(err)))
	return info.(string)
}

// safeErrorText calls err.Error, containing panics from faulty
// implementations.
func safeErrorText(err error) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<Error() panicked: %v>", r)
		}
	}()
	return err.Error()
}

// normalizeTraceLines splits text into lines and validates each line on its
// own, so one undecodable line does not cost the rest of the trace.
func normalizeTraceLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		v, _ := normalizeValue(strings.TrimSuffix(line, "\r"))
		lines[i] = v.(string)
	}
	return lines
}

// normalizeAttrs builds the nested attribute document, converting values that
// are not encodable.
func normalizeAttrs(attrs []eventAttr) (bson.D, bool) {
	if len(attrs) == 0 {
		return nil, false
	}
	var (
		doc       bson.D
		converted bool
	)
	for _, a := range attrs {
		v, c := normalizeValue(a.Value)
		converted = converted || c
		doc = setAttrPath(doc, a.Groups, a.Key, v)
	}
	return doc, converted
}

// setAttrPath stores key=val under the nested groups of doc, creating group
// documents as needed. A later value for the same key replaces the earlier
// one in place.
func setAttrPath(doc bson.D, groups []string, key string, val any) bson.D {
	if len(groups) == 0 {
		for i := range doc {
			if doc[i].Key == key {
				doc[i].Value = val
				return doc
			}
		}
		return append(doc, bson.E{Key: key, Value: val})
	}

	group := groups[0]
	for i := range doc {
		if doc[i].Key != group {
			continue
		}
		child, ok := doc[i].Value.(bson.D)
		if !ok {
			child = nil
		}
		doc[i].Value = setAttrPath(child, groups[1:], key, val)
		return doc
	}
	return append(doc, bson.E{Key: group, Value: setAttrPath(nil, groups[1:], key, val)})
}
