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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var errInvalidUTF8 = errors.New("slogmongo: string is not valid UTF-8")

type jsonEncoderOption func(*json.Encoder)

var jsonEncoderOptions = []jsonEncoderOption{
	func(enc *json.Encoder) {
		enc.SetEscapeHTML(false)
	},
}

func encodeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	for _, opt := range jsonEncoderOptions {
		opt(enc)
	}
	return enc.Encode(payload)
}

// checkEncodable reports whether v can be stored as-is. JSON runs before BSON
// because it rejects functions, channels, complex numbers and non-finite
// floats. Reference cycles are checked separately since a JSON marshaller can
// hide fields the BSON encoder still walks. A panicking marshaller counts as a
// failure.
func checkEncodable(v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("slogmongo: marshaller panicked: %v", r)
		}
	}()

	if s, ok := v.(string); ok {
		if !utf8.ValidString(s) {
			return errInvalidUTF8
		}
		return nil
	}
	if err := encodeJSON(io.Discard, v); err != nil {
		return err
	}
	if err := checkAcyclic(v); err != nil {
		return err
	}
	if _, err := bson.Marshal(bson.D{{Key: "v", Value: v}}); err != nil {
		return err
	}
	return nil
}

// maxEncodeDepth bounds how deep checkAcyclic descends.
const maxEncodeDepth = 256

var (
	errTooDeep = errors.New("slogmongo: value nested too deeply")

	bsonMarshalerType      = reflect.TypeFor[bson.Marshaler]()
	bsonValueMarshalerType = reflect.TypeFor[bson.ValueMarshaler]()
)

// cycleError reports a value that refers back to itself.
type cycleError struct {
	typ reflect.Type
}

func (e *cycleError) Error() string {
	return "slogmongo: encountered a cycle via " + e.typ.String()
}

// visit identifies a reference on the current walk path.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// checkAcyclic walks v the way the BSON encoder does and fails on the first
// reference that is already on the path. Shared references that do not loop
// are fine.
func checkAcyclic(v any) error {
	w := cycleWalker{path: make(map[visit]struct{})}
	return w.walk(reflect.ValueOf(v), 0)
}

type cycleWalker struct {
	path map[visit]struct{}
}

func (w *cycleWalker) walk(v reflect.Value, depth int) error {
	if !v.IsValid() {
		return nil
	}
	if depth > maxEncodeDepth {
		return errTooDeep
	}
	t := v.Type()
	if t.Kind() != reflect.Interface && (t.Implements(bsonMarshalerType) || t.Implements(bsonValueMarshalerType)) {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return w.walk(v.Elem(), depth+1)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return w.enter(visit{ptr: v.Pointer(), typ: t}, func() error {
			return w.walk(v.Elem(), depth+1)
		})
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		return w.enter(visit{ptr: v.Pointer(), typ: t}, func() error {
			iter := v.MapRange()
			for iter.Next() {
				if err := w.walk(iter.Value(), depth+1); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Slice:
		if v.IsNil() || t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		return w.enter(visit{ptr: v.Pointer(), typ: t, len: v.Len()}, func() error {
			return w.elems(v, depth)
		})
	case reflect.Array:
		return w.elems(v, depth)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := t.Field(i); !f.IsExported() || f.Tag.Get("bson") == "-" {
				continue
			}
			if err := w.walk(v.Field(i), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *cycleWalker) elems(v reflect.Value, depth int) error {
	for i := 0; i < v.Len(); i++ {
		if err := w.walk(v.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *cycleWalker) enter(key visit, fn func() error) error {
	if _, ok := w.path[key]; ok {
		return &cycleError{typ: key.typ}
	}
	w.path[key] = struct{}{}
	defer delete(w.path, key)
	return fn()
}

// isCycle reports whether cause came from a self-referencing value.
func isCycle(cause error) bool {
	var ce *cycleError
	if errors.As(cause, &ce) {
		return true
	}
	var uve *json.UnsupportedValueError
	return errors.As(cause, &uve) && strings.HasPrefix(uve.Str, "encountered a cycle")
}

// textOf renders v as the lossy-but-safe replacement used when v is not
// encodable. The result is always valid UTF-8.
func textOf(v any, cause error) string {
	var s string
	if isCycle(cause) {
		st, ok := v.(fmt.Stringer)
		if !ok {
			return fmt.Sprintf("<cyclic %T>", v)
		}
		s = safeString(st, v)
	} else {
		s = fmt.Sprint(v)
	}
	if !utf8.ValidString(s) {
		s = strconv.Quote(s)
	}
	return s
}

// safeString calls st.String, falling back to the cyclic placeholder when it
// panics.
func safeString(st fmt.Stringer, v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<cyclic %T>", v)
		}
	}()
	return st.String()
}
