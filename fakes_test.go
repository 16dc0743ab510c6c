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
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/pjscruggs/slogmongo/internal/store"
)

type fakeCollection struct {
	mu       sync.Mutex
	attempts int
	docs     []bson.D
	insertFn func(doc any) error
}

func (c *fakeCollection) Name() string { return "mongolog" }

func (c *fakeCollection) InsertOne(_ context.Context, doc any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.insertFn != nil {
		if err := c.insertFn(doc); err != nil {
			return err
		}
	}
	if d, ok := doc.(bson.D); ok {
		c.docs = append(c.docs, d)
	}
	return nil
}

func (c *fakeCollection) lastDoc(t *testing.T) bson.D {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.docs) == 0 {
		t.Fatalf("no documents written")
	}
	return c.docs[len(c.docs)-1]
}

type fakeClient struct {
	coll        *fakeCollection
	pingErr     error
	disconnects int
}

func (c *fakeClient) Ping(context.Context) error { return c.pingErr }

func (c *fakeClient) RunCommand(context.Context, string, bson.D) (bson.Raw, error) {
	return nil, errors.New("not supported")
}

func (c *fakeClient) Collection(string, string) store.Collection { return c.coll }

func (c *fakeClient) Disconnect(context.Context) error {
	c.disconnects++
	return nil
}

// envKeys lists every variable loadConfigFromEnv reads.
var envKeys = []string{
	envConnection, envDatabase, envCollection, envAppName, envRecordType,
	envTimeZone, envLogLevel, envConnectTimeout, envWriteConcern, envJournal,
	envLogStackEnabled, envLogStackLevel, envLoggerName,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

type recordingDiagLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingDiagLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func captureDiagnostics(t *testing.T) *recordingDiagLogger {
	t.Helper()
	rec := &recordingDiagLogger{}
	prev := diagnosticLogger
	diagnosticLogger = rec
	t.Cleanup(func() { diagnosticLogger = prev })
	return rec
}

// newTestHandler builds a Handler backed by a fake client that accepts every
// write.
func newTestHandler(t *testing.T, opts ...Option) (*Handler, *fakeCollection) {
	t.Helper()
	clearEnv(t)
	captureDiagnostics(t)

	coll := &fakeCollection{}
	client := &fakeClient{coll: coll}
	base := []Option{
		WithConnection("mongodb://localhost:27017/"),
		withStoreOptions(
			store.WithDriverVersion("2.2.2"),
			store.WithFactory(func(store.Config) (store.Client, error) { return client, nil }),
		),
	}
	h, err := NewHandler(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewHandler() returned %v, want nil", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h, coll
}

// lookup returns the value at path inside doc.
func lookup(doc bson.D, path ...string) (any, bool) {
	var cur any = doc
	for _, key := range path {
		d, ok := cur.(bson.D)
		if !ok {
			return nil, false
		}
		found := false
		for _, e := range d {
			if e.Key == key {
				cur = e.Value
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return cur, true
}

func keys(doc bson.D) []string {
	out := make([]string, 0, len(doc))
	for _, e := range doc {
		out = append(out, e.Key)
	}
	return out
}
