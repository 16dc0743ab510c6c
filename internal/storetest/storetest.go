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


// Package storetest provides an in-memory stand-in for the MongoDB client so
// packages layered on the handler can exercise the full document pipeline.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/pjscruggs/slogmongo/internal/store"
)

// Collection records every inserted document.
type Collection struct {
	mu   sync.Mutex
	docs []bson.D
}

// Name implements store.Collection.
func (c *Collection) Name() string { return "mongolog" }

// InsertOne implements store.Collection.
func (c *Collection) InsertOne(_ context.Context, doc any) error {
	d, ok := doc.(bson.D)
	if !ok {
		return errors.New("storetest: document is not a bson.D")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, d)
	return nil
}

// Docs returns a copy of the stored documents.
func (c *Collection) Docs() []bson.D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bson.D(nil), c.docs...)
}

// Last returns the most recent document, failing t when there is none.
func (c *Collection) Last(t testing.TB) bson.D {
	t.Helper()
	docs := c.Docs()
	if len(docs) == 0 {
		t.Fatalf("no documents written")
	}
	return docs[len(docs)-1]
}

type client struct {
	coll *Collection
}

func (c *client) Ping(context.Context) error { return nil }

func (c *client) RunCommand(context.Context, string, bson.D) (bson.Raw, error) {
	return nil, errors.New("storetest: commands are not supported")
}

func (c *client) Collection(string, string) store.Collection { return c.coll }

func (c *client) Disconnect(context.Context) error { return nil }

// Install makes every handler created during the test write to the returned
// Collection. The previous defaults are restored on cleanup.
func Install(t testing.TB) *Collection {
	t.Helper()
	coll := &Collection{}
	restore := store.SetDefaultOptions(
		store.WithDriverVersion("2.2.2"),
		store.WithFactory(func(store.Config) (store.Client, error) { return &client{coll: coll}, nil }),
	)
	t.Cleanup(restore)
	return coll
}

// Lookup returns the value at path inside doc.
func Lookup(doc bson.D, path ...string) (any, bool) {
	var cur any = doc
	for _, key := range path {
		d, ok := cur.(bson.D)
		if !ok {
			return nil, false
		}
		found := false
		for _, e := range d {
			if e.Key == key {
				cur, found = e.Value, true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return cur, true
}
