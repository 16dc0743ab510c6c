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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
)

// fakeCollection records InsertOne calls.
type fakeCollection struct {
	mu       sync.Mutex
	name     string
	insertFn func(doc any) error
	docs     []any
	attempts int
}

func (c *fakeCollection) Name() string { return c.name }

func (c *fakeCollection) InsertOne(_ context.Context, doc any) error {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
	if c.insertFn != nil {
		if err := c.insertFn(doc); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.docs = append(c.docs, doc)
	c.mu.Unlock()
	return nil
}

var _ Collection = (*fakeCollection)(nil)

// fakeClient simulates the Client interface for testing ClientManager.
type fakeClient struct {
	mu              sync.Mutex
	pingFn          func(ctx context.Context) error
	commandFn       func(ctx context.Context, db string, cmd bson.D) (bson.Raw, error)
	coll            *fakeCollection
	pings           int
	commands        []bson.D
	commandDBs      []string
	disconnectCalls int
}

func (c *fakeClient) Ping(ctx context.Context) error {
	c.mu.Lock()
	c.pings++
	c.mu.Unlock()
	if c.pingFn != nil {
		return c.pingFn(ctx)
	}
	return nil
}

func (c *fakeClient) RunCommand(ctx context.Context, db string, cmd bson.D) (bson.Raw, error) {
	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	c.commandDBs = append(c.commandDBs, db)
	c.mu.Unlock()
	if c.commandFn != nil {
		return c.commandFn(ctx, db, cmd)
	}
	return mustRaw(bson.D{{Key: "ok", Value: 1}}), nil
}

func (c *fakeClient) Collection(_, name string) Collection {
	if c.coll == nil {
		c.coll = &fakeCollection{name: name}
	}
	return c.coll
}

func (c *fakeClient) Disconnect(context.Context) error {
	c.mu.Lock()
	c.disconnectCalls++
	c.mu.Unlock()
	return nil
}

var _ Client = (*fakeClient)(nil)

func mustRaw(doc bson.D) bson.Raw {
	b, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return bson.Raw(b)
}

func newTestManager(t *testing.T, client *fakeClient, driverVersion string, cfg Config) (*ClientManager, *int) {
	t.Helper()
	factoryCalls := 0
	cm := NewClientManager(cfg, nil,
		WithDriverVersion(driverVersion),
		WithFactory(func(Config) (Client, error) {
			factoryCalls++
			return client, nil
		}),
	)
	return cm, &factoryCalls
}

func TestConfigNormalize(t *testing.T) {
	var cfg Config
	if !cfg.Normalize() {
		t.Fatal("Normalize() should report default URI substitution")
	}
	want := Config{
		URI:            DefaultURI,
		Database:       DefaultDatabase,
		Collection:     DefaultCollection,
		ConnectTimeout: DefaultConnectTimeout,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}

	explicit := Config{URI: "mongodb://db:27017/", ConnectTimeout: time.Second}
	if explicit.Normalize() {
		t.Error("Normalize() reported default substitution for explicit URI")
	}
	if explicit.URI != "mongodb://db:27017/" || explicit.ConnectTimeout != time.Second {
		t.Errorf("Normalize() overwrote explicit fields: %+v", explicit)
	}
}

func TestClientManagerInitialize(t *testing.T) {
	t.Run("ProbeStrategy", func(t *testing.T) {
		client := &fakeClient{}
		cm, factoryCalls := newTestManager(t, client, "2.2.2", Config{})

		if err := cm.Initialize(); err != nil {
			t.Fatalf("Initialize() returned %v", err)
		}
		if err := cm.Initialize(); err != nil {
			t.Fatalf("second Initialize() returned %v", err)
		}
		if *factoryCalls != 1 {
			t.Errorf("factory called %d times, want 1", *factoryCalls)
		}
		if client.pings != 1 {
			t.Errorf("Ping called %d times, want 1", client.pings)
		}
		if len(client.commands) != 0 {
			t.Errorf("probe strategy ran %d commands, want 0", len(client.commands))
		}
		want := Capabilities{DriverVersion: "2.2.2", DriverMajor: 2, ProbeOnConnect: true, InsertOp: InsertOpInsertOne}
		if diff := cmp.Diff(want, cm.Capabilities()); diff != "" {
			t.Errorf("Capabilities() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("BuildInfoStrategy", func(t *testing.T) {
		client := &fakeClient{
			commandFn: func(_ context.Context, db string, cmd bson.D) (bson.Raw, error) {
				return mustRaw(bson.D{{Key: "version", Value: "3.6.23"}, {Key: "ok", Value: 1}}), nil
			},
		}
		cm, _ := newTestManager(t, client, "1.17.0", Config{})

		if err := cm.Initialize(); err != nil {
			t.Fatalf("Initialize() returned %v", err)
		}
		if client.pings != 0 {
			t.Errorf("Ping called %d times, want 0", client.pings)
		}
		if len(client.commands) != 1 || client.commands[0][0].Key != "buildInfo" || client.commandDBs[0] != "admin" {
			t.Fatalf("commands = %v on %v, want a single buildInfo on admin", client.commands, client.commandDBs)
		}
		if got := cm.ServerVersion(); got != "3.6.23" {
			t.Errorf("ServerVersion() = %q, want 3.6.23", got)
		}
		if got := cm.Capabilities().InsertOp; got != InsertOpCommand {
			t.Errorf("InsertOp = %v, want %v", got, InsertOpCommand)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		pingErr := errors.New("connection refused")
		client := &fakeClient{pingFn: func(context.Context) error { return pingErr }}
		cm, _ := newTestManager(t, client, "2.0.0", Config{})

		err := cm.Initialize()
		if !errors.Is(err, ErrConnect) || !errors.Is(err, pingErr) {
			t.Fatalf("Initialize() = %v, want ErrConnect wrapping %v", err, pingErr)
		}
		if client.disconnectCalls != 1 {
			t.Errorf("Disconnect called %d times, want 1", client.disconnectCalls)
		}
		if err := cm.Insert(context.Background(), bson.D{}); !errors.Is(err, ErrConnect) {
			t.Errorf("Insert() after failed init = %v, want ErrConnect", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		client := &fakeClient{pingFn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		cm, _ := newTestManager(t, client, "2.2.2", Config{ConnectTimeout: 20 * time.Millisecond})

		start := time.Now()
		err := cm.Initialize()
		if !errors.Is(err, ErrConnect) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Initialize() = %v, want ErrConnect wrapping deadline exceeded", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("Initialize() took %v, want it bounded by the connect timeout", elapsed)
		}
	})

	t.Run("UnparsableDriverVersion", func(t *testing.T) {
		client := &fakeClient{}
		cm, factoryCalls := newTestManager(t, client, "bogus", Config{})

		err := cm.Initialize()
		if !errors.Is(err, ErrConnect) || !errors.Is(err, ErrDriverVersion) {
			t.Fatalf("Initialize() = %v, want ErrConnect wrapping ErrDriverVersion", err)
		}
		if *factoryCalls != 0 {
			t.Errorf("factory called %d times, want 0", *factoryCalls)
		}
	})

	t.Run("FactoryError", func(t *testing.T) {
		factoryErr := errors.New("bad uri")
		cm := NewClientManager(Config{}, nil,
			WithDriverVersion("2.2.2"),
			WithFactory(func(Config) (Client, error) { return nil, factoryErr }),
		)
		if err := cm.Initialize(); !errors.Is(err, factoryErr) || !errors.Is(err, ErrConnect) {
			t.Fatalf("Initialize() = %v, want ErrConnect wrapping factory error", err)
		}
	})
}

func TestClientManagerInsertOne(t *testing.T) {
	rejectErr := errors.New("not primary")
	client := &fakeClient{coll: &fakeCollection{name: "mongolog", insertFn: func(any) error { return rejectErr }}}
	cm, _ := newTestManager(t, client, "2.2.2", Config{})
	if err := cm.Initialize(); err != nil {
		t.Fatalf("Initialize() returned %v", err)
	}

	const calls = 5
	for i := 0; i < calls; i++ {
		err := cm.Insert(context.Background(), bson.D{{Key: "n", Value: i}})
		if !errors.Is(err, ErrInsert) || !errors.Is(err, rejectErr) {
			t.Fatalf("Insert() = %v, want ErrInsert wrapping %v", err, rejectErr)
		}
	}
	if client.coll.attempts != calls {
		t.Errorf("write attempts = %d, want %d", client.coll.attempts, calls)
	}

	client.coll.insertFn = nil
	doc := bson.D{{Key: "msg", Value: "hello"}}
	if err := cm.Insert(context.Background(), doc); err != nil {
		t.Fatalf("Insert() returned %v", err)
	}
	if diff := cmp.Diff([]any{doc}, client.coll.docs); diff != "" {
		t.Errorf("stored docs mismatch (-want +got):\n%s", diff)
	}
}

func TestClientManagerInsertCommand(t *testing.T) {
	journal := true
	var insertCmds []bson.D
	reply := mustRaw(bson.D{{Key: "n", Value: int32(1)}, {Key: "ok", Value: 1}})
	client := &fakeClient{
		coll: &fakeCollection{name: "events"},
		commandFn: func(_ context.Context, db string, cmd bson.D) (bson.Raw, error) {
			if cmd[0].Key == "insert" {
				insertCmds = append(insertCmds, cmd)
				return reply, nil
			}
			return mustRaw(bson.D{{Key: "ok", Value: 1}}), nil
		},
	}
	cfg := Config{Collection: "events", WriteConcern: &writeconcern.WriteConcern{W: 1, Journal: &journal}}
	cm, _ := newTestManager(t, client, "1.4.0", cfg)
	if err := cm.Initialize(); err != nil {
		t.Fatalf("Initialize() returned %v", err)
	}

	doc := bson.D{{Key: "msg", Value: "hello"}}
	if err := cm.Insert(context.Background(), doc); err != nil {
		t.Fatalf("Insert() returned %v", err)
	}
	want := []bson.D{{
		{Key: "insert", Value: "events"},
		{Key: "documents", Value: bson.A{doc}},
		{Key: "writeConcern", Value: bson.D{{Key: "w", Value: 1}, {Key: "j", Value: true}}},
	}}
	if diff := cmp.Diff(want, insertCmds); diff != "" {
		t.Errorf("insert command mismatch (-want +got):\n%s", diff)
	}
	if client.coll.attempts != 0 {
		t.Errorf("InsertOne called %d times on a command-insert driver", client.coll.attempts)
	}

	reply = mustRaw(bson.D{
		{Key: "n", Value: int32(0)},
		{Key: "writeErrors", Value: bson.A{bson.D{{Key: "index", Value: int32(0)}, {Key: "code", Value: int32(11000)}, {Key: "errmsg", Value: "duplicate key"}}}},
		{Key: "ok", Value: 1},
	})
	err := cm.Insert(context.Background(), doc)
	if !errors.Is(err, ErrInsert) {
		t.Fatalf("Insert() = %v, want ErrInsert", err)
	}
	if got := err.Error(); !strings.Contains(got, "duplicate key") {
		t.Errorf("Insert() error %q does not mention the write error", got)
	}
}

func TestClientManagerClose(t *testing.T) {
	client := &fakeClient{}
	cm, _ := newTestManager(t, client, "2.2.2", Config{})
	if err := cm.Close(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Close() before Initialize = %v, want ErrNotInitialized", err)
	}

	client = &fakeClient{}
	cm, _ = newTestManager(t, client, "2.2.2", Config{})
	if err := cm.Initialize(); err != nil {
		t.Fatalf("Initialize() returned %v", err)
	}
	if err := cm.Close(); err != nil {
		t.Fatalf("Close() returned %v", err)
	}
	if err := cm.Close(); err != nil {
		t.Fatalf("second Close() returned %v", err)
	}
	if client.disconnectCalls != 1 {
		t.Errorf("Disconnect called %d times, want 1", client.disconnectCalls)
	}
	if err := cm.Insert(context.Background(), bson.D{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Insert() after Close = %v, want ErrNotInitialized", err)
	}
}

func TestSetDefaultOptions(t *testing.T) {
	client := &fakeClient{coll: &fakeCollection{name: "mongolog"}}
	restore := SetDefaultOptions(
		WithDriverVersion("1.17.0"),
		WithFactory(func(Config) (Client, error) { return client, nil }),
	)

	cm := NewClientManager(Config{}, nil, WithDriverVersion("2.2.2"))
	if cm.driverVersion != "2.2.2" {
		t.Errorf("driverVersion = %q, want explicit option to win", cm.driverVersion)
	}
	got, err := cm.newClientFn(Config{})
	if err != nil || got != client {
		t.Errorf("newClientFn() = %v, %v, want the default factory's client", got, err)
	}

	restore()
	if cm := NewClientManager(Config{}, nil); cm.driverVersion == "1.17.0" {
		t.Errorf("driverVersion = %q after restore, want the linked driver", cm.driverVersion)
	}
}
