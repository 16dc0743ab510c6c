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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/version"
)

const disconnectTimeout = 5 * time.Second

// Client is the narrow view of a MongoDB client used by ClientManager.
type Client interface {
	Ping(ctx context.Context) error
	RunCommand(ctx context.Context, database string, cmd bson.D) (bson.Raw, error)
	Collection(database, name string) Collection
	Disconnect(ctx context.Context) error
}

// Collection is the narrow view of a MongoDB collection used by ClientManager.
type Collection interface {
	Name() string
	InsertOne(ctx context.Context, doc any) error
}

// Factory builds an unconnected Client for cfg. The production factory wraps
// mongo.Connect, which does not perform network I/O.
type Factory func(cfg Config) (Client, error)

// mongoClient adapts a concrete *mongo.Client to the Client interface.
type mongoClient struct {
	client *mongo.Client
}

func (c *mongoClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *mongoClient) RunCommand(ctx context.Context, database string, cmd bson.D) (bson.Raw, error) {
	var raw bson.Raw
	if err := c.client.Database(database).RunCommand(ctx, cmd).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *mongoClient) Collection(database, name string) Collection {
	return &mongoCollection{coll: c.client.Database(database).Collection(name)}
}

func (c *mongoClient) Disconnect(ctx context.Context) error { return c.client.Disconnect(ctx) }

var _ Client = (*mongoClient)(nil)

// mongoCollection adapts a concrete *mongo.Collection to the Collection interface.
type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.coll.Name() }

func (c *mongoCollection) InsertOne(ctx context.Context, doc any) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

var _ Collection = (*mongoCollection)(nil)

// connectMongo is the production Factory.
func connectMongo(cfg Config) (Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.WriteConcern != nil {
		opts.SetWriteConcern(cfg.WriteConcern)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}
	return &mongoClient{client: client}, nil
}

// ManagerOption customizes a ClientManager. It exists so tests can replace the
// driver and pin the reported driver version.
type ManagerOption func(*ClientManager)

// WithFactory replaces the function used to build the underlying client.
func WithFactory(f Factory) ManagerOption {
	return func(cm *ClientManager) {
		if f != nil {
			cm.newClientFn = f
		}
	}
}

// WithDriverVersion overrides the driver version used for capability
// negotiation.
func WithDriverVersion(v string) ManagerOption {
	return func(cm *ClientManager) {
		cm.driverVersion = v
	}
}

var (
	defaultsMu     sync.Mutex
	defaultOptions []ManagerOption
)

// SetDefaultOptions installs options applied to every ClientManager created
// afterwards, ahead of the options passed to NewClientManager. It returns a
// function that restores the previous set. Packages built on top of the root
// handler use it to run it against a fake client.
func SetDefaultOptions(opts ...ManagerOption) (restore func()) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	prev := defaultOptions
	defaultOptions = append([]ManagerOption(nil), opts...)
	return func() {
		defaultsMu.Lock()
		defer defaultsMu.Unlock()
		defaultOptions = prev
	}
}

// ClientManager owns the single MongoDB connection and collection handle
// backing a handler.
type ClientManager struct {
	cfg            Config
	driverVersion  string
	newClientFn    Factory
	internalLogger *slog.Logger

	client        Client
	coll          Collection
	caps          Capabilities
	serverVersion string
	initOnce      sync.Once
	initErr       error
	closeOnce     sync.Once
	closeErr      error
	closed        atomic.Bool
}

// NewClientManager creates a ClientManager for cfg. cfg is normalized before
// use. No connection is attempted until Initialize.
func NewClientManager(cfg Config, internalLogger *slog.Logger, opts ...ManagerOption) *ClientManager {
	cfg.Normalize()
	if internalLogger == nil {
		internalLogger = slog.New(slog.DiscardHandler)
	}
	cm := &ClientManager{
		cfg:            cfg,
		driverVersion:  version.Driver,
		newClientFn:    connectMongo,
		internalLogger: internalLogger,
	}
	defaultsMu.Lock()
	all := append(append([]ManagerOption(nil), defaultOptions...), opts...)
	defaultsMu.Unlock()
	for _, opt := range all {
		if opt != nil {
			opt(cm)
		}
	}
	return cm
}

// Initialize negotiates driver capabilities, connects, and resolves the
// collection handle. Unreachable servers fail within the configured connect
// timeout.
//
// This method is idempotent - subsequent calls return the first result.
func (cm *ClientManager) Initialize() error {
	cm.initOnce.Do(func() {
		caps, err := NegotiateCapabilities(cm.driverVersion)
		if err != nil {
			cm.initErr = fmt.Errorf("%w: %w", ErrConnect, err)
			return
		}

		client, err := cm.newClientFn(cm.cfg)
		if err != nil {
			cm.initErr = fmt.Errorf("%w: create client: %w", ErrConnect, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), cm.cfg.ConnectTimeout)
		defer cancel()

		if caps.ProbeOnConnect {
			err = client.Ping(ctx)
		} else {
			cm.serverVersion, err = buildInfoVersion(ctx, client)
		}
		if err != nil {
			cm.disconnect(client)
			if errors.Is(err, context.DeadlineExceeded) {
				cm.initErr = fmt.Errorf("%w: timed out after %v: %w", ErrConnect, cm.cfg.ConnectTimeout, err)
			} else {
				cm.initErr = fmt.Errorf("%w: %w", ErrConnect, err)
			}
			return
		}

		coll := client.Collection(cm.cfg.Database, cm.cfg.Collection)
		if coll == nil {
			cm.disconnect(client)
			cm.initErr = fmt.Errorf("%w: collection %s.%s unavailable", ErrConnect, cm.cfg.Database, cm.cfg.Collection)
			return
		}

		cm.client = client
		cm.coll = coll
		cm.caps = caps
		logDiagnostic(cm.internalLogger, slog.LevelDebug, "connected to mongo",
			slog.String("database", cm.cfg.Database),
			slog.String("collection", cm.cfg.Collection),
			slog.String("driver_version", caps.DriverVersion),
			slog.String("insert_op", caps.InsertOp.String()),
			slog.Bool("probed", caps.ProbeOnConnect),
		)
	})
	return cm.initErr
}

// buildInfoVersion runs buildInfo against the admin database and returns the
// reported server version.
func buildInfoVersion(ctx context.Context, client Client) (string, error) {
	raw, err := client.RunCommand(ctx, "admin", bson.D{{Key: "buildInfo", Value: 1}})
	if err != nil {
		return "", err
	}
	var info struct {
		Version string `bson:"version"`
	}
	if len(raw) > 0 {
		if err := bson.Unmarshal(raw, &info); err != nil {
			return "", fmt.Errorf("decode buildInfo: %w", err)
		}
	}
	return info.Version, nil
}

// disconnect closes a client that failed to initialize, logging any error.
func (cm *ClientManager) disconnect(client Client) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logDiagnostic(cm.internalLogger, slog.LevelWarn, "error disconnecting after failed initialization", slog.Any("error", err))
	}
}

// Capabilities returns the descriptor resolved by Initialize. It is the zero
// value until Initialize succeeds.
func (cm *ClientManager) Capabilities() Capabilities { return cm.caps }

// ServerVersion reports the server version observed during initialization,
// when the connection strategy queried it.
func (cm *ClientManager) ServerVersion() string { return cm.serverVersion }

// Config returns the normalized configuration.
func (cm *ClientManager) Config() Config { return cm.cfg }

// Collection returns the driver collection handle, or nil when the manager is
// not initialized, closed, or not backed by the MongoDB driver.
func (cm *ClientManager) Collection() *mongo.Collection {
	if cm.closed.Load() {
		return nil
	}
	if mc, ok := cm.coll.(*mongoCollection); ok {
		return mc.coll
	}
	return nil
}

// Insert writes doc with the operation chosen during capability negotiation.
// It makes exactly one attempt.
func (cm *ClientManager) Insert(ctx context.Context, doc any) error {
	if cm.initErr != nil {
		return cm.initErr
	}
	if cm.coll == nil || cm.closed.Load() {
		return ErrNotInitialized
	}

	var err error
	switch cm.caps.InsertOp {
	case InsertOpCommand:
		err = cm.insertCommand(ctx, doc)
	default:
		err = cm.coll.InsertOne(ctx, doc)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s.%s: %w", ErrInsert, cm.caps.InsertOp, cm.cfg.Database, cm.cfg.Collection, err)
	}
	return nil
}

// insertReply holds the fields of an insert command reply that signal
// failure even when the command itself succeeded.
type insertReply struct {
	N           int32 `bson:"n"`
	WriteErrors []struct {
		Index  int32  `bson:"index"`
		Code   int32  `bson:"code"`
		ErrMsg string `bson:"errmsg"`
	} `bson:"writeErrors"`
	WriteConcernError *struct {
		Code   int32  `bson:"code"`
		ErrMsg string `bson:"errmsg"`
	} `bson:"writeConcernError"`
}

// insertCommand issues the raw insert command for a single document.
func (cm *ClientManager) insertCommand(ctx context.Context, doc any) error {
	cmd := bson.D{
		{Key: "insert", Value: cm.coll.Name()},
		{Key: "documents", Value: bson.A{doc}},
	}
	if wc := cm.cfg.writeConcernDoc(); wc != nil {
		cmd = append(cmd, bson.E{Key: "writeConcern", Value: wc})
	}

	raw, err := cm.client.RunCommand(ctx, cm.cfg.Database, cmd)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	var reply insertReply
	if err := bson.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("decode insert reply: %w", err)
	}
	if len(reply.WriteErrors) > 0 {
		we := reply.WriteErrors[0]
		return fmt.Errorf("write error %d: %s", we.Code, we.ErrMsg)
	}
	if reply.WriteConcernError != nil {
		return fmt.Errorf("write concern error %d: %s", reply.WriteConcernError.Code, reply.WriteConcernError.ErrMsg)
	}
	return nil
}

// Close disconnects the client. It is idempotent and returns the result of
// the first call.
func (cm *ClientManager) Close() error {
	cm.closeOnce.Do(func() {
		if cm.initErr != nil {
			logDiagnostic(cm.internalLogger, slog.LevelInfo, "Close called after initialization failure",
				slog.Any("error", cm.initErr),
			)
			cm.closeErr = cm.initErr
			return
		}
		if cm.client == nil {
			cm.closeErr = ErrNotInitialized
			return
		}
		cm.closed.Store(true)

		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := cm.client.Disconnect(ctx); err != nil {
			logDiagnostic(cm.internalLogger, slog.LevelError, "error disconnecting mongo client", slog.Any("error", err))
			cm.closeErr = err
		}
	})
	return cm.closeErr
}

// logDiagnostic emits internal diagnostic messages, guarding against nil
// loggers in tests.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
