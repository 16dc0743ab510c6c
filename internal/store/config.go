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
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
)

// Defaults applied by Normalize when fields are left unset.
const (
	DefaultURI            = "mongodb://localhost:27017/"
	DefaultDatabase       = "mongolog"
	DefaultCollection     = "mongolog"
	DefaultConnectTimeout = 5 * time.Second
)

// Config holds the resolved connection settings for a ClientManager.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	AppName        string

	// WriteConcern is passed through to the driver untouched. A nil value
	// leaves the server default in effect.
	WriteConcern *writeconcern.WriteConcern
}

// Normalize fills unset fields with their defaults and reports whether the
// default URI was substituted.
func (c *Config) Normalize() (usedDefaultURI bool) {
	if c.URI == "" {
		c.URI = DefaultURI
		usedDefaultURI = true
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return usedDefaultURI
}

// writeConcernDoc renders the configured write concern for the raw insert
// command. It returns nil when no write concern was configured.
func (c Config) writeConcernDoc() bson.D {
	wc := c.WriteConcern
	if wc == nil {
		return nil
	}
	var doc bson.D
	if wc.W != nil {
		doc = append(doc, bson.E{Key: "w", Value: wc.W})
	}
	if wc.Journal != nil {
		doc = append(doc, bson.E{Key: "j", Value: *wc.Journal})
	}
	return doc
}
