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

import "errors"

// ErrConnect indicates that the MongoDB server could not be reached, or that
// the connection could not be prepared, while initializing a ClientManager.
var ErrConnect = errors.New("store: unable to connect to mongo")

// ErrInsert indicates that the server rejected a document or the write did
// not complete.
var ErrInsert = errors.New("store: insert failed")

// ErrNotInitialized indicates that an operation requiring a live collection
// was attempted before Initialize succeeded or after Close.
var ErrNotInitialized = errors.New("store: client not initialized")

// ErrDriverVersion indicates that the linked driver reported a version string
// whose major component could not be parsed.
var ErrDriverVersion = errors.New("store: unrecognized driver version")
