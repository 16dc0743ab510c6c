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

import "go.mongodb.org/mongo-driver/v2/version"

// Version identifies this release of slogmongo. Release builds stamp it with
// -ldflags "-X github.com/pjscruggs/slogmongo.Version=...".
var Version = "v0.1.0-alpha"

// GetVersion reports Version.
func GetVersion() string { return Version }

// DriverVersion reports the mongo-driver release compiled into the binary.
// Its major number decides whether handlers ping on connect and which insert
// path they use.
func DriverVersion() string { return version.Driver }
