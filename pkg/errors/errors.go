// Copyright (c) 2024 The Gnet Authors. All rights reserved.
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

// Package errors defines common errors for lineecho.
package errors

import "errors"

var (
	// ErrEngineShutdown occurs when the engine is closing.
	ErrEngineShutdown = errors.New("lineecho: engine is going to be shutdown")
	// ErrEngineInShutdown occurs when attempting to shut the engine down more than once.
	ErrEngineInShutdown = errors.New("lineecho: engine is already in shutdown")
	// ErrAcceptSocket occurs when the listening socket fails to accept a new connection.
	ErrAcceptSocket = errors.New("lineecho: accept a new connection error")
	// ErrUnknownConn occurs when a readiness event refers to a socket that has no connection context.
	ErrUnknownConn = errors.New("lineecho: readiness event for a socket without connection context")
	// ErrInterestRegistered occurs when registering an interest on a socket that already holds one.
	ErrInterestRegistered = errors.New("lineecho: socket already registered, deregister it first")
	// ErrInterestNotRegistered occurs when deregistering a socket that holds no interest.
	ErrInterestNotRegistered = errors.New("lineecho: socket is not registered")
	// ErrInvalidInterest occurs when registering a socket with an interest that cannot be polled.
	ErrInvalidInterest = errors.New("lineecho: invalid interest")
	// ErrUnsupportedPlatform occurs when running lineecho on an unsupported platform.
	ErrUnsupportedPlatform = errors.New("lineecho: unsupported platform in lineecho")
	// ErrUnsupportedProtocol occurs when trying to use protocol that is not supported.
	ErrUnsupportedProtocol = errors.New("lineecho: only tcp/tcp4/tcp6 are supported")
	// ErrUnsupportedTCPProtocol occurs when trying to use an unsupported TCP protocol.
	ErrUnsupportedTCPProtocol = errors.New("lineecho: only tcp/tcp4/tcp6 are supported")
)
