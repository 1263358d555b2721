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

//go:build darwin || dragonfly || freebsd || linux

package lineecho

import (
	"net"

	"github.com/panjf2000/lineecho/pkg/buffer/fixed"
)

// receiveBufferCap is the capacity of the receive buffer of every connection.
const receiveBufferCap = 512

// connState tracks which readiness a connection is waiting for. A connection
// waits for reads or for writes, never both.
type connState uint8

const (
	stateIdle connState = iota
	stateReadInterested
	stateWriteInterested
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReadInterested:
		return "read-interested"
	case stateWriteInterested:
		return "write-interested"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type conn struct {
	fd          int           // file descriptor
	remoteAddr  net.Addr      // remote addr
	state       connState     // readiness the connection waits for
	buffer      *fixed.Buffer // bytes read and not yet echoed back
	line        lineTracker   // tail of the received text, for spotting the quit command
	terminating bool          // quit command seen, close once the echo is flushed
}

func newConn(fd int, remoteAddr net.Addr) *conn {
	return &conn{
		fd:         fd,
		remoteAddr: remoteAddr,
		buffer:     fixed.New(receiveBufferCap),
	}
}

func (c *conn) release() {
	c.state = stateClosed
	c.line.release()
	c.buffer.Release()
	c.remoteAddr = nil
}
