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

// Package lineecho implements a line-oriented TCP echo server on top of a
// single-threaded, readiness-driven reactor.
//
// Every byte a client sends is echoed back as soon as it is read. A client
// ends its session by sending the line "/quit": the server echoes it and
// closes the connection once the echo has been flushed.
//
// One goroutine runs the reactor, waiting on epoll or kqueue and serving all
// connections without any per-connection goroutine.
package lineecho

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/panjf2000/lineecho/pkg/logging"
)

// DefaultAddr is the address the server listens on unless told otherwise.
const DefaultAddr = "tcp://:3000"

// Engine represents a running engine, it is handed to Options.OnBoot.
type Engine struct {
	eng *engine
}

// Addr returns the address the listening socket is bound to.
func (e Engine) Addr() net.Addr {
	return e.eng.addr()
}

// StatsAddr returns the address of the stats endpoint, nil if it is disabled.
func (e Engine) StatsAddr() net.Addr {
	return e.eng.statsAddr()
}

// CountConnections counts the number of currently active connections and returns it.
// It is safe to call from any goroutine.
func (e Engine) CountConnections() int {
	return e.eng.countConn()
}

// Stop gracefully shuts down the engine: every live connection is closed,
// then the listener. It returns once the reactor has exited or ctx is done.
func (e Engine) Stop(ctx context.Context) error {
	return e.eng.stop(ctx)
}

// Run starts serving the echo protocol on protoAddr, e.g. "tcp://:3000" or
// "127.0.0.1:3000", and blocks until ctx is cancelled, Engine.Stop is called
// or the reactor fails.
func Run(ctx context.Context, protoAddr string, opts ...Option) (err error) {
	options := loadOptions(opts...)

	logging.Debugf("default logging level is %s", logging.LogLevel())

	var (
		logger logging.Logger
		flush  func() error
	)
	if options.LogPath != "" {
		if logger, flush, err = logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel); err != nil {
			return
		}
	} else if options.LogLevel != logging.InfoLevel {
		logger, flush = logging.CreateConsoleLogger(options.LogLevel)
	} else {
		logger = logging.GetDefaultLogger()
	}
	if options.Logger == nil {
		options.Logger = logger
	}
	defer func() {
		if flush != nil {
			_ = flush()
		}
		logging.Cleanup()
	}()

	network, addr := parseProtoAddr(protoAddr)
	return run(ctx, network, addr, options)
}

func parseProtoAddr(addr string) (network, address string) {
	network = "tcp"
	address = strings.ToLower(addr)
	if strings.Contains(address, "://") {
		pair := strings.Split(address, "://")
		network = pair[0]
		address = pair[1]
	}
	return
}

func howMany(n int) string {
	return fmt.Sprintf("We now have %d connections", n)
}
