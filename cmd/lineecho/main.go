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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/lineecho"
	"github.com/panjf2000/lineecho/pkg/logging"
)

func main() {
	var (
		addr      string
		statsAddr string
		logFile   string
		logLevel  int
		report    time.Duration
		noDelay   bool
		reusePort bool
	)

	flag.StringVar(&addr, "addr", lineecho.DefaultAddr, "echo server address")
	flag.StringVar(&statsAddr, "stats", ":8080", "address of the HTTP endpoint answering the connection count, empty to disable")
	flag.DurationVar(&report, "report", lineecho.DefaultReportInterval, "interval of the connection-count report, 0 to disable")
	flag.StringVar(&logFile, "log-file", "", "write logs to this file instead of stdout")
	flag.IntVar(&logLevel, "log-level", int(logging.InfoLevel), "logging level, -1 (debug) to 5 (fatal)")
	flag.BoolVar(&noDelay, "nodelay", false, "set TCP_NODELAY on accepted connections")
	flag.BoolVar(&reusePort, "reuseport", false, "set SO_REUSEPORT on the listener")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := lineecho.Run(ctx, addr,
		lineecho.WithReuseAddr(true),
		lineecho.WithReusePort(reusePort),
		lineecho.WithTCPNoDelay(noDelay),
		lineecho.WithStatsAddr(statsAddr),
		lineecho.WithReportInterval(report),
		lineecho.WithLogPath(logFile),
		lineecho.WithLogLevel(logging.Level(logLevel)),
	)
	if err != nil {
		logging.Fatalf("lineecho exits with error: %v", err)
	}
}
