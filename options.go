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

package lineecho

import (
	"time"

	"github.com/panjf2000/lineecho/pkg/logging"
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{ReportInterval: DefaultReportInterval}
	for _, option := range options {
		option(opts)
	}
	return opts
}

// DefaultReportInterval is the default interval of the connection-count report.
const DefaultReportInterval = 5 * time.Second

// Options are configurations for the lineecho engine.
type Options struct {
	// LockOSThread is used to determine whether the reactor goroutine is locked to its OS thread.
	LockOSThread bool

	// ReuseAddr indicates whether to set up the SO_REUSEADDR socket option on the listener.
	ReuseAddr bool

	// ReusePort indicates whether to set up the SO_REUSEPORT socket option on the listener.
	ReusePort bool

	// TCPNoDelay controls whether the operating system should delay
	// packet transmission in hopes of sending fewer packets (Nagle's algorithm).
	TCPNoDelay bool

	// SocketSendBuffer sets the maximum socket send buffer in bytes of every accepted connection,
	// zero keeps the system default.
	SocketSendBuffer int

	// ReportInterval is the interval between two "We now have N connections" log lines,
	// zero or a negative value disables the report.
	ReportInterval time.Duration

	// StatsAddr is the address of the HTTP endpoint answering the connection count,
	// empty disables it.
	StatsAddr string

	// LogPath the local path where logs will be written, this is the easiest way to set up logging,
	// lineecho instantiates a default uber-go/zap logger with this given log path, you are also allowed to employ
	// your own logger during the lifetime by implementing the following logging.Logger interface.
	//
	// Note that this option can be overridden by the option Logger.
	LogPath string

	// LogLevel indicates the logging level of the logger created for LogPath, or of a console
	// logger when LogPath is empty.
	LogLevel logging.Level

	// Logger is the customized logger for logging info, if it is not set,
	// then lineecho will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger

	// OnBoot fires once the listener is bound and before the reactor starts serving.
	OnBoot func(Engine)
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithLockOSThread sets up LockOSThread mode for the reactor goroutine.
func WithLockOSThread(lockOSThread bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lockOSThread
	}
}

// WithReuseAddr sets SO_REUSEADDR socket options.
func WithReuseAddr(reuseAddr bool) Option {
	return func(opts *Options) {
		opts.ReuseAddr = reuseAddr
	}
}

// WithReusePort sets SO_REUSEPORT socket options.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(tcpNoDelay bool) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = tcpNoDelay
	}
}

// WithSocketSendBuffer sets the maximum socket send buffer in bytes.
func WithSocketSendBuffer(sendBuf int) Option {
	return func(opts *Options) {
		opts.SocketSendBuffer = sendBuf
	}
}

// WithReportInterval sets the interval of the connection-count report.
func WithReportInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.ReportInterval = interval
	}
}

// WithStatsAddr sets the address of the HTTP endpoint answering the connection count.
func WithStatsAddr(addr string) Option {
	return func(opts *Options) {
		opts.StatsAddr = addr
	}
}

// WithLogPath is an option to set up the local path of log file.
func WithLogPath(fileName string) Option {
	return func(opts *Options) {
		opts.LogPath = fileName
	}
}

// WithLogLevel is an option to set up the logging level.
func WithLogLevel(lvl logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = lvl
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithOnBoot sets up the callback fired once the engine is ready to serve.
func WithOnBoot(onBoot func(Engine)) Option {
	return func(opts *Options) {
		opts.OnBoot = onBoot
	}
}
