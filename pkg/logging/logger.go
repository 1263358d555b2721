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

// Package logging provides the logging functionality of lineecho.
// It sets up a default logger powered by go.uber.org/zap, which can be
// replaced by any implementation of the Logger interface passed through
// lineecho.WithLogger.
//
// The environment variable `LINEECHO_LOGGING_LEVEL` determines which zap level
// is applied (an integer, -1 for DEBUG up to 5 for FATAL).
// The environment variable `LINEECHO_LOGGING_FILE` is set to a local file path
// when logs should go to a rotated local file instead of stdout.
package logging

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envLevel = "LINEECHO_LOGGING_LEVEL"
	envFile  = "LINEECHO_LOGGING_FILE"
	prefix   = "[lineecho] "
)

// Level is the alias of zapcore.Level.
type Level = zapcore.Level

const (
	// DebugLevel logs per-connection events such as accepts and closes.
	DebugLevel = zapcore.DebugLevel
	// InfoLevel is the default logging priority.
	InfoLevel = zapcore.InfoLevel
	// ErrorLevel logs failures of the engine itself.
	ErrorLevel = zapcore.ErrorLevel
)

// Flusher flushes any buffered log entries, it is usually called before the process exits.
type Flusher = func() error

// Logger is used for logging formatted messages.
type Logger interface {
	// Debugf logs messages at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs messages at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs messages at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs messages at ERROR level.
	Errorf(format string, args ...interface{})
	// Fatalf logs messages at FATAL level.
	Fatalf(format string, args ...interface{})
}

var (
	defaultLogger  Logger
	defaultFlusher Flusher
	defaultLevel   Level
)

func init() {
	var err error
	if defaultLogger, defaultFlusher, defaultLevel, err = fromEnv(os.Getenv); err != nil {
		panic(err)
	}
}

// fromEnv builds the default logger out of the LINEECHO_LOGGING_* variables.
func fromEnv(getenv func(string) string) (logger Logger, flush Flusher, lvl Level, err error) {
	if s := getenv(envLevel); s != "" {
		n, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return nil, nil, lvl, fmt.Errorf("invalid %s, %v", envLevel, err)
		}
		lvl = Level(n)
	}
	if path := getenv(envFile); path != "" {
		if logger, flush, err = CreateLoggerAsLocalFile(path, lvl); err != nil {
			return nil, nil, lvl, fmt.Errorf("invalid %s, %v", envFile, err)
		}
		return
	}
	logger, flush = CreateConsoleLogger(lvl)
	return
}

// prefixEncoder tags every entry with the name of the program.
type prefixEncoder struct {
	zapcore.Encoder
	pool buffer.Pool
}

func newEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &prefixEncoder{Encoder: zapcore.NewConsoleEncoder(cfg), pool: buffer.NewPool()}
}

func (e *prefixEncoder) Clone() zapcore.Encoder {
	return &prefixEncoder{Encoder: e.Encoder.Clone(), pool: e.pool}
}

func (e *prefixEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	defer line.Free()

	buf := e.pool.Get()
	buf.AppendString(prefix)
	_, _ = buf.Write(line.Bytes())
	return buf, nil
}

// CreateConsoleLogger sets up a development logger writing to stdout.
func CreateConsoleLogger(lvl Level) (Logger, Flusher) {
	core := zapcore.NewCore(newEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), lvl)
	z := zap.New(core,
		zap.Development(),
		zap.AddCaller(),
		zap.AddStacktrace(ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return z.Sugar(), z.Sync
}

// CreateLoggerAsLocalFile sets up a logger writing to a lumberjack-rotated file at path.
func CreateLoggerAsLocalFile(path string, lvl Level) (Logger, Flusher, error) {
	if path == "" {
		return nil, nil, errors.New("invalid local logger path")
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 2,
		MaxAge:     15, // days
	}
	core := zapcore.NewCore(newEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotator), lvl)
	z := zap.New(core, zap.AddCaller(), zap.AddStacktrace(ErrorLevel))
	return z.Sugar(), z.Sync, nil
}

// GetDefaultLogger returns the default logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// LogLevel tells what the default logging level is.
func LogLevel() string {
	return defaultLevel.String()
}

// Cleanup flushes the default logger.
func Cleanup() {
	if defaultFlusher != nil {
		_ = defaultFlusher()
	}
}

// Error logs err unless it is nil.
func Error(err error) {
	if err != nil {
		defaultLogger.Errorf("error occurs during runtime, %v", err)
	}
}

// Debugf logs messages at DEBUG level through the default logger.
func Debugf(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Fatalf logs messages at FATAL level through the default logger, then exits.
func Fatalf(format string, args ...interface{}) {
	defaultLogger.Fatalf(format, args...)
}
