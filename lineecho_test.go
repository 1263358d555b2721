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
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	errorx "github.com/panjf2000/lineecho/pkg/errors"
)

type testServer struct {
	Engine
	cancel context.CancelFunc
	errCh  chan error
}

func startServer(t *testing.T, opts ...Option) *testServer {
	ctx, cancel := context.WithCancel(context.Background())
	booted := make(chan Engine, 1)
	errCh := make(chan error, 1)
	opts = append([]Option{WithReportInterval(0)}, opts...)
	opts = append(opts, WithOnBoot(func(e Engine) { booted <- e }))
	go func() { errCh <- Run(ctx, "tcp://127.0.0.1:0", opts...) }()

	ts := &testServer{cancel: cancel, errCh: errCh}
	select {
	case ts.Engine = <-booted:
	case err := <-errCh:
		cancel()
		t.Fatalf("engine failed to start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("engine did not boot in time")
	}
	t.Cleanup(ts.shutdown)
	return ts
}

func (ts *testServer) shutdown() {
	ts.cancel()
	select {
	case <-ts.errCh:
	case <-time.After(5 * time.Second):
	}
}

func (ts *testServer) dial(t *testing.T) net.Conn {
	c, err := net.Dial("tcp", ts.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func expectEcho(t *testing.T, c net.Conn, data string) {
	_, err := c.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, len(data))
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, data, string(buf))
}

func expectClosed(t *testing.T, c net.Conn) {
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := c.Read(make([]byte, 16))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEcho(t *testing.T) {
	ts := startServer(t)
	c := ts.dial(t)

	expectEcho(t, c, "hello\n")
	expectEcho(t, c, "no newline")
	expectEcho(t, c, "/quitter\n")
	expectEcho(t, c, "quit\n")
}

func TestQuit(t *testing.T) {
	ts := startServer(t)

	t.Run("after a line", func(t *testing.T) {
		c := ts.dial(t)
		expectEcho(t, c, "hello\n")
		expectEcho(t, c, "/quit\n")
		expectClosed(t, c)
	})

	t.Run("without a newline", func(t *testing.T) {
		c := ts.dial(t)
		expectEcho(t, c, "/quit")
		expectClosed(t, c)
	})

	t.Run("with CRLF", func(t *testing.T) {
		c := ts.dial(t)
		expectEcho(t, c, "bye\r\n/quit\r\n")
		expectClosed(t, c)
	})

	t.Run("split across reads", func(t *testing.T) {
		c := ts.dial(t)
		expectEcho(t, c, "/qu")
		// give the server a chance to consume the first half on its own
		time.Sleep(20 * time.Millisecond)
		expectEcho(t, c, "it\n")
		expectClosed(t, c)
	})

	t.Run("not at the end", func(t *testing.T) {
		c := ts.dial(t)
		expectEcho(t, c, "/quit now\n")
		expectEcho(t, c, "still here\n")
	})
}

func TestLongLine(t *testing.T) {
	ts := startServer(t)
	c := ts.dial(t)

	line := string(bytes.Repeat([]byte("0123456789"), 100)) + "\n"
	expectEcho(t, c, line)
	// the line tracker has been trimmed, a quit afterwards is still honoured
	expectEcho(t, c, "/quit\n")
	expectClosed(t, c)
}

func TestBackPressure(t *testing.T) {
	ts := startServer(t, WithSocketSendBuffer(4096))

	// A small receive window on the client keeps the kernel from absorbing the
	// whole echo, so the server has to wait for the socket to drain.
	d := net.Dialer{Control: func(_, _ string, rc syscall.RawConn) error {
		var serr error
		if err := rc.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 4096)
		}); err != nil {
			return err
		}
		return serr
	}}
	c, err := d.Dial("tcp", ts.Addr().String())
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	const size = 4 << 20
	payload := make([]byte, size)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range payload {
		payload[i] = 'a' + byte(rnd.Intn(26))
	}

	writeErr := make(chan error, 1)
	go func() {
		_, err := c.Write(payload)
		writeErr <- err
	}()

	// give the server time to fill both buffers before reading anything back
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(30*time.Second)))
	echoed := make([]byte, size)
	_, err = io.ReadFull(c, echoed)
	require.NoError(t, err)
	require.NoError(t, <-writeErr)
	assert.True(t, bytes.Equal(payload, echoed), "echo must mirror the input without loss or duplication")

	expectEcho(t, c, "/quit\n")
	expectClosed(t, c)
}

func TestConcurrentClients(t *testing.T) {
	ts := startServer(t)

	const clients = 16
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		c := ts.dial(t)
		wg.Add(1)
		go func(id int, c net.Conn) {
			defer wg.Done()
			msg := bytes.Repeat([]byte{'A' + byte(id)}, 100+id)
			buf := make([]byte, len(msg))
			for j := 0; j < 20; j++ {
				if _, err := c.Write(msg); !assert.NoError(t, err) {
					return
				}
				_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
				if _, err := io.ReadFull(c, buf); !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, msg, buf, "client %d got someone else's bytes", id)
			}
		}(i, c)
	}
	wg.Wait()
	assert.Equal(t, clients, ts.CountConnections())
}

func TestCountConnections(t *testing.T) {
	ts := startServer(t, WithStatsAddr("127.0.0.1:0"))
	require.NotNil(t, ts.StatsAddr())

	conns := make([]net.Conn, 3)
	for i := range conns {
		conns[i] = ts.dial(t)
	}
	assert.Eventually(t, func() bool { return ts.CountConnections() == 3 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + ts.StatsAddr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "We now have 3 connections", string(body))

	expectEcho(t, conns[0], "/quit\n")
	expectClosed(t, conns[0])
	_ = conns[1].Close()
	assert.Eventually(t, func() bool { return ts.CountConnections() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestStop(t *testing.T) {
	ts := startServer(t, WithStatsAddr("127.0.0.1:0"))
	c := ts.dial(t)
	expectEcho(t, c, "hello\n")
	statsURL := "http://" + ts.StatsAddr().String() + "/health"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.Stop(ctx))
	assert.NoError(t, <-ts.errCh)

	expectClosed(t, c)
	assert.ErrorIs(t, ts.Stop(ctx), errorx.ErrEngineInShutdown)

	_, err := net.Dial("tcp", ts.Addr().String())
	assert.Error(t, err, "listener must be closed")
	_, err = http.Get(statsURL)
	assert.Error(t, err, "stats endpoint must be closed")

	// nothing left for the cleanup to wait on
	ts.errCh <- nil
}

func TestContextCancel(t *testing.T) {
	ts := startServer(t)
	c := ts.dial(t)
	expectEcho(t, c, "hello\n")

	ts.cancel()
	select {
	case err := <-ts.errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after its context was cancelled")
	}
	expectClosed(t, c)
	ts.errCh <- nil
}

func TestRunErrors(t *testing.T) {
	err := Run(context.Background(), "udp://127.0.0.1:0", WithReportInterval(0))
	assert.ErrorIs(t, err, errorx.ErrUnsupportedProtocol)

	err = Run(context.Background(), "tcp://127.0.0.1:notaport", WithReportInterval(0))
	assert.Error(t, err)

	ts := startServer(t)
	err = Run(context.Background(), "tcp://"+ts.Addr().String(), WithReportInterval(0))
	assert.Error(t, err, "address already in use")
}

func TestParseProtoAddr(t *testing.T) {
	network, addr := parseProtoAddr("tcp://:3000")
	assert.Equal(t, "tcp", network)
	assert.Equal(t, ":3000", addr)

	network, addr = parseProtoAddr("TCP4://127.0.0.1:3000")
	assert.Equal(t, "tcp4", network)
	assert.Equal(t, "127.0.0.1:3000", addr)

	network, addr = parseProtoAddr("localhost:3000")
	assert.Equal(t, "tcp", network)
	assert.Equal(t, "localhost:3000", addr)
}

func TestStatsRouter(t *testing.T) {
	var n int32
	srv := &http.Server{Handler: newStatsRouter(func() int { return int(atomic.LoadInt32(&n)) })}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get("http://" + ln.Addr().String() + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "We now have 0 connections", body)

	atomic.StoreInt32(&n, 42)
	_, body = get("/")
	assert.Equal(t, "We now have 42 connections", body)

	code, body = get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	code, _ = get("/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
}

func (l *recordingLogger) Debugf(string, ...interface{}) {}
func (l *recordingLogger) Errorf(string, ...interface{}) {}
func (l *recordingLogger) Fatalf(string, ...interface{}) {}

func (l *recordingLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *recordingLogger) contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.infos {
		if m == msg {
			return true
		}
	}
	return false
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func TestReport(t *testing.T) {
	logger := &recordingLogger{}
	ts := startServer(t, WithLogger(logger), WithReportInterval(20*time.Millisecond))

	assert.Eventually(t, func() bool { return logger.contains("We now have 0 connections") },
		5*time.Second, 10*time.Millisecond)

	c := ts.dial(t)
	expectEcho(t, c, "hi\n")
	assert.Eventually(t, func() bool { return logger.contains("We now have 1 connections") },
		5*time.Second, 10*time.Millisecond)
}
