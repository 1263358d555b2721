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
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/lineecho/internal/socket"
	errorx "github.com/panjf2000/lineecho/pkg/errors"
	"github.com/panjf2000/lineecho/pkg/logging"
	"github.com/panjf2000/lineecho/pkg/netpoll"
)

type eventloop struct {
	ln          *listener       // listening socket
	engine      *engine         // engine in loop
	poller      *netpoll.Poller // epoll or kqueue
	connections connMap         // registry of live connections
	events      []netpoll.Event // readiness events of the current iteration
}

func (el *eventloop) getLogger() logging.Logger {
	return el.engine.opts.Logger
}

func (el *eventloop) countConn() int32 {
	return el.connections.loadCount()
}

// run is the reactor: it only ever blocks in Wait and handles every event with
// at most one bounded read or one bounded write.
func (el *eventloop) run() error {
	if el.engine.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer el.closeConns()

	for {
		events, err := el.poller.Wait(el.events)
		if err != nil {
			return err
		}
		el.events = events
		if el.engine.isInShutdown() {
			return errorx.ErrEngineShutdown
		}
		for _, ev := range events {
			if err = el.dispatch(ev); err != nil {
				return err
			}
		}
	}
}

func (el *eventloop) dispatch(ev netpoll.Event) error {
	if ev.FD == el.ln.fd {
		return el.accept()
	}
	c := el.connections.getConn(ev.FD)
	if c == nil {
		return fmt.Errorf("fd=%d ready for %s: %w", ev.FD, ev.Interest, errorx.ErrUnknownConn)
	}
	switch ev.Interest {
	case netpoll.Read:
		return el.read(c)
	case netpoll.Write:
		return el.write(c)
	default:
		return fmt.Errorf("fd=%d ready for %s: %w", ev.FD, ev.Interest, errorx.ErrInvalidInterest)
	}
}

// accept takes exactly one pending connection per readiness event.
func (el *eventloop) accept() error {
	nfd, remote, err := socket.Accept(el.ln.fd)
	switch {
	case err == nil:
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
		return nil
	default:
		el.getLogger().Errorf("failed to accept a connection on %s: %v", el.ln.addr, err)
		return fmt.Errorf("%w: %v", errorx.ErrAcceptSocket, err)
	}

	if err = el.applySockopts(nfd); err != nil {
		el.getLogger().Warnf("failed to set up fd=%d from %s: %v", nfd, remote, err)
		_ = unix.Close(nfd)
		return nil
	}

	c := newConn(nfd, remote)
	el.connections.addConn(c)
	if err = el.awaitRead(c); err != nil {
		return el.closeOnError(c, err)
	}
	el.getLogger().Debugf("accepted fd=%d from %s", nfd, remote)
	return nil
}

func (el *eventloop) applySockopts(fd int) error {
	opts := el.engine.opts
	if opts.TCPNoDelay {
		if err := socket.SetNoDelay(fd, 1); err != nil {
			return err
		}
	}
	if opts.SocketSendBuffer > 0 {
		if err := socket.SetSendBuffer(fd, opts.SocketSendBuffer); err != nil {
			return err
		}
	}
	return nil
}

// read performs one bounded read, tracks the text for the quit command and
// echoes the bytes just read.
func (el *eventloop) read(c *conn) error {
	n, err := unix.Read(c.fd, c.buffer.Free())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return nil
		}
		return el.closeOnError(c, os.NewSyscallError("read", err))
	}
	if n == 0 {
		return el.close(c, io.EOF)
	}
	c.buffer.Commit(n)

	if c.line.feed(c.buffer.Bytes()) {
		c.terminating = true
	}

	sent, err := writeOnce(c.fd, c.buffer.Bytes())
	if err != nil {
		return el.closeOnError(c, err)
	}
	c.buffer.Advance(sent)

	// The socket send buffer is full, wait until it drains before reading more.
	if !c.buffer.IsEmpty() {
		if err = el.awaitWrite(c); err != nil {
			return el.closeOnError(c, err)
		}
		return nil
	}

	c.buffer.Reset()
	if c.terminating {
		return el.close(c, nil)
	}
	return nil
}

// write resumes an echo that a previous call could not flush.
func (el *eventloop) write(c *conn) error {
	remaining := c.buffer.Remaining()
	sent, err := writeOnce(c.fd, c.buffer.Bytes())
	if err != nil {
		return el.closeOnError(c, err)
	}
	c.buffer.Advance(sent)
	if sent < remaining {
		return nil
	}

	c.buffer.Reset()
	if c.terminating {
		return el.close(c, nil)
	}
	if err = el.awaitRead(c); err != nil {
		return el.closeOnError(c, err)
	}
	return nil
}

// writeOnce issues a single write, a full send buffer counts as zero bytes written.
func writeOnce(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}

func (el *eventloop) awaitRead(c *conn) error {
	return el.switchInterest(c, netpoll.Read, stateReadInterested)
}

func (el *eventloop) awaitWrite(c *conn) error {
	return el.switchInterest(c, netpoll.Write, stateWriteInterested)
}

func (el *eventloop) switchInterest(c *conn, interest netpoll.Interest, next connState) error {
	switch c.state {
	case stateReadInterested, stateWriteInterested:
		if err := el.poller.Deregister(c.fd); err != nil {
			return err
		}
		c.state = stateIdle
	case stateClosed:
		return fmt.Errorf("fd=%d is closed: %w", c.fd, errorx.ErrUnknownConn)
	}
	if err := el.poller.Register(c.fd, interest); err != nil {
		return err
	}
	c.state = next
	return nil
}

// isInvariantViolation tells the bookkeeping faults that must stop the reactor
// apart from per-connection I/O failures.
func isInvariantViolation(err error) bool {
	return errors.Is(err, errorx.ErrInterestRegistered) ||
		errors.Is(err, errorx.ErrInterestNotRegistered) ||
		errors.Is(err, errorx.ErrUnknownConn)
}

// closeOnError tears the connection down after an I/O failure. Invariant
// violations are handed back to the reactor instead.
func (el *eventloop) closeOnError(c *conn, err error) error {
	_ = el.close(c, err)
	if isInvariantViolation(err) {
		return err
	}
	return nil
}

// close deregisters and closes the socket and drops its context from the registry.
func (el *eventloop) close(c *conn, err error) error {
	if c.state == stateClosed || el.connections.getConn(c.fd) != c {
		return nil // ignore stale connections
	}

	switch err {
	case nil:
		el.getLogger().Debugf("closing fd=%d from %s on quit", c.fd, c.remoteAddr)
	case io.EOF:
		el.getLogger().Debugf("fd=%d from %s closed by peer", c.fd, c.remoteAddr)
	case errorx.ErrEngineShutdown:
		el.getLogger().Debugf("closing fd=%d from %s on engine shutdown", c.fd, c.remoteAddr)
	default:
		el.getLogger().Warnf("closing fd=%d from %s on error: %v", c.fd, c.remoteAddr, err)
	}

	if el.poller.Interest(c.fd) != netpoll.Idle {
		if err0 := el.poller.Deregister(c.fd); err0 != nil {
			el.getLogger().Warnf("failed to deregister fd=%d: %v", c.fd, err0)
		}
	}
	if err1 := unix.Close(c.fd); err1 != nil {
		el.getLogger().Warnf("failed to close fd=%d: %v", c.fd, os.NewSyscallError("close", err1))
	}
	el.connections.delConn(c)
	c.release()
	return nil
}

func (el *eventloop) closeConns() {
	el.connections.iterate(func(c *conn) bool {
		_ = el.close(c, errorx.ErrEngineShutdown)
		return true
	})
}
