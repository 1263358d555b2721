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

package netpoll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/panjf2000/lineecho/pkg/errors"
)

func socketPair(t *testing.T) (int, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func openPoller(t *testing.T) *Poller {
	p, err := OpenPoller()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPoller_InterestInvariants(t *testing.T) {
	p := openPoller(t)
	a, _ := socketPair(t)

	assert.Equal(t, Idle, p.Interest(a))
	assert.ErrorIs(t, p.Register(a, Idle), errors.ErrInvalidInterest)
	assert.ErrorIs(t, p.Deregister(a), errors.ErrInterestNotRegistered)

	require.NoError(t, p.Register(a, Read))
	assert.Equal(t, Read, p.Interest(a))
	assert.Equal(t, 1, p.Len())

	// switching interest without deregistering first is refused
	assert.ErrorIs(t, p.Register(a, Write), errors.ErrInterestRegistered)
	assert.Equal(t, Read, p.Interest(a))

	require.NoError(t, p.Deregister(a))
	assert.Equal(t, Idle, p.Interest(a))
	require.NoError(t, p.Register(a, Write))
	assert.Equal(t, Write, p.Interest(a))
	require.NoError(t, p.Deregister(a))
	assert.Equal(t, 0, p.Len())
}

func TestPoller_ReadReadiness(t *testing.T) {
	p := openPoller(t)
	a, b := socketPair(t)
	require.NoError(t, p.Register(a, Read))

	_, err := unix.Write(b, []byte("ping"))
	require.NoError(t, err)

	events, err := p.Wait(nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Event{FD: a, Interest: Read}, events[0])
}

func TestPoller_WriteReadiness(t *testing.T) {
	p := openPoller(t)
	a, _ := socketPair(t)
	require.NoError(t, p.Register(a, Write))

	events, err := p.Wait(make([]Event, 0, 4))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Event{FD: a, Interest: Write}, events[0])
}

func TestPoller_WaitDrainsPreviousSet(t *testing.T) {
	p := openPoller(t)
	a, b := socketPair(t)
	c, _ := socketPair(t)
	require.NoError(t, p.Register(a, Read))
	require.NoError(t, p.Register(c, Write))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	stale := []Event{{FD: 1000, Interest: Read}, {FD: 1001, Interest: Write}}
	events, err := p.Wait(stale)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Contains(t, []int{a, c}, ev.FD, "events of a previous wait must not leak")
	}
}

func TestPoller_DeregisteredSocketIsSilent(t *testing.T) {
	p := openPoller(t)
	a, b := socketPair(t)
	require.NoError(t, p.Register(a, Read))
	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, p.Deregister(a))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = p.Wake()
	}()
	events, err := p.Wait(nil)
	require.NoError(t, err)
	assert.Empty(t, events, "only the wakeup should interrupt the wait")
}

func TestPoller_Wake(t *testing.T) {
	p := openPoller(t)
	done := make(chan []Event, 1)
	go func() {
		events, err := p.Wait(nil)
		assert.NoError(t, err)
		done <- events
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Wake())
	select {
	case events := <-done:
		assert.Empty(t, events)
	case <-time.After(3 * time.Second):
		t.Fatal("wait was not interrupted by wake")
	}
}

func TestInterest_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "accept", Accept.String())
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
	assert.Equal(t, "interest(9)", Interest(9).String())
}
