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

/*
Package netpoll provides the readiness multiplexer of lineecho.

The underlying facility of event notification is OS-specific:
  - epoll on Linux - https://man7.org/linux/man-pages/man7/epoll.7.html
  - kqueue on *BSD/Darwin - https://man.freebsd.org/cgi/man.cgi?kqueue

Every socket registered with a Poller holds exactly one Interest at a time.
Switching a socket from one interest to another takes a Deregister followed by
a Register, registering twice without deregistering in between is refused:

	poller, err := netpoll.OpenPoller()
	if err != nil {
		// handle error
	}
	defer poller.Close()

	if err := poller.Register(fd, netpoll.Read); err != nil {
		// handle error
	}

	var events []netpoll.Event
	for {
		events, err = poller.Wait(events)
		if err != nil {
			// handle error
		}
		for _, ev := range events {
			// ev.FD is ready for ev.Interest
		}
	}

A Poller is not safe for concurrent use except for Wake, which may be called
from any goroutine to interrupt a blocked Wait.
*/
package netpoll

import (
	"fmt"

	"github.com/panjf2000/lineecho/pkg/errors"
)

// Interest is the kind of readiness a socket is registered for.
type Interest uint8

const (
	// Idle means the socket is not registered.
	Idle Interest = iota
	// Accept is the interest of a listening socket in pending connections.
	Accept
	// Read is the interest of a connected socket in incoming bytes.
	Read
	// Write is the interest of a connected socket in free space of its send buffer.
	Write
)

func (i Interest) String() string {
	switch i {
	case Idle:
		return "idle"
	case Accept:
		return "accept"
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("interest(%d)", uint8(i))
	}
}

// Event tells that FD is ready for the operation of Interest.
//
// Exceptional conditions like hang-ups or socket errors are reported under the
// interest the socket currently holds, the following I/O call surfaces them.
type Event struct {
	FD       int
	Interest Interest
}

const (
	// InitPollEventsCap represents the initial capacity of poller event-list.
	InitPollEventsCap = 128
	// MaxPollEventsCap is the maximum limitation of events that the poller can process.
	MaxPollEventsCap = 1024
	// MinPollEventsCap is the minimum limitation of events that the poller can process.
	MinPollEventsCap = 32
)

// interestSet is the bookkeeping shared by the epoll and kqueue pollers.
type interestSet map[int]Interest

func (s interestSet) checkRegister(fd int, interest Interest) error {
	switch interest {
	case Accept, Read, Write:
	default:
		return fmt.Errorf("fd=%d: %w: %s", fd, errors.ErrInvalidInterest, interest)
	}
	if cur, ok := s[fd]; ok {
		return fmt.Errorf("fd=%d holds %s interest: %w", fd, cur, errors.ErrInterestRegistered)
	}
	return nil
}

func (s interestSet) checkDeregister(fd int) (Interest, error) {
	cur, ok := s[fd]
	if !ok {
		return Idle, fmt.Errorf("fd=%d: %w", fd, errors.ErrInterestNotRegistered)
	}
	return cur, nil
}

// Interest returns the interest fd is registered for, Idle if it is not registered.
func (p *Poller) Interest(fd int) Interest {
	return p.interests[fd]
}

// Len returns the number of registered sockets.
func (p *Poller) Len() int {
	return len(p.interests)
}
