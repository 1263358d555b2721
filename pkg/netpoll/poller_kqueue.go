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

//go:build darwin || dragonfly || freebsd

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd        int // kqueue fd
	el        *eventList
	interests interestSet
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.Kqueue(); err != nil {
		poller = nil
		err = os.NewSyscallError("kqueue", err)
		return
	}
	unix.CloseOnExec(poller.fd)
	if err = poller.addWakeupEvent(); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("kevent add", err)
		return
	}
	poller.el = newEventList(InitPollEventsCap)
	poller.interests = make(interestSet)
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// Wake interrupts a blocked Wait, which then returns an empty event set.
func (p *Poller) Wake() error {
	return os.NewSyscallError("kevent trigger", p.wakePoller())
}

// Wait blocks until at least one registered socket is ready or Wake is called.
// It reuses the memory of events, discarding whatever it held before.
func (p *Poller) Wait(events []Event) ([]Event, error) {
	events = events[:0]
	for {
		n, err := unix.Kevent(p.fd, nil, p.el.events, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return events, os.NewSyscallError("kevent wait", err)
		}

		var woken bool
		for i := 0; i < n; i++ {
			ev := &p.el.events[i]
			if ev.Filter == unix.EVFILT_USER {
				woken = true
				continue
			}
			fd := int(ev.Ident)
			if interest, ok := p.interests[fd]; ok {
				events = append(events, Event{FD: fd, Interest: interest})
			}
		}

		if n == p.el.size {
			p.el.expand()
		} else if n < p.el.size>>1 {
			p.el.shrink()
		}

		if len(events) > 0 || woken {
			return events, nil
		}
	}
}

func filterOf(interest Interest) int {
	if interest == Write {
		return unix.EVFILT_WRITE
	}
	return unix.EVFILT_READ
}

// Register declares the interest of fd, which must not be registered already.
func (p *Poller) Register(fd int, interest Interest) error {
	if err := p.interests.checkRegister(fd, interest); err != nil {
		return err
	}
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filterOf(interest), unix.EV_ADD)
	if _, err := unix.Kevent(p.fd, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return os.NewSyscallError("kevent add", err)
	}
	p.interests[fd] = interest
	return nil
}

// Deregister removes all interest of fd.
func (p *Poller) Deregister(fd int) error {
	cur, err := p.interests.checkDeregister(fd)
	if err != nil {
		return err
	}
	delete(p.interests, fd)
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filterOf(cur), unix.EV_DELETE)
	_, err = unix.Kevent(p.fd, []unix.Kevent_t{ev}, nil, nil)
	return os.NewSyscallError("kevent delete", err)
}
