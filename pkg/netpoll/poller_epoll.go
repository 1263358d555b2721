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

//go:build linux

package netpoll

import (
	"os"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd        int    // epoll fd
	efd       int    // eventfd used by Wake
	efdBuf    []byte // efd buffer to drain the wakeup counter
	el        *eventList
	interests interestSet
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.efd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		err = os.NewSyscallError("eventfd", err)
		return
	}
	ev := unix.EpollEvent{Fd: int32(poller.efd), Events: ReadEvents}
	if err = unix.EpollCtl(poller.fd, unix.EPOLL_CTL_ADD, poller.efd, &ev); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("epoll_ctl add", err)
		return
	}
	poller.efdBuf = make([]byte, 8)
	poller.el = newEventList(InitPollEventsCap)
	poller.interests = make(interestSet)
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	return multierr.Append(
		os.NewSyscallError("close", unix.Close(p.fd)),
		os.NewSyscallError("close", unix.Close(p.efd)),
	)
}

// Make the endianness of bytes compatible with more linux OSs under different processor-architectures,
// according to http://man7.org/linux/man-pages/man2/eventfd.2.html.
var (
	u uint64 = 1
	b        = (*(*[8]byte)(unsafe.Pointer(&u)))[:]
)

// Wake interrupts a blocked Wait, which then returns an empty event set.
func (p *Poller) Wake() (err error) {
	for _, err = unix.Write(p.efd, b); err == unix.EINTR; _, err = unix.Write(p.efd, b) {
	}
	if err == unix.EAGAIN {
		// The counter is saturated, a wakeup is already pending.
		return nil
	}
	return os.NewSyscallError("write", err)
}

// Wait blocks until at least one registered socket is ready or Wake is called.
// It reuses the memory of events, discarding whatever it held before.
func (p *Poller) Wait(events []Event) ([]Event, error) {
	events = events[:0]
	for {
		n, err := unix.EpollWait(p.fd, p.el.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return events, os.NewSyscallError("epoll_wait", err)
		}

		var woken bool
		for i := 0; i < n; i++ {
			ev := &p.el.events[i]
			fd := int(ev.Fd)
			if fd == p.efd {
				woken = true
				_, _ = unix.Read(p.efd, p.efdBuf)
				continue
			}
			// Sockets deregistered since the kernel queued the event are skipped.
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

// Register declares the interest of fd, which must not be registered already.
func (p *Poller) Register(fd int, interest Interest) error {
	if err := p.interests.checkRegister(fd, interest); err != nil {
		return err
	}
	ev := unix.EpollEvent{Fd: int32(fd), Events: ReadEvents}
	if interest == Write {
		ev.Events = WriteEvents
	}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	p.interests[fd] = interest
	return nil
}

// Deregister removes all interest of fd.
func (p *Poller) Deregister(fd int) error {
	if _, err := p.interests.checkDeregister(fd); err != nil {
		return err
	}
	delete(p.interests, fd)
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}

