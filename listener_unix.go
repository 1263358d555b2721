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
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/lineecho/internal/socket"
	errorx "github.com/panjf2000/lineecho/pkg/errors"
	"github.com/panjf2000/lineecho/pkg/logging"
)

type listener struct {
	once             sync.Once
	fd               int
	addr             net.Addr
	address, network string
	sockOpts         []socket.Option
}

func (ln *listener) normalize() (err error) {
	switch ln.network {
	case "tcp", "tcp4", "tcp6":
		ln.fd, ln.addr, err = socket.TCPSocket(ln.network, ln.address, ln.sockOpts...)
		ln.network = "tcp"
	default:
		err = errorx.ErrUnsupportedProtocol
	}
	return
}

func (ln *listener) close() {
	ln.once.Do(
		func() {
			if ln.fd > 0 {
				logging.Error(os.NewSyscallError("close", unix.Close(ln.fd)))
			}
		})
}

func initListener(network, addr string, options *Options) (l *listener, err error) {
	var sockOpts []socket.Option
	if options.ReuseAddr {
		sockOpts = append(sockOpts, socket.Option{SetSockopt: socket.SetReuseAddr, Opt: 1})
	}
	if options.ReusePort {
		sockOpts = append(sockOpts, socket.Option{SetSockopt: socket.SetReuseport, Opt: 1})
	}
	l = &listener{network: network, address: addr, sockOpts: sockOpts}
	err = l.normalize()
	return
}
