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

package socket

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const somaxconnPath = "/proc/sys/net/core/somaxconn"

func sysSocket(family, sotype, proto int) (int, error) {
	return unix.Socket(family, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
}

// maxListenerBacklog reads net.core.somaxconn, capped to the uint16 the kernel keeps it in.
func maxListenerBacklog() int {
	data, err := os.ReadFile(somaxconnPath)
	if err != nil {
		return unix.SOMAXCONN
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	switch {
	case err != nil || n <= 0:
		return unix.SOMAXCONN
	case n > 1<<16-1:
		return 1<<16 - 1
	default:
		return n
	}
}
