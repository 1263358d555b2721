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

import "go.uber.org/atomic"

// connMap is the registry of live connections keyed by socket fd. It is only
// touched by the reactor goroutine, except for the counter.
type connMap struct {
	connCount atomic.Int32
	connMap   map[int]*conn
}

func (cm *connMap) init() {
	cm.connMap = make(map[int]*conn)
}

func (cm *connMap) iterate(f func(*conn) bool) {
	for _, c := range cm.connMap {
		if !f(c) {
			return
		}
	}
}

func (cm *connMap) loadCount() int32 {
	return cm.connCount.Load()
}

func (cm *connMap) addConn(c *conn) {
	cm.connMap[c.fd] = c
	cm.connCount.Inc()
}

func (cm *connMap) delConn(c *conn) {
	if cm.connMap[c.fd] != c {
		return
	}
	delete(cm.connMap, c.fd)
	cm.connCount.Dec()
}

func (cm *connMap) getConn(fd int) *conn {
	return cm.connMap[fd]
}
