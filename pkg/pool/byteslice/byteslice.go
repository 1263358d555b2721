// Copyright (c) 2021 Andy Pan
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

// Package byteslice pools byte slices by power-of-two capacity classes.
package byteslice

import (
	"math"
	"math/bits"
	"sync"
	"unsafe"
)

var builtinPool Pool

// Pool holds one sync.Pool per capacity class, class i serving slices of capacity 1<<i.
type Pool struct {
	classes [32]sync.Pool
}

// Get returns a byte slice of the given length from the built-in pool.
func Get(size int) []byte {
	return builtinPool.Get(size)
}

// Put hands buf back to the built-in pool.
func Put(buf []byte) {
	builtinPool.Put(buf)
}

// Get returns a byte slice of length size, reusing a pooled array when there is one.
// The contents of a reused array are not cleared.
func (p *Pool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	if size > math.MaxInt32 {
		return make([]byte, size)
	}
	class := classOf(uint32(size))
	ptr, _ := p.classes[class].Get().(*byte)
	if ptr == nil {
		return make([]byte, size, 1<<class)
	}
	return unsafe.Slice(ptr, 1<<class)[:size]
}

// Put hands buf back to the pool. A slice whose capacity is not a power of two
// goes to the class below, so that Get never hands out less than it promises.
func (p *Pool) Put(buf []byte) {
	size := cap(buf)
	if size == 0 || size > math.MaxInt32 {
		return
	}
	class := classOf(uint32(size))
	if size != 1<<class {
		class--
	}
	p.classes[class].Put(&buf[:1][0])
}

func classOf(n uint32) uint32 {
	return uint32(bits.Len32(n - 1))
}
