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

// Package fixed provides a fixed-capacity byte buffer that is filled by one
// read and drained by one or more writes, tracking the unwritten part as an
// (offset, length) view over the owned memory.
package fixed

import "github.com/panjf2000/lineecho/pkg/pool/byteslice"

// Buffer is a fixed-capacity byte buffer.
//
// Bytes in [r, w) have been filled but not yet drained, the space in [w, cap)
// is free for filling. The memory is taken from a pool once, reused after Reset
// and handed back by Release.
type Buffer struct {
	buf []byte
	r   int // next position to drain
	w   int // next position to fill
}

// New returns a Buffer with the given capacity.
func New(size int) *Buffer {
	return &Buffer{buf: byteslice.Get(size)}
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Free returns the writable tail of the buffer, the destination for the next fill.
func (b *Buffer) Free() []byte {
	return b.buf[b.w:]
}

// Commit marks n bytes of Free as filled and returns the number actually committed.
func (b *Buffer) Commit(n int) int {
	if n <= 0 {
		return 0
	}
	if free := len(b.buf) - b.w; n > free {
		n = free
	}
	b.w += n
	return n
}

// Bytes returns the filled but undrained bytes without consuming them.
// The returned slice aliases the buffer and is only valid until the next mutation.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.r:b.w]
}

// Remaining returns the number of filled but undrained bytes.
func (b *Buffer) Remaining() int {
	return b.w - b.r
}

// Advance drains n bytes and returns the number actually drained.
func (b *Buffer) Advance(n int) int {
	if n <= 0 {
		return 0
	}
	if rem := b.w - b.r; n > rem {
		n = rem
	}
	b.r += n
	return n
}

// IsEmpty tells if nothing is left to drain.
func (b *Buffer) IsEmpty() bool {
	return b.r == b.w
}

// Reset clears the buffer for reuse.
func (b *Buffer) Reset() {
	b.r, b.w = 0, 0
}

// Release hands the memory back to the pool, the buffer has no capacity afterwards.
func (b *Buffer) Release() {
	byteslice.Put(b.buf)
	b.buf = nil
	b.r, b.w = 0, 0
}
