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

package byteslice

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	assert.Nil(t, Get(0))
	assert.Nil(t, Get(-1))

	for _, size := range []int{1, 7, 8, 500, 512, 513} {
		buf := Get(size)
		assert.Len(t, buf, size)
		assert.GreaterOrEqual(t, cap(buf), size)
		assert.Zero(t, cap(buf)&(cap(buf)-1), "capacity %d is not a power of two", cap(buf))
		Put(buf)
	}
}

func TestReuse(t *testing.T) {
	// keep the pooled array alive until it is fetched again
	gc := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gc)

	buf := Get(512)
	buf[0], buf[1] = 'f', 'f'
	Put(buf)

	again := Get(300)
	require.Len(t, again, 300)
	assert.Same(t, &buf[0], &again[0], "expect the pooled array to be handed out again")
	assert.Equal(t, "ff", string(again[:2]))
}

func TestPutOddCapacity(t *testing.T) {
	var p Pool
	gc := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gc)

	odd := make([]byte, 10, 100)
	p.Put(odd)

	// a 100-byte array lands in the 64-byte class
	buf := p.Get(64)
	assert.Len(t, buf, 64)
	assert.Same(t, &odd[0], &buf[0])
	assert.Equal(t, 64, cap(buf))
}

func BenchmarkByteSlice(b *testing.B) {
	b.Run("Run.N", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			bs := Get(512)
			Put(bs)
		}
	})
	b.Run("Run.Parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				bs := Get(512)
				Put(bs)
			}
		})
	})
}
