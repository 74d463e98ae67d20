/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reloc

import (
	"testing"

	"github.com/cloudwego/scarchive/internal/rt"
	"github.com/stretchr/testify/require"
)

func TestHeadPacking(t *testing.T) {
	w := MakeHead(RuntimeCall, 2, 0x1234)
	require.Equal(t, RuntimeCall, headType(w))
	require.Equal(t, 2, headLen(w))
	require.Equal(t, 0x1234, headDelta(w))

	require.Panics(t, func() { MakeHead(Oop, MaxData+1, 0) })
	require.Panics(t, func() { MakeHead(Oop, 0, MaxDelta+1) })
}

func TestIteratorWalk(t *testing.T) {
	const start rt.Address = 0x1000
	b := NewBuilder(start)
	b.Add(RuntimeCall, start+0)
	b.Add(Oop, start+8)
	b.Add(InternalWord, start+16, 2, 40)
	b.Add(Poll, start+16) // same address is legal

	it := NewIterator(b.Locs(), start)

	require.True(t, it.Next())
	require.Equal(t, RuntimeCall, it.Type())
	require.Equal(t, start, it.Addr())
	require.Empty(t, it.Data())

	require.True(t, it.Next())
	require.Equal(t, Oop, it.Type())
	require.Equal(t, start+8, it.Addr())

	require.True(t, it.Next())
	require.Equal(t, InternalWord, it.Type())
	require.Equal(t, start+16, it.Addr())
	require.Equal(t, []uint32{2, 40}, it.Data())

	require.True(t, it.Next())
	require.Equal(t, Poll, it.Type())
	require.Equal(t, start+16, it.Addr())

	require.False(t, it.Next())
}

func TestIteratorPayloadMutable(t *testing.T) {
	b := NewBuilder(0)
	b.Add(ExternalWord, 0, 0xAAAA, 0xBBBB)
	locs := b.Locs()

	it := NewIterator(locs, 0)
	require.True(t, it.Next())
	it.Data()[0] = 0x1111
	require.Equal(t, uint32(0x1111), locs[1])
}

func TestBuilderOrder(t *testing.T) {
	b := NewBuilder(0x100)
	b.Add(None, 0x108)
	require.Panics(t, func() { b.Add(None, 0x100) })
}

func TestCount(t *testing.T) {
	b := NewBuilder(0)
	require.Equal(t, 0, Count(b.Locs()))
	b.Add(RuntimeCall, 0)
	b.Add(Metadata, 8, 3)
	require.Equal(t, 2, Count(b.Locs()))

	// Truncated payload.
	locs := []uint32{MakeHead(Metadata, 2, 0), 1}
	require.Equal(t, -1, Count(locs))

	// Unknown type byte.
	require.Equal(t, -1, Count([]uint32{0xFF << 24}))
}

func TestPackAddress(t *testing.T) {
	for _, addr := range []rt.Address{0, 1, 0xFFFFFFFF, 0x100000000, 0x7f0000123456} {
		require.Equal(t, addr, UnpackAddress(PackAddress(addr)))
	}
	require.Len(t, PackAddress(0xFFFFFFFF), 1)
	require.Len(t, PackAddress(0x100000000), 2)
}
