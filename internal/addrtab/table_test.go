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

package addrtab

import (
	"testing"

	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/rt"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	stubLo, stubHi rt.Address
	blobs          map[rt.Address]string
	anchor         rt.Address
	libSyms        map[rt.Address]int
}

func (f *fakeRuntime) Contains(addr rt.Address) bool {
	return addr >= f.stubLo && addr < f.stubHi
}

func (f *fakeRuntime) DescName(addr rt.Address) string { return "fake_stub" }

func (f *fakeRuntime) FindBlob(addr rt.Address) (string, bool) {
	name, ok := f.blobs[addr]
	return name, ok
}

func (f *fakeRuntime) Anchor() rt.Address { return f.anchor }

func (f *fakeRuntime) LibSymbol(addr rt.Address) (string, int, bool) {
	off, ok := f.libSyms[addr]
	return "libsym", off, ok
}

const (
	extrA  rt.Address = 0x500000
	extrB  rt.Address = 0x500100
	stubA  rt.Address = 0x7f0000100010
	blobA  rt.Address = 0x7f0000400000
	anchor rt.Address = 0x7f0000000000
)

func newFakeTable() (*Table, *fakeRuntime) {
	f := &fakeRuntime{
		stubLo:  0x7f0000100000,
		stubHi:  0x7f0000200000,
		blobs:   map[rt.Address]string{blobA: "deopt"},
		anchor:  anchor,
		libSyms: map[rt.Address]int{anchor + 0x42: 7},
	}
	tab := New(&host.World{CodeCache: f, Stubs: f, Runtime: f})
	tab.InitBase([]rt.Address{extrA, extrB}, []rt.Address{stubA}, nil)
	tab.InitOpto([]rt.Address{blobA})
	return tab, f
}

func TestIdRanges(t *testing.T) {
	tab, _ := newFakeTable()

	require.Equal(t, uint32(0), tab.IdForAddress(extrA))
	require.Equal(t, uint32(1), tab.IdForAddress(extrB))
	require.Equal(t, uint32(2), tab.IdForAddress(stubA))
	require.Equal(t, uint32(3), tab.IdForAddress(blobA))

	for _, addr := range []rt.Address{extrA, extrB, stubA, blobA} {
		require.Equal(t, addr, tab.AddressForId(tab.IdForAddress(addr)))
	}
}

func TestNoFixupSentinel(t *testing.T) {
	tab, _ := newFakeTable()
	require.Equal(t, NoFixup, tab.IdForAddress(rt.BadAddress))
	require.Equal(t, rt.BadAddress, tab.AddressForId(NoFixup))
}

func TestStringRange(t *testing.T) {
	tab, _ := newFakeTable()
	s1, s2 := rt.Address(0x600000), rt.Address(0x600040)
	tab.AddString(s1)
	tab.AddString(s2)
	tab.AddString(s1) // identity dedup
	require.Equal(t, 2, tab.StringCount())

	require.Equal(t, uint32(StringBase), tab.IdForAddress(s1))
	require.Equal(t, uint32(StringBase+1), tab.IdForAddress(s2))
	require.Equal(t, s1, tab.AddressForId(StringBase))
	require.Equal(t, s2, tab.AddressForId(StringBase+1))
}

func TestStringsDroppedBeforeComplete(t *testing.T) {
	f := &fakeRuntime{}
	tab := New(&host.World{CodeCache: f, Stubs: f, Runtime: f})
	tab.AddString(0x600000)
	tab.InitBase(nil, nil, nil)
	tab.AddString(0x600000)
	tab.InitOpto(nil)
	require.Equal(t, 0, tab.StringCount())
	tab.AddString(0x600000)
	require.Equal(t, 1, tab.StringCount())
}

func TestAnchorDistanceFallback(t *testing.T) {
	tab, f := newFakeTable()
	addr := f.anchor + 0x42
	id := tab.IdForAddress(addr)
	require.GreaterOrEqual(t, id, uint32(DistanceBase))
	require.Equal(t, addr, tab.AddressForId(id))
}

func TestMisses(t *testing.T) {
	tab, _ := newFakeTable()

	// A stub-range address that was never registered.
	require.Panics(t, func() { tab.IdForAddress(stubA + 8) })
	// A blob address that was never registered.
	require.Panics(t, func() { tab.IdForAddress(blobA + 8) })
	// Unknown runtime target with no lib symbol.
	require.Panics(t, func() { tab.IdForAddress(0x900000) })
	// Invalid decode ids are fatal.
	require.Panics(t, func() { tab.AddressForId(99) })
	require.Panics(t, func() { tab.AddressForId(StringBase + 5) })
}

func TestIncompleteTable(t *testing.T) {
	f := &fakeRuntime{}
	tab := New(&host.World{CodeCache: f, Stubs: f, Runtime: f})
	require.Panics(t, func() { tab.IdForAddress(extrA) })
	tab.InitBase([]rt.Address{extrA}, nil, nil)
	require.Panics(t, func() { tab.IdForAddress(extrA) })
	tab.InitOpto(nil)
	require.Equal(t, uint32(0), tab.IdForAddress(extrA))
	require.True(t, tab.Complete())
}

func TestInitStrings(t *testing.T) {
	tab, _ := newFakeTable()
	tab.AddString(0x1111)
	tab.InitStrings([]rt.Address{0x2222, 0x3333})
	require.Equal(t, 2, tab.StringCount())
	require.Equal(t, rt.Address(0x2222), tab.AddressForId(StringBase))
}
