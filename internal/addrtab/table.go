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

// Package addrtab maps every externally-addressable target of archived code
// to a stable small integer id, so relocations written by one process can
// be revived at different addresses in another.
//
// The id wire format, stored as one u32 per relocation:
//
//	0xFFFFFFFF              no-fixup sentinel (address was -1 at store time)
//	[0, extrs+stubs+blobs)  index into the three registration ranges, in
//	                        order: external runtime functions, shared
//	                        stubs, shared call blobs
//	[StringBase, StringBase+MaxStrings)
//	                        interned C-string pool index
//	[DistanceBase, ...)     address = process anchor + (id - DistanceBase)
package addrtab

import (
	"fmt"
	"sync"

	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/rt"
	"github.com/sirupsen/logrus"
)

const (
	// NoFixup is the id of the "same as at store time" sentinel.
	NoFixup = ^uint32(0)

	// StringBase is the first interned C-string id; the three dynamic
	// ranges together never grow past it.
	StringBase = 1024

	// MaxStrings caps the C-string pool.
	MaxStrings = 1024

	// DistanceBase starts the anchor-distance encoding.
	DistanceBase = StringBase + MaxStrings

	maxDistance = int(NoFixup) - DistanceBase
)

var log = logrus.WithField("component", "scarchive")

// Miss is thrown on an id lookup the table cannot serve. The table being
// incomplete for a reachable target is a programmer error; callers recover
// at the artifact boundary and skip the store.
type Miss struct {
	Addr rt.Address
	What string
}

func (self Miss) Error() string {
	return fmt.Sprintf("address %#x for %s is missing in the address table", self.Addr, self.What)
}

// Table is the process-global id directory. It is populated during startup
// and read-only afterwards; AddString is the only mutation past init and
// takes the lock.
type Table struct {
	mu    sync.Mutex
	extrs []rt.Address
	stubs []rt.Address
	blobs []rt.Address
	strs  []rt.Address

	baseDone bool
	optoDone bool

	stubRoutines host.StubRoutines
	codeCache    host.CodeCache
	runtime      host.Runtime
}

func New(w *host.World) *Table {
	return &Table{
		stubRoutines: w.Stubs,
		codeCache:    w.CodeCache,
		runtime:      w.Runtime,
	}
}

// InitBase registers the compiler-independent runtime routines, shared
// stubs and call blobs. Called once during startup.
func (self *Table) InitBase(extrs, stubs, blobs []rt.Address) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.baseDone {
		panic("addrtab: base ranges initialized twice")
	}
	self.extrs = append(self.extrs, extrs...)
	self.stubs = append(self.stubs, stubs...)
	self.blobs = append(self.blobs, blobs...)
	self.checkCapacity()
	self.baseDone = true
}

// InitOpto appends the optimizing compiler's runtime blobs.
func (self *Table) InitOpto(blobs []rt.Address) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.optoDone {
		panic("addrtab: opto range initialized twice")
	}
	self.blobs = append(self.blobs, blobs...)
	self.checkCapacity()
	self.optoDone = true
}

func (self *Table) checkCapacity() {
	if self.rangesLen() > StringBase {
		panic("addrtab: registration ranges overflow the string base")
	}
}

func (self *Table) rangesLen() int {
	return len(self.extrs) + len(self.stubs) + len(self.blobs)
}

// Complete reports whether both population phases have run.
func (self *Table) Complete() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.baseDone && self.optoDone
}

// AddString records the C string at addr, identity-wise. Duplicates and
// calls before the table completes are dropped; the pool is size-capped.
func (self *Table) AddString(addr rt.Address) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.baseDone || !self.optoDone {
		return
	}
	for _, s := range self.strs {
		if s == addr {
			return
		}
	}
	if len(self.strs) >= MaxStrings {
		return
	}
	self.strs = append(self.strs, addr)
}

func searchAddress(addr rt.Address, table []rt.Address) int {
	for i, a := range table {
		if a == addr {
			return i
		}
	}
	return -1
}

// IdForAddress encodes addr. Unknown reachable targets panic with a Miss;
// the store path recovers and discards the artifact.
func (self *Table) IdForAddress(addr rt.Address) uint32 {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.baseDone || !self.optoDone {
		panic("addrtab: table is not complete")
	}
	if addr == rt.BadAddress {
		return NoFixup
	}
	if i := searchAddress(addr, self.strs); i >= 0 {
		return uint32(StringBase + i)
	}
	if self.stubRoutines != nil && self.stubRoutines.Contains(addr) {
		if i := searchAddress(addr, self.stubs); i >= 0 {
			return uint32(len(self.extrs) + i)
		}
		panic(Miss{addr, "stub " + self.stubRoutines.DescName(addr)})
	}
	if name, ok := self.codeCache.FindBlob(addr); ok {
		if i := searchAddress(addr, self.blobs); i >= 0 {
			return uint32(len(self.extrs) + len(self.stubs) + i)
		}
		panic(Miss{addr, "blob " + name})
	}
	if i := searchAddress(addr, self.extrs); i >= 0 {
		return uint32(i)
	}
	if name, off, ok := self.runtime.LibSymbol(addr); ok && off > 0 {
		// Address inside a named symbol: likely a C string or other data,
		// reachable as a distance from the process anchor.
		dist := int(addr) - int(self.runtime.Anchor())
		if dist < 0 || dist >= maxDistance {
			panic(Miss{addr, fmt.Sprintf("runtime data %s+%d out of anchor range", name, off)})
		}
		log.Debugf("address %#x (%s+%d) encoded as anchor distance %d", addr, name, off, dist)
		return uint32(DistanceBase + dist)
	}
	panic(Miss{addr, "runtime target"})
}

// AddressForId decodes id. Invalid ids are fatal.
func (self *Table) AddressForId(id uint32) rt.Address {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.baseDone || !self.optoDone {
		panic("addrtab: table is not complete")
	}
	if id == NoFixup {
		return rt.BadAddress
	}
	if id >= DistanceBase {
		return self.runtime.Anchor() + rt.Address(id-DistanceBase)
	}
	if id >= StringBase {
		i := int(id - StringBase)
		if i >= len(self.strs) {
			panic(fmt.Sprintf("addrtab: string id %d out of range", id))
		}
		return self.strs[i]
	}
	i := int(id)
	if i < len(self.extrs) {
		return self.extrs[i]
	}
	i -= len(self.extrs)
	if i < len(self.stubs) {
		return self.stubs[i]
	}
	i -= len(self.stubs)
	if i < len(self.blobs) {
		return self.blobs[i]
	}
	panic(fmt.Sprintf("addrtab: id %d out of range", id))
}

// InitStrings replaces the string range wholesale. The load side uses it
// to seed the pool with the archive's persisted strings, in store order, so
// string ids decode positionally.
func (self *Table) InitStrings(addrs []rt.Address) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.strs = append([]rt.Address(nil), addrs...)
}

// StringCount is the current C-string pool size.
func (self *Table) StringCount() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.strs)
}

// StringAt returns the i-th pooled C-string address.
func (self *Table) StringAt(i int) rt.Address {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.strs[i]
}
