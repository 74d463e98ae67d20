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

// Package code models the host runtime's code buffer: a fixed tuple of code
// sections (instructions, stubs, constants), each with a virtual start
// address, backing bytes and relocation records.
package code

import (
	"fmt"

	"github.com/bytedance/gopkg/lang/dirtmake"
	"github.com/cloudwego/scarchive/internal/rt"
)

const (
	SectInsts = iota
	SectStubs
	SectConsts
	SectLimit
)

// Section is one region of generated code. A "fake" section, used on load
// to recover inter-section deltas, carries only start and size with no
// backing bytes.
type Section struct {
	bits      []byte
	start     rt.Address
	size      int
	locs      []uint32
	locsPoint rt.Address
}

// NewSection allocates a section of the given capacity. Its virtual start
// address is the real address of the backing bytes, so patched words hold
// addresses valid in this process.
func NewSection(capacity int) *Section {
	s := &Section{}
	if capacity > 0 {
		s.bits = dirtmake.Bytes(capacity, capacity)
		s.start = rt.AddressOf(s.bits)
	}
	return s
}

// InitializeFake sets up a bit-less section describing where code lived in
// another process.
func (self *Section) InitializeFake(start rt.Address, size int) {
	self.bits = nil
	self.start = start
	self.size = size
}

func (self *Section) Start() rt.Address { return self.start }
func (self *Section) End() rt.Address { return self.start + rt.Address(self.size) }
func (self *Section) Size() int { return self.size }
func (self *Section) Capacity() int { return len(self.bits) }
func (self *Section) IsFake() bool { return self.bits == nil && self.size > 0 }

// Bytes is the filled part of the section.
func (self *Section) Bytes() []byte { return self.bits[:self.size] }

// SetEnd moves the fill point. addr must lie within the section bounds.
func (self *Section) SetEnd(addr rt.Address) {
	n := int(addr - self.start)
	if n < 0 || n > len(self.bits) {
		panic(fmt.Sprintf("code: end %#x outside section [%#x,%#x]", addr, self.start, self.start+rt.Address(len(self.bits))))
	}
	self.size = n
}

// Append copies b at the fill point and advances it.
func (self *Section) Append(b []byte) bool {
	if self.size+len(b) > len(self.bits) {
		return false
	}
	copy(self.bits[self.size:], b)
	self.size += len(b)
	return true
}

// Contains reports whether addr lies within the filled section.
func (self *Section) Contains(addr rt.Address) bool {
	return addr >= self.start && addr < self.start+rt.Address(self.size)
}

// WordAt reads the 64-bit patch word at addr.
func (self *Section) WordAt(addr rt.Address) uint64 {
	return rt.WordAt(self.bits, self.offset(addr))
}

// PutWordAt writes the 64-bit patch word at addr.
func (self *Section) PutWordAt(addr rt.Address, v uint64) {
	rt.PutWordAt(self.bits, self.offset(addr), v)
}

func (self *Section) offset(addr rt.Address) int {
	off := int(addr - self.start)
	if off < 0 || off+8 > len(self.bits) {
		panic(fmt.Sprintf("code: address %#x outside section [%#x,%#x)", addr, self.start, self.start+rt.Address(len(self.bits))))
	}
	return off
}

// Relocation records. Locs hold the raw words defined by package reloc;
// LocsPoint is the address the deltas were last normalized against.
func (self *Section) Locs() []uint32 { return self.locs }
func (self *Section) SetLocs(locs []uint32) { self.locs = locs }
func (self *Section) HasLocs() bool { return len(self.locs) > 0 }
func (self *Section) LocsPoint() rt.Address { return self.locsPoint }
func (self *Section) SetLocsPoint(a rt.Address) { self.locsPoint = a }

// LocsPointOff is LocsPoint as an offset from the section start.
func (self *Section) LocsPointOff() int {
	if self.locsPoint == 0 {
		return 0
	}
	return int(self.locsPoint - self.start)
}

// Buffer is the fixed tuple of sections handed across the archive boundary.
type Buffer struct {
	name  string
	sects [SectLimit]*Section
}

// NewBuffer creates a buffer with empty sections.
func NewBuffer(name string) *Buffer {
	b := &Buffer{name: name}
	for i := range b.sects {
		b.sects[i] = &Section{}
	}
	return b
}

// NewBufferSized creates a buffer whose sections have the given capacities.
func NewBufferSized(name string, capacity [SectLimit]int) *Buffer {
	b := &Buffer{name: name}
	for i := range b.sects {
		b.sects[i] = NewSection(capacity[i])
	}
	return b
}

func (self *Buffer) Name() string { return self.name }

func (self *Buffer) Section(i int) *Section {
	return self.sects[i]
}

// SetSection replaces a section; the load path uses it to materialize
// sections sized from the archive.
func (self *Buffer) SetSection(i int, s *Section) {
	self.sects[i] = s
}

// TotalSize is the sum of all section sizes.
func (self *Buffer) TotalSize() int {
	n := 0
	for _, s := range self.sects {
		n += s.Size()
	}
	return n
}

// FindSection returns the index of the section containing addr, or -1.
func (self *Buffer) FindSection(addr rt.Address) int {
	for i, s := range self.sects {
		if addr >= s.Start() && addr < s.End() {
			return i
		}
	}
	return -1
}
