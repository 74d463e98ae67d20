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

package archive

import (
	"sync/atomic"
	"unsafe"
)

// Kind discriminates archived artifacts.
type Kind uint32

const (
	KindNone Kind = iota
	KindStub
	KindBlob
	KindCode
)

func (k Kind) String() string {
	switch k {
	case KindStub:
		return "stub"
	case KindBlob:
		return "blob"
	case KindCode:
		return "code"
	}
	return "none"
}

// ExceptionBlobID is the id of the single well-known exception blob.
const ExceptionBlobID = 999

// Entry is one positional record of the entries table: thirteen u32 fields,
// stored verbatim. On load, the table is a view into the archive buffer and
// notEntrant is the only field ever mutated (in memory, never on disk).
type Entry struct {
	offset      uint32
	size        uint32
	nameOffset  uint32
	nameSize    uint32
	codeOffset  uint32
	codeSize    uint32
	relocOffset uint32
	relocSize   uint32
	kind        Kind
	id          uint32
	idx         uint32
	decompile   uint32
	notEntrant  uint32
}

const entrySize = int(unsafe.Sizeof(Entry{}))

func (self *Entry) Offset() int      { return int(self.offset) }
func (self *Entry) Size() int        { return int(self.size) }
func (self *Entry) NameOffset() int  { return int(self.nameOffset) }
func (self *Entry) NameSize() int    { return int(self.nameSize) }
func (self *Entry) CodeOffset() int  { return int(self.codeOffset) }
func (self *Entry) CodeSize() int    { return int(self.codeSize) }
func (self *Entry) RelocOffset() int { return int(self.relocOffset) }
func (self *Entry) RelocSize() int   { return int(self.relocSize) }
func (self *Entry) Kind() Kind       { return self.kind }
func (self *Entry) Id() uint32       { return self.id }
func (self *Entry) Idx() int         { return int(self.idx) }
func (self *Entry) Decompile() int   { return int(self.decompile) }

func (self *Entry) NotEntrant() bool {
	return atomic.LoadUint32(&self.notEntrant) != 0
}

// MarkNotEntrant is the post-load sticky bit: once set, the entry is
// skipped by future lookups. Monotone.
func (self *Entry) MarkNotEntrant() {
	atomic.StoreUint32(&self.notEntrant, 1)
}

// entriesView casts the raw table bytes into the entry array without
// copying. The view's lifetime equals the archive's.
func entriesView(b []byte, count int) []Entry {
	if count == 0 {
		return nil
	}
	return unsafe.Slice((*Entry)(unsafe.Pointer(&b[0])), count)
}

// encodeEntries serializes the pending entries at finalize. The in-memory
// layout is the wire layout (thirteen u32, little-endian hosts only).
func encodeEntries(entries []Entry) []byte {
	if len(entries) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&entries[0])), len(entries)*entrySize)
}
