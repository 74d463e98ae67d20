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

// Package reloc defines the relocation record format attached to code
// sections and the iterator used to walk and patch them.
//
// One relocation is a head word followed by datalen inline payload words,
// all little-endian u32:
//
//	head: type(8) | datalen(8) | offsetDelta(16)
//
// offsetDelta is the byte distance from the previous relocation's address
// (from the section start for the first record). A relocation patches the
// 64-bit little-endian word at its address inside the section.
package reloc

import (
	"fmt"

	"github.com/cloudwego/scarchive/internal/rt"
)

type Type uint8

const (
	None Type = iota
	Oop
	Metadata
	VirtualCall
	OptVirtualCall
	StaticCall
	StaticStub
	RuntimeCall
	RuntimeCallWCP
	ExternalWord
	InternalWord
	SectionWord
	Poll
	PollReturn
	PostCallNop
	typeLimit
)

var typeNames = [...]string{
	"none", "oop", "metadata", "virtual_call", "opt_virtual_call",
	"static_call", "static_stub", "runtime_call", "runtime_call_w_cp",
	"external_word", "internal_word", "section_word", "poll", "poll_return",
	"post_call_nop",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("reloc_type(%d)", uint8(t))
}

// IsCall reports whether the relocation carries a call destination word.
func (t Type) IsCall() bool {
	switch t {
	case VirtualCall, OptVirtualCall, StaticCall, RuntimeCall:
		return true
	}
	return false
}

const (
	// MaxDelta bounds the head word's offsetDelta field.
	MaxDelta = 1<<16 - 1
	// MaxData bounds the inline payload length in words.
	MaxData = 1<<8 - 1
)

// MakeHead packs a record head word.
func MakeHead(t Type, datalen int, delta int) uint32 {
	if datalen < 0 || datalen > MaxData {
		panic(fmt.Sprintf("reloc: datalen %d out of range", datalen))
	}
	if delta < 0 || delta > MaxDelta {
		panic(fmt.Sprintf("reloc: offset delta %d out of range", delta))
	}
	return uint32(t)<<24 | uint32(datalen)<<16 | uint32(delta)
}

func headType(w uint32) Type { return Type(w >> 24) }
func headLen(w uint32) int   { return int(w>>16) & 0xff }
func headDelta(w uint32) int { return int(w & 0xffff) }

// Count walks locs and returns the number of records, or -1 when the stream
// is malformed (truncated payload or unknown type).
func Count(locs []uint32) int {
	n := 0
	for i := 0; i < len(locs); {
		w := locs[i]
		if headType(w) >= typeLimit {
			return -1
		}
		i += 1 + headLen(w)
		if i > len(locs) {
			return -1
		}
		n++
	}
	return n
}

// Iterator is a typed walker over a section's raw relocation words. Payload
// views returned by Data alias the underlying slice so fix-up code can
// rewrite payloads in place.
type Iterator struct {
	locs []uint32
	pos  int
	addr rt.Address
	cur  int // head index of current record, -1 before first Next
}

func NewIterator(locs []uint32, start rt.Address) *Iterator {
	return &Iterator{locs: locs, addr: start, cur: -1}
}

func (self *Iterator) Next() bool {
	if self.cur >= 0 {
		self.pos = self.cur + 1 + headLen(self.locs[self.cur])
	}
	if self.pos >= len(self.locs) {
		return false
	}
	w := self.locs[self.pos]
	if self.pos+1+headLen(w) > len(self.locs) {
		panic("reloc: truncated relocation payload")
	}
	self.addr += rt.Address(headDelta(w))
	self.cur = self.pos
	return true
}

func (self *Iterator) Type() Type {
	return headType(self.locs[self.cur])
}

// Addr is the absolute address of the patched word within the section.
func (self *Iterator) Addr() rt.Address {
	return self.addr
}

// Data returns the record's inline payload words. The view is mutable.
func (self *Iterator) Data() []uint32 {
	n := headLen(self.locs[self.cur])
	return self.locs[self.cur+1 : self.cur+1+n]
}

// PackAddress splits addr into little-endian u32 chunks with leading zero
// chunks dropped, the inline form used by external_word payloads.
func PackAddress(addr rt.Address) []uint32 {
	v := uint64(addr)
	if v == 0 {
		return []uint32{0}
	}
	var out []uint32
	for v != 0 {
		out = append(out, uint32(v))
		v >>= 32
	}
	return out
}

// UnpackAddress is the inverse of PackAddress.
func UnpackAddress(words []uint32) rt.Address {
	var v uint64
	for i := len(words) - 1; i >= 0; i-- {
		v = v<<32 | uint64(words[i])
	}
	return rt.Address(v)
}
