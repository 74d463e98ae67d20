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
	"fmt"

	"github.com/cloudwego/scarchive/internal/addrtab"
	"github.com/cloudwego/scarchive/internal/code"
	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/reloc"
	"github.com/cloudwego/scarchive/internal/rt"
)

// Per section the store writes: record count (and nothing more when it is
// zero), locs point offset, raw word count, the raw relocation words
// exactly as the section carries them, one u32 of
// auxiliary data per record, and finally the immediates the auxiliary data
// marked, in iteration order. Re-reading the same byte sequence lets the
// load side run a live iterator over the new section cheaply; the auxiliary
// payload carries only what the raw words cannot: cross-process identities.

// writeRelocations stores every section's relocations. Returns the largest
// per-section locs byte size, the entry's reloc_size.
func (self *Archive) writeRelocations(buffer *code.Buffer) (int, Result) {
	maxLocsSize := 0
	for i := 0; i < code.SectLimit; i++ {
		cs := buffer.Section(i)
		locs := cs.Locs()
		count := reloc.Count(locs)
		if count < 0 {
			panic(fmt.Sprintf("malformed relocations in section %d of %s", i, buffer.Name()))
		}
		if !self.writeI32(count) {
			return 0, ArchiveFailed
		}
		if count == 0 {
			continue
		}
		if n := len(locs) * 4; n > maxLocsSize {
			maxLocsSize = n
		}
		if !self.writeI32(cs.LocsPointOff()) || !self.writeI32(len(locs)) || !self.writeU32Slice(locs) {
			return 0, ArchiveFailed
		}
		aux := make([]uint32, count)
		type immediate struct {
			oop  bool
			h    host.Handle
			meta host.Metadata
		}
		var imms []immediate
		it := reloc.NewIterator(locs, cs.Start())
		for j := 0; it.Next(); j++ {
			switch it.Type() {
			case reloc.None, reloc.Poll, reloc.PollReturn, reloc.PostCallNop:
			case reloc.StaticStub, reloc.InternalWord, reloc.SectionWord:
				// Section-relative; the raw words already carry the target.
			case reloc.Oop:
				if relocIsImmediate(it) {
					aux[j] = uint32(j)
					imms = append(imms, immediate{oop: true, h: host.Handle(cs.WordAt(it.Addr()))})
				}
			case reloc.Metadata:
				if relocIsImmediate(it) {
					aux[j] = uint32(j)
					imms = append(imms, immediate{meta: self.world.Universe.MetadataOf(cs.WordAt(it.Addr()))})
				}
			case reloc.VirtualCall, reloc.OptVirtualCall, reloc.StaticCall, reloc.RuntimeCall:
				aux[j] = self.table.IdForAddress(rt.Address(cs.WordAt(it.Addr())))
			case reloc.ExternalWord:
				aux[j] = self.table.IdForAddress(rt.Address(cs.WordAt(it.Addr())))
			case reloc.RuntimeCallWCP:
				panic("runtime_call_w_cp relocations are unsupported")
			default:
				panic(fmt.Sprintf("relocation %s unimplemented", it.Type()))
			}
		}
		if !self.writeU32Slice(aux) {
			return 0, ArchiveFailed
		}
		for _, im := range imms {
			var res Result
			if im.oop {
				res = self.writeOop(im.h)
			} else {
				res = self.writeMetadata(im.meta, nil)
			}
			if !res.ok() {
				return 0, res
			}
		}
	}
	return maxLocsSize, Ok
}

// relocIsImmediate: an oop or metadata record with payload word 0 carries
// its value in-line in the instruction; a non-zero payload is an index into
// the recorder's side table.
func relocIsImmediate(it *reloc.Iterator) bool {
	d := it.Data()
	return len(d) == 0 || d[0] == 0
}

// readRelocations re-creates every section's relocations against the new
// buffer and applies the fix-up state machine.
func (self *reader) readRelocations(buffer, orig *code.Buffer) Result {
	for i := 0; i < code.SectLimit; i++ {
		count, ok := self.readI32()
		if !ok {
			return ArchiveFailed
		}
		if count == 0 {
			continue
		}
		locsPointOff, ok := self.readI32()
		if !ok {
			return ArchiveFailed
		}
		words, ok := self.readI32()
		if !ok || words < count {
			return ArchiveFailed
		}
		locs, ok := self.readU32Slice(words)
		if !ok || reloc.Count(locs) != count {
			return ArchiveFailed
		}
		cs := buffer.Section(i)
		cs.SetLocs(locs)
		cs.SetLocsPoint(cs.Start() + rt.Address(locsPointOff))
		aux, ok := self.readU32Slice(count)
		if !ok {
			return ArchiveFailed
		}
		it := reloc.NewIterator(locs, cs.Start())
		for j := 0; it.Next(); j++ {
			if j >= count {
				return ArchiveFailed
			}
			switch it.Type() {
			case reloc.None, reloc.Poll, reloc.PollReturn, reloc.PostCallNop:
			case reloc.Oop:
				if !relocIsImmediate(it) {
					// Indexed: the embedded recorder index is still valid;
					// the runtime resolves it at install time.
					continue
				}
				h, res := self.readOop()
				if !res.ok() {
					return res
				}
				cs.PutWordAt(it.Addr(), uint64(h))
			case reloc.Metadata:
				if !relocIsImmediate(it) {
					continue
				}
				m, res := self.readMetadata()
				if !res.ok() {
					return res
				}
				cs.PutWordAt(it.Addr(), self.a.world.Universe.MetadataWord(m))
			case reloc.VirtualCall, reloc.OptVirtualCall, reloc.StaticCall, reloc.RuntimeCall:
				if aux[j] == addrtab.NoFixup {
					// Destination was -1 at store time; leave it alone.
					continue
				}
				dest := self.a.table.AddressForId(aux[j])
				cs.PutWordAt(it.Addr(), uint64(dest))
			case reloc.StaticStub, reloc.InternalWord, reloc.SectionWord:
				if res := fixAfterMove(buffer, orig, cs, it); !res.ok() {
					return res
				}
			case reloc.ExternalWord:
				if aux[j] == addrtab.NoFixup {
					continue
				}
				target := self.a.table.AddressForId(aux[j])
				if d := it.Data(); len(d) > 0 {
					packed := reloc.PackAddress(target)
					if len(packed) > len(d) {
						log.Warnf("external word at %#x does not re-pack into %d words", it.Addr(), len(d))
						self.setLookupFailed()
						return ArtifactSkip
					}
					for k := range d {
						d[k] = 0
					}
					copy(d, packed)
				}
				cs.PutWordAt(it.Addr(), uint64(target))
			case reloc.RuntimeCallWCP:
				panic("runtime_call_w_cp relocations are unsupported")
			default:
				panic(fmt.Sprintf("relocation %s unimplemented", it.Type()))
			}
		}
	}
	return Ok
}

// fixAfterMove recomputes a section-relative word against the new buffer.
// The payload names the target as {section index, offset}; the stored word
// must agree with the fake original buffer before it is rewritten.
func fixAfterMove(buffer, orig *code.Buffer, cs *code.Section, it *reloc.Iterator) Result {
	d := it.Data()
	if len(d) < 2 {
		return ArchiveFailed
	}
	idx := int(d[0])
	if idx < 0 || idx >= code.SectLimit {
		return ArchiveFailed
	}
	off := rt.Address(d[1])
	if os := orig.Section(idx); os.Size() > 0 {
		old := rt.Address(cs.WordAt(it.Addr()))
		if want := os.Start() + off; old != want {
			log.Warnf("section word at %#x was %#x, expected %#x", it.Addr(), old, want)
			return ArchiveFailed
		}
	}
	target := buffer.Section(idx).Start() + off
	cs.PutWordAt(it.Addr(), uint64(target))
	return Ok
}
