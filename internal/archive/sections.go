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
	"encoding/binary"

	"github.com/cloudwego/scarchive/internal/code"
)

// Code sections are stored as a fixed header-of-sections array, one row
// per section {size u32, origin u64, offset-in-entry u32}, followed by the
// aligned content blocks of the non-empty sections. The origin address only
// serves relocation fix-up: it rebuilds the fake original buffer that
// inter-section deltas are computed against.

const sectionRowSize = 4 + 8 + 4

// writeCode stores all sections of buffer. entryStart anchors the row
// offsets. Returns the total block length including padding.
func (self *Archive) writeCode(buffer *code.Buffer, entryStart int) (int, Result) {
	blockStart := self.buf.pos
	rowsAt := self.buf.pos
	for i := 0; i < code.SectLimit; i++ {
		cs := buffer.Section(i)
		if !self.writeU32(uint32(cs.Size())) || !self.writeU64(uint64(cs.Start())) || !self.writeU32(0) {
			return 0, ArchiveFailed
		}
	}
	for i := 0; i < code.SectLimit; i++ {
		cs := buffer.Section(i)
		if cs.Size() == 0 {
			continue
		}
		if !self.buf.alignWrite() {
			return 0, ArchiveFailed
		}
		var off [4]byte
		binary.LittleEndian.PutUint32(off[:], uint32(self.buf.pos-entryStart))
		if !self.buf.patchAt(rowsAt+i*sectionRowSize+12, off[:]) {
			return 0, ArchiveFailed
		}
		if !self.writeBytes(cs.Bytes()) {
			return 0, ArchiveFailed
		}
	}
	return self.buf.pos - blockStart, Ok
}

// readCode materializes sections into the caller's buffer and rebuilds the
// fake original buffer. The cursor must sit at the header-of-sections;
// entryStart anchors the row offsets. Sections with no capacity are
// allocated to fit.
func (self *reader) readCode(buffer, orig *code.Buffer, entryStart int) Result {
	type row struct {
		size   int
		origin uint64
		offset int
	}
	var rows [code.SectLimit]row
	for i := range rows {
		size, ok1 := self.readU32()
		origin, ok2 := self.readU64()
		offset, ok3 := self.readU32()
		if !ok1 || !ok2 || !ok3 {
			return ArchiveFailed
		}
		rows[i] = row{int(size), origin, int(offset)}
	}
	for i, r := range rows {
		if r.size == 0 {
			continue
		}
		cs := buffer.Section(i)
		if cs.Capacity() == 0 {
			cs = code.NewSection(r.size)
			buffer.SetSection(i, cs)
		}
		if r.size > cs.Capacity() {
			log.Warnf("section %d of %d bytes does not fit in %d", i, r.size, cs.Capacity())
			return ArtifactSkip
		}
		orig.Section(i).InitializeFake(uintptr(r.origin), r.size)
		b, ok := self.a.buf.viewAt(entryStart+r.offset, r.size)
		if !ok {
			return ArchiveFailed
		}
		if !cs.Append(b) {
			return ArchiveFailed
		}
	}
	return Ok
}
