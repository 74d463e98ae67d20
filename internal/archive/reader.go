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
	"sync/atomic"

	"github.com/cloudwego/scarchive/internal/host"
)

// reader is one load operation's view of the archive: its own cursor, the
// method being loaded (class lookup resolves against its loader) and the
// per-artifact lookup flag. Loads run concurrently, so everything mutable
// lives here; the archive itself is only read.
type reader struct {
	a            *Archive
	pos          int
	target       host.Method
	lookupFailed bool
}

func (self *Archive) newReader(target host.Method) *reader {
	return &reader{a: self, target: target}
}

func (self *reader) setLookupFailed() { self.lookupFailed = true }

// finishLoad resolves a load result: artifact-local failures leave the
// archive usable, everything else poisons it.
func (self *reader) finishLoad(res Result) bool {
	switch res {
	case Ok:
		return true
	case ArtifactSkip:
		if self.lookupFailed {
			log.Infof("load skipped after failed lookup")
		}
		atomic.AddUint64(&LoadsSkipped, 1)
		return false
	default:
		self.a.setFailed()
		return false
	}
}

// seek moves this load's cursor; out-of-range is a validation failure.
func (self *reader) seek(pos int) bool {
	if pos < 0 || pos > self.a.buf.size() {
		return false
	}
	self.pos = pos
	return true
}

// view returns n bytes at the cursor without copying and advances it.
func (self *reader) view(n int) ([]byte, bool) {
	b, ok := self.a.buf.viewAt(self.pos, n)
	if !ok {
		return nil, false
	}
	self.pos += n
	return b, true
}

// readAlign advances the cursor to the data alignment, mirroring the
// store-side padding.
func (self *reader) readAlign() bool {
	if pad := -self.pos & (dataAlignment - 1); pad != 0 {
		_, ok := self.view(pad)
		return ok
	}
	return true
}

func (self *reader) readU32() (uint32, bool) {
	b, ok := self.view(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (self *reader) readI32() (int, bool) {
	v, ok := self.readU32()
	return int(int32(v)), ok
}

func (self *reader) readU64() (uint64, bool) {
	b, ok := self.view(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (self *reader) readBytes(n int) ([]byte, bool) {
	return self.view(n)
}

func (self *reader) readString() (string, bool) {
	n, ok := self.readI32()
	if !ok || n < 0 {
		return "", false
	}
	b, ok := self.view(n)
	if !ok {
		return "", false
	}
	return string(b), true
}

// readU32Slice reads n little-endian words into a fresh slice.
func (self *reader) readU32Slice(n int) ([]uint32, bool) {
	b, ok := self.view(n * 4)
	if !ok {
		return nil, false
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, true
}
