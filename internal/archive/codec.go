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
)

// Typed primitive codec over the staging buffer. Stores are serialized by
// the caller's compile lock, so the write cursor lives on the archive; the
// read-side twin is the per-load reader. Write failures poison the archive
// through the caller checking the returned bool.

func (self *Archive) writeU32(v uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return self.buf.append(b[:])
}

func (self *Archive) writeI32(v int) bool {
	return self.writeU32(uint32(int32(v)))
}

func (self *Archive) writeU64(v uint64) bool {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return self.buf.append(b[:])
}

func (self *Archive) writeBytes(b []byte) bool {
	return self.buf.append(b)
}

// writeString writes a length-prefixed string (no terminator).
func (self *Archive) writeString(s string) bool {
	if !self.writeI32(len(s)) {
		return false
	}
	return self.buf.append([]byte(s))
}

// writeCString writes the raw bytes of s plus the trailing NUL.
func (self *Archive) writeCString(s string) bool {
	if !self.buf.append([]byte(s)) {
		return false
	}
	return self.buf.append([]byte{0})
}

// writeU32Slice writes words back-to-back.
func (self *Archive) writeU32Slice(words []uint32) bool {
	var b [4]byte
	for _, w := range words {
		binary.LittleEndian.PutUint32(b[:], w)
		if !self.buf.append(b[:]) {
			return false
		}
	}
	return true
}
