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

	"github.com/klauspost/cpuid/v2"
)

// versionBase changes whenever the wire format does.
const versionBase = 0x53434101 // "SCA" 1

// Version is the archive format version. Archives are tied to the machine's
// CPU feature level: code compiled with wider vectors must not be revived
// on a machine without them, and there are no cross-architecture archives.
func Version() uint32 {
	return versionBase ^ uint32(cpuid.CPU.X64Level())
}

const headerSize = 6 * 4

// header is the fixed archive prologue at offset 0. It is written first at
// open-for-write and rewritten last at finalize with the final counts.
type header struct {
	version       uint32
	entriesCount  uint32
	totalSize     uint32
	entriesOffset uint32
	stringsCount  uint32
	stringsOffset uint32
}

func (self *header) encode() []byte {
	var b [headerSize]byte
	binary.LittleEndian.PutUint32(b[0:], self.version)
	binary.LittleEndian.PutUint32(b[4:], self.entriesCount)
	binary.LittleEndian.PutUint32(b[8:], self.totalSize)
	binary.LittleEndian.PutUint32(b[12:], self.entriesOffset)
	binary.LittleEndian.PutUint32(b[16:], self.stringsCount)
	binary.LittleEndian.PutUint32(b[20:], self.stringsOffset)
	return b[:]
}

func (self *header) decode(b []byte) bool {
	if len(b) < headerSize {
		return false
	}
	self.version = binary.LittleEndian.Uint32(b[0:])
	self.entriesCount = binary.LittleEndian.Uint32(b[4:])
	self.totalSize = binary.LittleEndian.Uint32(b[8:])
	self.entriesOffset = binary.LittleEndian.Uint32(b[12:])
	self.stringsCount = binary.LittleEndian.Uint32(b[16:])
	self.stringsOffset = binary.LittleEndian.Uint32(b[20:])
	return true
}
