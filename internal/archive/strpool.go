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
	"sync"
	"unsafe"

	"github.com/cloudwego/scarchive/internal/rt"
)

// stringPool backs the address table's C-string range with contents. On
// store it keeps the bytes behind each registered pointer so they can be
// persisted; on load it carves string views directly out of the archive
// buffer, no copies.
type stringPool struct {
	mu     sync.Mutex
	byAddr map[rt.Address]string
	views  []string
}

func newStringPool() *stringPool {
	return &stringPool{byAddr: make(map[rt.Address]string)}
}

// addressOfString is the identity of s: the address of its bytes.
func addressOfString(s string) rt.Address {
	if len(s) == 0 {
		return 0
	}
	return rt.Address(unsafe.Pointer(unsafe.StringData(s)))
}

func (self *stringPool) recordContent(addr rt.Address, s string) {
	self.mu.Lock()
	self.byAddr[addr] = s
	self.mu.Unlock()
}

func (self *stringPool) contentAt(addr rt.Address) (string, bool) {
	self.mu.Lock()
	s, ok := self.byAddr[addr]
	self.mu.Unlock()
	return s, ok
}

// writeStringPool persists the pool at finalize: u32 sizes (NUL included),
// then the concatenated NUL-terminated bytes.
func (self *Archive) writeStringPool() bool {
	n := self.table.StringCount()
	for i := 0; i < n; i++ {
		s, ok := self.strings.contentAt(self.table.StringAt(i))
		if !ok {
			// Registered by pointer but never seen by the archive.
			log.Warnf("string pool entry %d has no recorded content", i)
			return false
		}
		if !self.writeU32(uint32(len(s) + 1)) {
			return false
		}
	}
	for i := 0; i < n; i++ {
		s, _ := self.strings.contentAt(self.table.StringAt(i))
		if !self.writeCString(s) {
			return false
		}
	}
	return true
}

// readStringPool carves the pool views from the load buffer and seeds the
// address table's string range in store order.
func (self *Archive) readStringPool(count, offset int) bool {
	if count == 0 {
		return true
	}
	sizes, ok := self.buf.viewAt(offset, count*4)
	if !ok {
		return false
	}
	pos := offset + count*4
	addrs := make([]rt.Address, 0, count)
	for i := 0; i < count; i++ {
		size := int(binary.LittleEndian.Uint32(sizes[i*4:]))
		b, ok := self.buf.viewAt(pos, size)
		if !ok || size < 1 || b[size-1] != 0 {
			return false
		}
		s := unsafe.String(unsafe.SliceData(b), size-1)
		self.views = append(self.views, s)
		addrs = append(addrs, addressOfString(s))
		pos += size
	}
	self.table.InitStrings(addrs)
	return true
}
