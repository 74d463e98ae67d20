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
	"os"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// dataAlignment pads every variable-sized block; word-sized.
const dataAlignment = 8

var alignPad [dataAlignment]byte

// ioBuffer is the single contiguous archive buffer. On load it holds the
// whole file; on store it is a size-capped staging area flushed to the file
// once at finalize. All access past open is pointer arithmetic on buf.
type ioBuffer struct {
	buf     []byte
	pos     int
	forRead bool
}

// openLoadBuffer reads the entire file.
func openLoadBuffer(path string) (*ioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := dirtmake.Bytes(int(st.Size()), int(st.Size()))
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return &ioBuffer{buf: buf, forRead: true}, nil
}

// newStoreBuffer reserves the staging area.
func newStoreBuffer(reserve int) *ioBuffer {
	return &ioBuffer{buf: dirtmake.Bytes(0, reserve)}
}

func (self *ioBuffer) size() int {
	if self.forRead {
		return len(self.buf)
	}
	return self.pos
}

// seek moves the cursor; out-of-range is a validation failure.
func (self *ioBuffer) seek(pos int) bool {
	if pos < 0 || pos > self.size() {
		return false
	}
	self.pos = pos
	return true
}

// viewAt returns n bytes at an absolute position without copying. Loads
// read exclusively through it, each via its own cursor.
func (self *ioBuffer) viewAt(pos, n int) ([]byte, bool) {
	if pos < 0 || n < 0 || pos+n > self.size() {
		return nil, false
	}
	return self.buf[pos : pos+n : pos+n], true
}

// append copies b at the write cursor, failing if the reservation is
// exceeded.
func (self *ioBuffer) append(b []byte) bool {
	if self.forRead {
		return false
	}
	if self.pos+len(b) > cap(self.buf) {
		return false
	}
	if self.pos+len(b) > len(self.buf) {
		self.buf = self.buf[:self.pos+len(b)]
	}
	copy(self.buf[self.pos:], b)
	self.pos += len(b)
	return true
}

// alignWrite pads the write cursor up to the data alignment; idempotent.
func (self *ioBuffer) alignWrite() bool {
	if pad := -self.pos & (dataAlignment - 1); pad != 0 {
		return self.append(alignPad[:pad])
	}
	return true
}

// patchAt overwrites already-written bytes (header rewrite at finalize).
func (self *ioBuffer) patchAt(pos int, b []byte) bool {
	if self.forRead || pos < 0 || pos+len(b) > len(self.buf) {
		return false
	}
	copy(self.buf[pos:], b)
	return true
}

// flush writes the staging buffer to f in one call.
func (self *ioBuffer) flush(f *os.File) error {
	_, err := f.WriteAt(self.buf, 0)
	return err
}
