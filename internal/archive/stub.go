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
	"bytes"
	"sync/atomic"

	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/rt"
)

// StoreStub archives the stub code generated between start and the
// generator's current fill point, under the caller-supplied intrinsic id.
// The caller holds the compile lock.
func StoreStub(gen host.StubGenerator, id uint32, name string, start rt.Address) bool {
	self := CurrentForWrite()
	if self == nil {
		return false
	}
	sect := gen.Section()
	if !sect.Contains(start) && start != sect.End() {
		log.Warnf("stub '%s' start %#x outside the generator section", name, start)
		return false
	}
	body := sect.Bytes()[start-sect.Start():]
	if !self.buf.alignWrite() {
		self.setFailed()
		return false
	}
	entryStart := self.buf.pos
	// Name first, so nameOffset is 0.
	if !self.writeCString(name) {
		self.setFailed()
		return false
	}
	nameSize := self.buf.pos - entryStart
	if !self.buf.alignWrite() {
		self.setFailed()
		return false
	}
	codeOffset := self.buf.pos - entryStart
	if !self.writeBytes(body) {
		self.setFailed()
		return false
	}
	self.addEntry(&Entry{
		offset:     uint32(entryStart),
		size:       uint32(self.buf.pos - entryStart),
		nameOffset: 0,
		nameSize:   uint32(nameSize),
		codeOffset: uint32(codeOffset),
		codeSize:   uint32(len(body)),
		kind:       KindStub,
		id:         id,
	})
	atomic.AddUint64(&StubsStored, 1)
	log.Infof("wrote stub '%s' id=%d (%d bytes)", name, id, len(body))
	return true
}

// LoadStub revives a stub into the generator's section at start. A name
// mismatch under a matching id means the archive does not belong to this
// build and poisons it.
func LoadStub(gen host.StubGenerator, id uint32, name string, start rt.Address) bool {
	self := CurrentForRead()
	if self == nil || !self.beginRead() {
		return false
	}
	defer self.endRead()
	entry := self.FindEntry(KindStub, id, 0)
	if entry == nil {
		return false
	}
	saved, ok := self.buf.viewAt(entry.Offset()+entry.NameOffset(), entry.NameSize())
	if !ok || len(saved) == 0 {
		self.setFailed()
		return false
	}
	if !bytes.Equal(saved[:len(saved)-1], []byte(name)) || saved[len(saved)-1] != 0 {
		log.Warnf("saved stub name '%s' differs from '%s' for id=%d", saved[:len(saved)-1], name, id)
		self.setFailed()
		return false
	}
	body, ok := self.buf.viewAt(entry.Offset()+entry.CodeOffset(), entry.CodeSize())
	if !ok {
		self.setFailed()
		return false
	}
	sect := gen.Section()
	if start != sect.End() || !sect.Append(body) {
		log.Warnf("stub '%s' of %d bytes does not fit the generator section", name, len(body))
		return false
	}
	atomic.AddUint64(&StubsLoaded, 1)
	log.Infof("read stub '%s' id=%d (%d bytes)", name, id, len(body))
	return true
}
