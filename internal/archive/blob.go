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

	"github.com/cloudwego/scarchive/internal/code"
)

// StoreBlob archives the exception blob: the single well-known glue blob,
// stored under the fixed id. The caller holds the compile lock.
func StoreBlob(buffer *code.Buffer, pcOffset int) bool {
	self := CurrentForWrite()
	if self == nil {
		return false
	}
	res := self.guardStore(func() Result { return self.storeBlob(buffer, pcOffset) })
	return self.finishStore(res)
}

func (self *Archive) storeBlob(buffer *code.Buffer, pcOffset int) Result {
	if !self.buf.alignWrite() {
		return ArchiveFailed
	}
	self.storeMark = self.buf.pos
	entryStart := self.buf.pos
	if !self.writeI32(pcOffset) {
		return ArchiveFailed
	}
	nameOffset := self.buf.pos - entryStart
	if !self.writeCString(buffer.Name()) {
		return ArchiveFailed
	}
	nameSize := self.buf.pos - entryStart - nameOffset
	if !self.buf.alignWrite() {
		return ArchiveFailed
	}
	codeOffset := self.buf.pos - entryStart
	codeSize, res := self.writeCode(buffer, entryStart)
	if !res.ok() {
		return res
	}
	relocOffset := self.buf.pos - entryStart
	relocSize, res := self.writeRelocations(buffer)
	if !res.ok() {
		return res
	}
	self.addEntry(&Entry{
		offset:      uint32(entryStart),
		size:        uint32(self.buf.pos - entryStart),
		nameOffset:  uint32(nameOffset),
		nameSize:    uint32(nameSize),
		codeOffset:  uint32(codeOffset),
		codeSize:    uint32(codeSize),
		relocOffset: uint32(relocOffset),
		relocSize:   uint32(relocSize),
		kind:        KindBlob,
		id:          ExceptionBlobID,
	})
	atomic.AddUint64(&BlobsStored, 1)
	log.Infof("wrote blob '%s'", buffer.Name())
	return Ok
}

// LoadBlob revives the exception blob into the caller's buffer and returns
// its pc offset.
func LoadBlob(buffer *code.Buffer) (int, bool) {
	self := CurrentForRead()
	if self == nil || !self.beginRead() {
		return 0, false
	}
	defer self.endRead()
	entry := self.FindEntry(KindBlob, ExceptionBlobID, 0)
	if entry == nil {
		return 0, false
	}
	r := self.newReader(nil)
	if !r.seek(entry.Offset()) {
		self.setFailed()
		return 0, false
	}
	pcOffset, ok := r.readI32()
	if !ok {
		self.setFailed()
		return 0, false
	}
	saved, ok := self.buf.viewAt(entry.Offset()+entry.NameOffset(), entry.NameSize())
	if !ok || len(saved) == 0 {
		self.setFailed()
		return 0, false
	}
	if !bytes.Equal(saved[:len(saved)-1], []byte(buffer.Name())) {
		log.Warnf("saved blob name '%s' differs from '%s'", saved[:len(saved)-1], buffer.Name())
		self.setFailed()
		return 0, false
	}
	orig := code.NewBuffer(buffer.Name())
	if !r.seek(entry.Offset() + entry.CodeOffset()) {
		self.setFailed()
		return 0, false
	}
	if res := r.readCode(buffer, orig, entry.Offset()); !res.ok() {
		return 0, r.finishLoad(res)
	}
	if !r.seek(entry.Offset() + entry.RelocOffset()) {
		self.setFailed()
		return 0, false
	}
	if res := r.readRelocations(buffer, orig); !res.ok() {
		return 0, r.finishLoad(res)
	}
	atomic.AddUint64(&BlobsLoaded, 1)
	log.Infof("read blob '%s'", buffer.Name())
	return pcOffset, true
}
