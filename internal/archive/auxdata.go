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
	"github.com/cloudwego/scarchive/internal/host"
)

// Codecs for the per-nmethod side tables: entry-point offsets, debug info,
// dependencies, oop maps and the exception tables. All of them are opaque
// to the archive beyond their framing.

func (self *Archive) writeOffsets(o *host.CodeOffsets) bool {
	return self.writeI32(int(o.Entry)) &&
		self.writeI32(int(o.VerifiedEntry)) &&
		self.writeI32(int(o.FrameComplete)) &&
		self.writeI32(int(o.Exceptions)) &&
		self.writeI32(int(o.Deopt))
}

func (self *reader) readOffsets() (*host.CodeOffsets, bool) {
	var o host.CodeOffsets
	vs := [...]*int32{&o.Entry, &o.VerifiedEntry, &o.FrameComplete, &o.Exceptions, &o.Deopt}
	for _, p := range vs {
		v, ok := self.readI32()
		if !ok {
			return nil, false
		}
		*p = int32(v)
	}
	return &o, true
}

// Debug-info blocks start at the data alignment, like code blocks.
func (self *Archive) writeDebugInfo(r *host.DebugInfoRecorder) Result {
	if !self.buf.alignWrite() {
		return ArchiveFailed
	}
	if !self.writeI32(len(r.Data)) || !self.writeI32(len(r.Pcs)) {
		return ArchiveFailed
	}
	if !self.writeBytes(r.Data) {
		return ArchiveFailed
	}
	for i := range r.Pcs {
		p := &r.Pcs[i]
		if !self.writeI32(int(p.PcOffset)) || !self.writeI32(int(p.ScopeDecodeOffset)) ||
			!self.writeI32(int(p.ObjDecodeOffset)) || !self.writeI32(int(p.Flags)) {
			return ArchiveFailed
		}
	}
	return Ok
}

func (self *reader) readDebugInfo() (*host.DebugInfoRecorder, Result) {
	if !self.readAlign() {
		return nil, ArchiveFailed
	}
	dataSize, ok1 := self.readI32()
	pcsLength, ok2 := self.readI32()
	if !ok1 || !ok2 || dataSize < 0 || pcsLength < 0 {
		return nil, ArchiveFailed
	}
	data, ok := self.readBytes(dataSize)
	if !ok {
		return nil, ArchiveFailed
	}
	r := &host.DebugInfoRecorder{
		Data: append([]byte(nil), data...),
		Pcs:  make([]host.PcDesc, pcsLength),
	}
	for i := range r.Pcs {
		p := &r.Pcs[i]
		vs := [...]*int32{&p.PcOffset, &p.ScopeDecodeOffset, &p.ObjDecodeOffset, &p.Flags}
		for _, f := range vs {
			v, ok := self.readI32()
			if !ok {
				return nil, ArchiveFailed
			}
			*f = int32(v)
		}
	}
	return r, Ok
}

// Dependencies are stored aligned: the stream is walked in word-sized steps
// when the runtime re-validates it.
func (self *Archive) writeDependencies(d *host.Dependencies) Result {
	if !self.writeI32(len(d.Content)) {
		return ArchiveFailed
	}
	if !self.buf.alignWrite() {
		return ArchiveFailed
	}
	if !self.writeBytes(d.Content) {
		return ArchiveFailed
	}
	if !self.buf.alignWrite() {
		return ArchiveFailed
	}
	return Ok
}

func (self *reader) readDependencies() (*host.Dependencies, Result) {
	size, ok := self.readI32()
	if !ok || size < 0 {
		return nil, ArchiveFailed
	}
	if !self.readAlign() {
		return nil, ArchiveFailed
	}
	b, ok := self.readBytes(size)
	if !ok {
		return nil, ArchiveFailed
	}
	if !self.readAlign() {
		return nil, ArchiveFailed
	}
	return &host.Dependencies{Content: append([]byte(nil), b...)}, Ok
}

func (self *Archive) writeOopMaps(set *host.OopMapSet) Result {
	if !self.writeI32(set.Size()) {
		return ArchiveFailed
	}
	for i := 0; i < set.Size(); i++ {
		om := set.At(i)
		if !self.writeI32(om.DataSize()) ||
			!self.writeI32(int(om.FrameSize)) ||
			!self.writeI32(int(om.RegsCount)) ||
			!self.writeBytes(om.Data()) {
			return ArchiveFailed
		}
	}
	return Ok
}

// readOopMaps rebuilds the set. Each decoded map keeps the write stream
// allocated at construction; only its contents are replaced.
func (self *reader) readOopMaps() (*host.OopMapSet, Result) {
	count, ok := self.readI32()
	if !ok || count < 0 {
		return nil, ArchiveFailed
	}
	set := host.NewOopMapSet()
	for i := 0; i < count; i++ {
		dataSize, ok := self.readI32()
		if !ok || dataSize < 0 {
			return nil, ArchiveFailed
		}
		om := host.NewOopMap(dataSize)
		stream := om.Stream()
		frameSize, ok1 := self.readI32()
		regsCount, ok2 := self.readI32()
		if !ok1 || !ok2 {
			return nil, ArchiveFailed
		}
		om.FrameSize = int32(frameSize)
		om.RegsCount = int32(regsCount)
		om.SetStream(stream)
		data, ok := self.readBytes(dataSize)
		if !ok {
			return nil, ArchiveFailed
		}
		om.Write(data)
		set.Add(om)
	}
	return set, Ok
}

func (self *Archive) writeHandlerTable(t *host.ExceptionHandlerTable) Result {
	if !self.writeI32(t.Length) || !self.writeI32(len(t.Data)) {
		return ArchiveFailed
	}
	if !self.writeBytes(t.Data) {
		return ArchiveFailed
	}
	return Ok
}

func (self *reader) readHandlerTable() (*host.ExceptionHandlerTable, Result) {
	length, ok1 := self.readI32()
	size, ok2 := self.readI32()
	if !ok1 || !ok2 || length < 0 || size < 0 {
		return nil, ArchiveFailed
	}
	b, ok := self.readBytes(size)
	if !ok {
		return nil, ArchiveFailed
	}
	return &host.ExceptionHandlerTable{Length: length, Data: append([]byte(nil), b...)}, Ok
}

func (self *Archive) writeNulChkTable(t *host.ImplicitExceptionTable) Result {
	if !self.writeI32(t.Len) || !self.writeI32(len(t.Data)) {
		return ArchiveFailed
	}
	if !self.writeBytes(t.Data) {
		return ArchiveFailed
	}
	return Ok
}

func (self *reader) readNulChkTable() (*host.ImplicitExceptionTable, Result) {
	length, ok1 := self.readI32()
	size, ok2 := self.readI32()
	if !ok1 || !ok2 || length < 0 || size < 0 {
		return nil, ArchiveFailed
	}
	b, ok := self.readBytes(size)
	if !ok {
		return nil, ArchiveFailed
	}
	return &host.ImplicitExceptionTable{Len: length, Data: append([]byte(nil), b...)}, Ok
}
