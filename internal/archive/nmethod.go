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
	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/rt"
)

// StoreNmethod archives a freshly compiled method. Only whole-method
// compilations from the optimizing tier are archived. Returns the entry so
// the runtime can invalidate it when the code is deoptimized later. The
// caller holds the compile lock.
func StoreNmethod(m *host.CompiledMethod) (*Entry, bool) {
	if m.EntryBCI != host.InvocationEntryBCI {
		return nil, false // no OSR entries
	}
	if m.Compiler == nil || !m.Compiler.IsOptimizing() {
		return nil, false
	}
	self := CurrentForWrite()
	if self == nil {
		return nil, false
	}
	var entry *Entry
	res := self.guardStore(func() Result {
		var r Result
		entry, r = self.storeNmethod(m)
		return r
	})
	if !self.finishStore(res) {
		return nil, false
	}
	return entry, true
}

func (self *Archive) storeNmethod(m *host.CompiledMethod) (*Entry, Result) {
	name := m.Target.NameAndSig()
	if !self.buf.alignWrite() {
		return nil, ArchiveFailed
	}
	self.storeMark = self.buf.pos
	entryStart := self.buf.pos

	// Name first.
	if !self.writeCString(name) {
		return nil, ArchiveFailed
	}
	nameSize := self.buf.pos - entryStart
	if !self.buf.alignWrite() {
		return nil, ArchiveFailed
	}
	codeOffset := self.buf.pos - entryStart

	flags := boolBit(m.HasMonitors) | boolBit(m.HasWideVectors)<<8 | boolBit(m.HasUnsafeAccess)<<16
	if !self.writeI32(flags) || !self.writeI32(m.OrigPcOffset) || !self.writeI32(m.FrameSize) {
		return nil, ArchiveFailed
	}
	if !self.writeOffsets(m.Offsets) {
		return nil, ArchiveFailed
	}
	if res := self.writeOops(m.Recorder); !res.ok() {
		return nil, res
	}
	if res := self.writeMetadataTable(m.Recorder); !res.ok() {
		return nil, res
	}
	if res := self.writeDebugInfo(m.DebugInfo); !res.ok() {
		return nil, res
	}
	if res := self.writeDependencies(m.Dependencies); !res.ok() {
		return nil, res
	}
	if res := self.writeOopMaps(m.OopMaps); !res.ok() {
		return nil, res
	}
	if res := self.writeHandlerTable(m.HandlerTable); !res.ok() {
		return nil, res
	}
	if res := self.writeNulChkTable(m.NulChkTable); !res.ok() {
		return nil, res
	}
	if !self.buf.alignWrite() {
		return nil, ArchiveFailed
	}
	codeSize, res := self.writeCode(m.Buffer, entryStart)
	if !res.ok() {
		return nil, res
	}
	relocOffset := self.buf.pos - entryStart
	relocSize, res := self.writeRelocations(m.Buffer)
	if !res.ok() {
		return nil, res
	}
	entry := &Entry{
		offset:      uint32(entryStart),
		size:        uint32(self.buf.pos - entryStart),
		nameOffset:  0,
		nameSize:    uint32(nameSize),
		codeOffset:  uint32(codeOffset),
		codeSize:    uint32(codeSize),
		relocOffset: uint32(relocOffset),
		relocSize:   uint32(relocSize),
		kind:        KindCode,
		id:          rt.Hash32(name),
		decompile:   uint32(m.Target.Decompiles()),
	}
	self.addEntry(entry)
	atomic.AddUint64(&NmethodsStored, 1)
	log.Infof("wrote nmethod '%s' (decompile=%d)", name, entry.Decompile())
	return entry, Ok
}

// LoadNmethod revives a compiled method and hands it to the environment's
// register-method callback. In verify mode the decode runs fully but the
// caller is told to compile fresh.
func LoadNmethod(env host.Env, target host.Method, entryBCI int, compiler host.Compiler) bool {
	if entryBCI != host.InvocationEntryBCI {
		return false // no OSR entries
	}
	if compiler == nil || !compiler.IsOptimizing() {
		return false
	}
	self := CurrentForRead()
	if self == nil || !self.beginRead() {
		return false
	}
	defer self.endRead()
	r := self.newReader(target)

	name := target.NameAndSig()
	entry := self.FindEntry(KindCode, rt.Hash32(name), target.Decompiles())
	if entry == nil {
		return false
	}
	saved, ok := self.buf.viewAt(entry.Offset()+entry.NameOffset(), entry.NameSize())
	if !ok || len(saved) == 0 {
		self.setFailed()
		return false
	}
	if !bytes.Equal(saved[:len(saved)-1], []byte(name)) {
		log.Warnf("saved nmethod name '%s' differs from '%s'", saved[:len(saved)-1], name)
		self.setFailed()
		return false
	}
	if !r.seek(entry.Offset() + entry.CodeOffset()) {
		self.setFailed()
		return false
	}

	flags, ok1 := r.readI32()
	origPcOffset, ok2 := r.readI32()
	frameSize, ok3 := r.readI32()
	if !ok1 || !ok2 || !ok3 {
		self.setFailed()
		return false
	}
	offsets, ok := r.readOffsets()
	if !ok {
		self.setFailed()
		return false
	}
	recorder := env.NewOopRecorder()
	if res := r.readOops(recorder); !res.ok() {
		return r.finishLoad(res)
	}
	if res := r.readMetadataTable(recorder); !res.ok() {
		return r.finishLoad(res)
	}
	debugInfo, res := r.readDebugInfo()
	if !res.ok() {
		return r.finishLoad(res)
	}
	deps, res := r.readDependencies()
	if !res.ok() {
		return r.finishLoad(res)
	}
	oopMaps, res := r.readOopMaps()
	if !res.ok() {
		return r.finishLoad(res)
	}
	handlerTable, res := r.readHandlerTable()
	if !res.ok() {
		return r.finishLoad(res)
	}
	nulChkTable, res := r.readNulChkTable()
	if !res.ok() {
		return r.finishLoad(res)
	}
	if !r.readAlign() {
		self.setFailed()
		return false
	}
	buffer := code.NewBuffer(name)
	orig := code.NewBuffer(name)
	if res := r.readCode(buffer, orig, entry.Offset()); !res.ok() {
		return r.finishLoad(res)
	}
	if !r.seek(entry.Offset() + entry.RelocOffset()) {
		self.setFailed()
		return false
	}
	if res := r.readRelocations(buffer, orig); !res.ok() {
		return r.finishLoad(res)
	}
	atomic.AddUint64(&NmethodsLoaded, 1)
	log.Infof("read nmethod '%s' (decompile=%d)", name, entry.Decompile())

	if self.options.Verify {
		// Validation mode: everything decoded, but the caller still
		// compiles fresh.
		return false
	}
	return env.RegisterMethod(&host.CompiledMethod{
		Target:          target,
		EntryBCI:        entryBCI,
		Offsets:         offsets,
		OrigPcOffset:    origPcOffset,
		Buffer:          buffer,
		FrameSize:       frameSize,
		OopMaps:         oopMaps,
		HandlerTable:    handlerTable,
		NulChkTable:     nulChkTable,
		DebugInfo:       debugInfo,
		Dependencies:    deps,
		Recorder:        recorder,
		Compiler:        compiler,
		HasMonitors:     flags&0xff != 0,
		HasWideVectors:  flags>>8&0xff != 0,
		HasUnsafeAccess: flags>>16&0xff != 0,
	}, entry)
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}
