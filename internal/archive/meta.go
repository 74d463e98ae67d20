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

// Symbolic encoding of object and metadata references. Classes and methods
// are stored as loader-resolvable names so they survive address-space and
// loader-graph changes between processes; everything else is either a
// well-known singleton or inline string bytes.

// writeOop encodes one object reference.
func (self *Archive) writeOop(h host.Handle) Result {
	u := self.world.Universe
	desc := u.ClassifyOop(h)
	switch desc.Kind {
	case host.KindNull, host.KindNoData, host.KindSysLoader, host.KindPlaLoader:
		if !self.writeI32(int(desc.Kind)) {
			return ArchiveFailed
		}
	case host.KindKlass:
		if !self.writeI32(int(desc.Kind)) || !self.writeString(desc.Klass.Name()) {
			return ArchiveFailed
		}
	case host.KindPrimitive:
		if !self.writeI32(int(desc.Kind)) || !self.writeI32(int(desc.Basic)) {
			return ArchiveFailed
		}
	case host.KindString:
		if !self.writeI32(int(desc.Kind)) || !self.writeString(desc.Str) {
			return ArchiveFailed
		}
	default:
		// Modules, custom loaders and arbitrary oops cannot be re-resolved
		// in another process.
		log.Infof("unsupported object kind %s, skipping artifact", desc.Kind)
		self.setLookupFailed()
		return ArtifactSkip
	}
	return Ok
}

// readOop decodes one object reference into a live handle.
func (self *reader) readOop() (host.Handle, Result) {
	u := self.a.world.Universe
	kind, ok := self.readI32()
	if !ok {
		return host.NullHandle, ArchiveFailed
	}
	switch host.DataKind(kind) {
	case host.KindNull:
		return host.NullHandle, Ok
	case host.KindNoData:
		return u.NonOopWord(), Ok
	case host.KindSysLoader:
		return u.SystemLoader(), Ok
	case host.KindPlaLoader:
		return u.PlatformLoader(), Ok
	case host.KindPrimitive:
		bt, ok := self.readI32()
		if !ok {
			return host.NullHandle, ArchiveFailed
		}
		return u.PrimitiveMirror(host.BasicType(bt)), Ok
	case host.KindString:
		s, ok := self.readString()
		if !ok {
			return host.NullHandle, ArchiveFailed
		}
		return u.InternString(s), Ok
	case host.KindKlass:
		k, res := self.readKlass()
		if !res.ok() {
			return host.NullHandle, res
		}
		return k.Mirror(), Ok
	default:
		log.Warnf("unsupported object kind %d in archive", kind)
		self.setLookupFailed()
		return host.NullHandle, ArtifactSkip
	}
}

// readKlass resolves a stored class name, first with the loaded method's
// loader and protection domain, then with the null loader.
func (self *reader) readKlass() (host.Klass, Result) {
	name, ok := self.readString()
	if !ok {
		return nil, ArchiveFailed
	}
	return self.resolveKlass(name)
}

func (self *reader) resolveKlass(name string) (host.Klass, Result) {
	if !self.a.world.Symbols.Probe(name) {
		log.Infof("symbol probe failed for class %s", name)
		self.setLookupFailed()
		return nil, ArtifactSkip
	}
	loader, domain := host.NullHandle, host.NullHandle
	if self.target != nil {
		holder := self.target.Holder()
		loader, domain = holder.Loader(), holder.ProtectionDomain()
	}
	k := self.a.world.Dictionary.FindInstanceOrArrayKlass(name, loader, domain)
	if k == nil && loader != host.NullHandle {
		k = self.a.world.Dictionary.FindInstanceOrArrayKlass(name, host.NullHandle, host.NullHandle)
	}
	if k == nil {
		log.Infof("lookup failed for class %s", name)
		self.setLookupFailed()
		return nil, ArtifactSkip
	}
	return k, Ok
}

// writeMetadata encodes one metadata reference. References the recorder
// marks as not-real, and kinds with no symbolic form, store as no-data.
func (self *Archive) writeMetadata(m host.Metadata, recorder host.OopRecorder) Result {
	if recorder != nil && !recorder.IsReal(m) {
		m = nil
	}
	switch v := m.(type) {
	case host.Method:
		if !self.writeI32(int(host.KindMethod)) ||
			!self.writeString(v.Holder().Name()) ||
			!self.writeString(v.Name()) ||
			!self.writeString(v.Signature()) {
			return ArchiveFailed
		}
	case host.Klass:
		if !self.writeI32(int(host.KindKlass)) || !self.writeString(v.Name()) {
			return ArchiveFailed
		}
	default:
		if !self.writeI32(int(host.KindNoData)) {
			return ArchiveFailed
		}
	}
	return Ok
}

// readMetadata decodes one metadata reference; no-data yields nil.
func (self *reader) readMetadata() (host.Metadata, Result) {
	kind, ok := self.readI32()
	if !ok {
		return nil, ArchiveFailed
	}
	switch host.DataKind(kind) {
	case host.KindNoData:
		return nil, Ok
	case host.KindKlass:
		k, res := self.readKlass()
		if !res.ok() {
			return nil, res
		}
		return k, Ok
	case host.KindMethod:
		holder, ok1 := self.readString()
		name, ok2 := self.readString()
		sig, ok3 := self.readString()
		if !ok1 || !ok2 || !ok3 {
			return nil, ArchiveFailed
		}
		k, res := self.resolveKlass(holder)
		if !res.ok() {
			return nil, res
		}
		if !self.a.world.Symbols.Probe(name) || !self.a.world.Symbols.Probe(sig) {
			log.Infof("symbol probe failed for method %s.%s%s", holder, name, sig)
			self.setLookupFailed()
			return nil, ArtifactSkip
		}
		m := k.FindMethod(name, sig)
		if m == nil {
			log.Infof("lookup failed for method %s.%s%s", holder, name, sig)
			self.setLookupFailed()
			return nil, ArtifactSkip
		}
		return m, Ok
	default:
		log.Warnf("unsupported metadata kind %d in archive", kind)
		self.setLookupFailed()
		return nil, ArtifactSkip
	}
}

// writeOops stores the recorder's oop table.
func (self *Archive) writeOops(recorder host.OopRecorder) Result {
	count := recorder.OopCount()
	if !self.writeI32(count) {
		return ArchiveFailed
	}
	for i := 0; i < count; i++ {
		h := recorder.OopAt(i)
		if !recorder.IsRealOop(h) {
			if !self.writeI32(int(host.KindNoData)) {
				return ArchiveFailed
			}
			continue
		}
		if res := self.writeOop(h); !res.ok() {
			return res
		}
	}
	return Ok
}

// readOops rebuilds the oop table into a fresh recorder.
func (self *reader) readOops(recorder host.OopRecorder) Result {
	count, ok := self.readI32()
	if !ok {
		return ArchiveFailed
	}
	for i := 0; i < count; i++ {
		h, res := self.readOop()
		if !res.ok() {
			return res
		}
		recorder.FindOopIndex(h)
	}
	return Ok
}

// writeMetadataTable stores the recorder's metadata table.
func (self *Archive) writeMetadataTable(recorder host.OopRecorder) Result {
	count := recorder.MetadataCount()
	if !self.writeI32(count) {
		return ArchiveFailed
	}
	for i := 0; i < count; i++ {
		if res := self.writeMetadata(recorder.MetadataAt(i), recorder); !res.ok() {
			return res
		}
	}
	return Ok
}

// readMetadataTable rebuilds the metadata table into a fresh recorder.
func (self *reader) readMetadataTable(recorder host.OopRecorder) Result {
	count, ok := self.readI32()
	if !ok {
		return ArchiveFailed
	}
	for i := 0; i < count; i++ {
		m, res := self.readMetadata()
		if !res.ok() {
			return res
		}
		if m != nil {
			recorder.FindIndex(m)
		}
	}
	return Ok
}
