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

package host

import (
	"github.com/cloudwego/scarchive/internal/code"
)

// InvocationEntryBCI marks a whole-method (non-OSR) compilation.
const InvocationEntryBCI = -1

// CodeOffsets are the well-known entry points of an nmethod, as offsets
// into the instructions section.
type CodeOffsets struct {
	Entry         int32
	VerifiedEntry int32
	FrameComplete int32
	Exceptions    int32
	Deopt         int32
}

// PcDesc maps a pc offset to its debug-info scope.
type PcDesc struct {
	PcOffset          int32
	ScopeDecodeOffset int32
	ObjDecodeOffset   int32
	Flags             int32
}

// DebugInfoRecorder carries the serialized scope stream and the PcDesc
// array for one nmethod.
type DebugInfoRecorder struct {
	Data []byte
	Pcs  []PcDesc
}

// Dependencies is the compressed dependency stream of one nmethod; the
// archive treats it as opaque bytes.
type Dependencies struct {
	Content []byte
}

// CompressedStream is the write stream backing an OopMap. Decoded oop maps
// keep the stream allocated at construction.
type CompressedStream struct {
	Buf []byte
	Pos int
}

// OopMap describes live oops at one safepoint.
type OopMap struct {
	FrameSize int32
	RegsCount int32
	stream    *CompressedStream
}

func NewOopMap(dataSize int) *OopMap {
	return &OopMap{stream: &CompressedStream{Buf: make([]byte, dataSize)}}
}

func (self *OopMap) Stream() *CompressedStream { return self.stream }
func (self *OopMap) SetStream(s *CompressedStream) { self.stream = s }
func (self *OopMap) Data() []byte { return self.stream.Buf[:self.stream.Pos] }
func (self *OopMap) DataSize() int { return self.stream.Pos }

// Write appends b to the map's stream.
func (self *OopMap) Write(b []byte) {
	n := copy(self.stream.Buf[self.stream.Pos:], b)
	if n < len(b) {
		self.stream.Buf = append(self.stream.Buf[:self.stream.Pos+n], b[n:]...)
	}
	self.stream.Pos += len(b)
}

// OopMapSet is the ordered set of oop maps of one nmethod.
type OopMapSet struct {
	maps []*OopMap
}

func NewOopMapSet() *OopMapSet { return &OopMapSet{} }

func (self *OopMapSet) Size() int { return len(self.maps) }
func (self *OopMapSet) At(i int) *OopMap { return self.maps[i] }
func (self *OopMapSet) Add(m *OopMap) { self.maps = append(self.maps, m) }

// ExceptionHandlerTable holds fixed-width handler rows as raw bytes.
type ExceptionHandlerTable struct {
	Length int
	Data   []byte
}

// ImplicitExceptionTable maps faulting pc offsets to continuation offsets.
type ImplicitExceptionTable struct {
	Len  int
	Data []byte
}

// CompiledMethod is everything RegisterMethod needs to install a loaded
// nmethod.
type CompiledMethod struct {
	Target          Method
	EntryBCI        int
	Offsets         *CodeOffsets
	OrigPcOffset    int
	Buffer          *code.Buffer
	FrameSize       int
	OopMaps         *OopMapSet
	HandlerTable    *ExceptionHandlerTable
	NulChkTable     *ImplicitExceptionTable
	DebugInfo       *DebugInfoRecorder
	Dependencies    *Dependencies
	Recorder        OopRecorder
	Compiler        Compiler
	HasUnsafeAccess bool
	HasWideVectors  bool
	HasMonitors     bool
}
