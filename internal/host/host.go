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

// Package host declares the narrow interfaces the archive consumes from the
// embedding runtime: symbol and class lookup, code cache queries, oop
// recording, and the register-method callback. The archive never reaches
// into the runtime beyond this surface.
package host

import (
	"github.com/cloudwego/scarchive/internal/code"
	"github.com/cloudwego/scarchive/internal/rt"
)

// Handle is an opaque reference to a runtime-managed object (oop).
type Handle uintptr

// NullHandle is the null object reference.
const NullHandle Handle = 0

// BasicType tags a primitive-type mirror.
type BasicType int32

const (
	TBoolean BasicType = 4 + iota
	TChar
	TFloat
	TDouble
	TByte
	TShort
	TInt
	TLong
)

// Klass is a resolved class.
type Klass interface {
	Name() string
	Mirror() Handle
	FindMethod(name string, signature string) Method
	Loader() Handle
	ProtectionDomain() Handle
}

// Method is a resolved method handle.
type Method interface {
	Holder() Klass
	Name() string
	Signature() string
	// NameAndSig is the fully-qualified name+signature string whose 32-bit
	// hash keys Code entries.
	NameAndSig() string
	// Decompiles is the number of deoptimizations observed so far; part of
	// the cache key at store time.
	Decompiles() int
}

// SymbolTable probes for symbols already known to the process.
type SymbolTable interface {
	Probe(name string) bool
}

// Dictionary resolves class names against a loader and protection domain.
type Dictionary interface {
	FindInstanceOrArrayKlass(name string, loader Handle, domain Handle) Klass
}

// CodeCache locates the code blob containing an address.
type CodeCache interface {
	FindBlob(addr rt.Address) (name string, ok bool)
}

// StubRoutines answers whether an address lies inside the shared stubs and
// names the stub descriptor for diagnostics.
type StubRoutines interface {
	Contains(addr rt.Address) bool
	DescName(addr rt.Address) string
}

// Runtime exposes the process anchor and dynamic-library symbol resolution
// used for the distance-from-anchor id fallback.
type Runtime interface {
	Anchor() rt.Address
	// LibSymbol resolves addr to a dynamic-library symbol; offset is the
	// distance from the symbol start.
	LibSymbol(addr rt.Address) (name string, offset int, ok bool)
}

// OopDesc classifies one object reference for symbolic encoding.
type OopDesc struct {
	Kind  DataKind
	Klass Klass     // Kind == KindKlass
	Basic BasicType // Kind == KindPrimitive
	Str   string    // Kind == KindString
}

// Universe classifies and materializes the object references the archive
// can encode symbolically.
type Universe interface {
	ClassifyOop(h Handle) OopDesc
	InternString(s string) Handle
	PrimitiveMirror(bt BasicType) Handle
	SystemLoader() Handle
	PlatformLoader() Handle
	// NonOopWord is the sentinel patched where a "non-oop word" was
	// recorded.
	NonOopWord() Handle
	// MetadataOf resolves an immediate metadata word found in code;
	// MetadataWord is its inverse for patching loaded code.
	MetadataOf(w uint64) Metadata
	MetadataWord(m Metadata) uint64
}

// Metadata is either a Klass or a Method.
type Metadata interface{}

// OopRecorder maps compile-time handles to the small indices embedded in
// code.
type OopRecorder interface {
	OopCount() int
	OopAt(i int) Handle
	IsRealOop(h Handle) bool
	MetadataCount() int
	MetadataAt(i int) Metadata
	IsReal(m Metadata) bool
	FindIndex(m Metadata) int
	FindOopIndex(h Handle) int
}

// Compiler identifies the tier that produced or will consume an artifact.
type Compiler interface {
	Name() string
	IsOptimizing() bool
}

// StubGenerator is the stub code generator the runtime hands to the stub
// store/load operations; the archive reads and fills its current section.
type StubGenerator interface {
	Section() *code.Section
}

// EntryRef is the archive's handle for an archived artifact, returned from
// nmethod stores and passed to RegisterMethod on loads so the runtime can
// invalidate the entry when the code is deoptimized.
type EntryRef interface {
	MarkNotEntrant()
}

// Env is the per-compilation environment driving an nmethod load.
type Env interface {
	NewOopRecorder() OopRecorder
	RegisterMethod(m *CompiledMethod, entry EntryRef) bool
}

// World bundles the process-global collaborators handed to the archive at
// initialization.
type World struct {
	Symbols    SymbolTable
	Dictionary Dictionary
	CodeCache  CodeCache
	Stubs      StubRoutines
	Runtime    Runtime
	Universe   Universe
}
