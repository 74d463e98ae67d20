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

// Package scarchive is a persistent shared compiled-code archive for a
// managed runtime's JIT. Across launches the runtime stores or loads the
// optimizing compiler's artifacts — stubs, the exception blob and compiled
// methods — so a later launch can skip re-compiling them.
//
// The archive is a process-wide singleton opened in exactly one direction.
// All operations consult it and short-circuit when it is absent; failures
// never take the process down, the runtime just compiles as usual.
package scarchive

import (
	"github.com/cloudwego/scarchive/internal/archive"
	"github.com/cloudwego/scarchive/internal/code"
	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/opts"
	"github.com/cloudwego/scarchive/internal/rt"
)

// Collaborator surface the embedding runtime provides.
type (
	World          = host.World
	SymbolTable    = host.SymbolTable
	Dictionary     = host.Dictionary
	CodeCache      = host.CodeCache
	StubRoutines   = host.StubRoutines
	Runtime        = host.Runtime
	Universe       = host.Universe
	Klass          = host.Klass
	Method         = host.Method
	Metadata       = host.Metadata
	Handle         = host.Handle
	OopRecorder    = host.OopRecorder
	Compiler       = host.Compiler
	StubGenerator  = host.StubGenerator
	Env            = host.Env
	CompiledMethod = host.CompiledMethod

	// CodeBuffer and CodeSection carry generated code across the boundary.
	CodeBuffer  = code.Buffer
	CodeSection = code.Section

	// Entry identifies one archived artifact; the runtime invalidates it
	// when the corresponding code is deoptimized.
	Entry = archive.Entry
)

// Address is a machine address in the host process.
type Address = rt.Address

// Initialize opens the configured archive, if any. Missing files and
// version mismatches disable the archive without error; only programmer
// mistakes (double init) are reported.
func Initialize(world *World, options ...Option) error {
	o := opts.GetDefaultOptions()
	for _, opt := range options {
		opt(&o)
	}
	if err := archive.Initialize(o, world); err != nil {
		return ArchiveError{Path: o.ArchivePath, Reason: err.Error()}
	}
	return nil
}

// Close waits out in-flight readers, finalizes a store-mode archive and
// releases it.
func Close() {
	archive.Close()
}

// IsOn reports whether an archive is open in either direction.
func IsOn() bool {
	return archive.IsOn()
}

// InitTable registers the compiler-independent runtime routines, shared
// stubs and call blobs with the address table.
func InitTable(extrs, stubs, blobs []Address) {
	archive.InitTable(extrs, stubs, blobs)
}

// InitOptoTable registers the optimizing compiler's runtime blobs.
func InitOptoTable(blobs []Address) {
	archive.InitOptoTable(blobs)
}

// AddString registers an interned C string referenced by archived code.
func AddString(s string) {
	if a := archive.Current(); a != nil {
		a.AddString(s)
	}
}

// AllowConstField reports whether constant-field folding may proceed while
// the archive is operating.
func AllowConstField() bool {
	return archive.AllowConstField()
}

// StoreStub archives stub code generated between start and the generator's
// current position under the intrinsic id.
func StoreStub(gen StubGenerator, id uint32, name string, start Address) bool {
	return archive.StoreStub(gen, id, name, start)
}

// LoadStub revives an archived stub into the generator at start.
func LoadStub(gen StubGenerator, id uint32, name string, start Address) bool {
	return archive.LoadStub(gen, id, name, start)
}

// StoreExceptionBlob archives the exception blob.
func StoreExceptionBlob(buffer *CodeBuffer, pcOffset int) bool {
	return archive.StoreBlob(buffer, pcOffset)
}

// LoadExceptionBlob revives the exception blob into buffer, returning the
// saved pc offset.
func LoadExceptionBlob(buffer *CodeBuffer) (int, bool) {
	return archive.LoadBlob(buffer)
}

// StoreNmethod archives a compiled method and returns its entry.
func StoreNmethod(m *CompiledMethod) (*Entry, bool) {
	return archive.StoreNmethod(m)
}

// LoadNmethod revives a compiled method and registers it through env.
func LoadNmethod(env Env, target Method, entryBCI int, compiler Compiler) bool {
	return archive.LoadNmethod(env, target, entryBCI, compiler)
}

// Invalidate marks an entry not-entrant; lookups never return it again.
func Invalidate(e *Entry) {
	if a := archive.Current(); a != nil {
		a.Invalidate(e)
	}
}
