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
	"testing"

	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/opts"
	"github.com/cloudwego/scarchive/internal/rt"
	"github.com/stretchr/testify/require"
)

// testWorld is a self-contained host runtime: a handful of classes and
// methods, fixed stub/blob address ranges, and a handle-based object
// universe. One instance serves both the store and the load side, which is
// exactly the "identically populated process" the round-trip invariants
// assume.
type testWorld struct {
	symbols  map[string]bool
	klasses  map[string]*testKlass
	stubLo   rt.Address
	stubHi   rt.Address
	blobAddr map[rt.Address]string
	anchor   rt.Address
	libSyms  map[rt.Address]libSym

	oops       map[host.Handle]host.OopDesc
	interned   map[string]host.Handle
	prims      map[host.BasicType]host.Handle
	sysLoader  host.Handle
	plaLoader  host.Handle
	nonOop     host.Handle
	metaByWord map[uint64]host.Metadata
	wordByMeta map[host.Metadata]uint64
	nextHandle host.Handle
	nextWord   uint64
}

type libSym struct {
	name string
	off  int
}

type testKlass struct {
	name    string
	mirror  host.Handle
	loader  host.Handle
	domain  host.Handle
	methods map[string]*testMethod
}

func (self *testKlass) Name() string { return self.name }
func (self *testKlass) Mirror() host.Handle { return self.mirror }
func (self *testKlass) Loader() host.Handle { return self.loader }
func (self *testKlass) ProtectionDomain() host.Handle { return self.domain }

func (self *testKlass) FindMethod(name, sig string) host.Method {
	if m, ok := self.methods[name+sig]; ok {
		return m
	}
	return nil
}

type testMethod struct {
	holder     *testKlass
	name       string
	sig        string
	decompiles int
}

func (self *testMethod) Holder() host.Klass { return self.holder }
func (self *testMethod) Name() string { return self.name }
func (self *testMethod) Signature() string { return self.sig }
func (self *testMethod) Decompiles() int { return self.decompiles }

func (self *testMethod) NameAndSig() string {
	return self.holder.name + "." + self.name + self.sig
}

func newTestWorld() *testWorld {
	w := &testWorld{
		symbols:    make(map[string]bool),
		klasses:    make(map[string]*testKlass),
		stubLo:     0x7f0000100000,
		stubHi:     0x7f0000200000,
		blobAddr:   make(map[rt.Address]string),
		anchor:     0x7f0000000000,
		libSyms:    make(map[rt.Address]libSym),
		oops:       make(map[host.Handle]host.OopDesc),
		interned:   make(map[string]host.Handle),
		prims:      make(map[host.BasicType]host.Handle),
		metaByWord: make(map[uint64]host.Metadata),
		wordByMeta: make(map[host.Metadata]uint64),
		nextHandle: 0x1000,
		nextWord:   0x2000,
	}
	w.sysLoader = w.handle()
	w.plaLoader = w.handle()
	w.nonOop = w.handle()
	return w
}

func (self *testWorld) handle() host.Handle {
	self.nextHandle++
	return self.nextHandle
}

func (self *testWorld) addKlass(name string) *testKlass {
	k := &testKlass{
		name:    name,
		mirror:  self.handle(),
		methods: make(map[string]*testMethod),
	}
	self.symbols[name] = true
	self.klasses[name] = k
	self.oops[k.mirror] = host.OopDesc{Kind: host.KindKlass, Klass: k}
	self.registerMeta(k)
	return k
}

func (self *testWorld) addMethod(k *testKlass, name, sig string) *testMethod {
	m := &testMethod{holder: k, name: name, sig: sig}
	self.symbols[name] = true
	self.symbols[sig] = true
	k.methods[name+sig] = m
	self.registerMeta(m)
	return m
}

func (self *testWorld) registerMeta(m host.Metadata) uint64 {
	if w, ok := self.wordByMeta[m]; ok {
		return w
	}
	self.nextWord++
	self.metaByWord[self.nextWord] = m
	self.wordByMeta[m] = self.nextWord
	return self.nextWord
}

// SymbolTable
func (self *testWorld) Probe(name string) bool { return self.symbols[name] }

// Dictionary
func (self *testWorld) FindInstanceOrArrayKlass(name string, loader, domain host.Handle) host.Klass {
	if k, ok := self.klasses[name]; ok {
		return k
	}
	return nil
}

// CodeCache
func (self *testWorld) FindBlob(addr rt.Address) (string, bool) {
	name, ok := self.blobAddr[addr]
	return name, ok
}

// StubRoutines
func (self *testWorld) Contains(addr rt.Address) bool {
	return addr >= self.stubLo && addr < self.stubHi
}

func (self *testWorld) DescName(addr rt.Address) string { return "test_stub" }

// Runtime
func (self *testWorld) Anchor() rt.Address { return self.anchor }

func (self *testWorld) LibSymbol(addr rt.Address) (string, int, bool) {
	s, ok := self.libSyms[addr]
	return s.name, s.off, ok
}

// Universe
func (self *testWorld) ClassifyOop(h host.Handle) host.OopDesc {
	if h == host.NullHandle {
		return host.OopDesc{Kind: host.KindNull}
	}
	if h == self.nonOop {
		return host.OopDesc{Kind: host.KindNoData}
	}
	if h == self.sysLoader {
		return host.OopDesc{Kind: host.KindSysLoader}
	}
	if h == self.plaLoader {
		return host.OopDesc{Kind: host.KindPlaLoader}
	}
	if d, ok := self.oops[h]; ok {
		return d
	}
	return host.OopDesc{Kind: host.DataKind(-100)} // unsupported
}

func (self *testWorld) InternString(s string) host.Handle {
	if h, ok := self.interned[s]; ok {
		return h
	}
	h := self.handle()
	self.interned[s] = h
	self.oops[h] = host.OopDesc{Kind: host.KindString, Str: s}
	return h
}

func (self *testWorld) PrimitiveMirror(bt host.BasicType) host.Handle {
	if h, ok := self.prims[bt]; ok {
		return h
	}
	h := self.handle()
	self.prims[bt] = h
	self.oops[h] = host.OopDesc{Kind: host.KindPrimitive, Basic: bt}
	return h
}

func (self *testWorld) SystemLoader() host.Handle { return self.sysLoader }
func (self *testWorld) PlatformLoader() host.Handle { return self.plaLoader }
func (self *testWorld) NonOopWord() host.Handle { return self.nonOop }

func (self *testWorld) MetadataOf(w uint64) host.Metadata {
	return self.metaByWord[w]
}

func (self *testWorld) MetadataWord(m host.Metadata) uint64 {
	return self.wordByMeta[m]
}

func (self *testWorld) world() *host.World {
	return &host.World{
		Symbols:    self,
		Dictionary: self,
		CodeCache:  self,
		Stubs:      self,
		Runtime:    self,
		Universe:   self,
	}
}

// testRecorder is a growable oop recorder.
type testRecorder struct {
	oops  []host.Handle
	metas []host.Metadata
	world *testWorld
}

func (self *testRecorder) OopCount() int { return len(self.oops) }
func (self *testRecorder) OopAt(i int) host.Handle { return self.oops[i] }
func (self *testRecorder) MetadataCount() int { return len(self.metas) }
func (self *testRecorder) MetadataAt(i int) host.Metadata { return self.metas[i] }

func (self *testRecorder) IsReal(m host.Metadata) bool { return m != nil }

func (self *testRecorder) IsRealOop(h host.Handle) bool {
	return h != host.NullHandle && (self.world == nil || h != self.world.nonOop)
}

func (self *testRecorder) FindIndex(m host.Metadata) int {
	for i, v := range self.metas {
		if v == m {
			return i + 1
		}
	}
	self.metas = append(self.metas, m)
	return len(self.metas)
}

func (self *testRecorder) FindOopIndex(h host.Handle) int {
	for i, v := range self.oops {
		if v == h {
			return i + 1
		}
	}
	self.oops = append(self.oops, h)
	return len(self.oops)
}

// testEnv drives nmethod loads.
type testEnv struct {
	world      *testWorld
	registered *host.CompiledMethod
	entry      host.EntryRef
	registerOK bool
}

func (self *testEnv) NewOopRecorder() host.OopRecorder {
	return &testRecorder{world: self.world}
}

func (self *testEnv) RegisterMethod(m *host.CompiledMethod, entry host.EntryRef) bool {
	self.registered = m
	self.entry = entry
	return self.registerOK
}

// testCompiler is the optimizing (or not) tier.
type testCompiler struct {
	opt bool
}

func (self *testCompiler) Name() string { return "testc2" }
func (self *testCompiler) IsOptimizing() bool { return self.opt }

// chdirTemp isolates the archive file, which always lands in the working
// directory by design.
func chdirTemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func testOptions(mode opts.Mode, extra ...func(*opts.Options)) opts.Options {
	o := opts.GetDefaultOptions()
	o.Mode = mode
	o.ArchivePath = "some/dir/test.sca"
	o.ReservedStoreSize = 1 << 20
	o.CloseGraceMS = 200
	for _, f := range extra {
		f(&o)
	}
	return o
}

// initStore opens the singleton for writing and registers the usual
// address-table ranges.
func initStore(t *testing.T, w *testWorld, extra ...func(*opts.Options)) {
	t.Helper()
	require.NoError(t, Initialize(testOptions(opts.ModeStore, extra...), w.world()))
	require.True(t, IsOn())
	initTables(w)
	t.Cleanup(Close)
}

// initLoad reopens the singleton for reading.
func initLoad(t *testing.T, w *testWorld, extra ...func(*opts.Options)) {
	t.Helper()
	require.NoError(t, Initialize(testOptions(opts.ModeLoad, extra...), w.world()))
	initTables(w)
	t.Cleanup(Close)
}

var (
	testExtrAddr rt.Address = 0x7f0000300010
	testStubAddr rt.Address = 0x7f0000100040
	testBlobAddr rt.Address = 0x7f0000400080
)

func initTables(w *testWorld) {
	w.blobAddr[testBlobAddr] = "deopt_blob"
	InitTable(
		[]uintptr{testExtrAddr},
		[]uintptr{testStubAddr},
		nil,
	)
	InitOptoTable([]uintptr{testBlobAddr})
}
