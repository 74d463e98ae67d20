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
	"testing"

	"github.com/chenzhuoyu/iasm/x86_64"
	"github.com/cloudwego/scarchive/internal/code"
	"github.com/stretchr/testify/require"
)

type testGen struct {
	sect *code.Section
}

func (self *testGen) Section() *code.Section { return self.sect }

func TestStubRoundTrip(t *testing.T) {
	chdirTemp(t)
	w := newTestWorld()

	initStore(t, w)
	gen := &testGen{sect: code.NewSection(64)}
	start := gen.sect.End()
	require.True(t, gen.sect.Append([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.True(t, StoreStub(gen, 7, "mulAdd", start))
	Close()

	initLoad(t, w)
	dst := &testGen{sect: code.NewSection(64)}
	require.True(t, LoadStub(dst, 7, "mulAdd", dst.sect.End()))
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, dst.sect.Bytes())
}

func TestStubNameMismatch(t *testing.T) {
	chdirTemp(t)
	w := newTestWorld()

	initStore(t, w)
	gen := &testGen{sect: code.NewSection(64)}
	start := gen.sect.End()
	require.True(t, gen.sect.Append([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.True(t, StoreStub(gen, 7, "mulAdd", start))
	Close()

	initLoad(t, w)
	dst := &testGen{sect: code.NewSection(64)}
	require.False(t, LoadStub(dst, 7, "other", dst.sect.End()))
	require.Zero(t, dst.sect.Size())
	require.True(t, Current().Failed())

	// The archive is poisoned: even the matching name fails now.
	require.False(t, LoadStub(dst, 7, "mulAdd", dst.sect.End()))
}

func TestStubMissingEntry(t *testing.T) {
	chdirTemp(t)
	w := newTestWorld()

	initStore(t, w)
	Close()

	initLoad(t, w)
	dst := &testGen{sect: code.NewSection(64)}
	require.False(t, LoadStub(dst, 7, "mulAdd", dst.sect.End()))
	require.False(t, Current().Failed())
}

func TestStubShadowing(t *testing.T) {
	chdirTemp(t)
	w := newTestWorld()

	initStore(t, w)
	for _, fill := range []byte{0x11, 0x22} {
		gen := &testGen{sect: code.NewSection(16)}
		start := gen.sect.End()
		require.True(t, gen.sect.Append([]byte{fill, fill}))
		require.True(t, StoreStub(gen, 42, "arraycopy", start))
	}
	Close()

	// The most recently stored artifact wins.
	initLoad(t, w)
	dst := &testGen{sect: code.NewSection(16)}
	require.True(t, LoadStub(dst, 42, "arraycopy", dst.sect.End()))
	require.Equal(t, []byte{0x22, 0x22}, dst.sect.Bytes())
}

// TestStubAssembled stores machine code produced by a real assembler and
// checks the bytes survive untouched.
func TestStubAssembled(t *testing.T) {
	chdirTemp(t)
	w := newTestWorld()

	p := x86_64.CreateArch().CreateProgram()
	p.MOVQ(0x12345678, x86_64.RAX)
	p.ADDQ(x86_64.RCX, x86_64.RAX)
	p.RET()
	body := p.Assemble(0)
	defer p.Free()

	initStore(t, w)
	gen := &testGen{sect: code.NewSection(len(body) + 16)}
	start := gen.sect.End()
	require.True(t, gen.sect.Append(body))
	require.True(t, StoreStub(gen, 11, "intrinsic_movadd", start))
	Close()

	initLoad(t, w)
	dst := &testGen{sect: code.NewSection(len(body) + 16)}
	require.True(t, LoadStub(dst, 11, "intrinsic_movadd", dst.sect.End()))
	require.Equal(t, body, dst.sect.Bytes())
}
