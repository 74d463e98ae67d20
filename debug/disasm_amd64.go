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

package debug

import (
	"fmt"
	"strings"

	"github.com/cloudwego/scarchive/internal/code"
	"golang.org/x/arch/x86/x86asm"
)

// DumpSection disassembles a loaded code section for diagnostics. Bytes
// that do not decode are printed raw and skipped one at a time.
func DumpSection(sect *code.Section) string {
	var sb strings.Builder
	b := sect.Bytes()
	pc := uint64(sect.Start())
	for off := 0; off < len(b); {
		inst, err := x86asm.Decode(b[off:], 64)
		if err != nil || inst.Len == 0 {
			fmt.Fprintf(&sb, "%#x:\t.byte %#02x\n", pc+uint64(off), b[off])
			off++
			continue
		}
		fmt.Fprintf(&sb, "%#x:\t%s\n", pc+uint64(off), x86asm.GNUSyntax(inst, pc+uint64(off), nil))
		off += inst.Len
	}
	return sb.String()
}
