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

package reloc

import (
	"fmt"

	"github.com/cloudwego/scarchive/internal/rt"
)

// Builder accumulates relocation records for one code section. Records must
// be added in non-decreasing address order; several records may share an
// address.
type Builder struct {
	locs []uint32
	prev rt.Address
}

func NewBuilder(start rt.Address) *Builder {
	return &Builder{prev: start}
}

func (self *Builder) Add(t Type, addr rt.Address, data ...uint32) {
	if addr < self.prev {
		panic(fmt.Sprintf("reloc: out of order relocation at %#x", addr))
	}
	self.locs = append(self.locs, MakeHead(t, len(data), int(addr-self.prev)))
	self.locs = append(self.locs, data...)
	self.prev = addr
}

func (self *Builder) Locs() []uint32 {
	return self.locs
}
