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

// Process-wide archive statistics, maintained with atomic adds and read by
// the debug package.
var (
	EntriesStored  uint64
	StubsStored    uint64
	StubsLoaded    uint64
	BlobsStored    uint64
	BlobsLoaded    uint64
	NmethodsStored uint64
	NmethodsLoaded uint64
	LoadsSkipped   uint64 // artifact-local failures
)

// EntrySizes returns the byte size of every catalog entry, for debug
// statistics. Load mode only.
func (self *Archive) EntrySizes() []float64 {
	out := make([]float64, 0, len(self.entries))
	for i := range self.entries {
		out = append(out, float64(self.entries[i].Size()))
	}
	return out
}
