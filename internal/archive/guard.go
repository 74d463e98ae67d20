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
	"github.com/cloudwego/scarchive/internal/addrtab"
)

// guardStore runs one store operation, converting an address-table miss
// into an artifact skip. Anything else propagates: an unhandled relocation
// type or a corrupt iterator is a programmer error.
func (self *Archive) guardStore(f func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			miss, ok := r.(addrtab.Miss)
			if !ok {
				panic(r)
			}
			log.Warnf("skipping store: %v", miss)
			self.setLookupFailed()
			res = ArtifactSkip
		}
	}()
	return f()
}

// finishStore resolves a store result. Artifact-local failures rewind the
// write cursor to the entry start so nothing of the failed entry commits;
// archive failures poison the archive.
func (self *Archive) finishStore(res Result) bool {
	switch res {
	case Ok:
		return true
	case ArtifactSkip:
		if self.hasLookupFailed() {
			log.Infof("store rolled back after failed lookup")
		}
		self.buf.seek(self.storeMark)
		self.buf.buf = self.buf.buf[:self.storeMark]
		self.clearLookupFailed()
		return false
	default:
		self.setFailed()
		return false
	}
}
