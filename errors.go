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

package scarchive

import (
	"fmt"
)

// ArchiveError is the error Initialize returns. Operations never return it —
// they report failure through their boolean results. Problems with the
// archive file itself (missing file, version mismatch, malformed catalog)
// disable the archive without an error, so the only case reported is a
// repeated initialization.
type ArchiveError struct {
	Path   string
	Reason string
}

func (self ArchiveError) Error() string {
	return fmt.Sprintf("ArchiveError(%s): %s", self.Path, self.Reason)
}
