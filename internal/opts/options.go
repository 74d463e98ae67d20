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

package opts

import (
	"sync"
)

// Mode selects the direction an archive is opened in. An archive is either
// read-only or write-only for its whole lifetime.
type Mode int

const (
	ModeNone Mode = iota
	ModeStore
	ModeLoad
)

type Options struct {
	ArchivePath       string
	Mode              Mode
	ReservedStoreSize int
	Verify            bool
	CloseGraceMS      int
	LogLevel          string

	// CompileLock is the caller's compilation lock. Stores are serialized
	// under it by the caller; finalization acquires it to exclude stores
	// during flush.
	CompileLock sync.Locker

	// Flags the archive force-defaults on the consumer when it is active.
	FoldStableConstants  bool
	UnreachableAddresses bool
	DeferStubGeneration  bool
}

func (self *Options) ForRead() bool  { return self.Mode == ModeLoad }
func (self *Options) ForWrite() bool { return self.Mode == ModeStore }

func GetDefaultOptions() Options {
	return Options{
		ReservedStoreSize: ReservedStoreSize,
		CloseGraceMS:      CloseGraceMS,
		CompileLock:       new(sync.Mutex),

		// Operating the archive requires stable addressing: constants are
		// not folded, far targets always use the reachable-anywhere form,
		// and stub generation is not deferred past archive init.
		FoldStableConstants:  false,
		UnreachableAddresses: true,
		DeferStubGeneration:  false,
	}
}
