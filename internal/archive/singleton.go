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
	"sync"

	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/opts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The runtime opens at most one archive per process. All public operations
// consult the singleton and short-circuit when it is absent.
var (
	globalMu sync.Mutex
	global   *Archive
)

// Initialize opens the configured archive. A no-op when no mode or no path
// is configured; version mismatch and missing files leave the process
// without an archive rather than failing it.
func Initialize(o opts.Options, w *host.World) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return errors.New("shared code archive already initialized")
	}
	if o.LogLevel != "" {
		if level, err := logrus.ParseLevel(o.LogLevel); err == nil {
			logrus.SetLevel(level)
		}
	}
	if o.Mode == opts.ModeNone || o.ArchivePath == "" {
		return nil
	}
	var a *Archive
	var err error
	switch o.Mode {
	case opts.ModeStore:
		a, err = openForWrite(o, w)
	case opts.ModeLoad:
		a, err = openForRead(o, w)
	}
	if err != nil {
		log.Infof("shared code archive disabled: %v", err)
		return nil
	}
	global = a
	return nil
}

// Close finalizes and releases the singleton.
func Close() {
	globalMu.Lock()
	a := global
	global = nil
	globalMu.Unlock()
	if a != nil {
		a.Close()
	}
}

// Current returns the open archive, or nil.
func Current() *Archive {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// CurrentForRead returns the archive when it is readable.
func CurrentForRead() *Archive {
	if a := Current(); a != nil && a.forRead() {
		return a
	}
	return nil
}

// CurrentForWrite returns the archive when it is writable.
func CurrentForWrite() *Archive {
	if a := Current(); a != nil && a.forWrite() {
		return a
	}
	return nil
}

// IsOn reports whether an archive is open.
func IsOn() bool {
	return Current() != nil
}

// InitTable runs the base population phase of the address table.
func InitTable(extrs, stubs, blobs []uintptr) {
	if a := Current(); a != nil {
		a.table.InitBase(extrs, stubs, blobs)
	}
}

// InitOptoTable runs the optimizing-compiler population phase.
func InitOptoTable(blobs []uintptr) {
	if a := Current(); a != nil {
		a.table.InitOpto(blobs)
	}
}

// AllowConstField reports whether constant-field folding may proceed:
// always, unless the archive is open for store. Folding against values the
// loading process cannot reproduce would bake them into archived code.
func AllowConstField() bool {
	a := Current()
	return a == nil || !a.options.ForWrite()
}
