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
	"sync"

	"github.com/cloudwego/scarchive/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithArchivePath sets the archive location. Only the last path component
// is used: the archive file is created in, and read from, the working
// directory.
func WithArchivePath(path string) Option {
	return func(o *opts.Options) { o.ArchivePath = path }
}

// WithStore opens the archive for writing.
func WithStore() Option {
	return func(o *opts.Options) { o.Mode = opts.ModeStore }
}

// WithLoad opens the archive for reading.
func WithLoad() Option {
	return func(o *opts.Options) { o.Mode = opts.ModeLoad }
}

// WithReservedStoreSize caps the in-memory staging buffer of a store-mode
// archive. Stores past the reservation fail the archive.
func WithReservedStoreSize(n int) Option {
	if n < 4096 {
		panic(fmt.Sprintf("scarchive: reserved store size too small: %d", n))
	}
	return func(o *opts.Options) { o.ReservedStoreSize = n }
}

// WithVerify makes every nmethod load decode fully and then report failure,
// so the caller compiles fresh. Validation mode.
func WithVerify(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}

// WithCompileLock hands the caller's compilation lock to the archive;
// finalization acquires it to exclude concurrent stores.
func WithCompileLock(l sync.Locker) Option {
	return func(o *opts.Options) { o.CompileLock = l }
}

// WithCloseGrace bounds, in milliseconds, how long Close waits for readers
// still in flight.
func WithCloseGrace(ms int) Option {
	return func(o *opts.Options) { o.CloseGraceMS = ms }
}

// WithLogLevel sets the logging level for archive diagnostics, e.g.
// "debug", "info", "warning".
func WithLogLevel(level string) Option {
	return func(o *opts.Options) { o.LogLevel = level }
}
