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
	"sync/atomic"

	"github.com/cloudwego/scarchive/internal/archive"
	"gonum.org/v1/gonum/stat"
)

// A Stats records operation counts of the shared code archive.
type Stats struct {
	Stored CountStats
	Loaded CountStats
}

// A CountStats records per-artifact-kind counts.
type CountStats struct {
	Stubs    int
	Blobs    int
	Nmethods int
	Skipped  int
}

// GetStats returns operation statistics of the archive.
func GetStats() Stats {
	return Stats{
		Stored: CountStats{
			Stubs:    int(atomic.LoadUint64(&archive.StubsStored)),
			Blobs:    int(atomic.LoadUint64(&archive.BlobsStored)),
			Nmethods: int(atomic.LoadUint64(&archive.NmethodsStored)),
		},
		Loaded: CountStats{
			Stubs:    int(atomic.LoadUint64(&archive.StubsLoaded)),
			Blobs:    int(atomic.LoadUint64(&archive.BlobsLoaded)),
			Nmethods: int(atomic.LoadUint64(&archive.NmethodsLoaded)),
			Skipped:  int(atomic.LoadUint64(&archive.LoadsSkipped)),
		},
	}
}

// An ArchiveStats summarizes the catalog of an open load-mode archive.
type ArchiveStats struct {
	Entries    int
	MeanSize   float64
	StdDevSize float64
}

// GetArchiveStats computes entry-size statistics of the open archive.
func GetArchiveStats() ArchiveStats {
	a := archive.Current()
	if a == nil {
		return ArchiveStats{}
	}
	sizes := a.EntrySizes()
	if len(sizes) == 0 {
		return ArchiveStats{}
	}
	mean, std := stat.MeanStdDev(sizes, nil)
	return ArchiveStats{
		Entries:    len(sizes),
		MeanSize:   mean,
		StdDevSize: std,
	}
}
