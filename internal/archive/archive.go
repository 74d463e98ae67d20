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

// Package archive implements the persistent shared compiled-code archive:
// a single-file store of stubs, blobs and compiled methods that a later
// launch of the runtime revives instead of re-compiling.
package archive

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/scarchive/internal/addrtab"
	"github.com/cloudwego/scarchive/internal/host"
	"github.com/cloudwego/scarchive/internal/opts"
	"github.com/oleiade/lane"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "scarchive")

// Archive is one open shared-code archive. It is either read-only or
// write-only for its whole lifetime.
type Archive struct {
	options opts.Options
	path    string
	world   *host.World

	header  header
	buf     *ioBuffer
	file    *os.File // store mode only; owned exclusively
	table   *addrtab.Table
	strings *stringPool
	views   []string // load-side string pool views

	entries   []Entry     // load-side view into buf
	pending   *lane.Queue // store-side *Entry, flushed at finalize
	nextIdx   uint32
	storeMark int // entry start of the store in flight, for rollback

	mu      sync.Mutex
	cond    *sync.Cond
	readers int
	closing bool
	closed  bool

	failed       uint32 // atomic; archive is poisoned
	lookupFailed uint32 // atomic; store-side per-artifact flag (loads track their own)
}

// openForRead maps the whole file and validates the catalog.
func openForRead(o opts.Options, w *host.World) (*Archive, error) {
	path := archiveFilePath(o.ArchivePath)
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "shared code archive not found '%s'", path)
	}
	if !st.Mode().IsRegular() {
		return nil, errors.Errorf("shared code archive is not a file '%s'", path)
	}
	buf, err := openLoadBuffer(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read shared code archive '%s'", path)
	}
	a := &Archive{
		options: o,
		path:    path,
		world:   w,
		buf:     buf,
		table:   addrtab.New(w),
		strings: newStringPool(),
	}
	a.cond = sync.NewCond(&a.mu)
	hb, ok := buf.viewAt(0, headerSize)
	if !ok || !a.header.decode(hb) {
		return nil, errors.Errorf("shared code archive too short '%s'", path)
	}
	if a.header.version != Version() {
		return nil, errors.Errorf("shared code archive version mismatch: %#x vs %#x", a.header.version, Version())
	}
	if int(a.header.totalSize) > buf.size() {
		return nil, errors.Errorf("recorded size %d exceeds file size %d", a.header.totalSize, buf.size())
	}
	if !a.loadCatalog() {
		return nil, errors.Errorf("malformed entries table in '%s'", path)
	}
	if !a.readStringPool(int(a.header.stringsCount), int(a.header.stringsOffset)) {
		return nil, errors.Errorf("malformed string pool in '%s'", path)
	}
	log.Infof("opened for read shared code archive '%s' (%d entries)", path, a.header.entriesCount)
	return a, nil
}

// openForWrite creates the file and stages the initial header.
func openForWrite(o opts.Options, w *host.World) (*Archive, error) {
	path := archiveFilePath(o.ArchivePath)
	// Remove first so processes holding the old file keep their view.
	os.Remove(path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o444)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create shared code archive '%s'", path)
	}
	a := &Archive{
		options: o,
		path:    path,
		world:   w,
		buf:     newStoreBuffer(o.ReservedStoreSize),
		file:    f,
		table:   addrtab.New(w),
		strings: newStringPool(),
		pending: lane.NewQueue(),
	}
	a.cond = sync.NewCond(&a.mu)
	a.header.version = Version()
	if !a.buf.append(a.header.encode()) {
		f.Close()
		return nil, errors.Errorf("reserved store size too small for '%s'", path)
	}
	log.Infof("opened for write shared code archive '%s'", path)
	return a, nil
}

// archiveFilePath keeps only the last component of the configured path.
// Directories are deliberately stripped: the archive lives in the working
// directory regardless of where the configured path points.
func archiveFilePath(configured string) string {
	return filepath.Base(configured)
}

// loadCatalog views the entries table and validates positions and bounds.
func (self *Archive) loadCatalog() bool {
	count := int(self.header.entriesCount)
	if count == 0 {
		return true
	}
	b, ok := self.buf.viewAt(int(self.header.entriesOffset), count*entrySize)
	if !ok {
		return false
	}
	entries := entriesView(b, count)
	total := int(self.header.totalSize)
	for i := range entries {
		e := &entries[i]
		if e.Idx() != i {
			log.Warnf("entry %d carries index %d", i, e.Idx())
			return false
		}
		if e.Offset() >= total || e.Offset()+e.Size() > total {
			log.Warnf("entry %d bounds [%d,%d) outside archive size %d", i, e.Offset(), e.Offset()+e.Size(), total)
			return false
		}
	}
	self.entries = entries
	return true
}

func (self *Archive) forRead() bool {
	return self.options.ForRead() && !self.Failed()
}

func (self *Archive) forWrite() bool {
	return self.options.ForWrite() && !self.Failed()
}

func (self *Archive) Failed() bool {
	return atomic.LoadUint32(&self.failed) != 0
}

// setFailed poisons the archive: every subsequent operation returns a
// negative result without touching the file.
func (self *Archive) setFailed() {
	atomic.StoreUint32(&self.failed, 1)
}

func (self *Archive) setLookupFailed()   { atomic.StoreUint32(&self.lookupFailed, 1) }
func (self *Archive) clearLookupFailed() { atomic.StoreUint32(&self.lookupFailed, 0) }

func (self *Archive) hasLookupFailed() bool {
	return atomic.LoadUint32(&self.lookupFailed) != 0
}

// Table is the process-global address table of this archive.
func (self *Archive) Table() *addrtab.Table { return self.table }

// AddString registers a C string with the address table and records its
// bytes for persistence.
func (self *Archive) AddString(s string) {
	addr := addressOfString(s)
	self.strings.recordContent(addr, s)
	self.table.AddString(addr)
}

// beginRead admits a reader unless the archive is closing or poisoned.
func (self *Archive) beginRead() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closing || self.closed || self.Failed() {
		return false
	}
	self.readers++
	return true
}

func (self *Archive) endRead() {
	self.mu.Lock()
	self.readers--
	if self.readers == 0 {
		self.cond.Broadcast()
	}
	self.mu.Unlock()
}

// FindEntry scans the catalog for (kind, id); Code lookups also match the
// decompile count and skip not-entrant entries. The scan runs newest-first
// so re-stored artifacts shadow older ones.
func (self *Archive) FindEntry(kind Kind, id uint32, decompile int) *Entry {
	for i := len(self.entries) - 1; i >= 0; i-- {
		e := &self.entries[i]
		if e.kind != kind || e.id != id {
			continue
		}
		if kind == KindCode {
			if e.NotEntrant() || e.Decompile() != decompile {
				continue
			}
		}
		return e
	}
	return nil
}

// Invalidate marks the entry not-entrant.
func (self *Archive) Invalidate(e *Entry) {
	e.MarkNotEntrant()
	log.Infof("invalidated entry %d (%s id=%d)", e.Idx(), e.Kind(), e.Id())
}

// addEntry records a finished artifact.
func (self *Archive) addEntry(e *Entry) {
	e.idx = self.nextIdx
	self.nextIdx++
	self.pending.Enqueue(e)
	atomic.AddUint64(&EntriesStored, 1)
}

// finishWrite appends the string pool and entries table, rewrites the
// header, and flushes the staging buffer in one write.
func (self *Archive) finishWrite() bool {
	if !self.buf.alignWrite() {
		return false
	}
	self.header.stringsOffset = uint32(self.buf.pos)
	self.header.stringsCount = uint32(self.table.StringCount())
	if !self.writeStringPool() {
		return false
	}
	if !self.buf.alignWrite() {
		return false
	}
	entries := make([]Entry, 0, self.nextIdx)
	for !self.pending.Empty() {
		entries = append(entries, *self.pending.Dequeue().(*Entry))
	}
	self.header.entriesOffset = uint32(self.buf.pos)
	self.header.entriesCount = uint32(len(entries))
	if len(entries) > 0 && !self.buf.append(encodeEntries(entries)) {
		return false
	}
	self.header.totalSize = uint32(self.buf.pos)
	if !self.buf.patchAt(0, self.header.encode()) {
		return false
	}
	if err := self.buf.flush(self.file); err != nil {
		log.Warnf("failed to flush shared code archive '%s': %v", self.path, err)
		return false
	}
	log.Infof("wrote shared code archive '%s': %d entries, %d bytes", self.path, len(entries), self.header.totalSize)
	return true
}

// Close gates on in-flight readers (bounded wait), excludes stores via the
// compile lock, finalizes when open for write, and releases the file.
func (self *Archive) Close() {
	self.mu.Lock()
	if self.closed {
		self.mu.Unlock()
		return
	}
	self.closing = true
	grace := time.Duration(self.options.CloseGraceMS) * time.Millisecond
	deadline := time.Now().Add(grace)
	timeout := time.AfterFunc(grace, func() {
		self.mu.Lock()
		self.cond.Broadcast()
		self.mu.Unlock()
	})
	for self.readers > 0 && time.Now().Before(deadline) {
		self.cond.Wait()
	}
	timeout.Stop()
	drained := self.readers == 0
	if !drained {
		log.Warnf("closing shared code archive '%s' with %d readers still in flight", self.path, self.readers)
	}
	self.closed = true
	self.mu.Unlock()

	lock := self.options.CompileLock
	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}
	if self.options.ForWrite() && !self.Failed() {
		if !self.finishWrite() {
			self.setFailed()
		}
	}
	if self.file != nil {
		if err := self.file.Close(); err != nil {
			log.Warnf("failed to close shared code archive '%s': %v", self.path, err)
		}
		self.file = nil
	}
	if drained {
		// Readers that outlived the grace period still hold views into the
		// buffer; leak it to them rather than crash them.
		self.buf = nil
	}
	log.Infof("closed shared code archive '%s'", self.path)
}
