// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package deltastore implements the MVCC delta-tracking layer of a rowset:
// the mutable in-memory delta store, immutable on-disk delta files, the
// multi-store merge iterator and the tracker that owns store lifecycle.
package deltastore

import (
	"sort"
	"strings"
	"sync"

	"deltabase/engine/deltastore/deltafile"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

// Tracker owns the ordered delta store list of one rowset: it serves
// reads by composing iterators over a point-in-time store snapshot,
// writes by appending to the active memstore, and drives the flush
// protocol that swaps the memstore for a durable file.
type Tracker struct {
	id      uint64
	fs      filesystem.FileSystem
	o       *opt.Options
	schema  *model.Schema
	numRows uint32
	logger  *trackerLogger

	// componentMu guards the store list and the active memstore pointer.
	// The list mutates only inside the exclusive section (flush swap and
	// commit), so shared-mode holders never observe a torn list.
	componentMu sync.RWMutex
	stores      []model.DeltaStore // oldest to newest
	dms         *MemStore
	nextIdx     int64
	opened      bool
	closed      bool

	stats trackerStats
}

// NewTracker creates a tracker over the rowset directory behind fs. Call
// Open before any other operation.
func NewTracker(id uint64, fs filesystem.FileSystem, schema *model.Schema, numRows uint32, o *opt.Options) *Tracker {
	return &Tracker{
		id:      id,
		fs:      fs,
		o:       o,
		schema:  schema,
		numRows: numRows,
		logger:  newTrackerLogger(id),
	}
}

// ID returns the tracker id.
func (t *Tracker) ID() uint64 {
	return t.id
}

// Schema returns the rowset schema.
func (t *Tracker) Schema() *model.Schema {
	return t.schema
}

// NumRows returns the rowset row count.
func (t *Tracker) NumRows() uint32 {
	return t.numRows
}

// Open scans the rowset directory and reconstructs the store list from
// the delta files found. A malformed delta file name or a file that fails
// to open aborts opening; nothing is exposed on error.
func (t *Tracker) Open() error {
	t.componentMu.Lock()
	defer t.componentMu.Unlock()

	if t.closed {
		return errors.ErrClosed
	}
	if t.opened {
		return errors.New("deltabase/deltastore: tracker already open")
	}

	names, err := t.fs.ListNames()
	if err != nil {
		return errors.Trace(err)
	}

	var nums []int64
	for _, name := range names {
		num, isDelta, err := filesystem.ParseDeltaName(name)
		if err != nil {
			// delta_ prefix with a bad index suffix: the directory is
			// inconsistent, not merely noisy.
			return errors.Trace(err)
		}
		if !isDelta {
			switch {
			case strings.HasPrefix(name, filesystem.ColumnPrefix):
				// column data, owned by the base store
			case name == "LOCK":
			default:
				t.logger.Warn("ignoring unrecognized file %q", name)
			}
			continue
		}
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, num := range nums {
		fd := filesystem.FileDesc{Type: filesystem.TypeDelta, Num: num}
		fs, err := t.openFileStore(fd)
		if err != nil {
			for _, s := range t.stores {
				s.Unref()
			}
			t.stores = nil
			return errors.Annotatef(err, "open %v", fd)
		}
		t.stores = append(t.stores, fs)
		t.nextIdx = num + 1
	}

	t.dms = NewMemStore()
	t.opened = true
	t.logger.Info("opened: %d delta files, next index %d", len(t.stores), t.nextIdx)
	return nil
}

func (t *Tracker) openFileStore(fd filesystem.FileDesc) (*fileStore, error) {
	f, err := t.fs.Open(fd)
	if err != nil {
		return nil, err
	}
	size, err := t.fs.Size(fd)
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := deltafile.NewReader(f, size, fd, t.o)
	if err != nil {
		f.Close()
		return nil, err
	}
	return newFileStore(r, fd), nil
}

// Update appends one mutation to the active memstore. Runs under the
// shared section, concurrently with other updates and reads.
func (t *Tracker) Update(txid uint64, rowIdx uint32, change model.RowChangeList) error {
	t.componentMu.RLock()
	defer t.componentMu.RUnlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.o.GetReadOnly() {
		return errors.ErrReadOnly
	}
	if rowIdx >= t.numRows {
		return errors.Errorf("deltabase/deltastore: row index %d out of range [0,%d)", rowIdx, t.numRows)
	}
	if err := t.dms.Update(txid, rowIdx, change); err != nil {
		return err
	}
	t.stats.addUpdate(change.IsDelete())
	return nil
}

// IsRowDeleted reports whether any store records a delete for the row,
// against full committed content. The active memstore is checked first,
// then the persisted stores newest to oldest; deletes being monotonic,
// order only affects how fast the check short-circuits.
func (t *Tracker) IsRowDeleted(rowIdx uint32) (bool, error) {
	t.componentMu.RLock()
	defer t.componentMu.RUnlock()

	if err := t.checkOpen(); err != nil {
		return false, err
	}
	if rowIdx >= t.numRows {
		return false, errors.Errorf("deltabase/deltastore: row index %d out of range [0,%d)", rowIdx, t.numRows)
	}

	deleted, err := t.dms.IsRowDeleted(rowIdx)
	if deleted || err != nil {
		return deleted, err
	}
	for i := len(t.stores) - 1; i >= 0; i-- {
		deleted, err = t.stores[i].IsRowDeleted(rowIdx)
		if deleted || err != nil {
			return deleted, err
		}
	}
	return false, nil
}

// CollectStores returns a point-in-time copy of the store list with the
// active memstore appended as the newest entry. Every handle is ref'd;
// the caller owns one reference per store.
func (t *Tracker) CollectStores() ([]model.DeltaStore, error) {
	t.componentMu.RLock()
	defer t.componentMu.RUnlock()

	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	stores := make([]model.DeltaStore, 0, len(t.stores)+1)
	for _, s := range t.stores {
		s.Ref()
		stores = append(stores, s)
	}
	t.dms.Ref()
	stores = append(stores, t.dms)
	return stores, nil
}

// NewDeltaIterator composes a merged delta iterator over the current
// store snapshot. The iterator must be released after use.
func (t *Tracker) NewDeltaIterator(projection *model.Projection, snap model.Snapshot) (model.DeltaIterator, error) {
	stores, err := t.CollectStores()
	if err != nil {
		return nil, err
	}
	t.stats.iterOpened()
	return &trackedIter{
		DeltaIterator: NewMergedDeltaIterator(stores, projection, snap),
		stats:         &t.stats,
	}, nil
}

// Close drops the tracker's references. Stores survive until outstanding
// reader snapshots release theirs; the filesystem handle stays with the
// caller.
func (t *Tracker) Close() error {
	t.componentMu.Lock()
	defer t.componentMu.Unlock()

	if t.closed {
		return errors.ErrClosed
	}
	t.closed = true
	for _, s := range t.stores {
		s.Unref()
	}
	t.stores = nil
	if t.dms != nil {
		t.dms.Unref()
		t.dms = nil
	}
	t.logger.Info("closed")
	return nil
}

// Must hold componentMu (shared or exclusive).
func (t *Tracker) checkOpen() error {
	if t.closed {
		return errors.ErrClosed
	}
	if !t.opened {
		return errors.New("deltabase/deltastore: tracker not open")
	}
	return nil
}

// DebugString lists the current stores, oldest to newest.
func (t *Tracker) DebugString() string {
	t.componentMu.RLock()
	defer t.componentMu.RUnlock()

	var sb strings.Builder
	for i, s := range t.stores {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.DebugString())
	}
	if t.dms != nil {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.dms.DebugString())
	}
	return sb.String()
}

// trackedIter decorates the merged iterator with alive-iterator
// accounting.
type trackedIter struct {
	model.DeltaIterator
	stats *trackerStats
	done  bool
}

func (it *trackedIter) Release() {
	if !it.done {
		it.done = true
		it.stats.iterClosed()
	}
	it.DeltaIterator.Release()
}
