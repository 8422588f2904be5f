// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"deltabase/engine/deltastore/deltafile"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/errors"
	"deltabase/engine/model"
	"deltabase/util"
)

// Flush persists the active memstore as a new delta file.
//
// Phase one (exclusive): swap in a fresh memstore and append the old one
// to the store list, so readers keep seeing its entries while it is being
// written. An empty memstore makes the whole flush a no-op. Phase two (no
// lock): write, sync and reopen the delta file; readers and writers
// proceed concurrently. Phase three (exclusive): replace the memstore's
// list slot with the file-backed store.
//
// Concurrent flushes of one tracker are not supported; the flush
// scheduler serializes them per tracker.
func (t *Tracker) Flush() (int64, error) {
	// Phase 1: swap.
	t.componentMu.Lock()
	if err := t.checkOpen(); err != nil {
		t.componentMu.Unlock()
		return 0, err
	}
	if t.o.GetReadOnly() {
		t.componentMu.Unlock()
		return 0, errors.ErrReadOnly
	}
	old := t.dms
	if old.Count() == 0 {
		t.componentMu.Unlock()
		t.stats.addSkippedFlush()
		t.logger.Debug("flush skipped: memstore empty")
		return 0, nil
	}
	num := t.nextIdx
	t.nextIdx++
	slot := len(t.stores)
	t.stores = append(t.stores, old)
	t.dms = NewMemStore()
	// The flush holds its own reference: a concurrent Close drops the
	// list's reference while the durability phase is still reading the
	// memstore.
	old.Ref()
	t.componentMu.Unlock()
	defer old.Unref()

	t.logger.Info("flushing %d entries to delta_%d", old.Count(), num)

	// Phase 2: durability. The swapped-out memstore is immutable from
	// here on: writers went to the fresh one, readers still reach this
	// one through the store list.
	fd := filesystem.FileDesc{Type: filesystem.TypeDelta, Num: num}
	fs, written, err := t.flushDMS(old, fd)
	if err != nil {
		// The swap already happened; failing here would leave the store
		// list pointing at a memstore that can never become durable.
		t.logger.Panic("flush delta_%d: %v", num, err)
	}

	// Phase 3: commit.
	t.componentMu.Lock()
	if t.closed {
		t.componentMu.Unlock()
		fs.Unref()
		return written, errors.ErrClosed
	}
	if slot >= len(t.stores) || t.stores[slot] != model.DeltaStore(old) {
		t.componentMu.Unlock()
		t.logger.Panic("flush delta_%d: store slot %d no longer holds the flushed memstore", num, slot)
	}
	t.stores[slot] = fs
	t.componentMu.Unlock()

	// Drop the list's reference to the memstore. Live iterators still
	// holding theirs keep it alive until release.
	old.Unref()

	t.stats.addFlush()
	t.logger.Info("flushed delta_%d: %s", num, util.ShorteNBytes(int(written)))
	return written, nil
}

// flushDMS writes the memstore's entries to fd, syncs it and reopens it
// as a file-backed store. Returns the store with one reference owned by
// the caller.
func (t *Tracker) flushDMS(dms *MemStore, fd filesystem.FileDesc) (*fileStore, int64, error) {
	w, err := t.fs.Create(fd)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	dw := deltafile.NewWriter(w, t.o)
	if err = dms.FlushTo(dw); err != nil {
		w.Close()
		return nil, 0, errors.Trace(err)
	}
	if err = dw.Close(); err != nil {
		w.Close()
		return nil, 0, errors.Trace(err)
	}
	if err = w.Sync(); err != nil {
		w.Close()
		return nil, 0, errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return nil, 0, errors.Trace(err)
	}

	fs, err := t.openFileStore(fd)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	return fs, fs.Reader().Size(), nil
}

// FlushScore reports how badly the tracker needs a flush, as the ratio
// of memstore bytes to the configured write buffer.
func (t *Tracker) FlushScore() float64 {
	t.componentMu.RLock()
	defer t.componentMu.RUnlock()

	if t.dms == nil {
		return 0
	}
	return float64(t.dms.MemBytes()) / float64(t.o.GetWriteBuffer())
}

// NewFlushTask builds a scheduler task that flushes this tracker.
func (t *Tracker) NewFlushTask() model.FlushTask {
	return &flushTask{t: t}
}

type flushTask struct {
	t *Tracker
}

func (ft *flushTask) GetTrackerID() uint64 {
	return ft.t.id
}

func (ft *flushTask) Run() (int64, error) {
	return ft.t.Flush()
}
