// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"fmt"
	"sync/atomic"

	"deltabase/engine/deltastore/comparer"
	"deltabase/engine/deltastore/deltafile"
	"deltabase/engine/deltastore/memdb"
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

// MemStore is the mutable in-memory delta store for the active write
// window. Concurrent Update calls do not serialize on each other; the
// insertion sequence makes every delta key unique even for the same
// (row, txid) pair, so arrival order within a row is preserved.
type MemStore struct {
	db  memdb.DB
	seq atomic.Uint32
	ref int32
}

// NewMemStore returns an empty memstore holding one reference for the
// caller.
func NewMemStore() *MemStore {
	return &MemStore{
		db:  memdb.GetDB(comparer.DefaultComparer),
		ref: 1,
	}
}

// Update appends one mutation. Safe for concurrent use.
func (m *MemStore) Update(txid uint64, rowIdx uint32, change model.RowChangeList) error {
	if !change.Valid() {
		return errors.Errorf("deltabase/deltastore: invalid row change list %x", []byte(change))
	}
	var keyBuf [model.DeltaKeyLen]byte
	key := model.MakeDeltaKey(keyBuf[:0], rowIdx, txid, m.seq.Add(1))
	return m.db.Put(key, change)
}

// Count returns the number of recorded mutations.
func (m *MemStore) Count() int {
	return m.db.Len()
}

// MemBytes returns the approximate payload size.
func (m *MemStore) MemBytes() int {
	return m.db.Size()
}

// FlushTo writes every mutation in (row, txid, arrival) order through the
// delta file writer. The caller is the single reader and must not run it
// concurrently with Unref of the last reference.
func (m *MemStore) FlushTo(w *deltafile.Writer) error {
	it := m.db.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		if err := w.Append(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

// NewDeltaIterator implements model.DeltaStore. The iterator takes over
// one reference held by the caller.
func (m *MemStore) NewDeltaIterator(projection *model.Projection, snap model.Snapshot) model.DeltaIterator {
	return newDeltaIterator(m, m.db.NewIterator(nil), projection, snap)
}

// IsRowDeleted implements model.DeltaStore.
func (m *MemStore) IsRowDeleted(rowIdx uint32) (bool, error) {
	it := m.db.NewIterator(model.RowRange(rowIdx))
	defer it.Release()
	for it.Next() {
		if model.RowChangeList(it.Value()).IsDelete() {
			return true, nil
		}
	}
	return false, it.Error()
}

// Ref implements model.DeltaStore.
func (m *MemStore) Ref() {
	atomic.AddInt32(&m.ref, 1)
}

// Unref implements model.DeltaStore. Dropping the last reference returns
// the skiplist to the shared pool.
func (m *MemStore) Unref() {
	if ref := atomic.AddInt32(&m.ref, -1); ref == 0 {
		memdb.PutDB(m.db)
		m.db = nil
	} else if ref < 0 {
		panic("negative memstore ref")
	}
}

// DebugString implements model.DeltaStore.
func (m *MemStore) DebugString() string {
	return fmt.Sprintf("DMS(%d entries, %d bytes)", m.db.Len(), m.db.Size())
}
