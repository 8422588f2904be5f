// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"deltabase/engine/deltastore/iterator"
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

type preparedDelta struct {
	rowIdx uint32
	txid   uint64
	change model.RowChangeList
}

// deltaIterator iterates one store's deltas over a row window. It works
// against any raw (delta key, row change) iterator, so the memstore and
// the file store share it. Snapshot filtering happens at PrepareBatch.
//
// The iterator owns one reference to its store, released on Release.
type deltaIterator struct {
	store      model.DeltaStore
	raw        iterator.Iterator
	projection *model.Projection
	snap       model.Snapshot

	initted    bool
	rawValid   bool
	nextRow    uint32
	batchStart uint32
	batchRows  int
	prepared   []preparedDelta
	err        error
	released   bool
}

func newDeltaIterator(store model.DeltaStore, raw iterator.Iterator, projection *model.Projection, snap model.Snapshot) *deltaIterator {
	return &deltaIterator{
		store:      store,
		raw:        raw,
		projection: projection,
		snap:       snap,
	}
}

func (it *deltaIterator) Init() error {
	if it.released {
		return errors.ErrIterReleased
	}
	if it.projection == nil {
		return errors.New("deltabase/deltastore: delta iterator without projection")
	}
	if it.snap == nil {
		return errors.New("deltabase/deltastore: delta iterator without snapshot")
	}
	it.initted = true
	it.rawValid = it.raw.First()
	it.nextRow = 0
	return it.raw.Error()
}

func (it *deltaIterator) SeekToOrdinal(rowIdx uint32) error {
	if err := it.check(); err != nil {
		return err
	}
	var keyBuf [model.DeltaKeyLen]byte
	it.rawValid = it.raw.Seek(model.MakeDeltaKey(keyBuf[:0], rowIdx, 0, 0))
	it.nextRow = rowIdx
	it.err = it.raw.Error()
	return it.err
}

// PrepareBatch gathers the snapshot-visible deltas of the next nrows rows.
// Subsequent Apply/Collect calls operate on that window.
func (it *deltaIterator) PrepareBatch(nrows int) error {
	if err := it.check(); err != nil {
		return err
	}
	if nrows <= 0 {
		return errors.Errorf("deltabase/deltastore: bad batch size %d", nrows)
	}

	it.batchStart = it.nextRow
	it.batchRows = nrows
	it.prepared = it.prepared[:0]

	limit := uint64(it.nextRow) + uint64(nrows)
	for it.rawValid {
		rowIdx, txid, _, err := model.ParseDeltaKey(it.raw.Key())
		if err != nil {
			it.err = err
			return err
		}
		if uint64(rowIdx) >= limit {
			break
		}
		if it.snap.IsVisible(txid) {
			// The raw iterator may recycle its value buffer on advance.
			change := append(model.RowChangeList(nil), it.raw.Value()...)
			it.prepared = append(it.prepared, preparedDelta{rowIdx: rowIdx, txid: txid, change: change})
		}
		it.rawValid = it.raw.Next()
	}
	if err := it.raw.Error(); err != nil {
		it.err = err
		return err
	}

	if limit > uint64(^uint32(0)) {
		it.nextRow = ^uint32(0)
	} else {
		it.nextRow = uint32(limit)
	}
	return nil
}

// ApplyUpdates overwrites dst cells with this store's updates for the
// projected column, in (row, txid, arrival) order, so the last visible
// update wins within the store.
func (it *deltaIterator) ApplyUpdates(colIdx int, dst *model.ColumnBlock) error {
	if err := it.check(); err != nil {
		return err
	}
	baseIdx := it.projection.BaseIndex(colIdx)
	for _, pd := range it.prepared {
		if pd.change.IsDelete() {
			continue
		}
		rel := int(pd.rowIdx - it.batchStart)
		if rel >= dst.NumRows() {
			return errors.Errorf("deltabase/deltastore: row %d outside destination block of %d rows", pd.rowIdx, dst.NumRows())
		}
		updates, err := pd.change.DecodeUpdates()
		if err != nil {
			return err
		}
		for _, u := range updates {
			if int(u.ColIdx) == baseIdx {
				dst.SetCell(rel, u.Value)
			}
		}
	}
	return nil
}

// ApplyDeletes clears the selection bit of every row this store deletes
// under the snapshot. Deletes are monotonic; bits are never re-set.
func (it *deltaIterator) ApplyDeletes(sel *model.SelectionVector) error {
	if err := it.check(); err != nil {
		return err
	}
	for _, pd := range it.prepared {
		if !pd.change.IsDelete() {
			continue
		}
		rel := int(pd.rowIdx - it.batchStart)
		if rel >= sel.NumRows() {
			return errors.Errorf("deltabase/deltastore: row %d outside selection vector of %d rows", pd.rowIdx, sel.NumRows())
		}
		sel.ClearRow(rel)
	}
	return nil
}

// CollectMutations appends the window's raw mutations in store order.
func (it *deltaIterator) CollectMutations(dst *[]model.Mutation) error {
	if err := it.check(); err != nil {
		return err
	}
	for _, pd := range it.prepared {
		*dst = append(*dst, model.Mutation{RowIdx: pd.rowIdx, TxID: pd.txid, Change: pd.change})
	}
	return nil
}

func (it *deltaIterator) Release() {
	if it.released {
		return
	}
	it.released = true
	it.raw.Release()
	it.store.Unref()
	it.prepared = nil
}

func (it *deltaIterator) check() error {
	if it.released {
		return errors.ErrIterReleased
	}
	if !it.initted {
		return errors.New("deltabase/deltastore: delta iterator not initialized")
	}
	return it.err
}
