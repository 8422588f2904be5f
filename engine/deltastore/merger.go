// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"deltabase/engine/model"
)

// DeltaIteratorMerger combines per-store delta iterators into one logical
// iterator. Every operation delegates to the constituents in store-list
// order (oldest to newest); later stores therefore win update ties and a
// delete in any store clears the row.
//
// CollectMutations keeps store order only; mutations are not re-sorted by
// txid across stores.
type DeltaIteratorMerger struct {
	iters []model.DeltaIterator
}

// NewMergedDeltaIterator builds the merged iterator over the given stores.
// The caller hands over one reference per store; each sub-iterator
// releases its store's reference on Release. A single store degenerates
// to the unwrapped iterator.
func NewMergedDeltaIterator(stores []model.DeltaStore, projection *model.Projection, snap model.Snapshot) model.DeltaIterator {
	iters := make([]model.DeltaIterator, 0, len(stores))
	for _, s := range stores {
		iters = append(iters, s.NewDeltaIterator(projection, snap))
	}
	if len(iters) == 1 {
		return iters[0]
	}
	return &DeltaIteratorMerger{iters: iters}
}

func (m *DeltaIteratorMerger) Init() error {
	for _, it := range m.iters {
		if err := it.Init(); err != nil {
			return err
		}
	}
	return nil
}

func (m *DeltaIteratorMerger) SeekToOrdinal(rowIdx uint32) error {
	for _, it := range m.iters {
		if err := it.SeekToOrdinal(rowIdx); err != nil {
			return err
		}
	}
	return nil
}

func (m *DeltaIteratorMerger) PrepareBatch(nrows int) error {
	for _, it := range m.iters {
		if err := it.PrepareBatch(nrows); err != nil {
			return err
		}
	}
	return nil
}

func (m *DeltaIteratorMerger) ApplyUpdates(colIdx int, dst *model.ColumnBlock) error {
	for _, it := range m.iters {
		if err := it.ApplyUpdates(colIdx, dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *DeltaIteratorMerger) ApplyDeletes(sel *model.SelectionVector) error {
	for _, it := range m.iters {
		if err := it.ApplyDeletes(sel); err != nil {
			return err
		}
	}
	return nil
}

func (m *DeltaIteratorMerger) CollectMutations(dst *[]model.Mutation) error {
	for _, it := range m.iters {
		if err := it.CollectMutations(dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *DeltaIteratorMerger) Release() {
	for _, it := range m.iters {
		it.Release()
	}
	m.iters = nil
}
