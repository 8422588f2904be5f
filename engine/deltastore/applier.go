// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

// RowBatch 一批行的扫描结果：基线列值叠加增量更新后的cell，以及删除后的可见性
type RowBatch struct {
	StartRow uint32
	Cols     []*model.ColumnBlock
	Sel      *model.SelectionVector
}

// NumRows 批内行数
func (b *RowBatch) NumRows() int {
	return b.Sel.NumRows()
}

// Col 第i个投影列
func (b *RowBatch) Col(i int) *model.ColumnBlock {
	return b.Cols[i]
}

// Applier merges base column data with the visible deltas of a snapshot,
// producing row batches as they existed at that snapshot. It drives one
// delta iterator forward in lockstep with the base row range.
type Applier struct {
	base       model.ColumnSource
	iter       model.DeltaIterator
	projection *model.Projection
	batchSize  int

	nextRow  uint32
	numRows  uint32
	released bool
}

// NewApplier builds an applier over base and iter. The iterator must not
// have been initialized; the applier takes ownership and releases it.
func NewApplier(base model.ColumnSource, iter model.DeltaIterator, projection *model.Projection, batchSize int) (*Applier, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("deltabase/deltastore: invalid batch size %d", batchSize)
	}
	if err := iter.Init(); err != nil {
		iter.Release()
		return nil, err
	}
	if err := iter.SeekToOrdinal(0); err != nil {
		iter.Release()
		return nil, err
	}
	return &Applier{
		base:       base,
		iter:       iter,
		projection: projection,
		batchSize:  batchSize,
		numRows:    base.NumRows(),
	}, nil
}

// HasNext reports whether another batch remains.
func (a *Applier) HasNext() bool {
	return !a.released && a.nextRow < a.numRows
}

// NextBatch scans the next batch of rows: base cells first, then the
// snapshot-visible updates, then deletes cleared from the selection
// vector. Deleted rows keep their cell values; callers filter by Sel.
func (a *Applier) NextBatch() (*RowBatch, error) {
	if a.released {
		return nil, errors.ErrIterReleased
	}
	if a.nextRow >= a.numRows {
		return nil, errors.ErrNotFound
	}

	nrows := a.batchSize
	if rest := int(a.numRows - a.nextRow); rest < nrows {
		nrows = rest
	}

	batch := &RowBatch{
		StartRow: a.nextRow,
		Cols:     make([]*model.ColumnBlock, a.projection.NumColumns()),
		Sel:      model.NewSelectionVector(nrows),
	}

	if err := a.iter.PrepareBatch(nrows); err != nil {
		return nil, err
	}
	for i := 0; i < a.projection.NumColumns(); i++ {
		dst := model.NewColumnBlock(nrows)
		if err := a.base.MaterializeColumn(a.projection.BaseIndex(i), a.nextRow, dst); err != nil {
			return nil, err
		}
		if err := a.iter.ApplyUpdates(i, dst); err != nil {
			return nil, err
		}
		batch.Cols[i] = dst
	}
	if err := a.iter.ApplyDeletes(batch.Sel); err != nil {
		return nil, err
	}

	a.nextRow += uint32(nrows)
	return batch, nil
}

// Release releases the underlying delta iterator. Idempotent.
func (a *Applier) Release() {
	if a.released {
		return
	}
	a.released = true
	a.iter.Release()
}
