// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"deltabase/engine/model"
)

// memColumnSource is an in-memory base column source for tests.
type memColumnSource struct {
	schema *model.Schema
	cols   [][][]byte // [col][row]
}

func newMemColumnSource(schema *model.Schema, numRows int) *memColumnSource {
	src := &memColumnSource{schema: schema}
	for c := 0; c < schema.NumColumns(); c++ {
		rows := make([][]byte, numRows)
		for r := range rows {
			rows[r] = []byte(fmt.Sprintf("c%dr%d", c, r))
		}
		src.cols = append(src.cols, rows)
	}
	return src
}

func (s *memColumnSource) NumRows() uint32 {
	return uint32(len(s.cols[0]))
}

func (s *memColumnSource) Schema() *model.Schema {
	return s.schema
}

func (s *memColumnSource) MaterializeColumn(colIdx int, startRow uint32, dst *model.ColumnBlock) error {
	if colIdx < 0 || colIdx >= len(s.cols) {
		return fmt.Errorf("column %d out of range", colIdx)
	}
	for i := 0; i < dst.NumRows(); i++ {
		dst.SetCell(i, s.cols[colIdx][int(startRow)+i])
	}
	return nil
}

func TestApplierBatches(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 10)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 5, setVal("changed")))
	require.NoError(t, tr.Update(20, 2, model.NewDeleteChange()))
	// Spread across a flushed store and the memstore.
	_, err := tr.Flush()
	require.NoError(t, err)
	require.NoError(t, tr.Update(30, 9, setVal("tail")))

	base := newMemColumnSource(tr.Schema(), 10)
	proj, err := model.NewProjection(tr.Schema(), "val")
	require.NoError(t, err)
	it, err := tr.NewDeltaIterator(proj, snapAll)
	require.NoError(t, err)

	a, err := NewApplier(base, it, proj, 4)
	require.NoError(t, err)
	defer a.Release()

	var batches []*RowBatch
	for a.HasNext() {
		b, err := a.NextBatch()
		require.NoError(t, err)
		batches = append(batches, b)
	}
	require.Len(t, batches, 3)
	require.Equal(t, []int{4, 4, 2}, []int{batches[0].NumRows(), batches[1].NumRows(), batches[2].NumRows()})
	require.EqualValues(t, 4, batches[1].StartRow)

	// Base cells pass through untouched where no delta applies; the
	// "val" column is base column 1.
	require.Equal(t, "c1r0", string(batches[0].Col(0).Cell(0)))
	// Updates land at their batch-relative rows.
	require.Equal(t, "changed", string(batches[1].Col(0).Cell(1)))
	require.Equal(t, "tail", string(batches[2].Col(0).Cell(1)))
	// Deletes clear selection only.
	require.False(t, batches[0].Sel.IsRowSelected(2))
	require.Equal(t, 3, batches[0].Sel.CountSelected())
	require.Equal(t, 4, batches[1].Sel.CountSelected())
}

func TestApplierSnapshotFiltering(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 4)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 1, setVal("v10")))
	require.NoError(t, tr.Update(20, 1, setVal("v20")))
	require.NoError(t, tr.Update(30, 3, model.NewDeleteChange()))

	base := newMemColumnSource(tr.Schema(), 4)
	proj, err := model.NewProjection(tr.Schema(), "val")
	require.NoError(t, err)
	it, err := tr.NewDeltaIterator(proj, txSnapshot(15))
	require.NoError(t, err)

	a, err := NewApplier(base, it, proj, 4)
	require.NoError(t, err)
	defer a.Release()

	b, err := a.NextBatch()
	require.NoError(t, err)
	require.Equal(t, "v10", string(b.Col(0).Cell(1)))
	require.True(t, b.Sel.IsRowSelected(3))
	require.False(t, a.HasNext())
	_, err = a.NextBatch()
	require.Error(t, err)
}

func TestApplierBadBatchSize(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 4)
	defer fs.Close()
	defer tr.Close()

	base := newMemColumnSource(tr.Schema(), 4)
	proj, err := model.NewProjection(tr.Schema(), "val")
	require.NoError(t, err)
	it, err := tr.NewDeltaIterator(proj, snapAll)
	require.NoError(t, err)
	_, err = NewApplier(base, it, proj, 0)
	require.Error(t, err)
	it.Release()
}
