// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltafile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/model"
	"deltabase/util"
)

var testFd = filesystem.FileDesc{Type: filesystem.TypeDelta, Num: 1}

func buildTestFile(t *testing.T, o *opt.Options, muts []model.Mutation) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf, o)
	for i, m := range muts {
		require.NoError(t, w.AppendMutation(m, uint32(i)))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	var muts []model.Mutation
	for row := uint32(0); row < 100; row++ {
		muts = append(muts, model.Mutation{
			RowIdx: row,
			TxID:   uint64(row + 10),
			Change: model.NewUpdateChange(model.ColumnUpdate{ColIdx: 1, Value: []byte("v")}),
		})
	}
	// Small block size forces multiple data blocks.
	o := &opt.Options{BlockSize: 128}
	data := buildTestFile(t, o, muts)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), testFd, o)
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, 100, r.EntriesLen())
	require.Equal(t, 0, r.DeletesLen())

	it := r.NewIterator(nil)
	defer it.Release()
	n := uint32(0)
	for it.Next() {
		rowIdx, txid, _, err := model.ParseDeltaKey(it.Key())
		require.NoError(t, err)
		require.Equal(t, n, rowIdx)
		require.Equal(t, uint64(n+10), txid)
		n++
	}
	require.NoError(t, it.Error())
	require.Equal(t, uint32(100), n)
}

func TestRowRangeIterator(t *testing.T) {
	var muts []model.Mutation
	for row := uint32(0); row < 10; row++ {
		for i := 0; i < 3; i++ {
			muts = append(muts, model.Mutation{
				RowIdx: row,
				TxID:   uint64(100 + i),
				Change: model.NewUpdateChange(model.ColumnUpdate{ColIdx: 0, Value: []byte{byte(i)}}),
			})
		}
	}
	o := &opt.Options{BlockSize: 64}
	data := buildTestFile(t, o, muts)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), testFd, o)
	require.NoError(t, err)
	defer r.Release()

	it := r.NewIterator(model.RowRange(7))
	defer it.Release()
	var txids []uint64
	for it.Next() {
		rowIdx, txid, _, err := model.ParseDeltaKey(it.Key())
		require.NoError(t, err)
		require.Equal(t, uint32(7), rowIdx)
		txids = append(txids, txid)
	}
	require.NoError(t, it.Error())
	require.Equal(t, []uint64{100, 101, 102}, txids)
}

func TestIsRowDeleted(t *testing.T) {
	muts := []model.Mutation{
		{RowIdx: 1, TxID: 5, Change: model.NewUpdateChange(model.ColumnUpdate{ColIdx: 0, Value: []byte("x")})},
		{RowIdx: 2, TxID: 6, Change: model.NewDeleteChange()},
		{RowIdx: 3, TxID: 7, Change: model.NewUpdateChange(model.ColumnUpdate{ColIdx: 0, Value: []byte("y")})},
		{RowIdx: 3, TxID: 8, Change: model.NewDeleteChange()},
	}
	o := &opt.Options{}
	data := buildTestFile(t, o, muts)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), testFd, o)
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, 2, r.DeletesLen())

	for rowIdx, expected := range map[uint32]bool{0: false, 1: false, 2: true, 3: true, 4: false} {
		deleted, err := r.IsRowDeleted(rowIdx)
		require.NoError(t, err)
		require.Equal(t, expected, deleted, "row %d", rowIdx)
	}
}

func TestAppendOutOfOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	require.NoError(t, w.AppendMutation(model.Mutation{RowIdx: 5, TxID: 1, Change: model.NewDeleteChange()}, 0))
	err := w.AppendMutation(model.Mutation{RowIdx: 4, TxID: 1, Change: model.NewDeleteChange()}, 1)
	require.Error(t, err)
	// Writer is poisoned afterwards.
	require.Error(t, w.AppendMutation(model.Mutation{RowIdx: 6, TxID: 1, Change: model.NewDeleteChange()}, 2))
}

func TestOpenEmptyFile(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil), 0, testFd, nil)
	require.Error(t, err)
	require.True(t, filesystem.IsCorrupted(err))
}

func TestOpenBadMagic(t *testing.T) {
	data := buildTestFile(t, nil, []model.Mutation{
		{RowIdx: 0, TxID: 1, Change: model.NewDeleteChange()},
	})
	data[len(data)-1] ^= 0xff
	_, err := NewReader(bytes.NewReader(data), int64(len(data)), testFd, nil)
	require.Error(t, err)
	require.True(t, filesystem.IsCorrupted(err))
}

func TestChecksumMismatch(t *testing.T) {
	muts := []model.Mutation{
		{RowIdx: 0, TxID: 1, Change: model.NewUpdateChange(model.ColumnUpdate{ColIdx: 0, Value: []byte("a")})},
	}
	o := &opt.Options{Compression: opt.NoCompression}
	data := buildTestFile(t, o, muts)
	// Flip a byte in the first data block.
	data[4] ^= 0xff

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), testFd, o)
	require.NoError(t, err)
	defer r.Release()

	it := r.NewIterator(nil)
	defer it.Release()
	require.False(t, it.Next())
	require.Error(t, it.Error())
}

func TestEmptyRange(t *testing.T) {
	muts := []model.Mutation{
		{RowIdx: 0, TxID: 1, Change: model.NewDeleteChange()},
	}
	data := buildTestFile(t, nil, muts)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), testFd, nil)
	require.NoError(t, err)
	defer r.Release()

	it := r.NewIterator(&util.Range{
		Start: model.MakeDeltaKey(nil, 10, 0, 0),
		Limit: model.MakeDeltaKey(nil, 20, 0, 0),
	})
	defer it.Release()
	require.False(t, it.Next())
	require.NoError(t, it.Error())
}
