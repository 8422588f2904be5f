// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package transfer

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"deltabase/engine/deltastore"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/model"
)

func openTracker(t *testing.T) (*deltastore.Tracker, filesystem.FileSystem) {
	t.Helper()
	fs, err := filesystem.OpenFile(t.TempDir(), false)
	require.NoError(t, err)
	schema := model.NewSchema(
		model.ColumnSchema{Name: "id", Type: model.ColTypeUint32},
		model.ColumnSchema{Name: "val", Type: model.ColTypeBytes},
	)
	tr := deltastore.NewTracker(1, fs, schema, 100, nil)
	require.NoError(t, tr.Open())
	return tr, fs
}

func update(t *testing.T, tr *deltastore.Tracker, txid uint64, row uint32) {
	t.Helper()
	change := model.NewUpdateChange(model.ColumnUpdate{ColIdx: 1, Value: []byte("v")})
	require.NoError(t, tr.Update(txid, row, change))
}

func TestSessionFilesAndChunks(t *testing.T) {
	tr, fs := openTracker(t)
	defer fs.Close()
	defer tr.Close()

	update(t, tr, 1, 0)
	_, err := tr.Flush()
	require.NoError(t, err)
	update(t, tr, 2, 1)
	_, err = tr.Flush()
	require.NoError(t, err)

	sess, err := NewSession(99, tr)
	require.NoError(t, err)
	defer sess.Close()

	metas := sess.Files()
	require.Len(t, metas, 2)
	require.EqualValues(t, 0, metas[0].Num)
	require.EqualValues(t, 1, metas[1].Num)

	// Chunked reads reassemble the exact file.
	for _, meta := range metas {
		var got []byte
		for off := int64(0); off < meta.Size; {
			chunk, err := sess.ReadChunk(meta.Num, off, 64)
			require.NoError(t, err)
			require.NotEmpty(t, chunk)
			got = append(got, chunk...)
			off += int64(len(chunk))
		}
		require.EqualValues(t, meta.Size, len(got))
	}

	_, err = sess.ReadChunk(metas[0].Num, metas[0].Size, 64)
	require.Equal(t, io.EOF, err)
	_, err = sess.ReadChunk(42, 0, 64)
	require.Error(t, err)
}

func TestSessionExcludesMemstore(t *testing.T) {
	tr, fs := openTracker(t)
	defer fs.Close()
	defer tr.Close()

	update(t, tr, 1, 0) // unflushed
	sess, err := NewSession(1, tr)
	require.NoError(t, err)
	defer sess.Close()
	require.Empty(t, sess.Files())
}

func TestSessionPinsAcrossClose(t *testing.T) {
	tr, fs := openTracker(t)
	defer fs.Close()

	update(t, tr, 1, 0)
	_, err := tr.Flush()
	require.NoError(t, err)

	sess, err := NewSession(1, tr)
	require.NoError(t, err)

	// Closing the tracker drops its references; the session's pins keep
	// the file readable.
	require.NoError(t, tr.Close())
	metas := sess.Files()
	require.Len(t, metas, 1)
	chunk, err := sess.ReadChunk(metas[0].Num, 0, 64)
	require.NoError(t, err)
	require.NotEmpty(t, chunk)

	sess.Close()
	_, err = sess.ReadChunk(metas[0].Num, 0, 64)
	require.Error(t, err)
}
