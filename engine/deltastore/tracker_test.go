// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"deltabase/engine/deltastore/deltafile"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

// txSnapshot sees every transaction up to and including its value.
type txSnapshot uint64

func (s txSnapshot) IsVisible(txid uint64) bool {
	return txid <= uint64(s)
}

const snapAll = txSnapshot(^uint64(0))

func testSchema() *model.Schema {
	return model.NewSchema(
		model.ColumnSchema{Name: "id", Type: model.ColTypeUint32},
		model.ColumnSchema{Name: "val", Type: model.ColTypeBytes},
	)
}

func openTestTracker(t *testing.T, dir string, numRows uint32) (*Tracker, filesystem.FileSystem) {
	t.Helper()
	fs, err := filesystem.OpenFile(dir, false)
	require.NoError(t, err)
	tr := NewTracker(1, fs, testSchema(), numRows, nil)
	require.NoError(t, tr.Open())
	return tr, fs
}

func writeDeltaFile(t *testing.T, fs filesystem.FileSystem, num int64, muts ...model.Mutation) {
	t.Helper()
	w, err := fs.Create(filesystem.FileDesc{Type: filesystem.TypeDelta, Num: num})
	require.NoError(t, err)
	dw := deltafile.NewWriter(w, nil)
	for i, m := range muts {
		require.NoError(t, dw.AppendMutation(m, uint32(i+1)))
	}
	require.NoError(t, dw.Close())
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
}

// readRow applies the snapshot-visible deltas of one row on top of base.
func readRow(t *testing.T, tr *Tracker, snap model.Snapshot, rowIdx uint32, base []byte) (val []byte, deleted bool) {
	t.Helper()
	proj, err := model.NewProjection(tr.Schema(), "val")
	require.NoError(t, err)
	it, err := tr.NewDeltaIterator(proj, snap)
	require.NoError(t, err)
	defer it.Release()
	require.NoError(t, it.Init())
	require.NoError(t, it.SeekToOrdinal(rowIdx))
	require.NoError(t, it.PrepareBatch(1))

	blk := model.NewColumnBlock(1)
	blk.SetCell(0, base)
	require.NoError(t, it.ApplyUpdates(0, blk))
	sel := model.NewSelectionVector(1)
	require.NoError(t, it.ApplyDeletes(sel))
	return blk.Cell(0), !sel.IsRowSelected(0)
}

func setVal(v string) model.RowChangeList {
	return model.NewUpdateChange(model.ColumnUpdate{ColIdx: 1, Value: []byte(v)})
}

func TestTrackerOpenScansDeltaFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := filesystem.OpenFile(dir, false)
	require.NoError(t, err)

	writeDeltaFile(t, fs, 0, model.Mutation{RowIdx: 1, TxID: 10, Change: setVal("a")})
	writeDeltaFile(t, fs, 5, model.Mutation{RowIdx: 2, TxID: 20, Change: setVal("b")})
	writeDeltaFile(t, fs, 7, model.Mutation{RowIdx: 3, TxID: 30, Change: setVal("c")})
	require.NoError(t, fs.Close())

	tr, fs := openTestTracker(t, dir, 100)
	defer fs.Close()
	defer tr.Close()

	require.EqualValues(t, 3, tr.Stats().DeltaFiles)
	for i, want := range map[uint32]string{1: "a", 2: "b", 3: "c"} {
		val, deleted := readRow(t, tr, snapAll, i, []byte("base"))
		require.False(t, deleted)
		require.Equal(t, want, string(val))
	}

	// The next flushed file follows the highest existing index.
	require.NoError(t, tr.Update(40, 4, setVal("d")))
	_, err = tr.Flush()
	require.NoError(t, err)
	names, err := fs.ListNames()
	require.NoError(t, err)
	require.Contains(t, names, "delta_8")
}

func TestTrackerOpenMalformedDeltaName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "delta_abc"), nil, 0644))

	fs, err := filesystem.OpenFile(dir, false)
	require.NoError(t, err)
	defer fs.Close()

	tr := NewTracker(1, fs, testSchema(), 100, nil)
	err = tr.Open()
	require.Error(t, err)
	require.True(t, filesystem.IsCorrupted(errors.Cause(err)))
}

func TestTrackerOpenSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "col_3"), []byte("columns"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unknown.bin"), nil, 0644))

	tr, fs := openTestTracker(t, dir, 100)
	defer fs.Close()
	defer tr.Close()
	require.EqualValues(t, 0, tr.Stats().DeltaFiles)
}

func TestTrackerFlushEmptyIsNoop(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()
	defer tr.Close()

	written, err := tr.Flush()
	require.NoError(t, err)
	require.Zero(t, written)
	st := tr.Stats()
	require.EqualValues(t, 1, st.SkippedFlushes)
	require.EqualValues(t, 0, st.Flushes)

	fds, err := fs.List(filesystem.TypeDelta)
	require.NoError(t, err)
	require.Empty(t, fds)

	// The skipped flush must not consume a file index.
	require.NoError(t, tr.Update(10, 0, setVal("x")))
	_, err = tr.Flush()
	require.NoError(t, err)
	names, err := fs.ListNames()
	require.NoError(t, err)
	require.Contains(t, names, "delta_0")
}

func TestTrackerFlushTransparency(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 7, setVal("seven")))
	require.NoError(t, tr.Update(11, 8, model.NewDeleteChange()))

	check := func() {
		val, deleted := readRow(t, tr, snapAll, 7, []byte("base"))
		require.False(t, deleted)
		require.Equal(t, "seven", string(val))
		_, deleted = readRow(t, tr, snapAll, 8, []byte("base"))
		require.True(t, deleted)
	}
	check()

	written, err := tr.Flush()
	require.NoError(t, err)
	require.Greater(t, written, int64(0))
	check()

	deleted, err := tr.IsRowDeleted(8)
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = tr.IsRowDeleted(7)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestTrackerSnapshotIsolation(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 3, setVal("new")))
	require.NoError(t, tr.Update(20, 3, model.NewDeleteChange()))

	// Before the update both effects are invisible.
	val, deleted := readRow(t, tr, txSnapshot(9), 3, []byte("base"))
	require.False(t, deleted)
	require.Equal(t, "base", string(val))

	// Between the update and the delete only the update shows.
	val, deleted = readRow(t, tr, txSnapshot(10), 3, []byte("base"))
	require.False(t, deleted)
	require.Equal(t, "new", string(val))

	// At the delete the row is gone; the cell keeps its last value.
	_, deleted = readRow(t, tr, txSnapshot(20), 3, []byte("base"))
	require.True(t, deleted)

	// IsRowDeleted ignores snapshots.
	isDel, err := tr.IsRowDeleted(3)
	require.NoError(t, err)
	require.True(t, isDel)

	// Snapshot behavior survives the flush.
	_, err = tr.Flush()
	require.NoError(t, err)
	val, deleted = readRow(t, tr, txSnapshot(10), 3, []byte("base"))
	require.False(t, deleted)
	require.Equal(t, "new", string(val))
	_, deleted = readRow(t, tr, txSnapshot(20), 3, []byte("base"))
	require.True(t, deleted)
}

func TestTrackerDeleteIsMonotonic(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 5, model.NewDeleteChange()))
	_, err := tr.Flush()
	require.NoError(t, err)

	// Later updates never resurrect a deleted row.
	require.NoError(t, tr.Update(20, 5, setVal("after")))
	deleted, err := tr.IsRowDeleted(5)
	require.NoError(t, err)
	require.True(t, deleted)
	_, deleted = readRow(t, tr, snapAll, 5, []byte("base"))
	require.True(t, deleted)
}

func TestTrackerNewestStoreWins(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 1, setVal("a")))
	_, err := tr.Flush()
	require.NoError(t, err)
	require.NoError(t, tr.Update(20, 1, setVal("b")))
	_, err = tr.Flush()
	require.NoError(t, err)
	require.NoError(t, tr.Update(30, 1, setVal("c")))

	val, _ := readRow(t, tr, snapAll, 1, []byte("base"))
	require.Equal(t, "c", string(val))

	// Older snapshots still resolve to the older stores.
	val, _ = readRow(t, tr, txSnapshot(20), 1, []byte("base"))
	require.Equal(t, "b", string(val))
	val, _ = readRow(t, tr, txSnapshot(10), 1, []byte("base"))
	require.Equal(t, "a", string(val))
}

func TestTrackerIteratorSurvivesFlush(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()
	defer tr.Close()

	require.NoError(t, tr.Update(10, 2, setVal("pre")))

	proj, err := model.NewProjection(tr.Schema(), "val")
	require.NoError(t, err)
	it, err := tr.NewDeltaIterator(proj, snapAll)
	require.NoError(t, err)
	require.NoError(t, it.Init())

	// The flush swaps the memstore out from under the open iterator;
	// the iterator's reference keeps the store alive.
	_, err = tr.Flush()
	require.NoError(t, err)

	require.NoError(t, it.SeekToOrdinal(2))
	require.NoError(t, it.PrepareBatch(1))
	blk := model.NewColumnBlock(1)
	require.NoError(t, it.ApplyUpdates(0, blk))
	require.Equal(t, "pre", string(blk.Cell(0)))
	it.Release()

	require.EqualValues(t, 0, tr.Stats().AliveIterators)
}

func TestTrackerConcurrentUpdatesAndFlushes(t *testing.T) {
	const (
		writers   = 4
		perWriter = 200
		numRows   = 1000
	)
	tr, fs := openTestTracker(t, t.TempDir(), numRows)
	defer fs.Close()
	defer tr.Close()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				n := w*perWriter + i
				err := tr.Update(uint64(n+1), uint32(n), setVal(fmt.Sprintf("v%d", n)))
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			if _, err := tr.Flush(); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()
	<-done
	_, err := tr.Flush()
	require.NoError(t, err)

	// Every update must be observable exactly once.
	proj, err := model.NewProjection(tr.Schema(), "val")
	require.NoError(t, err)
	it, err := tr.NewDeltaIterator(proj, snapAll)
	require.NoError(t, err)
	defer it.Release()
	require.NoError(t, it.Init())
	require.NoError(t, it.SeekToOrdinal(0))
	require.NoError(t, it.PrepareBatch(numRows))
	var muts []model.Mutation
	require.NoError(t, it.CollectMutations(&muts))
	require.Len(t, muts, writers*perWriter)

	seen := make(map[uint32]bool, len(muts))
	for _, m := range muts {
		require.False(t, seen[m.RowIdx], "row %d seen twice", m.RowIdx)
		seen[m.RowIdx] = true
	}
}

func TestTrackerClosed(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 100)
	defer fs.Close()

	require.NoError(t, tr.Update(10, 0, setVal("x")))
	require.NoError(t, tr.Close())

	require.Equal(t, errors.ErrClosed, errors.Cause(tr.Update(11, 0, setVal("y"))))
	_, err := tr.IsRowDeleted(0)
	require.Equal(t, errors.ErrClosed, errors.Cause(err))
	_, err = tr.Flush()
	require.Equal(t, errors.ErrClosed, errors.Cause(err))
	require.Equal(t, errors.ErrClosed, errors.Cause(tr.Close()))
}

func TestTrackerRowOutOfRange(t *testing.T) {
	tr, fs := openTestTracker(t, t.TempDir(), 10)
	defer fs.Close()
	defer tr.Close()

	require.Error(t, tr.Update(1, 10, setVal("x")))
	_, err := tr.IsRowDeleted(10)
	require.Error(t, err)
}

// gateFS stalls the first Create until released, holding a flush open
// between its swap and its durability phase.
type gateFS struct {
	filesystem.FileSystem
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (fs *gateFS) Create(fd filesystem.FileDesc) (filesystem.Writer, error) {
	first := false
	fs.once.Do(func() { first = true })
	if first {
		close(fs.entered)
		<-fs.release
	}
	return fs.FileSystem.Create(fd)
}

func newGateFS(t *testing.T, dir string) *gateFS {
	t.Helper()
	base, err := filesystem.OpenFile(dir, false)
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })
	return &gateFS{
		FileSystem: base,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func TestTrackerCloseDuringFlush(t *testing.T) {
	gfs := newGateFS(t, t.TempDir())
	tr := NewTracker(1, gfs, testSchema(), 100, nil)
	require.NoError(t, tr.Open())
	require.NoError(t, tr.Update(1, 0, setVal("x")))

	flushErr := make(chan error, 1)
	go func() {
		defer func() {
			if x := recover(); x != nil {
				flushErr <- errors.Errorf("flush panicked: %v", x)
			}
		}()
		_, err := tr.Flush()
		flushErr <- err
	}()

	// Close while the flush sits in its durability phase. The flush must
	// keep reading the swapped-out memstore and then report ErrClosed.
	<-gfs.entered
	require.NoError(t, tr.Close())
	close(gfs.release)
	require.Equal(t, errors.ErrClosed, errors.Cause(<-flushErr))
}

func TestTrackerDeltaFilesGaugeDuringFlush(t *testing.T) {
	gfs := newGateFS(t, t.TempDir())
	tr := NewTracker(1, gfs, testSchema(), 100, nil)
	require.NoError(t, tr.Open())
	defer tr.Close()
	require.NoError(t, tr.Update(1, 0, setVal("x")))

	flushErr := make(chan error, 1)
	go func() {
		_, err := tr.Flush()
		flushErr <- err
	}()

	// The memstore parked in the store list mid-flush is not a file.
	<-gfs.entered
	require.EqualValues(t, 0, tr.Stats().DeltaFiles)
	close(gfs.release)
	require.NoError(t, <-flushErr)
	require.EqualValues(t, 1, tr.Stats().DeltaFiles)
}
