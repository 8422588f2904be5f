// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tablet wires a base column source, a delta tracker and the
// delta applier into a readable, updatable rowset. The base columnar
// data itself lives outside; a rowset accepts any model.ColumnSource.
package tablet

import (
	"deltabase/engine"
	"deltabase/engine/deltastore"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

// Rowset 一个rowset：基线列数据 + 其上的增量tracker
type Rowset struct {
	id      uint64
	base    model.ColumnSource
	fs      filesystem.FileSystem
	tracker *deltastore.Tracker
}

// OpenRowset opens the rowset at path over the given base column data.
func OpenRowset(id uint64, path string, base model.ColumnSource, o *opt.Options) (*Rowset, error) {
	tracker, fs, err := engine.OpenDeltaTracker(id, path, base.Schema(), base.NumRows(), o)
	if err != nil {
		return nil, err
	}
	return &Rowset{
		id:      id,
		base:    base,
		fs:      fs,
		tracker: tracker,
	}, nil
}

// ID rowset id
func (r *Rowset) ID() uint64 {
	return r.id
}

// Schema rowset列定义
func (r *Rowset) Schema() *model.Schema {
	return r.base.Schema()
}

// Tracker exposes the underlying delta tracker, for the flush scheduler
// and transfer sessions.
func (r *Rowset) Tracker() *deltastore.Tracker {
	return r.tracker
}

// UpdateRow records new values for one row under txid.
func (r *Rowset) UpdateRow(txid uint64, rowIdx uint32, updates ...model.ColumnUpdate) error {
	if len(updates) == 0 {
		return errors.New("deltabase/tablet: update with no columns")
	}
	for _, u := range updates {
		if int(u.ColIdx) >= r.Schema().NumColumns() {
			return errors.Errorf("deltabase/tablet: column %d not in %s", u.ColIdx, r.Schema())
		}
	}
	return r.tracker.Update(txid, rowIdx, model.NewUpdateChange(updates...))
}

// DeleteRow marks one row deleted under txid.
func (r *Rowset) DeleteRow(txid uint64, rowIdx uint32) error {
	return r.tracker.Update(txid, rowIdx, model.NewDeleteChange())
}

// NewIterator returns an applier scanning the rowset as of snap: base
// cells with the snapshot's updates applied and deleted rows cleared
// from each batch's selection vector.
func (r *Rowset) NewIterator(projection *model.Projection, snap model.Snapshot, batchSize int) (*deltastore.Applier, error) {
	it, err := r.tracker.NewDeltaIterator(projection, snap)
	if err != nil {
		return nil, err
	}
	return deltastore.NewApplier(r.base, it, projection, batchSize)
}

// Flush persists the rowset's in-memory deltas.
func (r *Rowset) Flush() (int64, error) {
	return r.tracker.Flush()
}

// Stats tracker统计
func (r *Rowset) Stats() model.Stats {
	return r.tracker.Stats()
}

// Close closes the tracker and the rowset directory.
func (r *Rowset) Close() error {
	err := r.tracker.Close()
	if cerr := r.fs.Close(); err == nil {
		err = cerr
	}
	return err
}
