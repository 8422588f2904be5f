// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"fmt"
	"sync/atomic"

	"deltabase/engine/deltastore/deltafile"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/model"
)

// fileStore wraps an immutable delta file reader as a model.DeltaStore.
type fileStore struct {
	fd  filesystem.FileDesc
	r   *deltafile.Reader
	ref int32
}

func newFileStore(r *deltafile.Reader, fd filesystem.FileDesc) *fileStore {
	return &fileStore{fd: fd, r: r, ref: 1}
}

// Reader exposes the underlying delta file reader; used by the raw
// byte-range transfer path.
func (s *fileStore) Reader() *deltafile.Reader {
	return s.r
}

// Fd returns the backing file descriptor.
func (s *fileStore) Fd() filesystem.FileDesc {
	return s.fd
}

func (s *fileStore) NewDeltaIterator(projection *model.Projection, snap model.Snapshot) model.DeltaIterator {
	return newDeltaIterator(s, s.r.NewIterator(nil), projection, snap)
}

func (s *fileStore) IsRowDeleted(rowIdx uint32) (bool, error) {
	return s.r.IsRowDeleted(rowIdx)
}

func (s *fileStore) Ref() {
	atomic.AddInt32(&s.ref, 1)
}

func (s *fileStore) Unref() {
	if ref := atomic.AddInt32(&s.ref, -1); ref == 0 {
		s.r.Release()
	} else if ref < 0 {
		panic("negative filestore ref")
	}
}

func (s *fileStore) DebugString() string {
	return fmt.Sprintf("%v(%d entries, %d bytes)", s.fd, s.r.EntriesLen(), s.r.Size())
}
