// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package transfer serves a point-in-time image of a rowset's delta
// files as raw byte ranges, for bootstrap-style consumers copying the
// rowset elsewhere. The wire layer is out of scope; a session is the
// local half only.
package transfer

import (
	"io"
	"sync"

	"deltabase/engine/deltastore"
	"deltabase/engine/errors"
	"deltabase/util"
)

// DefaultChunkSize caps one ReadChunk response.
const DefaultChunkSize = 1024 * 1024

// FileMeta describes one delta file in the session image.
type FileMeta struct {
	Num  int64
	Size int64
}

// Session pins a tracker's persisted delta files at open time. Files
// flushed or compacted away afterwards stay readable through the
// session until Close.
type Session struct {
	id      uint64
	mu      sync.Mutex
	handles map[int64]*deltastore.FileHandle
	metas   []FileMeta
	closed  bool
}

// NewSession opens a session over the tracker's current files.
func NewSession(id uint64, tr *deltastore.Tracker) (*Session, error) {
	handles, err := tr.CollectFileHandles()
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:      id,
		handles: make(map[int64]*deltastore.FileHandle, len(handles)),
	}
	for _, h := range handles {
		s.handles[h.Num()] = h
		s.metas = append(s.metas, FileMeta{Num: h.Num(), Size: h.Size()})
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uint64 {
	return s.id
}

// Files lists the session's file metadata, ascending by file index.
func (s *Session) Files() []FileMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileMeta(nil), s.metas...)
}

// ReadChunk reads up to length bytes of file num at off. A read at or
// past the end returns io.EOF; length is clamped to DefaultChunkSize.
func (s *Session) ReadChunk(num int64, off int64, length int) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.ErrClosed
	}
	h, ok := s.handles[num]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Annotatef(errors.ErrNotFound, "delta_%d not in session", num)
	}

	if off < 0 || length <= 0 {
		return nil, errors.Errorf("deltabase/transfer: bad chunk request off=%d length=%d", off, length)
	}
	size := h.Size()
	if off >= size {
		return nil, io.EOF
	}
	length = util.MinInt(length, DefaultChunkSize)
	if rest := size - off; int64(length) > rest {
		length = int(rest)
	}

	buf := make([]byte, length)
	n, err := h.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, errors.Trace(err)
	}
	return buf[:n], nil
}

// Close releases the pinned files. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, h := range s.handles {
		h.Release()
	}
	s.handles = nil
}
