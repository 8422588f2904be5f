// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltafile

import (
	"encoding/binary"

	"deltabase/util"
)

// blockWriter accumulates one block of prefix-compressed entries.
//
// Delta keys share their 4-byte row prefix across consecutive mutations
// of the same row, so each entry stores only the suffix that differs from
// the previous key plus a restart point every restartInterval entries.
// Entry layout: uvarint(shared) uvarint(unshared) uvarint(valueLen),
// then the unshared key bytes and the value. The block ends with the
// restart offsets (uint32 LE each) and their count.
type blockWriter struct {
	restartInterval int
	buf             util.Buffer
	nEntries        int
	prevKey         []byte
	restarts        []uint32
	scratch         []byte
}

func (w *blockWriter) append(key, value []byte) {
	nShared := 0
	if w.nEntries%w.restartInterval == 0 {
		// Restart point: the full key is stored.
		w.restarts = append(w.restarts, uint32(w.buf.Len()))
	} else {
		n := len(w.prevKey)
		if len(key) < n {
			n = len(key)
		}
		for nShared < n && w.prevKey[nShared] == key[nShared] {
			nShared++
		}
	}
	n := binary.PutUvarint(w.scratch[0:], uint64(nShared))
	n += binary.PutUvarint(w.scratch[n:], uint64(len(key)-nShared))
	n += binary.PutUvarint(w.scratch[n:], uint64(len(value)))
	w.buf.Write(w.scratch[:n])
	w.buf.Write(key[nShared:])
	w.buf.Write(value)
	w.prevKey = append(w.prevKey[:0], key...)
	w.nEntries++
}

// finish appends the restart trailer. The block is not reusable until
// reset.
func (w *blockWriter) finish() {
	if w.nEntries == 0 {
		// 至少一个restart点
		w.restarts = append(w.restarts, 0)
	}
	w.restarts = append(w.restarts, uint32(len(w.restarts)))
	for _, x := range w.restarts {
		buf4 := w.buf.Alloc(4)
		binary.LittleEndian.PutUint32(buf4, x)
	}
}

func (w *blockWriter) reset() {
	w.buf.Reset()
	w.nEntries = 0
	w.restarts = w.restarts[:0]
}

// bytesLen reports block size as if finish were called now.
func (w *blockWriter) bytesLen() int {
	restartsLen := len(w.restarts)
	if restartsLen == 0 {
		restartsLen = 1
	}
	return w.buf.Len() + 4*restartsLen + 4
}
