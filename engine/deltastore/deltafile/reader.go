// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltafile

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"

	"deltabase/engine/deltastore/comparer"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/deltastore/filter"
	"deltabase/engine/deltastore/iterator"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/errors"
	"deltabase/engine/model"
	"deltabase/util"
)

type ErrCorrupted struct {
	Pos    int64
	Size   int64
	Kind   string
	Reason string
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("deltabase/deltafile: corruption on %s (pos=%d): %s", e.Kind, e.Pos, e.Reason)
}

// Reader is a delta file reader. A delta file is immutable; the reader is
// safe for concurrent use.
type Reader struct {
	mu     sync.RWMutex
	fd     filesystem.FileDesc
	reader io.ReaderAt
	err    error
	// Options
	o              *opt.Options
	cmp            comparer.Comparer
	filter         filter.Filter
	verifyChecksum bool
	version        int

	size              int64
	dataEnd           int64
	metaBH, indexBH   blockHandle
	filterBH          blockHandle
	indexBlock        *block
	deleteFilter      []byte
	nEntries, nDeletes int
}

func (r *Reader) blockKind(bh blockHandle) string {
	switch bh.offset {
	case r.metaBH.offset:
		return "meta-block"
	case r.indexBH.offset:
		return "index-block"
	case r.filterBH.offset:
		if r.filterBH.length > 0 {
			return "filter-block"
		}
	}
	return "data-block"
}

func (r *Reader) newErrCorrupted(pos, size int64, kind, reason string) error {
	return &filesystem.ErrCorrupted{Fd: r.fd, Err: &ErrCorrupted{Pos: pos, Size: size, Kind: kind, Reason: reason}}
}

func (r *Reader) newErrCorruptedBH(bh blockHandle, reason string) error {
	return r.newErrCorrupted(int64(bh.offset), int64(bh.length), r.blockKind(bh), reason)
}

func (r *Reader) fixErrCorruptedBH(bh blockHandle, err error) error {
	if cerr, ok := err.(*ErrCorrupted); ok {
		cerr.Pos = int64(bh.offset)
		cerr.Size = int64(bh.length)
		cerr.Kind = r.blockKind(bh)
		return &filesystem.ErrCorrupted{Fd: r.fd, Err: cerr}
	}
	return err
}

func (r *Reader) readRawBlock(bh blockHandle) ([]byte, error) {
	data := make([]byte, bh.length+blockTrailerLen)
	if _, err := r.reader.ReadAt(data, int64(bh.offset)); err != nil && err != io.EOF {
		return nil, err
	}

	// 验证block的checksum
	n := bh.length + 1
	if r.verifyChecksum {
		checksum0 := binary.LittleEndian.Uint32(data[n:])
		checksum1 := util.NewCRC(data[:n]).Value()
		if checksum0 != checksum1 {
			return nil, r.newErrCorruptedBH(bh, fmt.Sprintf("checksum mismatch, want=%#x got=%#x", checksum0, checksum1))
		}
	}
	switch data[bh.length] {
	case blockTypeNoCompression:
		data = data[:bh.length]
	case blockTypeSnappyCompression:
		decLen, err := snappy.DecodedLen(data[:bh.length])
		if err != nil {
			return nil, r.newErrCorruptedBH(bh, err.Error())
		}
		decData := make([]byte, decLen)
		decData, err = snappy.Decode(decData, data[:bh.length])
		if err != nil {
			return nil, r.newErrCorruptedBH(bh, err.Error())
		}
		data = decData
	default:
		return nil, r.newErrCorruptedBH(bh, fmt.Sprintf("unknown compression type %#x", data[bh.length]))
	}
	return data, nil
}

func (r *Reader) readBlock(bh blockHandle) (*block, error) {
	data, err := r.readRawBlock(bh)
	if err != nil {
		return nil, err
	}
	restartsLen := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	b := &block{
		bh:             bh,
		data:           data,
		restartsLen:    restartsLen,
		restartsOffset: len(data) - (restartsLen+1)*4,
	}
	return b, nil
}

func (r *Reader) newBlockIter(b *block, slice *util.Range, inclLimit bool) *blockIter {
	bi := &blockIter{
		tr:    r,
		block: b,
		// Valid key should never be nil.
		key:             make([]byte, 0),
		dir:             dirSOI,
		riStart:         0,
		riLimit:         b.restartsLen,
		offsetStart:     0,
		offsetRealStart: 0,
		offsetLimit:     b.restartsOffset,
	}
	if slice != nil {
		if slice.Start != nil {
			if bi.Seek(slice.Start) {
				bi.riStart = b.restartIndex(bi.restartIndex, b.restartsLen, bi.prevOffset)
				bi.offsetStart = b.restartOffset(bi.riStart)
				bi.offsetRealStart = bi.prevOffset
			} else {
				bi.riStart = b.restartsLen
				bi.offsetStart = b.restartsOffset
				bi.offsetRealStart = b.restartsOffset
			}
		}
		if slice.Limit != nil {
			if bi.Seek(slice.Limit) && (!inclLimit || bi.Next()) {
				bi.offsetLimit = bi.prevOffset
				bi.riLimit = bi.restartIndex + 1
			}
		}
		bi.reset()
		if bi.offsetStart > bi.offsetLimit {
			bi.sErr(errors.New("deltabase/deltafile: invalid slice range"))
		}
	}
	return bi
}

func (r *Reader) getDataIter(dataBH blockHandle, slice *util.Range) iterator.Iterator {
	b, err := r.readBlock(dataBH)
	if err != nil {
		return iterator.NewEmptyIterator(err)
	}
	return r.newBlockIter(b, slice, false)
}

func (r *Reader) getDataIterErr(dataBH blockHandle, slice *util.Range) iterator.Iterator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return iterator.NewEmptyIterator(r.err)
	}

	return r.getDataIter(dataBH, slice)
}

// NewIterator returns an iterator over all entries whose keys fall in the
// given range, in ascending delta key order.
func (r *Reader) NewIterator(slice *util.Range) iterator.Iterator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return iterator.NewEmptyIterator(r.err)
	}

	index := &indexIter{
		blockIter: r.newBlockIter(r.indexBlock, slice, true),
		tr:        r,
		slice:     slice,
	}
	return iterator.NewIndexedIterator(index, true)
}

// IsRowDeleted reports whether the file contains a delete for the row.
// The delete-row filter short-circuits most misses without any I/O.
func (r *Reader) IsRowDeleted(rowIdx uint32) (bool, error) {
	r.mu.RLock()
	if r.err != nil {
		err := r.err
		r.mu.RUnlock()
		return false, err
	}
	r.mu.RUnlock()

	if r.filter != nil {
		if r.deleteFilter == nil {
			// No deletes were written at all.
			return false, nil
		}
		var rowKey [4]byte
		binary.BigEndian.PutUint32(rowKey[:], rowIdx)
		if !r.filter.Contains(r.deleteFilter, rowKey[:]) {
			return false, nil
		}
	}

	it := r.NewIterator(model.RowRange(rowIdx))
	defer it.Release()
	for it.Next() {
		if model.RowChangeList(it.Value()).IsDelete() {
			return true, nil
		}
	}
	return false, it.Error()
}

// ReadFully reads length bytes starting at offset. Used by the raw file
// transfer path; offsets beyond EOF return io.EOF.
func (r *Reader) ReadFully(dst []byte, offset int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return 0, r.err
	}
	return r.reader.ReadAt(dst, offset)
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// Fd returns the file descriptor of the underlying file.
func (r *Reader) Fd() filesystem.FileDesc {
	return r.fd
}

// EntriesLen returns the number of entries recorded at write time.
func (r *Reader) EntriesLen() int {
	return r.nEntries
}

// DeletesLen returns the number of delete entries recorded at write time.
func (r *Reader) DeletesLen() int {
	return r.nDeletes
}

// Release implements util.Releaser.
// It also close the file if it is an io.Closer.
func (r *Reader) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if closer, ok := r.reader.(io.Closer); ok {
		closer.Close()
	}
	if r.indexBlock != nil {
		r.indexBlock.Release()
		r.indexBlock = nil
	}
	r.deleteFilter = nil
	r.reader = nil
	r.err = errors.New("deltabase/deltafile: reader released")
}

// NewReader opens a delta file reader. A file shorter than the footer,
// including a zero-length file, is corrupted.
func NewReader(f io.ReaderAt, size int64, fd filesystem.FileDesc, o *opt.Options) (*Reader, error) {
	if f == nil {
		return nil, errors.New("deltabase/deltafile: nil file")
	}

	r := &Reader{
		fd:             fd,
		reader:         f,
		o:              o,
		cmp:            o.GetComparer(),
		verifyChecksum: o.GetVerifyChecksum(),
		size:           size,
	}

	if size < footerLen {
		return nil, r.newErrCorrupted(0, size, "delta-file", "too small")
	}

	footerPos := size - footerLen
	var footer [footerLen]byte
	if _, err := r.reader.ReadAt(footer[:], footerPos); err != nil && err != io.EOF {
		return nil, err
	}
	r.version = int(footer[footerLen-len(magic)-1])
	if string(footer[footerLen-len(magic):footerLen]) != magic {
		return nil, r.newErrCorrupted(footerPos, footerLen, "file-footer", "bad magic number")
	}

	var n int
	// Decode the metaindex block handle.
	r.metaBH, n = decodeBlockHandle(footer[:])
	if n == 0 {
		return nil, r.newErrCorrupted(footerPos, footerLen, "file-footer", "bad metaindex block handle")
	}

	// Decode the index block handle.
	r.indexBH, n = decodeBlockHandle(footer[n:])
	if n == 0 {
		return nil, r.newErrCorrupted(footerPos, footerLen, "file-footer", "bad index block handle")
	}

	// Read metaindex block.
	metaBlock, err := r.readBlock(r.metaBH)
	if err != nil {
		return nil, err
	}

	// Set data end.
	r.dataEnd = int64(r.metaBH.offset)

	// Read metaindex.
	metaIter := r.newBlockIter(metaBlock, nil, true)
	for metaIter.Next() {
		key := string(metaIter.Key())
		switch {
		case strings.HasPrefix(key, metaDeleteFilterPrefix):
			fn := key[len(metaDeleteFilterPrefix):]
			if f0 := o.GetFilter(); f0 != nil && f0.Name() == fn {
				r.filter = f0
			}
			if r.filter != nil {
				filterBH, n := decodeBlockHandle(metaIter.Value())
				if n == 0 {
					continue
				}
				r.filterBH = filterBH
				// Update data end.
				r.dataEnd = int64(filterBH.offset)
			}
		case key == metaPropEntries:
			if v, n := binary.Uvarint(metaIter.Value()); n > 0 {
				r.nEntries = int(v)
			}
		case key == metaPropDeletes:
			if v, n := binary.Uvarint(metaIter.Value()); n > 0 {
				r.nDeletes = int(v)
			}
		}
	}
	metaIter.Release()
	metaBlock.Release()

	// A file has no deletes when it carries no filter block; when the
	// options carry no filter the probe degrades to a scan.
	if r.filter == nil {
		r.filter = o.GetFilter()
		if r.filter != nil && r.filterBH.length == 0 && r.nDeletes > 0 {
			// Written without a filter; cannot short-circuit.
			r.filter = nil
		}
	}

	r.indexBlock, err = r.readBlock(r.indexBH)
	if err != nil {
		return nil, err
	}
	if r.filterBH.length > 0 {
		r.deleteFilter, err = r.readRawBlock(r.filterBH)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
