// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltafile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"deltabase/engine/deltastore/comparer"
	"deltabase/engine/deltastore/filter"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/model"
	"deltabase/util"
)

// Writer is a delta file writer. Entries must be appended in strictly
// increasing delta key order; duplicates are rejected since the insertion
// sequence makes every key unique.
type Writer struct {
	writer io.Writer
	err    error
	// Options
	cmp         comparer.Comparer
	filter      filter.Filter
	compression opt.Compression
	blockSize   int

	dataBlock  blockWriter
	indexBlock blockWriter
	// Delete-row filter accumulates the 4-byte row keys of delete
	// mutations; it is generated once, over the whole file.
	deleteGen filter.FilterGenerator
	deleteBuf util.Buffer

	pendingBH blockHandle
	offset    uint64
	nEntries  int
	nDeletes  int
	// Scratch allocated enough for 5 uvarint. Block writer should not use
	// first 20-bytes since it will be used to encode block handle, which
	// then passed to the block writer itself.
	scratch            [50]byte
	keyScratch         [model.DeltaKeyLen]byte
	comparerScratch    []byte
	compressionScratch []byte
}

func (w *Writer) writeBlock(buf *util.Buffer, compression opt.Compression) (bh blockHandle, err error) {
	// Compress the buffer if necessary.
	var b []byte
	if compression == opt.SnappyCompression {
		// Allocate scratch enough for compression and block trailer.
		if n := snappy.MaxEncodedLen(buf.Len()) + blockTrailerLen; len(w.compressionScratch) < n {
			w.compressionScratch = make([]byte, n)
		}
		compressed := snappy.Encode(w.compressionScratch, buf.Bytes())
		n := len(compressed)
		b = compressed[:n+blockTrailerLen]
		b[n] = blockTypeSnappyCompression
	} else {
		tmp := buf.Alloc(blockTrailerLen)
		tmp[0] = blockTypeNoCompression
		b = buf.Bytes()
	}

	// Calculate the checksum.
	n := len(b) - 4
	checksum := util.NewCRC(b[:n]).Value()
	binary.LittleEndian.PutUint32(b[n:], checksum)

	// Write the buffer to the file.
	_, err = w.writer.Write(b)
	if err != nil {
		return
	}
	bh = blockHandle{w.offset, uint64(len(b) - blockTrailerLen)}
	w.offset += uint64(len(b))
	return
}

func (w *Writer) flushPendingBH(key []byte) {
	if w.pendingBH.length == 0 {
		return
	}
	var separator []byte
	if len(key) == 0 {
		separator = w.cmp.Successor(w.comparerScratch[:0], w.dataBlock.prevKey)
	} else {
		separator = w.cmp.Separator(w.comparerScratch[:0], w.dataBlock.prevKey, key)
	}
	if separator == nil {
		separator = w.dataBlock.prevKey
	} else {
		w.comparerScratch = separator
	}
	n := encodeBlockHandle(w.scratch[:20], w.pendingBH)
	// Append the block handle to the index block.
	w.indexBlock.append(separator, w.scratch[:n])
	// Reset prev key of the data block.
	w.dataBlock.prevKey = w.dataBlock.prevKey[:0]
	// Clear pending block handle.
	w.pendingBH = blockHandle{}
}

func (w *Writer) finishBlock() error {
	w.dataBlock.finish()
	bh, err := w.writeBlock(&w.dataBlock.buf, w.compression)
	if err != nil {
		return err
	}
	w.pendingBH = bh
	// Reset the data block.
	w.dataBlock.reset()
	return nil
}

// Append appends an encoded (delta key, row change) entry.
func (w *Writer) Append(key, value []byte) error {
	if w.err != nil {
		return w.err
	}
	if len(key) != model.DeltaKeyLen {
		w.err = fmt.Errorf("deltabase/deltafile: Writer: bad delta key length %d", len(key))
		return w.err
	}
	if w.nEntries > 0 {
		if w.cmp.Compare(w.dataBlock.prevKey, key) >= 0 {
			w.err = fmt.Errorf("deltabase/deltafile: Writer: keys are not in increasing order: %v, %v", w.dataBlock.prevKey, key)
			return w.err
		}
	}

	w.flushPendingBH(key)
	// Append key/value pair to the data block.
	w.dataBlock.append(key, value)

	if model.RowChangeList(value).IsDelete() {
		if w.deleteGen != nil {
			w.deleteGen.Add(key[:4])
		}
		w.nDeletes++
	}

	// Finish the data block if block size target reached.
	if w.dataBlock.bytesLen() >= w.blockSize {
		if err := w.finishBlock(); err != nil {
			w.err = err
			return w.err
		}
	}
	w.nEntries++
	return nil
}

// AppendMutation encodes the mutation's delta key and appends it.
func (w *Writer) AppendMutation(m model.Mutation, seq uint32) error {
	key := model.MakeDeltaKey(w.keyScratch[:0], m.RowIdx, m.TxID, seq)
	return w.Append(key, m.Change)
}

// BlocksLen returns number of blocks written so far.
func (w *Writer) BlocksLen() int {
	n := w.indexBlock.nEntries
	if w.pendingBH.length > 0 {
		// Includes the pending block.
		n++
	}
	return n
}

// EntriesLen returns number of entries added so far.
func (w *Writer) EntriesLen() int {
	return w.nEntries
}

// DeletesLen returns number of delete entries added so far.
func (w *Writer) DeletesLen() int {
	return w.nDeletes
}

// BytesLen returns number of bytes written so far.
func (w *Writer) BytesLen() int {
	return int(w.offset)
}

// Close will finalize the delta file. Calling Append is not possible
// after Close, but calling BlocksLen, EntriesLen and BytesLen
// is still possible.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}

	// Write the last data block. Or empty data block if there
	// aren't any data blocks at all.
	if w.dataBlock.nEntries > 0 || w.nEntries == 0 {
		if err := w.finishBlock(); err != nil {
			w.err = err
			return w.err
		}
	}
	w.flushPendingBH(nil)

	// Write the delete-row filter block.
	var filterBH blockHandle
	if w.deleteGen != nil && w.nDeletes > 0 {
		w.deleteGen.Generate(&w.deleteBuf)
		filterBH, w.err = w.writeBlock(&w.deleteBuf, opt.NoCompression)
		if w.err != nil {
			return w.err
		}
	}

	// Write the metaindex block. Keys must stay sorted.
	if filterBH.length > 0 {
		key := []byte(metaDeleteFilterPrefix + w.filter.Name())
		n := encodeBlockHandle(w.scratch[:20], filterBH)
		w.dataBlock.append(key, w.scratch[:n])
	}
	n := binary.PutUvarint(w.scratch[:20], uint64(w.nDeletes))
	w.dataBlock.append([]byte(metaPropDeletes), w.scratch[:n])
	n = binary.PutUvarint(w.scratch[:20], uint64(w.nEntries))
	w.dataBlock.append([]byte(metaPropEntries), w.scratch[:n])
	w.dataBlock.finish()
	metaindexBH, err := w.writeBlock(&w.dataBlock.buf, w.compression)
	if err != nil {
		w.err = err
		return w.err
	}

	// Write the index block.
	w.indexBlock.finish()
	indexBH, err := w.writeBlock(&w.indexBlock.buf, w.compression)
	if err != nil {
		w.err = err
		return w.err
	}

	// Write the file footer.
	footer := w.scratch[:footerLen]
	for i := range footer {
		footer[i] = 0
	}
	n = encodeBlockHandle(footer, metaindexBH)
	encodeBlockHandle(footer[n:], indexBH)
	footer[footerLen-len(magic)-1] = versionV1
	copy(footer[footerLen-len(magic):], magic)
	if _, err := w.writer.Write(footer); err != nil {
		w.err = err
		return w.err
	}
	w.offset += footerLen

	w.err = errors.New("deltabase/deltafile: writer is closed")
	return nil
}

// NewWriter creates a new initialized delta file writer for the file.
//
// The writer is not safe for concurrent use.
func NewWriter(f io.Writer, o *opt.Options) *Writer {
	w := &Writer{
		writer:          f,
		cmp:             o.GetComparer(),
		filter:          o.GetFilter(),
		compression:     o.GetCompression(),
		blockSize:       o.GetBlockSize(),
		comparerScratch: make([]byte, 0),
	}
	// data block
	w.dataBlock.restartInterval = o.GetBlockRestartInterval()
	// The first 20-bytes are used for encoding block handle.
	w.dataBlock.scratch = w.scratch[20:]
	// index block
	w.indexBlock.restartInterval = 1
	w.indexBlock.scratch = w.scratch[20:]
	// delete-row filter
	if w.filter != nil {
		w.deleteGen = w.filter.NewGenerator()
	}
	return w
}
