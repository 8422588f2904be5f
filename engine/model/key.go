// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"encoding/binary"
	"fmt"

	"deltabase/util"
)

// DeltaKeyLen delta key固定长度: 4字节行号 + 8字节事务id + 4字节插入序号
const DeltaKeyLen = 4 + 8 + 4

// ErrDeltaKeyCorrupted records delta key corruption.
type ErrDeltaKeyCorrupted struct {
	Key    []byte
	Reason string
}

func (e *ErrDeltaKeyCorrupted) Error() string {
	return fmt.Sprintf("deltabase/model: delta key %x corrupted: %s", e.Key, e.Reason)
}

// DeltaKey []byte编码，big-endian保证字节序即(row, txid, seq)序
type DeltaKey []byte

// MakeDeltaKey 编码delta key；seq是同一(row, txid)内的到达序
func MakeDeltaKey(dst []byte, rowIdx uint32, txid uint64, seq uint32) DeltaKey {
	dst = ensureBuffer(dst, DeltaKeyLen)
	binary.BigEndian.PutUint32(dst, rowIdx)
	binary.BigEndian.PutUint64(dst[4:], txid)
	binary.BigEndian.PutUint32(dst[12:], seq)
	return DeltaKey(dst)
}

// ParseDeltaKey 解码delta key
func ParseDeltaKey(k []byte) (rowIdx uint32, txid uint64, seq uint32, err error) {
	if len(k) != DeltaKeyLen {
		return 0, 0, 0, &ErrDeltaKeyCorrupted{Key: append([]byte{}, k...), Reason: "invalid length"}
	}
	rowIdx = binary.BigEndian.Uint32(k)
	txid = binary.BigEndian.Uint64(k[4:])
	seq = binary.BigEndian.Uint32(k[12:])
	return
}

// RowIdx 行号部分
func (k DeltaKey) RowIdx() uint32 {
	return binary.BigEndian.Uint32(k)
}

// TxID 事务id部分
func (k DeltaKey) TxID() uint64 {
	return binary.BigEndian.Uint64(k[4:])
}

func (k DeltaKey) String() string {
	if len(k) != DeltaKeyLen {
		return fmt.Sprintf("<invalid:%x>", []byte(k))
	}
	return fmt.Sprintf("(row %d, tx %d)", k.RowIdx(), k.TxID())
}

// RowRange 覆盖单行全部delta的key区间
func RowRange(rowIdx uint32) *util.Range {
	start := MakeDeltaKey(nil, rowIdx, 0, 0)
	var limit []byte
	if rowIdx < ^uint32(0) {
		limit = MakeDeltaKey(nil, rowIdx+1, 0, 0)
	}
	return &util.Range{Start: start, Limit: limit}
}

func ensureBuffer(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
