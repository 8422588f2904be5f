// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"encoding/binary"
	"fmt"
)

// RowChangeList类型字节：列更新或整行删除，二者不混用
const (
	changeTypeUpdate = byte(1)
	changeTypeDelete = byte(2)
)

// ErrChangeCorrupted records a bad RowChangeList payload.
type ErrChangeCorrupted struct {
	Reason string
}

func (e *ErrChangeCorrupted) Error() string {
	return fmt.Sprintf("deltabase/model: row change list corrupted: %s", e.Reason)
}

// ColumnUpdate (列序号, 新值)对
type ColumnUpdate struct {
	ColIdx uint32
	Value  []byte
}

// RowChangeList 单行变更的编码载荷：
//
//	update: [0x01] ([uvarint col][uvarint len][value bytes])*
//	delete: [0x02]
type RowChangeList []byte

// NewDeleteChange 删除标记
func NewDeleteChange() RowChangeList {
	return RowChangeList{changeTypeDelete}
}

// NewUpdateChange 编码一组列更新；至少一列
func NewUpdateChange(updates ...ColumnUpdate) RowChangeList {
	if len(updates) == 0 {
		panic("deltabase/model: update change with no columns")
	}
	var scratch [2 * binary.MaxVarintLen64]byte
	buf := make([]byte, 1, 1+len(updates)*8)
	buf[0] = changeTypeUpdate
	for _, u := range updates {
		n := binary.PutUvarint(scratch[:], uint64(u.ColIdx))
		n += binary.PutUvarint(scratch[n:], uint64(len(u.Value)))
		buf = append(buf, scratch[:n]...)
		buf = append(buf, u.Value...)
	}
	return RowChangeList(buf)
}

// IsDelete reports whether the change is a row deletion.
func (c RowChangeList) IsDelete() bool {
	return len(c) > 0 && c[0] == changeTypeDelete
}

// Valid 检查类型字节合法
func (c RowChangeList) Valid() bool {
	if len(c) == 0 {
		return false
	}
	switch c[0] {
	case changeTypeUpdate:
		return len(c) > 1
	case changeTypeDelete:
		return len(c) == 1
	}
	return false
}

// DecodeUpdates 解出全部列更新；对删除标记返回nil
func (c RowChangeList) DecodeUpdates() ([]ColumnUpdate, error) {
	if !c.Valid() {
		return nil, &ErrChangeCorrupted{Reason: "invalid type byte"}
	}
	if c.IsDelete() {
		return nil, nil
	}

	var updates []ColumnUpdate
	rest := c[1:]
	for len(rest) > 0 {
		col, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, &ErrChangeCorrupted{Reason: "bad column index varint"}
		}
		rest = rest[n:]
		vlen, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, &ErrChangeCorrupted{Reason: "bad value length varint"}
		}
		rest = rest[n:]
		if uint64(len(rest)) < vlen {
			return nil, &ErrChangeCorrupted{Reason: "value truncated"}
		}
		updates = append(updates, ColumnUpdate{ColIdx: uint32(col), Value: rest[:vlen]})
		rest = rest[vlen:]
	}
	return updates, nil
}

func (c RowChangeList) String() string {
	if c.IsDelete() {
		return "DELETE"
	}
	updates, err := c.DecodeUpdates()
	if err != nil {
		return fmt.Sprintf("<corrupt:%v>", err)
	}
	s := "SET "
	for i, u := range updates {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("col%d=%x", u.ColIdx, u.Value)
	}
	return s
}

// Mutation 一条行级变更，创建后不可变
type Mutation struct {
	RowIdx uint32
	TxID   uint64
	Change RowChangeList
}

func (m Mutation) String() string {
	return fmt.Sprintf("@%d(row %d): %s", m.TxID, m.RowIdx, m.Change)
}
