// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import "fmt"

// ColumnBlock 一列在一个行批次内的cell值；cell是编码后的原始字节
type ColumnBlock struct {
	cells [][]byte
}

// NewColumnBlock 分配nrows行的列块
func NewColumnBlock(nrows int) *ColumnBlock {
	return &ColumnBlock{cells: make([][]byte, nrows)}
}

// NumRows number of rows
func (b *ColumnBlock) NumRows() int {
	return len(b.cells)
}

// Cell 第i行的值
func (b *ColumnBlock) Cell(i int) []byte {
	return b.cells[i]
}

// SetCell 原地覆盖第i行的值
func (b *ColumnBlock) SetCell(i int, v []byte) {
	b.cells[i] = v
}

// SelectionVector 行批次的可见性位图；置位表示行被选中（可见）
type SelectionVector struct {
	nrows int
	bits  []byte
}

// NewSelectionVector 创建全部选中的选择向量
func NewSelectionVector(nrows int) *SelectionVector {
	sv := &SelectionVector{
		nrows: nrows,
		bits:  make([]byte, (nrows+7)/8),
	}
	sv.SetAll()
	return sv
}

// NumRows number of rows
func (sv *SelectionVector) NumRows() int {
	return sv.nrows
}

// SetAll 全部置为选中
func (sv *SelectionVector) SetAll() {
	for i := range sv.bits {
		sv.bits[i] = 0xff
	}
}

// IsRowSelected 行是否可见
func (sv *SelectionVector) IsRowSelected(i int) bool {
	sv.check(i)
	return sv.bits[i>>3]&(1<<(uint(i)&7)) != 0
}

// ClearRow 标记行被删除（不可见）；删除是单调的，没有恢复操作
func (sv *SelectionVector) ClearRow(i int) {
	sv.check(i)
	sv.bits[i>>3] &^= 1 << (uint(i) & 7)
}

// CountSelected 选中的行数
func (sv *SelectionVector) CountSelected() int {
	n := 0
	for i := 0; i < sv.nrows; i++ {
		if sv.IsRowSelected(i) {
			n++
		}
	}
	return n
}

func (sv *SelectionVector) check(i int) {
	if i < 0 || i >= sv.nrows {
		panic(fmt.Sprintf("deltabase/model: selection vector index %d out of range [0,%d)", i, sv.nrows))
	}
}
