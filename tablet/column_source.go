// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tablet

import (
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

// MemColumnSource 内存基线列数据；用于测试和小数据量工具
type MemColumnSource struct {
	schema *model.Schema
	cols   [][][]byte // [col][row] -> cell
}

// NewMemColumnSource builds a source of numRows empty rows.
func NewMemColumnSource(schema *model.Schema, numRows int) *MemColumnSource {
	s := &MemColumnSource{schema: schema}
	for c := 0; c < schema.NumColumns(); c++ {
		s.cols = append(s.cols, make([][]byte, numRows))
	}
	return s
}

// SetBaseCell sets one base cell. Not safe concurrently with readers;
// base data is loaded before serving.
func (s *MemColumnSource) SetBaseCell(colIdx int, rowIdx uint32, v []byte) {
	s.cols[colIdx][rowIdx] = v
}

// NumRows implements model.ColumnSource.
func (s *MemColumnSource) NumRows() uint32 {
	if len(s.cols) == 0 {
		return 0
	}
	return uint32(len(s.cols[0]))
}

// Schema implements model.ColumnSource.
func (s *MemColumnSource) Schema() *model.Schema {
	return s.schema
}

// MaterializeColumn implements model.ColumnSource.
func (s *MemColumnSource) MaterializeColumn(colIdx int, startRow uint32, dst *model.ColumnBlock) error {
	if colIdx < 0 || colIdx >= len(s.cols) {
		return errors.Errorf("deltabase/tablet: column %d not in %s", colIdx, s.schema)
	}
	rows := s.cols[colIdx]
	if int(startRow)+dst.NumRows() > len(rows) {
		return errors.Errorf("deltabase/tablet: rows [%d,%d) beyond %d", startRow, int(startRow)+dst.NumRows(), len(rows))
	}
	for i := 0; i < dst.NumRows(); i++ {
		dst.SetCell(i, rows[int(startRow)+i])
	}
	return nil
}
