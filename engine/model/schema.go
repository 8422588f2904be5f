// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import "fmt"

// ColType 列类型；本层只负责搬运编码后的cell字节，类型用于展示和校验
type ColType uint8

const (
	ColTypeBytes ColType = iota
	ColTypeUint32
	ColTypeInt64
	ColTypeString
)

func (t ColType) String() string {
	switch t {
	case ColTypeBytes:
		return "bytes"
	case ColTypeUint32:
		return "uint32"
	case ColTypeInt64:
		return "int64"
	case ColTypeString:
		return "string"
	}
	return fmt.Sprintf("<invalid:%d>", uint8(t))
}

// ColumnSchema 一列的定义
type ColumnSchema struct {
	Name string
	Type ColType
}

// Schema rowset的列定义集合；列序号在rowset生命周期内稳定
type Schema struct {
	cols    []ColumnSchema
	nameIdx map[string]int
}

// NewSchema new schema
func NewSchema(cols ...ColumnSchema) *Schema {
	s := &Schema{
		cols:    append([]ColumnSchema{}, cols...),
		nameIdx: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		s.nameIdx[c.Name] = i
	}
	return s
}

// NumColumns number of columns
func (s *Schema) NumColumns() int {
	return len(s.cols)
}

// Column returns the i-th column schema.
func (s *Schema) Column(i int) ColumnSchema {
	return s.cols[i]
}

// ColumnIndex 按名字找列序号，找不到返回-1
func (s *Schema) ColumnIndex(name string) int {
	if i, ok := s.nameIdx[name]; ok {
		return i
	}
	return -1
}

func (s *Schema) String() string {
	str := "Schema("
	for i, c := range s.cols {
		if i > 0 {
			str += ", "
		}
		str += fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return str + ")"
}

// Projection schema的一个列子集，按投影序号访问
type Projection struct {
	schema *Schema
	cols   []int // 基表列序号，按投影顺序
}

// NewProjection 从基表schema选取指定列；列名不存在返回错误
func NewProjection(schema *Schema, names ...string) (*Projection, error) {
	p := &Projection{schema: schema}
	for _, name := range names {
		idx := schema.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("deltabase/model: projection column %q not in schema", name)
		}
		p.cols = append(p.cols, idx)
	}
	return p, nil
}

// FullProjection 全列投影
func FullProjection(schema *Schema) *Projection {
	p := &Projection{schema: schema}
	for i := 0; i < schema.NumColumns(); i++ {
		p.cols = append(p.cols, i)
	}
	return p
}

// Schema the base schema
func (p *Projection) Schema() *Schema {
	return p.schema
}

// NumColumns 投影列数
func (p *Projection) NumColumns() int {
	return len(p.cols)
}

// BaseIndex 投影序号 -> 基表列序号
func (p *Projection) BaseIndex(projIdx int) int {
	return p.cols[projIdx]
}
