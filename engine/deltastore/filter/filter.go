// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package filter provides the bloom filter built over the row keys of
// delete records, letting a delta file answer IsRowDeleted without a seek
// in the common no-delete case.
package filter

// Buffer is the destination a generator writes the encoded filter into.
type Buffer interface {
	Alloc(n int) []byte

	Write(p []byte) (n int, err error)

	WriteByte(c byte) error
}

// Filter filter的只读一侧：按名字识别编码并探测key
type Filter interface {
	Name() string

	NewGenerator() FilterGenerator

	Contains(filter, key []byte) bool
}

// FilterGenerator accumulates keys and emits one encoded filter per file.
type FilterGenerator interface {
	Add(key []byte)

	Generate(b Buffer)
}
