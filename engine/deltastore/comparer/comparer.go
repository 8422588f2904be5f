// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package comparer defines key ordering for the memstore skiplist and the
// delta file index blocks.
package comparer

// BasicComparer 基础比较接口
type BasicComparer interface {
	Compare(a, b []byte) int
}

// Comparer extends BasicComparer with the key-shortening hooks the delta
// file writer uses to keep index separators small.
type Comparer interface {
	BasicComparer

	Name() string

	// Separator 返回介于a和b之间的字节数组（可以把a,b隔开）
	Separator(dst, a, b []byte) []byte

	// Successor 返回排在b之后的字节数组
	Successor(dst, b []byte) []byte
}
