// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package opt

import (
	"deltabase/engine/deltastore/comparer"
	"deltabase/engine/deltastore/filter"
)

const (
	KiB = 1024
	MiB = KiB * 1024
	GiB = MiB * 1024
)

var (
	DefaultCompressionType      = SnappyCompression
	DefaultBlockRestartInterval = 16
	DefaultBlockSize            = 32 * KiB
	DefaultWriteBuffer          = 16 * MiB
	DefaultFilter               = filter.NewBloomFilter(10)
)

type Compression uint

func (c Compression) String() string {
	switch c {
	case DefaultCompression:
		return "default"
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	}
	return "invalid"
}

const (
	DefaultCompression Compression = iota
	NoCompression
	SnappyCompression
	nCompression
)

// Options delta store options
type Options struct {
	// 只读
	ReadOnly bool

	// BlockSize delta file block size
	BlockSize int

	BlockRestartInterval int

	// Compare 比较器，默认是byteComparer
	Comparer comparer.Comparer

	// 压缩类型 默认snappy
	Compression Compression

	// Filter 过滤器 默认是布隆过滤器
	Filter filter.Filter

	// WriteBuffer  memstore阈值，超过触发flush
	WriteBuffer int

	// DisableChecksumVerify 读取block时跳过checksum校验
	DisableChecksumVerify bool
}

func (o *Options) GetReadOnly() bool {
	if o == nil {
		return false
	}
	return o.ReadOnly
}

func (o *Options) GetBlockSize() int {
	if o == nil || o.BlockSize <= 0 {
		return DefaultBlockSize
	}
	return o.BlockSize
}

func (o *Options) GetComparer() comparer.Comparer {
	if o == nil || o.Comparer == nil {
		return comparer.DefaultComparer
	}
	return o.Comparer
}

func (o *Options) GetCompression() Compression {
	if o == nil || o.Compression <= DefaultCompression || o.Compression >= nCompression {
		return DefaultCompressionType
	}
	return o.Compression
}

func (o *Options) GetFilter() filter.Filter {
	if o == nil || o.Filter == nil {
		return DefaultFilter
	}
	return o.Filter
}

func (o *Options) GetWriteBuffer() int {
	if o == nil || o.WriteBuffer <= 0 {
		return DefaultWriteBuffer
	}
	return o.WriteBuffer
}

// GetBlockRestartInterval
func (o *Options) GetBlockRestartInterval() int {
	if o == nil || o.BlockRestartInterval <= 0 {
		return DefaultBlockRestartInterval
	}
	return o.BlockRestartInterval
}

func (o *Options) GetVerifyChecksum() bool {
	if o == nil {
		return true
	}
	return !o.DisableChecksumVerify
}
