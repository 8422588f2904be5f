// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package util

import "fmt"

var bunits = [...]string{"", "Ki", "Mi", "Gi"}

// ShorteNBytes 格式化字节数, 如 3Mi
func ShorteNBytes(bytes int) string {
	i := 0
	for ; bytes > 1024 && i < len(bunits)-1; i++ {
		bytes /= 1024
	}
	return fmt.Sprintf("%d%sB", bytes, bunits[i])
}

// MinInt min
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaxInt max
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Range 字节key范围 [Start, Limit)
type Range struct {
	Start []byte
	Limit []byte
}

// Releaser is the interface that wraps the basic Release method.
type Releaser interface {
	Release()
}
