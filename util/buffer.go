// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package util

// Buffer 追加写缓冲，Alloc返回可直接填充的切片
type Buffer struct {
	buf []byte
}

// Bytes returns the contents of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes of the buffer.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Reset resets the buffer to be empty, keeping the underlying storage.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Truncate discards all but the first n bytes.
func (b *Buffer) Truncate(n int) {
	b.buf = b.buf[:n]
}

// Alloc allocs n bytes of slice from the buffer. Caller fills it in place.
func (b *Buffer) Alloc(n int) []byte {
	m := len(b.buf)
	b.grow(n)
	return b.buf[m:]
}

// Write appends the contents of p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	m := len(b.buf)
	b.grow(len(p))
	copy(b.buf[m:], p)
	return len(p), nil
}

// WriteByte appends the byte c to the buffer.
func (b *Buffer) WriteByte(c byte) error {
	m := len(b.buf)
	b.grow(1)
	b.buf[m] = c
	return nil
}

func (b *Buffer) grow(n int) {
	if len(b.buf)+n > cap(b.buf) {
		buf := make([]byte, len(b.buf), 2*cap(b.buf)+n)
		copy(buf, b.buf)
		b.buf = buf
	}
	b.buf = b.buf[:len(b.buf)+n]
}
