// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	"github.com/juju/errors"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("deltabase/engine: not found")
	// ErrClosed store已关闭
	ErrClosed = errors.New("deltabase/engine: closed")
	// ErrIterReleased iterator已经释放
	ErrIterReleased = errors.New("deltabase/engine: iterator released")
	// ErrReadOnly 只读模式
	ErrReadOnly = errors.New("deltabase/engine: read-only")
)

// New returns an error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Errorf formats an error.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Annotatef 包装err并附加上下文
func Annotatef(err error, format string, args ...interface{}) error {
	return errors.Annotatef(err, format, args...)
}

// Trace records the location where the error was raised.
func Trace(err error) error {
	return errors.Trace(err)
}

// Cause returns the underlying cause of the error.
func Cause(err error) error {
	return errors.Cause(err)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}
