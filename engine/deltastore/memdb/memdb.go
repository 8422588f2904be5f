// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memdb

import (
	"deltabase/engine/deltastore/iterator"
	"deltabase/util"
)

// DB is an in-memory ordered key/value store. It backs the mutable delta
// memstore: keys are delta keys, values are encoded row changes. Inserts
// never take a store-wide exclusive lock, so concurrent writers do not
// serialize on each other.
type DB interface {
	// Put sets the value for the given key. It overwrites any previous value
	// for that key; a DB is not a multi-map. Put is safe for concurrent use
	// as long as concurrent calls use distinct keys.
	// It is safe to modify the contents of the arguments after Put returns.
	Put(key []byte, value []byte) error
	// Contains returns true if the given key are in the DB.
	// It is safe to modify the contents of the arguments after Contains returns.
	Contains(key []byte) bool
	// Get gets the value for the given key. It returns errors.ErrNotFound if the
	// DB does not contain the key.
	// The caller should not modify the contents of the returned slice, but
	// it is safe to modify the contents of the argument after Get returns.
	Get(key []byte) (value []byte, err error)
	// Min return min key
	Min() []byte
	// Max return the max key
	Max() []byte

	// Find finds key/value pair whose key is greater than or equal to the
	// given key. It returns ErrNotFound if the table doesn't contain such pair.
	// The caller should not modify the contents of the returned slice, but
	// it is safe to modify the contents of the argument after Find returns.
	Find(key []byte) (rkey, value []byte, err error)
	// Size returns sum of keys and values length.
	Size() int
	// Len returns the number of entries in the DB.
	Len() int
	// Reset resets the DB to initial empty state. The caller must guarantee
	// no concurrent readers or writers remain.
	Reset()
	// NewIterator returns an iterator of the DB.
	// The returned iterator is not safe for concurrent use, but it is safe to use
	// multiple iterators concurrently, with each in a dedicated goroutine.
	// It is also safe to use an iterator concurrently with modifying its
	// underlying DB. However, the resultant key/value pairs are not guaranteed
	// to be a consistent snapshot of the DB at a particular point in time.
	//
	// Slice allows slicing the iterator to only contains keys in the given
	// range. A nil Range.Start is treated as a key before all keys in the
	// DB. And a nil Range.Limit is treated as a key after all keys in
	// the DB.
	//
	// The iterator must be released after use, by calling Release method.
	// Also read Iterator documentation of the deltastore/iterator package.
	NewIterator(slice *util.Range) iterator.Iterator
}
