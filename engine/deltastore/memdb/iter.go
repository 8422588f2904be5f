// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memdb

import (
	"deltabase/engine/errors"
	"deltabase/util"
)

// dbIter is a forward-only iterator over a skiplistDB. Nodes are never
// unlinked, so the iterator may run concurrently with inserts; entries
// inserted behind the cursor are simply not observed.
type dbIter struct {
	p          *skiplistDB
	slice      *util.Range
	node       *node
	forward    bool
	key, value []byte
	err        error
	released   bool
}

func (i *dbIter) fill() bool {
	if i.node != nil {
		i.key = i.node.key
		if i.slice != nil && i.slice.Limit != nil && i.p.cmp.Compare(i.key, i.slice.Limit) >= 0 {
			i.node = nil
			i.key = nil
			i.value = nil
			return false
		}
		i.value = *i.node.value.Load()
		return true
	}
	i.key = nil
	i.value = nil
	return false
}

func (i *dbIter) Valid() bool {
	return i.node != nil
}

func (i *dbIter) First() bool {
	if i.released {
		i.err = errors.ErrIterReleased
		return false
	}

	i.forward = true
	if i.slice != nil && i.slice.Start != nil {
		i.node = i.p.findGE(i.slice.Start)
	} else {
		i.node = i.p.head.next[0].Load()
	}
	return i.fill()
}

func (i *dbIter) Seek(key []byte) bool {
	if i.released {
		i.err = errors.ErrIterReleased
		return false
	}

	i.forward = true
	if i.slice != nil && i.slice.Start != nil && i.p.cmp.Compare(key, i.slice.Start) < 0 {
		key = i.slice.Start
	}
	i.node = i.p.findGE(key)
	return i.fill()
}

func (i *dbIter) Next() bool {
	if i.released {
		i.err = errors.ErrIterReleased
		return false
	}

	if i.node == nil {
		if !i.forward {
			return i.First()
		}
		return false
	}
	i.node = i.node.next[0].Load()
	return i.fill()
}

func (i *dbIter) Key() []byte {
	return i.key
}

func (i *dbIter) Value() []byte {
	return i.value
}

func (i *dbIter) Error() error { return i.err }

func (i *dbIter) Release() {
	if !i.released {
		i.released = true
		i.p = nil
		i.node = nil
		i.key = nil
		i.value = nil
	}
}
