// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memdb

import (
	"math/rand"
	"sync/atomic"

	"deltabase/engine/deltastore/comparer"
	"deltabase/engine/deltastore/iterator"
	"deltabase/engine/errors"
	"deltabase/util"
)

const tMaxHeight = 12

type node struct {
	key   []byte
	value atomic.Pointer[[]byte]
	next  []atomic.Pointer[node]
}

func newNode(key, value []byte, height int) *node {
	n := &node{
		key:  key,
		next: make([]atomic.Pointer[node], height),
	}
	n.value.Store(&value)
	return n
}

// skiplistDB is an insert-only lock-free skiplist. Next pointers are
// CAS-linked, so writers never block each other and readers traverse
// without any lock. Nodes are never unlinked; Reset discards everything.
type skiplistDB struct {
	cmp  comparer.BasicComparer
	head *node

	n    atomic.Int64
	size atomic.Int64
}

func newSkiplistDB() *skiplistDB {
	return &skiplistDB{
		head: &node{next: make([]atomic.Pointer[node], tMaxHeight)},
	}
}

func randHeight() (h int) {
	const branching = 4
	h = 1
	for h < tMaxHeight && rand.Int()%branching == 0 {
		h++
	}
	return
}

// findPreds fills preds with the rightmost node at each level whose key is
// strictly less than key. Returns the node holding an equal key, if linked.
func (p *skiplistDB) findPreds(key []byte, preds *[tMaxHeight]*node) (eq *node) {
	x := p.head
	for i := tMaxHeight - 1; i >= 0; i-- {
		for {
			next := x.next[i].Load()
			if next == nil {
				break
			}
			c := p.cmp.Compare(next.key, key)
			if c < 0 {
				x = next
				continue
			}
			if c == 0 {
				eq = next
			}
			break
		}
		preds[i] = x
	}
	return eq
}

// findGE returns the first node whose key is >= key.
func (p *skiplistDB) findGE(key []byte) *node {
	x := p.head
	for i := tMaxHeight - 1; i >= 0; i-- {
		for {
			next := x.next[i].Load()
			if next == nil || p.cmp.Compare(next.key, key) >= 0 {
				break
			}
			x = next
		}
		if i == 0 {
			return x.next[0].Load()
		}
	}
	return nil
}

func (p *skiplistDB) findLast() *node {
	x := p.head
	for i := tMaxHeight - 1; i >= 0; i-- {
		for {
			next := x.next[i].Load()
			if next == nil {
				break
			}
			x = next
		}
	}
	if x == p.head {
		return nil
	}
	return x
}

func (p *skiplistDB) Put(key []byte, value []byte) error {
	// Callers may reuse their buffers after Put returns.
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)

	var preds [tMaxHeight]*node
	for {
		if eq := p.findPreds(k, &preds); eq != nil {
			old := eq.value.Swap(&v)
			p.size.Add(int64(len(v) - len(*old)))
			return nil
		}

		h := randHeight()
		nn := newNode(k, v, h)

		// Link the base level first; the node becomes visible to readers
		// the instant this CAS succeeds.
		succ := preds[0].next[0].Load()
		if succ != nil && p.cmp.Compare(succ.key, k) <= 0 {
			// preds went stale under a concurrent insert
			continue
		}
		nn.next[0].Store(succ)
		if !preds[0].next[0].CompareAndSwap(succ, nn) {
			continue
		}

		// Link the upper levels; failures here only cost index efficiency
		// until the retry succeeds, never correctness.
		for i := 1; i < h; i++ {
			for {
				succ := preds[i].next[i].Load()
				if succ != nil && p.cmp.Compare(succ.key, k) <= 0 {
					p.findPreds(k, &preds)
					continue
				}
				nn.next[i].Store(succ)
				if preds[i].next[i].CompareAndSwap(succ, nn) {
					break
				}
				p.findPreds(k, &preds)
			}
		}

		p.n.Add(1)
		p.size.Add(int64(len(k) + len(v)))
		return nil
	}
}

func (p *skiplistDB) Contains(key []byte) bool {
	n := p.findGE(key)
	return n != nil && p.cmp.Compare(n.key, key) == 0
}

func (p *skiplistDB) Get(key []byte) (value []byte, err error) {
	n := p.findGE(key)
	if n == nil || p.cmp.Compare(n.key, key) != 0 {
		return nil, errors.ErrNotFound
	}
	return *n.value.Load(), nil
}

func (p *skiplistDB) Find(key []byte) (rkey, value []byte, err error) {
	n := p.findGE(key)
	if n == nil {
		return nil, nil, errors.ErrNotFound
	}
	return n.key, *n.value.Load(), nil
}

func (p *skiplistDB) Min() []byte {
	n := p.head.next[0].Load()
	if n == nil {
		return nil
	}
	return n.key
}

func (p *skiplistDB) Max() []byte {
	n := p.findLast()
	if n == nil {
		return nil
	}
	return n.key
}

func (p *skiplistDB) Size() int {
	return int(p.size.Load())
}

func (p *skiplistDB) Len() int {
	return int(p.n.Load())
}

func (p *skiplistDB) Reset() {
	for i := range p.head.next {
		p.head.next[i].Store(nil)
	}
	p.n.Store(0)
	p.size.Store(0)
}

func (p *skiplistDB) NewIterator(slice *util.Range) iterator.Iterator {
	return &dbIter{p: p, slice: slice}
}
