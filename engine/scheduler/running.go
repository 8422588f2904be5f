// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scheduler

import "sync"

// runningQueue 正在flush的tracker集合；保证单个tracker同时至多一个flush
type runningQueue struct {
	sync.Mutex
	m map[uint64]struct{}
}

func newRunningQueue() *runningQueue {
	return &runningQueue{
		m: make(map[uint64]struct{}),
	}
}

func (q *runningQueue) exist(id uint64) bool {
	q.Lock()
	_, ok := q.m[id]
	q.Unlock()
	return ok
}

// tryAdd 不存在才加入；返回是否加入成功
func (q *runningQueue) tryAdd(id uint64) bool {
	q.Lock()
	defer q.Unlock()
	if _, ok := q.m[id]; ok {
		return false
	}
	q.m[id] = struct{}{}
	return true
}

func (q *runningQueue) remove(id uint64) {
	q.Lock()
	delete(q.m, id)
	q.Unlock()
}
