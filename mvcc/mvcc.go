// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mvcc assigns transaction ids and produces point-in-time
// visibility snapshots over them.
package mvcc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/btree"

	"deltabase/engine/errors"
)

type txItem uint64

func (i txItem) Less(than btree.Item) bool {
	return i < than.(txItem)
}

// Manager 事务id分配与在途事务跟踪；id单调递增，不复用
type Manager struct {
	mu       sync.Mutex
	nextTxID uint64
	inFlight *btree.BTree
}

// NewManager returns a manager that assigns txids starting at first.
func NewManager(first uint64) *Manager {
	if first == 0 {
		first = 1
	}
	return &Manager{
		nextTxID: first,
		inFlight: btree.New(32),
	}
}

// StartTransaction allocates the next txid and marks it in flight. Its
// effects stay invisible to snapshots until Commit.
func (m *Manager) StartTransaction() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	txid := m.nextTxID
	m.nextTxID++
	m.inFlight.ReplaceOrInsert(txItem(txid))
	return txid
}

// Commit marks the transaction committed. Committing an unknown or
// already-committed txid is an error.
func (m *Manager) Commit(txid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight.Delete(txItem(txid)) == nil {
		return errors.Errorf("deltabase/mvcc: commit of unknown txid %d", txid)
	}
	return nil
}

// InFlightCount returns the number of started, uncommitted transactions.
func (m *Manager) InFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight.Len()
}

// LowWatermark returns the smallest txid whose visibility is still
// undecided: the oldest in-flight transaction, or the next txid to
// assign when none is in flight.
func (m *Manager) LowWatermark() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if min, ok := m.inFlight.Min().(txItem); ok {
		return uint64(min)
	}
	return m.nextTxID
}

// SnapshotCurrent captures a snapshot of everything committed so far.
// Transactions committed after the capture never become visible to it,
// so a snapshot's visible set is a subset of any later snapshot's.
func (m *Manager) SnapshotCurrent() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &Snapshot{noneVisibleAfter: m.nextTxID}
	if n := m.inFlight.Len(); n > 0 {
		snap.exceptions = make([]uint64, 0, n)
		m.inFlight.Ascend(func(item btree.Item) bool {
			snap.exceptions = append(snap.exceptions, uint64(item.(txItem)))
			return true
		})
	}
	return snap
}

// Snapshot 某一时刻的可见性判定：txid在界内且捕获时不在途则可见
type Snapshot struct {
	noneVisibleAfter uint64   // 首个不可见的txid
	exceptions       []uint64 // 捕获时在途的txid，升序
}

// IsVisible implements model.Snapshot.
func (s *Snapshot) IsVisible(txid uint64) bool {
	if txid >= s.noneVisibleAfter {
		return false
	}
	i := sort.Search(len(s.exceptions), func(i int) bool {
		return s.exceptions[i] >= txid
	})
	return i >= len(s.exceptions) || s.exceptions[i] != txid
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot(<%d, %d exceptions)", s.noneVisibleAfter, len(s.exceptions))
}
