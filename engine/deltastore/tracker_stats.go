// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"sync/atomic"

	"deltabase/engine/model"
)

type trackerStats struct {
	updates        int64
	deletes        int64
	flushes        int64
	skippedFlushes int64
	aliveIterators int64
}

func (s *trackerStats) addUpdate(isDelete bool) {
	atomic.AddInt64(&s.updates, 1)
	if isDelete {
		atomic.AddInt64(&s.deletes, 1)
	}
}

func (s *trackerStats) addFlush() {
	atomic.AddInt64(&s.flushes, 1)
}

func (s *trackerStats) addSkippedFlush() {
	atomic.AddInt64(&s.skippedFlushes, 1)
}

func (s *trackerStats) iterOpened() {
	atomic.AddInt64(&s.aliveIterators, 1)
}

func (s *trackerStats) iterClosed() {
	atomic.AddInt64(&s.aliveIterators, -1)
}

// Stats snapshots the tracker counters. Counter loads are individually
// atomic; the snapshot as a whole is not.
func (t *Tracker) Stats() model.Stats {
	st := model.Stats{
		Updates:        atomic.LoadInt64(&t.stats.updates),
		Deletes:        atomic.LoadInt64(&t.stats.deletes),
		Flushes:        atomic.LoadInt64(&t.stats.flushes),
		SkippedFlushes: atomic.LoadInt64(&t.stats.skippedFlushes),
		AliveIterators: atomic.LoadInt64(&t.stats.aliveIterators),
	}

	t.componentMu.RLock()
	for _, s := range t.stores {
		// A memstore parked in the list mid-flush is not a file yet.
		if _, ok := s.(*fileStore); ok {
			st.DeltaFiles++
		}
	}
	if t.dms != nil {
		st.MemBytes = int64(t.dms.MemBytes())
	}
	t.componentMu.RUnlock()
	return st
}
