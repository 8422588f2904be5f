// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scheduler drives memstore flushes: registered trackers are
// scored by memory pressure and the hottest one is handed to a
// rate-limited worker. One flush per tracker at a time.
package scheduler

import (
	"sync"

	"golang.org/x/net/context"

	"deltabase/engine/model"
	"deltabase/util/log"
)

var gFlushScheduler *flushScheduler

// StartScheduler 开始调度
func StartScheduler(c *Config) {
	if gFlushScheduler == nil {
		gFlushScheduler = newScheduler(c)
	}
}

// StopScheduler 停止调度
func StopScheduler() {
	if gFlushScheduler != nil {
		gFlushScheduler.shutdown()
	}
}

// RegisterTracker 加入新tracker到调度中
func RegisterTracker(id uint64, t model.FlushableStore) {
	if gFlushScheduler != nil {
		gFlushScheduler.register(id, t)
	} else {
		log.Warn("register tracker(%d) failed. scheduler is not running", id)
	}
}

// UnRegisterTracker 从调度中移除tracker
func UnRegisterTracker(id uint64) {
	if gFlushScheduler != nil {
		gFlushScheduler.unRegister(id)
	}
}

type flushScheduler struct {
	c *Config

	trackers map[uint64]model.FlushableStore // 所有注册的tracker
	mu       sync.RWMutex
	runnings *runningQueue
	requetCh chan *taskRequest // 向worker分发任务

	ctx      context.Context
	exitFunc context.CancelFunc
}

func newScheduler(c *Config) *flushScheduler {
	s := &flushScheduler{
		c:        c,
		trackers: make(map[uint64]model.FlushableStore),
		runnings: newRunningQueue(),
		requetCh: make(chan *taskRequest, c.GetConcurrency()),
	}
	s.ctx, s.exitFunc = context.WithCancel(context.Background())

	log.Info("[scheduler] start, concurrency: %d, write ratelimit: %d", c.GetConcurrency(), c.GetWriteRateLimit())

	go s.run()

	for i := 0; i < c.GetConcurrency(); i++ {
		wid := i
		newWorker(s, wid)
	}
	return s
}

func (s *flushScheduler) requestTask(req *taskRequest) {
	select {
	case <-s.ctx.Done():
		return
	case s.requetCh <- req:
	}
}

func (s *flushScheduler) run() {
	for {
		// check should stop
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.requetCh:
			req.respCh <- s.newTask()
		}
	}
}

func (s *flushScheduler) register(id uint64, t model.FlushableStore) {
	s.mu.Lock()
	s.trackers[id] = t
	s.mu.Unlock()
	log.Info("[scheduler] register tracker[%d]", id)
}

func (s *flushScheduler) unRegister(id uint64) {
	s.mu.Lock()
	delete(s.trackers, id)
	s.mu.Unlock()
	log.Info("[scheduler] unregister tracker[%d]", id)
}

// newTask 选出分数最高且未在flush的tracker；无候选返回nil
func (s *flushScheduler) newTask() model.FlushTask {
	var current map[uint64]model.FlushableStore
	s.mu.RLock()
	if len(s.trackers) > 0 {
		current = make(map[uint64]model.FlushableStore, len(s.trackers))
		for id, t := range s.trackers {
			current[id] = t
		}
	}
	s.mu.RUnlock()

	if len(current) == 0 {
		return nil
	}

	maxScore := s.c.GetMinFlushScore()
	var maxID uint64
	var maxTracker model.FlushableStore
	for id, t := range current {
		// 跳过正在flush的
		if s.runnings.exist(id) {
			continue
		}
		if score := t.FlushScore(); score >= maxScore {
			maxScore = score
			maxID = id
			maxTracker = t
		}
	}

	if maxTracker == nil {
		return nil
	}
	if !s.runnings.tryAdd(maxID) {
		return nil
	}
	return maxTracker.NewFlushTask()
}

func (s *flushScheduler) shutdown() {
	select {
	case <-s.ctx.Done():
		return
	default:
		s.exitFunc()
	}
}
