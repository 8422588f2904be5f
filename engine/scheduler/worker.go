// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scheduler

import (
	"time"

	"github.com/juju/ratelimit"
	"golang.org/x/net/context"

	"deltabase/engine/model"
	"deltabase/util/log"
)

type taskRequest struct {
	respCh chan model.FlushTask
}

type worker struct {
	wid    int
	s      *flushScheduler
	ctx    context.Context
	bucket *ratelimit.Bucket
}

func newWorker(s *flushScheduler, id int) *worker {
	w := &worker{
		wid: id,
		s:   s,
		ctx: s.ctx,
		// 每10ms，填充百分之一的token
		bucket: ratelimit.NewBucketWithQuantum(time.Millisecond*10, s.c.GetWriteRateLimit()/100, s.c.GetWriteRateLimit()),
	}

	go w.runLoop()

	return w
}

func (w *worker) shouldStop() bool {
	select {
	case <-w.ctx.Done():
		log.Info("[scheduler:%d] worker exiting...", w.wid)
		return true
	default:
	}
	return false
}

func (w *worker) takeTask() model.FlushTask {
	req := &taskRequest{
		respCh: make(chan model.FlushTask),
	}
	w.s.requestTask(req)
	select {
	case <-w.ctx.Done():
		return nil
	case resp := <-req.respCh:
		return resp
	}
}

// runLoop does not recover: a panic out of a flush task means the
// durability phase failed and the process must not keep running with a
// memstore wedged in a store list.
func (w *worker) runLoop() {
	log.Info("[scheduler:%d] start work loop.", w.wid)

	for {
		if w.shouldStop() {
			return
		}

		task := w.takeTask()
		if task == nil {
			if w.shouldStop() {
				return
			}
			time.Sleep(time.Millisecond * 500)
			continue
		}

		w.doFlush(task)
	}
}

func (w *worker) doFlush(task model.FlushTask) {
	defer func() {
		w.s.runnings.remove(task.GetTrackerID())
	}()

	log.Info("[scheduler:%d] start flush tracker(%d).", w.wid, task.GetTrackerID())

	start := time.Now()
	written, err := task.Run()
	if err != nil {
		log.Error("[scheduler:%d] flush tracker(%d) error(%v)", w.wid, task.GetTrackerID(), err)
		return
	}
	if written > 0 {
		// 按写盘量限速，平滑flush对前台写入的冲击
		w.bucket.Wait(written)
	}
	log.Info("[scheduler:%d] flush finish for tracker(%d), total writen: %d, spend: %v", w.wid, task.GetTrackerID(), written, time.Since(start))
}
