// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scheduler

import (
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deltabase/engine/model"
)

// fakeFlushable flushes by resetting its own score.
type fakeFlushable struct {
	id      uint64
	score   int64 // score*1000
	flushes int64
	overlap int64
	failed  int64
}

func (f *fakeFlushable) FlushScore() float64 {
	return float64(atomic.LoadInt64(&f.score)) / 1000
}

func (f *fakeFlushable) NewFlushTask() model.FlushTask {
	return &fakeTask{f: f}
}

type fakeTask struct {
	f *fakeFlushable
}

func (t *fakeTask) GetTrackerID() uint64 {
	return t.f.id
}

func (t *fakeTask) Run() (int64, error) {
	if atomic.AddInt64(&t.f.overlap, 1) != 1 {
		atomic.AddInt64(&t.f.failed, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt64(&t.f.overlap, -1)
	atomic.StoreInt64(&t.f.score, 0)
	atomic.AddInt64(&t.f.flushes, 1)
	return 1024, nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSchedulerFlushesHighScoreTracker(t *testing.T) {
	s := newScheduler(&Config{Concurrency: 2})
	defer s.shutdown()

	hot := &fakeFlushable{id: 1, score: 2000}
	cold := &fakeFlushable{id: 2, score: 100} // below min score
	s.register(1, hot)
	s.register(2, cold)

	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt64(&hot.flushes) >= 1
	})
	require.Zero(t, atomic.LoadInt64(&cold.flushes))
	require.Zero(t, atomic.LoadInt64(&hot.failed))
}

func TestSchedulerSerializesPerTracker(t *testing.T) {
	s := newScheduler(&Config{Concurrency: 4})
	defer s.shutdown()

	f := &fakeFlushable{id: 7, score: 5000}
	// Keep the score hot so every idle worker wants this tracker.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				atomic.StoreInt64(&f.score, 5000)
				time.Sleep(time.Millisecond)
			}
		}
	}()
	s.register(7, f)

	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt64(&f.flushes) >= 3
	})
	require.Zero(t, atomic.LoadInt64(&f.failed), "concurrent flushes on one tracker")
}

func TestSchedulerUnregister(t *testing.T) {
	s := newScheduler(&Config{Concurrency: 1})
	defer s.shutdown()

	f := &fakeFlushable{id: 3, score: 2000}
	s.register(3, f)
	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt64(&f.flushes) >= 1
	})

	s.unRegister(3)
	n := atomic.LoadInt64(&f.flushes)
	atomic.StoreInt64(&f.score, 9000)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, n, atomic.LoadInt64(&f.flushes))
}

// panicFlushable's task dies in its durability phase.
type panicFlushable struct {
	id uint64
}

func (f *panicFlushable) FlushScore() float64 {
	return 10
}

func (f *panicFlushable) NewFlushTask() model.FlushTask {
	return &panicTask{id: f.id}
}

type panicTask struct {
	id uint64
}

func (t *panicTask) GetTrackerID() uint64 {
	return t.id
}

func (t *panicTask) Run() (int64, error) {
	panic("flush durability failure")
}

// A panic out of a flush task must take the process down, not get
// swallowed inside a worker.
func TestWorkerFlushPanicIsFatal(t *testing.T) {
	if os.Getenv("SCHEDULER_WORKER_PANIC") == "1" {
		s := newScheduler(&Config{Concurrency: 1})
		defer s.shutdown()
		s.register(1, &panicFlushable{id: 1})
		// The worker's panic must kill the process before this returns.
		time.Sleep(10 * time.Second)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run", "TestWorkerFlushPanicIsFatal$")
	cmd.Env = append(os.Environ(), "SCHEDULER_WORKER_PANIC=1")
	out, err := cmd.CombinedOutput()
	ee, ok := err.(*exec.ExitError)
	require.True(t, ok, "process survived a flush panic:\n%s", out)
	require.False(t, ee.Success())
	require.Contains(t, string(out), "flush durability failure")
}
