// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"deltabase/engine/deltastore"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/model"
	"deltabase/engine/scheduler"
)

var randomBaseBytes = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomBytes(rnd *rand.Rand, n int) []byte {
	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		ret[i] = byte(randomBaseBytes[rnd.Intn(len(randomBaseBytes))])
	}
	return ret
}

func TestSchedulerFlushesTrackers(t *testing.T) {
	dir := t.TempDir()

	const (
		testN   = 4
		numRows = 10000
		updates = 2000
	)
	o := &opt.Options{
		WriteBuffer: 64 * opt.KiB,
	}

	trackers := make(map[uint64]*deltastore.Tracker)
	var fss []filesystem.FileSystem
	for i := 1; i <= testN; i++ {
		tr, fs, err := OpenDeltaTracker(uint64(i), filepath.Join(dir, fmt.Sprintf("%d", i)), testSchema(), numRows, o)
		if err != nil {
			t.Fatal(err)
		}
		trackers[uint64(i)] = tr
		fss = append(fss, fs)
	}
	defer func() {
		for id, tr := range trackers {
			scheduler.UnRegisterTracker(id)
			tr.Close()
		}
		for _, fs := range fss {
			fs.Close()
		}
	}()

	// 并发写满各tracker的DMS
	var wg sync.WaitGroup
	for _, tr := range trackers {
		wg.Add(1)
		go func(tr *deltastore.Tracker) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			for i := 0; i < updates; i++ {
				change := model.NewUpdateChange(model.ColumnUpdate{ColIdx: 1, Value: randomBytes(rnd, 64)})
				if err := tr.Update(uint64(i+1), uint32(rnd.Intn(numRows)), change); err != nil {
					t.Error(err)
					return
				}
			}
		}(tr)
	}
	wg.Wait()

	scheduler.StartScheduler(&scheduler.Config{
		WriteRateLimit: 1024 * 1024 * 200,
		Concurrency:    2,
	})
	defer scheduler.StopScheduler()
	for id, tr := range trackers {
		if tr.FlushScore() <= 0 {
			t.Fatalf("tracker %d has nothing to flush", id)
		}
		scheduler.RegisterTracker(id, tr)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		over := true
		for _, tr := range trackers {
			if tr.Stats().Flushes == 0 {
				over = false
			}
		}
		if over {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("trackers not flushed in time")
		}
		time.Sleep(time.Millisecond * 100)
	}

	for id, tr := range trackers {
		st := tr.Stats()
		if st.DeltaFiles == 0 {
			t.Fatalf("tracker %d: no delta file after flush", id)
		}
		if st.MemBytes > int64(o.WriteBuffer) {
			t.Fatalf("tracker %d: memstore still full after flush", id)
		}
	}
}
