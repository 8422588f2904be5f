// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// delta_bench measures update and point-read latency of the delta
// tracker.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"deltabase/engine"
	"deltabase/engine/deltastore"
	"deltabase/engine/model"
	"deltabase/util/log"
)

var c = flag.Int("c", 1, "concurrency")
var n = flag.Int64("n", 100000, "requests")
var l = flag.Int("l", 128, "value length")
var d = flag.String("d", "", "rowset directory")
var t = flag.Int("t", 0, "test mode, 0: update; 1: read")
var rows = flag.Int("rows", 1000000, "rowset row count")
var flushEvery = flag.Int64("flush", 0, "flush every N updates (0: once at end)")

type result struct {
	duration time.Duration
	err      error
}

// flushGate admits one flusher at a time; the tracker takes at most one
// flush at a time, so late arrivals skip instead of queueing up.
type flushGate struct {
	mu sync.Mutex
}

func (g *flushGate) do(f func() error) error {
	if !g.mu.TryLock() {
		return nil
	}
	defer g.mu.Unlock()
	return f()
}

var txid uint64
var gate flushGate

func randomBytes(r *rand.Rand, p []byte) {
	const base = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for i := range p {
		p[i] = base[r.Intn(len(base))]
	}
}

func main() {
	flag.Parse()

	if *d == "" {
		var err error
		*d, err = ioutil.TempDir(os.TempDir(), "delta_bench_")
		if err != nil {
			panic(err)
		}
	}

	fmt.Println("rowset path:", *d)

	log.SetLevelString("warn")

	schema := model.NewSchema(
		model.ColumnSchema{Name: "id", Type: model.ColTypeUint32},
		model.ColumnSchema{Name: "val", Type: model.ColTypeBytes},
	)
	tracker, fs, err := engine.OpenDeltaTracker(0, *d, schema, uint32(*rows), nil)
	if err != nil {
		panic(err)
	}
	defer fs.Close()
	defer tracker.Close()

	var wg sync.WaitGroup
	results := make([]result, *n)
	count := *n
	start := time.Now()
	for i := 0; i < *c; i++ {
		wg.Add(1)
		go bench(tracker, &wg, &count, results)
	}
	wg.Wait()

	if *t == 0 {
		if _, err := tracker.Flush(); err != nil {
			panic(err)
		}
	}

	report(results, time.Since(start))
}

func bench(tracker *deltastore.Tracker, wg *sync.WaitGroup, count *int64, results []result) {
	defer wg.Done()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	value := make([]byte, *l)
	proj := model.FullProjection(tracker.Schema())
	for {
		i := atomic.AddInt64(count, -1)
		if i < 0 {
			return
		}
		res := &results[int(*n-1-i)]
		rowIdx := uint32(r.Intn(*rows))
		start := time.Now()
		if *t == 0 {
			randomBytes(r, value)
			change := model.NewUpdateChange(model.ColumnUpdate{ColIdx: 1, Value: value})
			res.err = tracker.Update(atomic.AddUint64(&txid, 1), rowIdx, change)
			if *flushEvery > 0 && atomic.LoadUint64(&txid)%uint64(*flushEvery) == 0 {
				if err := gate.do(func() error {
					_, err := tracker.Flush()
					return err
				}); err != nil {
					res.err = err
				}
			}
		} else {
			res.err = readRow(tracker, proj, rowIdx)
		}
		res.duration = time.Since(start)
	}
}

func readRow(tracker *deltastore.Tracker, proj *model.Projection, rowIdx uint32) error {
	it, err := tracker.NewDeltaIterator(proj, allVisible{})
	if err != nil {
		return err
	}
	defer it.Release()
	if err := it.Init(); err != nil {
		return err
	}
	if err := it.SeekToOrdinal(rowIdx); err != nil {
		return err
	}
	return it.PrepareBatch(1)
}

type allVisible struct{}

func (allVisible) IsVisible(uint64) bool { return true }

func report(results []result, totalSpend time.Duration) {
	errStat := make(map[string]int)
	nErr := 0
	var total, min, max time.Duration
	min = time.Second * 1024
	h := newHistogram()
	for _, r := range results {
		if r.err != nil {
			errStat[r.err.Error()]++
			nErr++
			continue
		}

		if r.duration < min {
			min = r.duration
		}
		if r.duration > max {
			max = r.duration
		}
		total += r.duration

		h.Add(float64(r.duration / time.Microsecond))
	}
	fmt.Printf("Parameters:\n")
	if *t == 0 {
		fmt.Printf("  type:\t%s\n", "update")
	} else {
		fmt.Printf("  type:\t%s\n", "read")
	}
	fmt.Printf("  path:\t%s\n", *d)
	fmt.Printf("  concurrency:\t%d\n", *c)
	fmt.Printf("  requests:\t%d\n", *n)
	fmt.Printf("  rows:\t%d\n", *rows)
	fmt.Printf("  value length:\t%d\n", *l)
	fmt.Println()

	ops := int(float64(*n) / totalSpend.Seconds())

	fmt.Printf("Summary:\n")
	fmt.Printf("  Ops:\t%d\n", ops)
	fmt.Printf("  Success:\t%d\n", *n-int64(nErr))
	fmt.Printf("  Failed:\t%d\n", nErr)
	fmt.Printf("  Total:\t%v\n", total)
	fmt.Printf("  Slowest:\t%v\n", max)
	fmt.Printf("  Fastest:\t%v\n", min)
	fmt.Printf("  Average:\t%v\n", total/(time.Duration)(*n-int64(nErr)))
	fmt.Println()

	if nErr > 0 {
		fmt.Printf("Errors:\n")
		fmt.Printf("  Total:\t%v\n", nErr)
		for k, v := range errStat {
			fmt.Printf("  %s:\t%d\n", k, v)
		}
		fmt.Println()
	}

	fmt.Printf("Histogram (us):\n")
	fmt.Println(h.String())
}
