// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// 桶边界：微秒，对数分布
var bucketLimits = []float64{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 14, 16, 18, 20, 25, 30, 35, 40, 45,
	50, 60, 70, 80, 90, 100, 120, 140, 160, 180, 200, 250, 300, 350, 400, 450,
	500, 600, 700, 800, 900, 1000, 1200, 1400, 1600, 1800, 2000, 2500, 3000,
	3500, 4000, 4500, 5000, 6000, 7000, 8000, 9000, 10000, 12000, 14000,
	16000, 18000, 20000, 25000, 30000, 35000, 40000, 45000, 50000, 60000,
	70000, 80000, 90000, 100000, 120000, 140000, 160000, 180000, 200000,
	250000, 300000, 350000, 400000, 450000, 500000, 600000, 700000, 800000,
	900000, 1000000, 1200000, 1400000, 1600000, 1800000, 2000000, 2500000,
	3000000, 3500000, 4000000, 4500000, 5000000, 1e200,
}

type histogram struct {
	buckets    []float64
	min        float64
	max        float64
	num        float64
	sum        float64
	sumSquares float64
}

func newHistogram() *histogram {
	return &histogram{
		buckets: make([]float64, len(bucketLimits)),
		min:     math.MaxFloat64,
	}
}

func (h *histogram) Add(value float64) {
	if value > h.max {
		h.max = value
	}
	if value < h.min {
		h.min = value
	}

	h.num++
	h.sum += value
	h.sumSquares += value * value

	i := sort.SearchFloat64s(bucketLimits, value)
	if i < len(bucketLimits) && bucketLimits[i] == value {
		i++
	}
	if i >= len(h.buckets) {
		i = len(h.buckets) - 1
	}
	h.buckets[i]++
}

func (h *histogram) Mean() float64 {
	if h.num == 0 {
		return 0
	}
	return h.sum / h.num
}

func (h *histogram) StdDev() float64 {
	if h.num == 0 {
		return 0
	}
	variance := (h.sumSquares - h.sum*h.sum/h.num) / h.num
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

func (h *histogram) String() string {
	var sb strings.Builder
	sb.WriteString("-----------------------------------------\n")
	fmt.Fprintf(&sb, "mean: %.1f, stddev: %.1f\n", h.Mean(), h.StdDev())
	if h.num == 0 {
		return sb.String()
	}
	mult := 100.0 / h.num
	var sum float64
	for i := range h.buckets {
		if h.buckets[i] <= 0.0 {
			continue
		}
		sum += h.buckets[i]

		var left float64
		if i > 0 {
			left = bucketLimits[i-1]
		}
		fmt.Fprintf(&sb, "[ %7.0f, %7.0f ) %7.0f %7.3f%% %7.3f%% ",
			left, bucketLimits[i], h.buckets[i], mult*h.buckets[i], mult*sum)
		sb.WriteString(strings.Repeat("#", int(20*(h.buckets[i]/h.num)+0.5)))
		sb.WriteByte('\n')
	}
	return sb.String()
}
