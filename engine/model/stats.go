// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

// Stats tracker统计信息
type Stats struct {
	Updates        int64 // update调用次数
	Deletes        int64 // 其中的删除标记数
	Flushes        int64 // 完成的flush次数
	SkippedFlushes int64 // 空DMS跳过的flush
	AliveIterators int64 // 未释放的迭代器
	DeltaFiles     int64 // 当前文件型store数
	MemBytes       int64 // 活跃DMS的内存占用
}
