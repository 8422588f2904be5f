// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

// Snapshot MVCC可见性判定：给定事务id，判断其效果对本次读取是否可见
type Snapshot interface {
	IsVisible(txid uint64) bool
}

// DeltaStore 增量存储能力接口，两种实现：内存可变(DeltaMemStore)与磁盘不可变(deltafile.Reader)
type DeltaStore interface {
	// NewDeltaIterator 创建按(row, txid)序遍历的迭代器；可见性过滤由迭代器完成。
	// 返回的迭代器接管store的一个引用，Release时归还
	NewDeltaIterator(projection *Projection, snap Snapshot) DeltaIterator

	// IsRowDeleted 基于store的全部已记录内容（不做快照过滤）判断行是否被删除
	IsRowDeleted(rowIdx uint32) (bool, error)

	// 引用计数；store在tracker槽位与所有读快照都释放后销毁
	Ref()
	Unref()

	DebugString() string
}

// DeltaIterator 单个store的增量迭代器；merger把多个组合成一个
type DeltaIterator interface {
	Init() error

	// SeekToOrdinal 定位到指定行号，之后PrepareBatch从这里开始
	SeekToOrdinal(rowIdx uint32) error

	// PrepareBatch 准备[cur, cur+nrows)窗口内快照可见的mutation
	PrepareBatch(nrows int) error

	// ApplyUpdates 把本批次对投影列colIdx的更新原地覆盖到dst
	ApplyUpdates(colIdx int, dst *ColumnBlock) error

	// ApplyDeletes 把本批次的删除位清除到选择向量
	ApplyDeletes(sel *SelectionVector) error

	// CollectMutations 追加本批次的原始mutation（store内有序，跨store不重排）
	CollectMutations(dst *[]Mutation) error

	Release()
}

// ColumnSource 基线列数据来源（列存本体在本子系统之外）
type ColumnSource interface {
	NumRows() uint32
	Schema() *Schema

	// MaterializeColumn 把列colIdx在[startRow, startRow+dst.NumRows())的基线值填充到dst
	MaterializeColumn(colIdx int, startRow uint32, dst *ColumnBlock) error
}

// FlushTask flush调度器派发的一次任务
type FlushTask interface {
	GetTrackerID() uint64
	// Run 执行flush，返回写盘字节数
	Run() (written int64, err error)
}

// FlushableStore 可被flush调度器管理的store
type FlushableStore interface {
	// FlushScore 越大越优先，0表示无需flush
	FlushScore() float64
	NewFlushTask() FlushTask
}
