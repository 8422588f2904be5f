// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package filesystem

import (
	"fmt"
	"io"
	"sort"
)

// FileType represent a file type.
type FileType int

// File types.
const (
	TypeDelta FileType = 1 << iota
	TypeColumn
	TypeTemp

	TypeAll = TypeDelta | TypeColumn | TypeTemp
)

func (t FileType) String() string {
	switch t {
	case TypeDelta:
		return "delta"
	case TypeColumn:
		return "col"
	case TypeTemp:
		return "temp"
	}
	return fmt.Sprintf("<unknown:%d>", t)
}

type Syncer interface {
	Sync() error
}

type Reader interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
}

type Writer interface {
	io.WriteCloser
	Syncer
}

type UnLocker interface {
	Unlock()
}

// FileDesc 文件描述符
type FileDesc struct {
	Type FileType // 文件类型：delta、列数据、临时文件
	Num  int64    // 序号
}

func (fd FileDesc) String() string {
	switch fd.Type {
	case TypeDelta:
		return fmt.Sprintf("delta_%d", fd.Num)
	case TypeColumn:
		return fmt.Sprintf("col_%d", fd.Num)
	case TypeTemp:
		return fmt.Sprintf("%06d.tmp", fd.Num)
	default:
		return fmt.Sprintf("%#x-%d", fd.Type, fd.Num)
	}
}

func (fd FileDesc) Zero() bool {
	return fd == (FileDesc{})
}

func FileDescOk(fd FileDesc) bool {
	switch fd.Type {
	case TypeDelta:
	case TypeColumn:
	case TypeTemp:
	default:
		return false
	}
	return fd.Num >= 0
}

// sort filedescs
type fdSorter []FileDesc

func (s fdSorter) Len() int {
	return len(s)
}

func (s fdSorter) Less(i, j int) bool {
	return s[i].Num < s[j].Num
}

func (s fdSorter) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func sortFds(fds []FileDesc) {
	sort.Sort(fdSorter(fds))
}

// FileSystem 一个rowset目录上的文件系统抽象
type FileSystem interface {
	// 文件锁 lock(dir/LOCK)
	Lock() (UnLocker, error)

	// List 列举目录下某类型的文件，按序号排序
	List(ft FileType) ([]FileDesc, error)

	// ListNames 列举目录下全部文件名（不解析）；tracker打开时自己判定命名
	ListNames() ([]string, error)

	// Open 打开某个文件用于读
	Open(fd FileDesc) (Reader, error)

	// Size 文件字节大小
	Size(fd FileDesc) (int64, error)

	// Create 创建文件，如果存在则截断
	Create(fd FileDesc) (Writer, error)

	Remove(fd FileDesc) error

	Rename(oldfd, newfd FileDesc) error

	Close() error

	// Destroy 销毁，删除整个目录
	Destroy() error
}
