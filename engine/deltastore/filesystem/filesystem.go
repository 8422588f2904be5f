// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"deltabase/util/log"
)

var (
	errReadOnly = errors.New("deltabase/filesystem: storage is read-only")
)

// DeltaPrefix delta文件命名前缀，delta_<N>，N为非负十进制序号
const DeltaPrefix = "delta_"

// ColumnPrefix 列数据文件前缀；本子系统识别但不处理
const ColumnPrefix = "col_"

type filesystemLock struct {
	fs *filesystem
}

func (lock *filesystemLock) Unlock() {
	if lock.fs != nil {
		lock.fs.mu.Lock()
		defer lock.fs.mu.Unlock()
		if lock.fs.slock == lock {
			lock.fs.slock = nil
		}
	}
}

type filesystem struct {
	path     string
	readOnly bool

	mu    sync.Mutex
	flock fileLock
	slock *filesystemLock
	// Opened file counter; if open < 0 means closed.
	open int
}

// OpenFile 初始化rowset目录：判断目录是否存在，不存在创建；持有目录文件锁
// The filesystem must be closed after use, by calling Close method.
func OpenFile(path string, readOnly bool) (FileSystem, error) {
	if fi, err := os.Stat(path); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("deltabase/filesystem: open %s: not a directory", path)
		}
	} else if os.IsNotExist(err) && !readOnly {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}

	flock, err := newFileLock(filepath.Join(path, "LOCK"), readOnly)
	if err != nil {
		return nil, fmt.Errorf("new lock file:%v", err)
	}

	fs := &filesystem{
		path:     path,
		readOnly: readOnly,
		flock:    flock,
	}
	runtime.SetFinalizer(fs, (*filesystem).Close)
	return fs, nil
}

func (fs *filesystem) Lock() (UnLocker, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return nil, ErrClosed
	}
	if fs.readOnly {
		return &filesystemLock{}, nil
	}
	if fs.slock != nil {
		return nil, ErrLocked
	}
	fs.slock = &filesystemLock{fs: fs}
	return fs.slock, nil
}

func (fs *filesystem) List(ft FileType) (fds []FileDesc, err error) {
	names, err := fs.ListNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if fd, ok := fsParseName(name); ok && fd.Type&ft != 0 {
			fds = append(fds, fd)
		}
	}
	sortFds(fds)
	return
}

func (fs *filesystem) ListNames() (names []string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return nil, ErrClosed
	}
	dir, err := os.Open(fs.path)
	if err != nil {
		return
	}
	names, err = dir.Readdirnames(0)
	// Close the dir first before checking for Readdirnames error.
	if cerr := dir.Close(); cerr != nil {
		log.Warn("close dir: %v", cerr)
	}
	return
}

func (fs *filesystem) Open(fd FileDesc) (Reader, error) {
	if !FileDescOk(fd) {
		return nil, ErrInvalidFile
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return nil, ErrClosed
	}
	of, err := os.OpenFile(filepath.Join(fs.path, fsGenName(fd)), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	fs.open++
	return &fileWrap{File: of, fs: fs, fd: fd}, nil
}

func (fs *filesystem) Size(fd FileDesc) (int64, error) {
	if !FileDescOk(fd) {
		return 0, ErrInvalidFile
	}
	fi, err := os.Stat(filepath.Join(fs.path, fsGenName(fd)))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (fs *filesystem) Create(fd FileDesc) (Writer, error) {
	if !FileDescOk(fd) {
		return nil, ErrInvalidFile
	}
	if fs.readOnly {
		return nil, errReadOnly
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return nil, ErrClosed
	}
	of, err := os.OpenFile(filepath.Join(fs.path, fsGenName(fd)), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	fs.open++
	return &fileWrap{File: of, fs: fs, fd: fd}, nil
}

func (fs *filesystem) Remove(fd FileDesc) error {
	if !FileDescOk(fd) {
		return ErrInvalidFile
	}
	if fs.readOnly {
		return errReadOnly
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return ErrClosed
	}
	return os.Remove(filepath.Join(fs.path, fsGenName(fd)))
}

func (fs *filesystem) Rename(oldfd, newfd FileDesc) error {
	if !FileDescOk(oldfd) || !FileDescOk(newfd) {
		return ErrInvalidFile
	}
	if oldfd == newfd {
		return nil
	}
	if fs.readOnly {
		return errReadOnly
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return ErrClosed
	}

	return os.Rename(filepath.Join(fs.path, fsGenName(oldfd)), filepath.Join(fs.path, fsGenName(newfd)))
}

func (fs *filesystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.open < 0 {
		return ErrClosed
	}
	// Clear the finalizer.
	runtime.SetFinalizer(fs, nil)

	if fs.open > 0 {
		log.Warn("close: warning, %d files still open", fs.open)
	}
	fs.open = -1
	return fs.flock.release()
}

func (fs *filesystem) Destroy() error {
	return os.RemoveAll(fs.path)
}

type fileWrap struct {
	*os.File
	fs     *filesystem
	fd     FileDesc
	closed bool
}

func (fw *fileWrap) Sync() error {
	return fw.File.Sync()
}

func (fw *fileWrap) Close() error {
	fw.fs.mu.Lock()
	defer fw.fs.mu.Unlock()
	if fw.closed {
		return ErrClosed
	}
	fw.closed = true
	fw.fs.open--
	err := fw.File.Close()
	if err != nil {
		log.Error("close %s: %v", fw.fd, err)
	}
	return err
}

func fsGenName(fd FileDesc) string {
	switch fd.Type {
	case TypeDelta:
		return DeltaPrefix + strconv.FormatInt(fd.Num, 10)
	case TypeColumn:
		return ColumnPrefix + strconv.FormatInt(fd.Num, 10)
	case TypeTemp:
		return fmt.Sprintf("%06d.tmp", fd.Num)
	default:
		panic("invalid file type")
	}
}

func fsParseName(name string) (fd FileDesc, ok bool) {
	if num, ok2, err := ParseDeltaName(name); ok2 && err == nil {
		return FileDesc{Type: TypeDelta, Num: num}, true
	}
	if strings.HasPrefix(name, ColumnPrefix) {
		num, err := strconv.ParseInt(name[len(ColumnPrefix):], 10, 64)
		if err == nil && num >= 0 {
			return FileDesc{Type: TypeColumn, Num: num}, true
		}
		return
	}
	if strings.HasSuffix(name, ".tmp") {
		num, err := strconv.ParseInt(name[:len(name)-len(".tmp")], 10, 64)
		if err == nil && num >= 0 {
			return FileDesc{Type: TypeTemp, Num: num}, true
		}
	}
	return
}

// ParseDeltaName 解析delta文件名。ok表示带有delta前缀；此时err非空说明
// 序号后缀非法（目录已不一致，调用方应视为corruption而不是跳过）
func ParseDeltaName(name string) (num int64, ok bool, err error) {
	if !strings.HasPrefix(name, DeltaPrefix) {
		return 0, false, nil
	}
	num, err = strconv.ParseInt(name[len(DeltaPrefix):], 10, 64)
	if err != nil || num < 0 {
		return 0, true, NewErrCorrupted(FileDesc{}, fmt.Errorf("bad delta file name %q", name))
	}
	return num, true, nil
}
