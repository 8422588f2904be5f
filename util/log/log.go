// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// 日志级别
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Log leveled logger
type Log struct {
	mu    sync.Mutex
	out   io.Writer
	level int32
}

var fileLogger = &Log{out: os.Stderr, level: LevelInfo}

// GetFileLogger 返回全局logger
func GetFileLogger() *Log {
	return fileLogger
}

// SetLevelString set log level by name ("debug", "info", ...)
func SetLevelString(level string) {
	for i, name := range levelNames {
		if name == level || lower(name) == level {
			fileLogger.SetLevel(int32(i))
			return
		}
	}
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// SetOutput 重定向日志输出
func SetOutput(w io.Writer) {
	fileLogger.mu.Lock()
	fileLogger.out = w
	fileLogger.mu.Unlock()
}

func (l *Log) SetLevel(level int32) {
	atomic.StoreInt32(&l.level, level)
}

func (l *Log) GetLevel() int32 {
	return atomic.LoadInt32(&l.level)
}

func (l *Log) IsEnableDebug() bool { return l.GetLevel() <= LevelDebug }
func (l *Log) IsEnableInfo() bool  { return l.GetLevel() <= LevelInfo }
func (l *Log) IsEnableWarn() bool  { return l.GetLevel() <= LevelWarn }
func (l *Log) IsEnableError() bool { return l.GetLevel() <= LevelError }

// Output 写一条日志，calldepth用于定位调用处的文件行号
func (l *Log) Output(calldepth int, s string, flush bool) {
	now := time.Now()
	_, file, line, ok := runtime.Caller(calldepth - 1)
	if !ok {
		file = "???"
		line = 0
	} else {
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				file = file[i+1:]
				break
			}
		}
	}

	l.mu.Lock()
	fmt.Fprintf(l.out, "%s %s:%d %s\n", now.Format("2006-01-02 15:04:05.000"), file, line, s)
	l.mu.Unlock()
}

func (l *Log) logf(level int32, format string, v ...interface{}) {
	if l.GetLevel() > level {
		return
	}
	l.Output(4, "["+levelNames[level]+"]: "+fmt.Sprintf(format, v...), false)
}

// 包级别接口，直接使用全局logger

func Debug(format string, v ...interface{}) {
	fileLogger.logf(LevelDebug, format, v...)
}

func Info(format string, v ...interface{}) {
	fileLogger.logf(LevelInfo, format, v...)
}

func Warn(format string, v ...interface{}) {
	fileLogger.logf(LevelWarn, format, v...)
}

func Error(format string, v ...interface{}) {
	fileLogger.logf(LevelError, format, v...)
}

func Fatal(format string, v ...interface{}) {
	fileLogger.logf(LevelFatal, format, v...)
	os.Exit(1)
}

func Panic(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	fileLogger.logf(LevelFatal, "%s", s)
	panic(s)
}
