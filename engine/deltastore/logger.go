// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deltastore

import (
	"fmt"
	"os"

	"deltabase/util/log"
)

// 日志前面加上tracker id前缀
type trackerLogger struct {
	trackerID uint64
	prefix    string
	*log.Log
}

func newTrackerLogger(trackerID uint64) *trackerLogger {
	return &trackerLogger{
		trackerID: trackerID,
		prefix:    fmt.Sprintf("Tracker(%d) ", trackerID),
		Log:       log.GetFileLogger(),
	}
}

func (l *trackerLogger) Debug(format string, v ...interface{}) {
	if l.IsEnableDebug() {
		l.Output(4, "[DEBUG]: "+l.prefix+fmt.Sprintf(format, v...), false)
	}
}

func (l *trackerLogger) Info(format string, v ...interface{}) {
	if l.IsEnableInfo() {
		l.Output(4, "[INFO]: "+l.prefix+fmt.Sprintf(format, v...), false)
	}
}

func (l *trackerLogger) Warn(format string, v ...interface{}) {
	if l.IsEnableWarn() {
		l.Output(4, "[WARN]: "+l.prefix+fmt.Sprintf(format, v...), false)
	}
}

func (l *trackerLogger) Error(format string, v ...interface{}) {
	if l.IsEnableError() {
		l.Output(4, "[ERROR]: "+l.prefix+fmt.Sprintf(format, v...), false)
	}
}

func (l *trackerLogger) Fatal(format string, v ...interface{}) {
	l.Output(4, "[FATAL]: "+l.prefix+fmt.Sprintf(format, v...), false)
	os.Exit(1)
}

func (l *trackerLogger) Panic(format string, v ...interface{}) {
	l.Output(4, "[FATAL]: "+l.prefix+fmt.Sprintf(format, v...), false)
	panic(l.prefix + fmt.Sprintf(format, v...))
}
