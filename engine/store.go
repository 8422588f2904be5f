// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"deltabase/engine/deltastore"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/deltastore/opt"
	"deltabase/engine/model"
)

// OpenDeltaTracker opens the rowset directory at path and the delta
// tracker over it.
//
// id: 		区分不同的tracker，例如在日志中等
// path: 	rowset目录
// schema: 	rowset列定义
// numRows: rowset行数（行号上界）
// o: 		其他选项
//
// The caller closes the tracker first, then the filesystem.
func OpenDeltaTracker(id uint64, path string, schema *model.Schema, numRows uint32, o *opt.Options) (*deltastore.Tracker, filesystem.FileSystem, error) {
	fs, err := filesystem.OpenFile(path, o.GetReadOnly())
	if err != nil {
		return nil, nil, err
	}
	t := deltastore.NewTracker(id, fs, schema, numRows, o)
	if err := t.Open(); err != nil {
		fs.Close()
		return nil, nil, err
	}
	return t, fs, nil
}
