// Copyright (c) 2012, Suryandaru Triandana <syndtr@gmail.com>
// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memdb

import (
	"sync"

	"deltabase/engine/deltastore/comparer"
)

var (
	dbPool = &sync.Pool{
		New: func() interface{} {
			return newSkiplistDB()
		},
	}
)

func PutDB(db DB) {
	dbPool.Put(db)
}

// GetDB returns an initialized empty in-memory key/value DB.
func GetDB(cmp comparer.BasicComparer) DB {
	db := dbPool.Get().(*skiplistDB)
	db.cmp = cmp
	db.Reset()
	return db
}
