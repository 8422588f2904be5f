// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// deltadump opens a rowset directory read-only and prints the mutations
// recorded in its delta files.
package main

import (
	"flag"
	"fmt"
	"log"

	"deltabase/engine/deltastore/deltafile"
	"deltabase/engine/deltastore/filesystem"
	"deltabase/engine/model"
	"deltabase/util"
)

const Version = "0.1"

var (
	path    = flag.String("path", "", "rowset directory")
	rowFlag = flag.Int64("row", -1, "dump only this row index (default: all rows)")
	maxTxID = flag.Uint64("txid", 0, "dump only mutations with txid <= this (0: all)")
	header  = flag.Bool("header", true, "print a per-file summary line")
)

func main() {
	flag.Parse()
	if *path == "" {
		log.Fatal("missing -path")
	}

	fs, err := filesystem.OpenFile(*path, true)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer fs.Close()

	fds, err := fs.List(filesystem.TypeDelta)
	if err != nil {
		log.Fatalf("list %s: %v", *path, err)
	}
	if len(fds) == 0 {
		fmt.Println("no delta files")
		return
	}

	for _, fd := range fds {
		if err := dumpFile(fs, fd); err != nil {
			log.Fatalf("dump %s: %v", fd, err)
		}
	}
}

func dumpFile(fs filesystem.FileSystem, fd filesystem.FileDesc) error {
	f, err := fs.Open(fd)
	if err != nil {
		return err
	}
	size, err := fs.Size(fd)
	if err != nil {
		f.Close()
		return err
	}
	r, err := deltafile.NewReader(f, size, fd, nil)
	if err != nil {
		f.Close()
		return err
	}
	defer r.Release()

	if *header {
		fmt.Printf("%s: %d bytes, %d entries, %d deletes\n", fd, size, r.EntriesLen(), r.DeletesLen())
	}

	var slice *util.Range
	if *rowFlag >= 0 {
		slice = model.RowRange(uint32(*rowFlag))
	}
	it := r.NewIterator(slice)
	defer it.Release()
	for ok := it.First(); ok; ok = it.Next() {
		rowIdx, txid, seq, err := model.ParseDeltaKey(it.Key())
		if err != nil {
			return err
		}
		if *maxTxID != 0 && txid > *maxTxID {
			continue
		}
		fmt.Printf("  @%d(row %d) seq %d: %s\n", txid, rowIdx, seq, model.RowChangeList(it.Value()))
	}
	return it.Error()
}
