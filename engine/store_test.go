// Copyright (c) 2017, JD FBASE Team <fbase@jd.com>
// All rights reserved.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"testing"

	"deltabase/engine/deltastore/opt"
	"deltabase/engine/errors"
	"deltabase/engine/model"
)

func testSchema() *model.Schema {
	return model.NewSchema(
		model.ColumnSchema{Name: "id", Type: model.ColTypeUint32},
		model.ColumnSchema{Name: "val", Type: model.ColTypeBytes},
	)
}

func TestOpenDeltaTracker(t *testing.T) {
	dir := t.TempDir()

	tr, fs, err := OpenDeltaTracker(1, dir, testSchema(), 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	change := model.NewUpdateChange(model.ColumnUpdate{ColIdx: 1, Value: []byte("hello")})
	if err := tr.Update(1, 0, change); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen read-only.
	o := &opt.Options{ReadOnly: true}
	tr, fs, err = OpenDeltaTracker(1, dir, testSchema(), 100, o)
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()
	defer tr.Close()

	if n := tr.Stats().DeltaFiles; n != 1 {
		t.Fatalf("delta files = %d, want 1", n)
	}
	deleted, err := tr.IsRowDeleted(0)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("row 0 unexpectedly deleted")
	}
	if err := tr.Update(2, 0, change); errors.Cause(err) != errors.ErrReadOnly {
		t.Fatalf("update on read-only tracker: err = %v, want ErrReadOnly", err)
	}
	if _, err := tr.Flush(); errors.Cause(err) != errors.ErrReadOnly {
		t.Fatalf("flush on read-only tracker: err = %v, want ErrReadOnly", err)
	}
}

func TestOpenDeltaTrackerLocked(t *testing.T) {
	dir := t.TempDir()
	tr, fs, err := OpenDeltaTracker(1, dir, testSchema(), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()
	defer tr.Close()

	// A second open on the same directory must fail on the file lock.
	if _, _, err := OpenDeltaTracker(2, dir, testSchema(), 10, nil); err == nil {
		t.Fatal("second open succeeded on a locked dir")
	}
}
