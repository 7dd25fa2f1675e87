// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package devmem

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestMapFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "devmem")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	page := syscall.Getpagesize()
	buf := make([]byte, 2*page)
	for i := range buf {
		buf[i] = byte(i)
	}
	name := filepath.Join(dir, "mem")
	if err = ioutil.WriteFile(name, buf, 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	addr := uint64(page + 6)
	m, err := MapFile(f, addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Offset() != 6 {
		t.Fatal("offset:", m.Offset())
	}
	if len(m.Bytes())%page != 0 {
		t.Fatal("length not page aligned:", len(m.Bytes()))
	}
	for i := uint(0); i < 4; i++ {
		if got := m.Bytes()[m.Offset()+i]; got != byte(6+i) {
			t.Fatal("byte", i, "is", got)
		}
	}

	m.Bytes()[m.Offset()] = 0xa5
	if err = m.Close(); err != nil {
		t.Fatal(err)
	}
	after, err := ioutil.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if after[page+6] != 0xa5 {
		t.Fatal("write didn't reach the file")
	}
}
