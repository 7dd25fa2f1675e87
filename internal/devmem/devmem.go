// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package devmem maps physical memory from /dev/mem for register access.
// Mappings are page aligned; Offset locates the requested address within
// Bytes. The caller owns the mapping and must Close it only after every
// bank borrowing Bytes has been unregistered.
package devmem

import (
	"fmt"
	"os"
	"syscall"
)

type Mem struct {
	b   []byte
	off uint
}

// Map maps size bytes of physical memory at addr from /dev/mem.
func Map(addr, size uint64) (*Mem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return MapFile(f, addr, size)
}

// MapFile maps size bytes at addr of an already opened device or file.
// addr is rounded down and the length up to the system page size.
func MapFile(f *os.File, addr, size uint64) (*Mem, error) {
	page := uint64(syscall.Getpagesize())
	off := addr % page
	length := int(off + size)
	if r := length % int(page); r != 0 {
		length += int(page) - r
	}
	b, err := syscall.Mmap(int(f.Fd()), int64(addr-off), length,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s 0x%x: %v",
			f.Name(), addr-off, err)
	}
	return &Mem{b, uint(off)}, nil
}

// Bytes returns the page aligned mapping containing the requested address.
func (m *Mem) Bytes() []byte { return m.b }

// Offset returns the requested address's offset within Bytes.
func (m *Mem) Offset() uint { return m.off }

func (m *Mem) Close() error { return syscall.Munmap(m.b) }
