// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mmio provides named, masked bit-field access to memory mapped i/o
// registers. A Bank describes one register of 1, 2, or 4 bytes within a
// borrowed mapping; each Field names a masked run of bits within that
// register. Registered banks publish their fields through an Adapter, such
// as the redis hash served by mmiod, so that a management interface may get
// and set fields by name.
package mmio

import (
	"fmt"
	"math/bits"
	"sync"
	"syscall"
	"unsafe"
)

const (
	ReadPerm Perm = 1 << iota
	WritePerm
)

const ReadWritePerm = ReadPerm | WritePerm

type Perm uint

// A Field selects a masked run of bits within its bank's register. The
// lowest set bit of Mask positions the field. A Field with a zero Mask is
// inert; Register skips it and it is never reachable by name.
type Field struct {
	Name string
	Mask uint32
	Perm Perm
}

func (f *Field) shift() uint { return uint(bits.TrailingZeros32(f.Mask)) }

// A Bank describes a single register of Size bytes at Offset within Base.
// Base is borrowed from whatever mapped the device memory, usually
// internal/devmem; the bank never unmaps it and the mapping must outlive
// the bank's registration. All field access is serialized by rwsem so that
// sibling fields of the one register can't tear each other's
// read-modify-write.
type Bank struct {
	Name   string
	Base   []byte
	Offset uint
	Size   uint
	Fields []Field

	rwsem   sync.RWMutex
	index   map[string]int
	adapter Adapter
}

// Check validates the bank description: a non-nil base, at least one field,
// a 1, 2, or 4 byte size, a register that lies within the mapping, and an
// effective address aligned to the register size.
func (b *Bank) Check() error {
	switch {
	case b.Base == nil:
		return fmt.Errorf("%s: nil base: %w", b.Name, syscall.EINVAL)
	case len(b.Fields) == 0:
		return fmt.Errorf("%s: no fields: %w", b.Name, syscall.EINVAL)
	case b.Size != 1 && b.Size != 2 && b.Size != 4:
		return fmt.Errorf("%s: size %d: %w", b.Name, b.Size, syscall.EINVAL)
	case uint(len(b.Base)) < b.Size || b.Offset > uint(len(b.Base))-b.Size:
		return fmt.Errorf("%s: offset 0x%x outside %d byte mapping: %w",
			b.Name, b.Offset, len(b.Base), syscall.EINVAL)
	}
	addr := uintptr(unsafe.Pointer(&b.Base[b.Offset]))
	if addr&uintptr(b.Size-1) != 0 {
		return fmt.Errorf("%s: 0x%x: misaligned %d byte register: %w",
			b.Name, addr, b.Size, syscall.EINVAL)
	}
	return nil
}

// Get returns the field's value normalized to bit 0, through a single raw
// read of the bank's register under the shared lock. Get is mechanism, not
// policy: read permission is enforced at the Show/Store boundary.
func (b *Bank) Get(f *Field) uint32 {
	b.rwsem.RLock()
	reg := b.readReg()
	b.rwsem.RUnlock()
	return (reg & f.Mask) >> f.shift()
}

// Set replaces the field's bits with value through a read-modify-write of
// the bank's register, leaving sibling fields unchanged. The exclusive lock
// covers the whole sequence. A value too wide for the field returns
// EOVERFLOW with the register untouched. Zero is always representable.
func (b *Bank) Set(f *Field, value uint32) error {
	b.rwsem.Lock()
	defer b.rwsem.Unlock()
	reg := b.readReg()
	// shift in 64-bits so a value for a high field can't silently wrap
	v := uint64(value)
	if v != 0 {
		v <<= f.shift()
	}
	if v&uint64(f.Mask) != v {
		return fmt.Errorf("%s.%s: 0x%x: %w",
			b.Name, f.Name, value, syscall.EOVERFLOW)
	}
	b.writeReg(reg&^f.Mask | uint32(v))
	return nil
}

// Field returns the named field of a registered bank, or nil. Zero mask
// fields aren't indexed, so they are never found.
func (b *Bank) Field(name string) *Field {
	if i, found := b.index[name]; found {
		return &b.Fields[i]
	}
	return nil
}

func (b *Bank) readReg() uint32 {
	p := unsafe.Pointer(&b.Base[b.Offset])
	switch b.Size {
	case 2:
		return uint32(*(*uint16)(p))
	case 4:
		return *(*uint32)(p)
	default:
		return uint32(*(*uint8)(p))
	}
}

func (b *Bank) writeReg(reg uint32) {
	p := unsafe.Pointer(&b.Base[b.Offset])
	switch b.Size {
	case 2:
		*(*uint16)(p) = uint16(reg)
	case 4:
		*(*uint32)(p) = reg
	default:
		*(*uint8)(p) = uint8(reg)
	}
}
