// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package mmio

import (
	"fmt"
	"strconv"
	"syscall"
)

// Show returns the named field's value as a base 10 string. An unknown or
// unpublished name is EINVAL; a field without read permission is EPERM.
func (b *Bank) Show(name string) (string, error) {
	f := b.Field(name)
	if f == nil {
		return "", fmt.Errorf("%s.%s: %w", b.Name, name, syscall.EINVAL)
	}
	if f.Perm&ReadPerm == 0 {
		return "", fmt.Errorf("%s.%s: %w", b.Name, name, syscall.EPERM)
	}
	return strconv.FormatUint(uint64(b.Get(f)), 10), nil
}

// Store parses a base 10 value and sets the named field. At most one
// trailing white space character is accepted after the digits; any other
// remainder suggests a truncated or garbled write and is EINVAL.
func (b *Bank) Store(name, s string) error {
	f := b.Field(name)
	if f == nil {
		return fmt.Errorf("%s.%s: %w", b.Name, name, syscall.EINVAL)
	}
	if f.Perm&WritePerm == 0 {
		return fmt.Errorf("%s.%s: %w", b.Name, name, syscall.EPERM)
	}
	value, err := parseStore(s)
	if err != nil {
		return fmt.Errorf("%s.%s: %q: %w", b.Name, name, s, err)
	}
	return b.Set(f, value)
}

func parseStore(s string) (uint32, error) {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, syscall.EINVAL
	}
	switch rest := s[n:]; {
	case len(rest) == 0:
	case len(rest) == 1 && isSpace(rest[0]):
	default:
		return 0, syscall.EINVAL
	}
	v, err := strconv.ParseUint(s[:n], 10, 32)
	if err != nil {
		return 0, syscall.EOVERFLOW
	}
	return uint32(v), nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
