// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package mmio

import (
	"errors"
	"reflect"
	"syscall"
	"testing"
)

// fakeAdapter records publications like mmiod would make to redis.
type fakeAdapter struct {
	log       []string
	failField string
}

func (a *fakeAdapter) PublishBank(b *Bank) error {
	a.log = append(a.log, "+"+b.Name)
	return nil
}

func (a *fakeAdapter) PublishField(b *Bank, f *Field) error {
	if f.Name == a.failField {
		return errors.New(f.Name + ": no space left on device")
	}
	a.log = append(a.log, "+"+b.Name+"."+f.Name)
	return nil
}

func (a *fakeAdapter) UnpublishField(b *Bank, f *Field) {
	a.log = append(a.log, "-"+b.Name+"."+f.Name)
}

func (a *fakeAdapter) UnpublishBank(b *Bank) {
	a.log = append(a.log, "-"+b.Name)
}

func testBank(name string) *Bank {
	return &Bank{
		Name: name,
		Base: wordBuf(),
		Size: 4,
		Fields: []Field{
			{Name: "enable", Mask: 0x01, Perm: ReadWritePerm},
			{Name: "mode", Mask: 0x06, Perm: ReadWritePerm},
			{Name: "unused", Mask: 0, Perm: ReadWritePerm},
			{Name: "status", Mask: 0xf0, Perm: ReadPerm},
		},
	}
}

func TestRegisterLifecycle(t *testing.T) {
	a := new(fakeAdapter)
	b := testBank("dev")
	if err := Register(b, a); err != nil {
		t.Fatal(err)
	}
	defer Unregister(b)
	want := []string{"+dev", "+dev.enable", "+dev.mode", "+dev.status"}
	if !reflect.DeepEqual(a.log, want) {
		t.Fatal("published:", a.log)
	}
	if Find("dev") != b {
		t.Fatal("not found in registry")
	}
	if got := Banks(); len(got) != 1 || got[0] != b {
		t.Fatal("registry:", got)
	}
	// zero mask field was skipped, not indexed
	if b.Field("unused") != nil {
		t.Fatal("zero mask field is reachable")
	}
	if err := b.Store("enable", "1"); err != nil {
		t.Fatal(err)
	}
	if s, err := b.Show("enable"); err != nil || s != "1" {
		t.Fatal(s, err)
	}

	Unregister(b)
	want = append(want,
		"-dev.enable", "-dev.mode", "-dev.status", "-dev")
	if !reflect.DeepEqual(a.log, want) {
		t.Fatal("unpublished:", a.log)
	}
	if Find("dev") != nil || len(Banks()) != 0 {
		t.Fatal("still registered")
	}
	if _, err := b.Show("enable"); !errors.Is(err, syscall.EINVAL) {
		t.Fatal("want EINVAL after unregister, got", err)
	}
	if err := b.Store("enable", "0"); !errors.Is(err, syscall.EINVAL) {
		t.Fatal("want EINVAL after unregister, got", err)
	}
}

func TestRegisterRollback(t *testing.T) {
	a := &fakeAdapter{failField: "status"}
	b := testBank("dev")
	err := Register(b, a)
	if err == nil {
		Unregister(b)
		t.Fatal("registration succeeded")
	}
	want := []string{
		"+dev", "+dev.enable", "+dev.mode",
		"-dev.mode", "-dev.enable", "-dev",
	}
	if !reflect.DeepEqual(a.log, want) {
		t.Fatal("rollback:", a.log)
	}
	if len(Banks()) != 0 {
		t.Fatal("partially registered bank in registry")
	}
	if b.Field("enable") != nil {
		t.Fatal("failed registration left index behind")
	}
}

func TestRegisterInvalid(t *testing.T) {
	a := new(fakeAdapter)
	b := testBank("dev")
	b.Size = 3
	if err := Register(b, a); !errors.Is(err, syscall.EINVAL) {
		t.Fatal("want EINVAL, got", err)
	}
	if len(a.log) != 0 {
		t.Fatal("adapter called before validation:", a.log)
	}
}

func TestUnregisterUnregistered(t *testing.T) {
	Unregister(testBank("dev")) // no-op
	if len(Banks()) != 0 {
		t.Fatal("registry not empty")
	}
}

func TestRegisterSameNameBanks(t *testing.T) {
	a := new(fakeAdapter)
	b1, b2 := testBank("twin"), testBank("twin")
	if err := Register(b1, a); err != nil {
		t.Fatal(err)
	}
	if err := Register(b2, a); err != nil {
		t.Fatal(err)
	}
	if got := Banks(); len(got) != 2 {
		t.Fatal("registry:", got)
	}
	Unregister(b1)
	if got := Banks(); len(got) != 1 || got[0] != b2 {
		t.Fatal("wrong bank removed:", got)
	}
	Unregister(b2)
}
