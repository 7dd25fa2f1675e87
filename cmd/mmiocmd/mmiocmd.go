// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

package mmiocmd

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/goes/lang"
	"github.com/platinasystems/mmio"
	"github.com/platinasystems/mmio/internal/devmem"
	"github.com/platinasystems/mmio/internal/iomem"
	"github.com/platinasystems/parms"
)

type Command struct{}

func (Command) String() string { return "mmio" }

func (Command) Usage() string {
	return "mmio [[-r] | -w] ADDRESS [-m MASK] [-s SIZE] [-D DATA] [-R REGION]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "read/write masked fields of memory mapped registers",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	This command reads and writes masked fields of memory mapped
	registers through /dev/mem.
	  -r to read the field, default
	  -w to write the field
	     ADDRESS is a hex physical address
	  -m MASK selects the field's bits, default 0xffffffff;
	     the field value is normalized to the mask's lowest set bit
	  -s SIZE is the register access width: 1, 2 or 4 (default) bytes
	  -D DATA is the hex field value to write
	  -R REGION offsets ADDRESS from the start of the named
	     /proc/iomem region`,
	}
}

func (Command) Main(args ...string) (err error) {
	flag, args := flags.New(args, "-r", "-w")
	parm, args := parms.New(args, "-m", "-s", "-D", "-R")
	if len(args) == 0 {
		return fmt.Errorf("ADDRESS: missing")
	}
	if parm.ByName["-m"] == "" {
		parm.ByName["-m"] = "0xffffffff"
	}
	if parm.ByName["-s"] == "" {
		parm.ByName["-s"] = "4"
	}
	if parm.ByName["-D"] == "" {
		parm.ByName["-D"] = "0x0"
	}

	var a, m, size, d uint64

	if a, err = strconv.ParseUint(args[0], 0, 64); err != nil {
		return fmt.Errorf("%s: %v", args[0], err)
	}
	if m, err = strconv.ParseUint(parm.ByName["-m"], 0, 32); err != nil {
		return fmt.Errorf("%s: %v", parm.ByName["-m"], err)
	}
	if size, err = strconv.ParseUint(parm.ByName["-s"], 0, 8); err != nil {
		return fmt.Errorf("%s: %v", parm.ByName["-s"], err)
	}
	if d, err = strconv.ParseUint(parm.ByName["-D"], 0, 32); err != nil {
		return fmt.Errorf("%s: %v", parm.ByName["-D"], err)
	}
	if r := parm.ByName["-R"]; r != "" {
		start, _, rerr := iomem.Find(r)
		if rerr != nil {
			return rerr
		}
		a += start
	}

	mem, err := devmem.Map(a, size)
	if err != nil {
		return err
	}
	defer mem.Close()

	bank := &mmio.Bank{
		Name:   fmt.Sprintf("mmio.0x%x", a),
		Base:   mem.Bytes(),
		Offset: mem.Offset(),
		Size:   uint(size),
		Fields: []mmio.Field{{
			Name: "value",
			Mask: uint32(m),
			Perm: mmio.ReadWritePerm,
		}},
	}
	if err = bank.Check(); err != nil {
		return err
	}
	f := &bank.Fields[0]

	if flag.ByName["-w"] {
		return bank.Set(f, uint32(d))
	}
	fmt.Printf("0x%x: 0x%x\n", a, bank.Get(f))
	return nil
}
