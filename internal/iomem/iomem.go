// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package iomem locates named physical memory regions by parsing
// /proc/iomem and anything else of similar structure.
package iomem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const ProcIomem = "/proc/iomem"

type Region struct {
	What   string
	Ranges []*Range
}

type Range struct {
	Start uint64
	End   uint64
}

type RegionMap map[string]Region

func (r Region) String() string {
	return fmt.Sprintf("%s: %v", r.What, r.Ranges)
}

func (r Range) String() string {
	return fmt.Sprintf("%x-%x", r.Start, r.End)
}

func ReaderToMap(r io.Reader) (RegionMap, error) {
	regionMap := make(RegionMap)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.SplitAfterN(scanner.Text(), ":", 2)
		if len(fields) != 2 {
			continue
		}
		var start, end uint64
		n, err := fmt.Sscanf(fields[0], "%x-%x", &start, &end)
		if err != nil || n != 2 {
			continue
		}

		key := strings.TrimSpace(fields[1])
		reg := regionMap[key]
		reg.What = key
		reg.Ranges = append(reg.Ranges, &Range{start, end})
		regionMap[key] = reg
	}
	return regionMap, scanner.Err()
}

func FileToMap(s string) (RegionMap, error) {
	f, err := os.OpenFile(s, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReaderToMap(f)
}

// Find returns the first range of the named /proc/iomem region.
func Find(name string) (start, end uint64, err error) {
	regionMap, err := FileToMap(ProcIomem)
	if err != nil {
		return
	}
	reg, found := regionMap[name]
	if !found || len(reg.Ranges) == 0 {
		err = fmt.Errorf("%s: not found in %s", name, ProcIomem)
		return
	}
	return reg.Ranges[0].Start, reg.Ranges[0].End, nil
}
