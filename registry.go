// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package mmio

import (
	"sync"

	"github.com/platinasystems/log"
)

// An Adapter binds a registered bank's fields to a management interface,
// e.g. mmiod's redis hash. Register never calls an Adapter while holding
// the bank's or the registry's lock.
type Adapter interface {
	PublishBank(*Bank) error
	PublishField(*Bank, *Field) error
	UnpublishField(*Bank, *Field)
	UnpublishBank(*Bank)
}

var registry struct {
	sync.RWMutex
	list []*Bank
}

// Register validates the bank, publishes its identity and each usable field
// through the adapter, then adds the bank to the registry. Fields with a
// zero mask are skipped with a diagnostic. Publication is all or nothing:
// if any field fails, the fields published so far and the bank itself are
// withdrawn and the error returned, leaving no trace.
func Register(b *Bank, a Adapter) error {
	if err := b.Check(); err != nil {
		return err
	}
	if err := a.PublishBank(b); err != nil {
		return err
	}
	b.index = make(map[string]int, len(b.Fields))
	for i := range b.Fields {
		f := &b.Fields[i]
		if f.Mask == 0 {
			log.Print("mmio: ", b.Name, ": skipping field ", i,
				" (", f.Name, "), mask is zero")
			continue
		}
		if err := a.PublishField(b, f); err != nil {
			log.Print("err", "mmio: ", b.Name, ".", f.Name,
				": publish: ", err)
			for j := i - 1; j >= 0; j-- {
				if b.Fields[j].Mask != 0 {
					a.UnpublishField(b, &b.Fields[j])
				}
			}
			a.UnpublishBank(b)
			b.index = nil
			return err
		}
		b.index[f.Name] = i
	}
	b.adapter = a
	registry.Lock()
	registry.list = append(registry.list, b)
	registry.Unlock()
	log.Printf("mmio: registered %s, offset 0x%x, size %d B",
		b.Name, b.Offset, b.Size)
	return nil
}

// Unregister withdraws the bank's fields and identity from its adapter and
// removes the bank from the registry. Unregistering a bank that was never
// registered is a no-op.
func Unregister(b *Bank) {
	if b.adapter == nil {
		return
	}
	for i := range b.Fields {
		if f := &b.Fields[i]; f.Mask != 0 {
			b.adapter.UnpublishField(b, f)
		}
	}
	b.adapter.UnpublishBank(b)
	b.adapter = nil
	b.index = nil
	registry.Lock()
	for i, x := range registry.list {
		if x == b {
			registry.list = append(registry.list[:i],
				registry.list[i+1:]...)
			break
		}
	}
	registry.Unlock()
}

// Banks returns a snapshot of the registered banks in registration order.
func Banks() []*Bank {
	registry.RLock()
	defer registry.RUnlock()
	return append([]*Bank{}, registry.list...)
}

// Find returns the registered bank with the given name, or nil.
func Find(name string) *Bank {
	registry.RLock()
	defer registry.RUnlock()
	for _, b := range registry.list {
		if b.Name == name {
			return b
		}
	}
	return nil
}
