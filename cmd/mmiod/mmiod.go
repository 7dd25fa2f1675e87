// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mmiod publishes the fields of registered mmio banks to the
// machine's redis hash and routes hset writes back through the masked
// access engine.
package mmiod

import (
	"fmt"
	"net/rpc"
	"strings"
	"sync"
	"time"

	"github.com/platinasystems/atsock"
	"github.com/platinasystems/goes/cmd"
	"github.com/platinasystems/goes/lang"
	"github.com/platinasystems/log"
	"github.com/platinasystems/mmio"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"github.com/platinasystems/redis/rpc/args"
	"github.com/platinasystems/redis/rpc/reply"
)

const Name = "mmiod"

var PollInterval = 5 * time.Second

// Machines list their register banks here, usually from the Command's
// Init hook, before the daemon is started. Each bank's fields publish as
// "BANK.FIELD" in the machine's default hash.
var Banks []*mmio.Bank

type Command struct {
	Info
	Init func()
	init sync.Once
}

type Info struct {
	mutex sync.Mutex
	rpc   *atsock.RpcServer
	pub   *publisher.Publisher
	stop  chan struct{}
	last  map[string]string
}

func (*Command) String() string { return Name }

func (*Command) Usage() string { return Name }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "mmio register field daemon",
	}
}

func (*Command) Kind() cmd.Kind { return cmd.Daemon }

func (c *Command) Main(...string) error {
	if c.Init != nil {
		c.init.Do(c.Init)
	}

	err := redis.IsReady()
	if err != nil {
		return err
	}

	c.stop = make(chan struct{})
	c.last = make(map[string]string)

	if c.pub, err = publisher.New(); err != nil {
		return err
	}
	defer c.pub.Close()

	if c.rpc, err = atsock.NewRpcServer(Name); err != nil {
		return err
	}
	defer c.rpc.Close()

	rpc.Register(&c.Info)

	for i, b := range Banks {
		if err = mmio.Register(b, c); err != nil {
			for j := i - 1; j >= 0; j-- {
				mmio.Unregister(Banks[j])
			}
			return err
		}
	}
	defer func() {
		for _, b := range Banks {
			mmio.Unregister(b)
		}
	}()

	t := time.NewTicker(PollInterval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return nil
		case <-t.C:
			c.update()
		}
	}
}

func (c *Command) Close() error {
	close(c.stop)
	return nil
}

// update republishes any readable field whose value changed since the
// last poll.
func (c *Command) update() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, b := range mmio.Banks() {
		for i := range b.Fields {
			f := &b.Fields[i]
			v, err := b.Show(f.Name)
			if err != nil {
				continue
			}
			k := b.Name + "." + f.Name
			if v != c.last[k] {
				c.pub.Print(k, ": ", v)
				c.last[k] = v
			}
		}
	}
}

// Command is the mmio.Adapter bound to the machine's redis hash; redisd
// routes hset of an assigned bank prefix to Info's rpc.

func (c *Command) PublishBank(b *mmio.Bank) error {
	return redis.Assign(redis.DefaultHash+":"+b.Name+".", Name, "Info")
}

func (c *Command) PublishField(b *mmio.Bank, f *mmio.Field) error {
	if f.Perm&mmio.ReadPerm == 0 {
		// write-only fields have no published value
		return nil
	}
	_, err := c.pub.Print(b.Name+"."+f.Name, ": ", b.Get(f))
	return err
}

func (c *Command) UnpublishField(b *mmio.Bank, f *mmio.Field) {
	c.pub.Print("delete: ", b.Name+"."+f.Name)
}

func (c *Command) UnpublishBank(b *mmio.Bank) {
	err := redis.Unassign(redis.DefaultHash + ":" + b.Name + ".")
	if err != nil {
		log.Print("err", Name, ": unassign ", b.Name, ": ", err)
	}
}

func (i *Info) Hset(a args.Hset, r *reply.Hset) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	for _, b := range mmio.Banks() {
		if !strings.HasPrefix(a.Field, b.Name+".") {
			continue
		}
		name := a.Field[len(b.Name)+1:]
		if b.Field(name) == nil {
			continue
		}
		err := b.Store(name, string(a.Value))
		if err != nil {
			return err
		}
		if v, serr := b.Show(name); serr == nil {
			i.pub.Print(a.Field, ": ", v)
			i.last[a.Field] = v
		}
		*r = 1
		return nil
	}
	return fmt.Errorf("can't set %s", a.Field)
}
