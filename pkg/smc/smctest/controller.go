// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package smctest provides an in-memory controller for tests and demos.
package smctest

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

// ErrClosed is returned by Call after Close
var ErrClosed = errors.New("smctest: controller closed")

// Entry is one register of the fake controller
type Entry struct {
	Type smc.Key
	Data []byte
	// Size overrides the reported data size when nonzero
	Size uint32
}

// Call is one recorded request
type Call struct {
	Command uint8
	Key     smc.Key
	Index   uint32
	Size    uint32
}

// Controller implements smc.Caller against an in-memory key table.
// Keys keep insertion order for by-index lookups. The number of keys is
// served as `#KEY` unless that key is set explicitly.
type Controller struct {
	mu      sync.Mutex
	order   []smc.Key
	entries map[smc.Key]Entry
	calls   []Call
	closed  bool

	// Status, when nonzero, is returned by every call
	Status smc.Status
	// KeyStatus returns a status for calls addressing one key
	KeyStatus map[smc.Key]smc.Status
}

// New returns an empty controller
func New() *Controller {
	return &Controller{
		entries:   make(map[smc.Key]Entry),
		KeyStatus: make(map[smc.Key]smc.Status),
	}
}

// Set stores a register with an explicit type tag
func (c *Controller) Set(key, typ string, data []byte) *Controller {
	return c.SetEntry(key, Entry{Type: smc.MustKey(typ), Data: data})
}

// SetEntry stores a register
func (c *Controller) SetEntry(key string, e Entry) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := smc.MustKey(key)
	if _, ok := c.entries[k]; !ok {
		c.order = append(c.order, k)
	}
	c.entries[k] = e
	return c
}

// SetFloat stores a `flt ` register
func (c *Controller) SetFloat(key string, v float32) *Controller {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return c.Set(key, "flt ", b)
}

// SetUint stores a big-endian unsigned register of 1, 2, 4 or 8 bytes
func (c *Controller) SetUint(key string, width int, v uint64) *Controller {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	tags := map[int]string{1: "ui8 ", 2: "ui16", 4: "ui32", 8: "ui64"}
	return c.Set(key, tags[width], b[8-width:])
}

// SetInt stores a big-endian signed register of 1, 2, 4 or 8 bytes
func (c *Controller) SetInt(key string, width int, v int64) *Controller {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	tags := map[int]string{1: "si8 ", 2: "si16", 4: "si32", 8: "si64"}
	return c.Set(key, tags[width], b[8-width:])
}

// SetFlag stores a `flag` register
func (c *Controller) SetFlag(key string, v bool) *Controller {
	b := byte(0)
	if v {
		b = 1
	}
	return c.Set(key, "flag", []byte{b})
}

// Delete removes a register
func (c *Controller) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := smc.MustKey(key)
	delete(c.entries, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Calls returns a copy of the recorded requests
func (c *Controller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallCount returns how many requests used a command selector
func (c *Controller) CallCount(command uint8) int {
	n := 0
	for _, call := range c.Calls() {
		if call.Command == command {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log
func (c *Controller) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Closed reports whether Close was called
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close marks the controller closed
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Controller) lookup(k smc.Key) (Entry, bool) {
	if e, ok := c.entries[k]; ok {
		return e, true
	}
	if k == smc.OpNumberOfKeys.Key {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(len(c.order)))
		return Entry{Type: smc.TypeUi32, Data: b}, true
	}
	return Entry{}, false
}

func fill(out *smc.KeyData, k smc.Key, e Entry) {
	out.Key = k
	out.Info.Type = e.Type
	out.Info.Size = uint32(len(e.Data))
	if e.Size != 0 {
		out.Info.Size = e.Size
	}
}

// Call implements smc.Caller
func (c *Controller) Call(req []byte, respSize int) ([]byte, smc.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0, ErrClosed
	}

	var in smc.KeyData
	if err := in.UnmarshalBinary(req); err != nil {
		return nil, 0, err
	}
	c.calls = append(c.calls, Call{Command: in.Command, Key: in.Key, Index: in.Index, Size: in.Info.Size})

	if c.Status != smc.StatusSuccess {
		return nil, c.Status, nil
	}
	if s, ok := c.KeyStatus[in.Key]; ok && in.Command != smc.CmdReadByIndex {
		return nil, s, nil
	}

	out := smc.KeyData{Command: in.Command}
	switch in.Command {
	case smc.CmdReadKeyInfo:
		if e, ok := c.lookup(in.Key); ok {
			fill(&out, in.Key, e)
		} else {
			out.Result = smc.ResultUnknownKey
		}
	case smc.CmdReadBytes:
		if e, ok := c.lookup(in.Key); ok {
			fill(&out, in.Key, e)
			copy(out.Bytes[:], e.Data)
		} else {
			out.Result = smc.ResultUnknownKey
		}
	case smc.CmdReadByIndex:
		if int(in.Index) < len(c.order) {
			k := c.order[in.Index]
			fill(&out, k, c.entries[k])
		} else {
			out.Result = smc.ResultUnknownKey
		}
	default:
		out.Result = 1
	}

	resp, err := out.MarshalBinary()
	if err != nil {
		return nil, 0, err
	}
	if respSize < len(resp) {
		resp = resp[:respSize]
	}
	return resp, smc.StatusSuccess, nil
}
