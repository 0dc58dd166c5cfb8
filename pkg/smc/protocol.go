// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import "fmt"

// Status is the kernel return code of one call
type Status uint32

const (
	StatusSuccess Status = 0
	// StatusNotPrivileged is sys_iokit | sub_iokit_common | 0x2c1
	StatusNotPrivileged Status = 0xE00002C1
)

// Caller is the call primitive of an open controller handle. Call sends one
// KeyData request and returns the response bytes with the call status.
// A non-nil error means the call could not be delivered at all.
//
// Implementations are not required to be safe for concurrent use.
type Caller interface {
	Call(req []byte, respSize int) ([]byte, Status, error)
	Close() error
}

// Payload is the result of a two-phase read
type Payload struct {
	Info KeyInfo
	Data []byte // first Info.Size bytes of the response buffer
}

// Value decodes the payload with its type tag
func (p Payload) Value() Value {
	return Decode(p.Data, p.Info.Type)
}

// call performs one request/response exchange and maps the status codes
func call(c Caller, in *KeyData) (*KeyData, error) {
	req, err := in.MarshalBinary()
	if err != nil {
		return nil, err
	}

	resp, status, err := c.Call(req, KeyDataSize)
	if err != nil {
		return nil, fmt.Errorf("smc: call %d: %w", in.Command, err)
	}

	out := &KeyData{}
	parsed := out.UnmarshalBinary(resp) == nil

	switch {
	case status == StatusNotPrivileged:
		return nil, ErrNotPrivileged
	case status != StatusSuccess:
		return nil, &ProtocolError{Code: status, Result: out.Result}
	case !parsed:
		return nil, fmt.Errorf("smc: short response: %d bytes", len(resp))
	case out.Result == ResultUnknownKey:
		return nil, ErrUnknownKey
	}
	return out, nil
}

// ReadKeyInfo runs the metadata phase for a key
func ReadKeyInfo(c Caller, key Key) (KeyInfo, error) {
	out, err := call(c, &KeyData{Key: key, Command: CmdReadKeyInfo})
	if err != nil {
		return KeyInfo{}, keyError(key, err)
	}
	info := out.Info
	info.Key = key
	return info, nil
}

// ReadKeyInfoByIndex runs the metadata phase for the key at a catalog index.
// The resolved key is taken from the response.
func ReadKeyInfoByIndex(c Caller, index uint32) (KeyInfo, error) {
	out, err := call(c, &KeyData{Command: CmdReadByIndex, Index: index})
	if err != nil {
		return KeyInfo{}, fmt.Errorf("index %d: %w", index, err)
	}
	return out.Info, nil
}

// ReadKey runs both phases for a key. The data phase is skipped when the
// reported size does not fit the payload buffer.
func ReadKey(c Caller, key Key) (Payload, error) {
	in := &KeyData{Key: key, Command: CmdReadKeyInfo}
	out, err := call(c, in)
	if err != nil {
		return Payload{}, keyError(key, err)
	}

	info := out.Info
	info.Key = key
	if info.Size > PayloadSize {
		return Payload{Info: info}, fmt.Errorf("%w: %s reports %d bytes", ErrOversizedPayload, key, info.Size)
	}

	in.Info.Size = info.Size
	in.Command = CmdReadBytes
	out, err = call(c, in)
	if err != nil {
		return Payload{Info: info}, keyError(key, err)
	}

	data := make([]byte, info.Size)
	copy(data, out.Bytes[:info.Size])
	return Payload{Info: info, Data: data}, nil
}

func keyError(key Key, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}
