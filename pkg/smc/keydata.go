// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"encoding/binary"
	"fmt"
)

// Command selectors carried in KeyData.Command
const (
	CmdReadBytes   = 5
	CmdReadByIndex = 8
	CmdReadKeyInfo = 9
)

// Layout limits
const (
	PayloadSize = 32
	KeyDataSize = 80 // C layout of the kernel structure, including padding
)

// ResultUnknownKey is the KeyData.Result value for a missing key
const ResultUnknownKey = 132

// Field offsets in the C layout
const (
	offKey      = 0
	offVersion  = 4  // major, minor, build, reserved u8; release u16
	offLimit    = 12 // version u16, length u16, cpu/gpu/mem limit u32
	offInfoSize = 28
	offInfoType = 32
	offInfoAttr = 36
	offResult   = 40
	offStatus   = 41
	offCommand  = 42
	offIndex    = 44
	offBytes    = 48
)

// KeyDataVersion mirrors the version sub-structure
type KeyDataVersion struct {
	Major    uint8
	Minor    uint8
	Build    uint8
	Reserved uint8
	Release  uint16
}

// KeyDataLimit mirrors the power-limit sub-structure
type KeyDataLimit struct {
	Version  uint16
	Length   uint16
	CPULimit uint32
	GPULimit uint32
	MemLimit uint32
}

// KeyInfo is the metadata returned by the key-info phase
type KeyInfo struct {
	Key        Key
	Type       Key
	Size       uint32
	Attributes uint8
}

func (i KeyInfo) String() string {
	return fmt.Sprintf("%s [%s] size=%d attr=0x%02X", i.Key, i.Type, i.Size, i.Attributes)
}

// KeyData is the fixed request/response structure exchanged with the
// controller. Both read phases reuse it; only Command and Info.Size change.
type KeyData struct {
	Key     Key
	Version KeyDataVersion
	Limit   KeyDataLimit
	Info    KeyInfo // Info.Key is not part of the layout
	Result  uint8
	Status  uint8
	Command uint8
	Index   uint32
	Bytes   [PayloadSize]byte
}

// hostOrder is the byte order of the integer fields in the C layout. The
// structure is passed to the kernel as raw memory on little-endian hosts.
var hostOrder = binary.LittleEndian

// MarshalBinary encodes the structure in its C layout
func (d *KeyData) MarshalBinary() ([]byte, error) {
	buf := make([]byte, KeyDataSize)
	hostOrder.PutUint32(buf[offKey:], uint32(d.Key))

	buf[offVersion] = d.Version.Major
	buf[offVersion+1] = d.Version.Minor
	buf[offVersion+2] = d.Version.Build
	buf[offVersion+3] = d.Version.Reserved
	hostOrder.PutUint16(buf[offVersion+4:], d.Version.Release)

	hostOrder.PutUint16(buf[offLimit:], d.Limit.Version)
	hostOrder.PutUint16(buf[offLimit+2:], d.Limit.Length)
	hostOrder.PutUint32(buf[offLimit+4:], d.Limit.CPULimit)
	hostOrder.PutUint32(buf[offLimit+8:], d.Limit.GPULimit)
	hostOrder.PutUint32(buf[offLimit+12:], d.Limit.MemLimit)

	hostOrder.PutUint32(buf[offInfoSize:], d.Info.Size)
	hostOrder.PutUint32(buf[offInfoType:], uint32(d.Info.Type))
	buf[offInfoAttr] = d.Info.Attributes

	buf[offResult] = d.Result
	buf[offStatus] = d.Status
	buf[offCommand] = d.Command
	hostOrder.PutUint32(buf[offIndex:], d.Index)
	copy(buf[offBytes:], d.Bytes[:])
	return buf, nil
}

// UnmarshalBinary decodes a C layout buffer. Short buffers are rejected.
func (d *KeyData) UnmarshalBinary(buf []byte) error {
	if len(buf) < KeyDataSize {
		return fmt.Errorf("smc: short key data: %d bytes (need %d)", len(buf), KeyDataSize)
	}
	d.Key = Key(hostOrder.Uint32(buf[offKey:]))

	d.Version = KeyDataVersion{
		Major:    buf[offVersion],
		Minor:    buf[offVersion+1],
		Build:    buf[offVersion+2],
		Reserved: buf[offVersion+3],
		Release:  hostOrder.Uint16(buf[offVersion+4:]),
	}
	d.Limit = KeyDataLimit{
		Version:  hostOrder.Uint16(buf[offLimit:]),
		Length:   hostOrder.Uint16(buf[offLimit+2:]),
		CPULimit: hostOrder.Uint32(buf[offLimit+4:]),
		GPULimit: hostOrder.Uint32(buf[offLimit+8:]),
		MemLimit: hostOrder.Uint32(buf[offLimit+12:]),
	}
	d.Info = KeyInfo{
		Key:        d.Key,
		Size:       hostOrder.Uint32(buf[offInfoSize:]),
		Type:       Key(hostOrder.Uint32(buf[offInfoType:])),
		Attributes: buf[offInfoAttr],
	}
	d.Result = buf[offResult]
	d.Status = buf[offStatus]
	d.Command = buf[offCommand]
	d.Index = hostOrder.Uint32(buf[offIndex:])
	copy(d.Bytes[:], buf[offBytes:offBytes+PayloadSize])
	return nil
}
