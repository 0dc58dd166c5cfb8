// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"fmt"
	"strings"
)

// Key is a four character register identifier packed big-endian into a uint32.
// The same encoding is used for type tags.
type Key uint32

// KeySize is the only valid length of a key string
const KeySize = 4

// ParseKey builds a Key from a four byte string.
func ParseKey(s string) (Key, error) {
	if len(s) != KeySize {
		return 0, fmt.Errorf("%w: %q has %d bytes", ErrInvalidKeyFormat, s, len(s))
	}
	return Key(uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])), nil
}

// MustKey is like ParseKey but panics on malformed input. Intended for
// package-level key tables.
func MustKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(fmt.Sprintf("smc: %v", err))
	}
	return k
}

// Bytes returns the four key bytes in wire order.
func (k Key) Bytes() [4]byte {
	return [4]byte{byte(k >> 24), byte(k >> 16), byte(k >> 8), byte(k)}
}

// String returns the key as text. Non-printable bytes are rendered as '?'.
func (k Key) String() string {
	b := k.Bytes()
	var sb strings.Builder
	sb.Grow(KeySize)
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			sb.WriteByte('?')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// WithDigit returns a copy of k with the ASCII digit for n written at byte
// offset. Only single digits 0-9 are representable.
func (k Key) WithDigit(offset int, n int) (Key, error) {
	if offset < 0 || offset >= KeySize {
		return 0, fmt.Errorf("smc: digit offset %d out of range for key %s", offset, k)
	}
	if n < 0 || n > 9 {
		return 0, fmt.Errorf("%w: %d does not fit a single digit in %s", ErrIndexOutOfRange, n, k)
	}
	shift := uint((KeySize - 1 - offset) * 8)
	cleared := uint32(k) &^ (0xFF << shift)
	return Key(cleared | uint32('0'+n)<<shift), nil
}
