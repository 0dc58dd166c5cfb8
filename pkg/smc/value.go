// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Kind identifies which field of a Value is populated
type Kind uint8

const (
	KindUnknown Kind = iota
	KindFlag
	KindFloat
	KindInt
	KindUint
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a decoded register payload. Exactly one field matching Kind is
// meaningful; Raw always carries the bytes the value was decoded from.
type Value struct {
	Kind  Kind
	Flag  bool
	Float float32
	Int   int64
	Uint  uint64
	Text  string
	Raw   []byte
}

// Constructors used by tests and fakes.

func FlagValue(v bool) Value { return Value{Kind: KindFlag, Flag: v} }

func FloatValue(v float32) Value { return Value{Kind: KindFloat, Float: v} }

func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

func UintValue(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

func TextValue(v string) Value { return Value{Kind: KindText, Text: v} }

func UnknownValue(b []byte) Value { return Value{Kind: KindUnknown, Raw: b} }

// Float byte order. Every controller this client has been run against
// reports `flt ` payloads in little-endian order.
var floatOrder binary.ByteOrder = binary.LittleEndian

// Well-known type tags
var (
	TypeFlag  = MustKey("flag")
	TypeFloat = MustKey("flt ")
	TypeText  = MustKey("ch8*")
	TypeHex   = MustKey("hex_")
	TypeUi8   = MustKey("ui8 ")
	TypeUi16  = MustKey("ui16")
	TypeUi32  = MustKey("ui32")
	TypeUi64  = MustKey("ui64")
	TypeSi8   = MustKey("si8 ")
	TypeSi16  = MustKey("si16")
	TypeSi32  = MustKey("si32")
	TypeSi64  = MustKey("si64")
)

// Decode interprets payload bytes according to a type tag. It never fails:
// unrecognized tags and unexpected lengths produce a KindUnknown value.
func Decode(data []byte, tag Key) Value {
	raw := append([]byte(nil), data...)
	v := decode(raw, tag)
	v.Raw = raw
	return v
}

func decode(data []byte, tag Key) Value {
	t := tag.Bytes()

	switch tag {
	case TypeFlag:
		return FlagValue(len(data) > 0 && data[0] != 0)
	case TypeFloat:
		if len(data) != 4 {
			return UnknownValue(data)
		}
		return FloatValue(math.Float32frombits(floatOrder.Uint32(data)))
	case TypeText:
		return TextValue(cString(data))
	case TypeHex:
		if u, ok := readUnsigned(data, len(data)); ok {
			return UintValue(u)
		}
		return UnknownValue(data)
	}

	switch {
	case t[0] == 'u' && t[1] == 'i':
		width, ok := intWidth(t[2], t[3])
		if !ok {
			return UnknownValue(data)
		}
		if u, ok := readUnsigned(data, width); ok {
			return UintValue(u)
		}
	case t[0] == 's' && t[1] == 'i':
		width, ok := intWidth(t[2], t[3])
		if !ok {
			return UnknownValue(data)
		}
		if i, ok := readSigned(data, width); ok {
			return IntValue(i)
		}
	case t[0] == 'f' && t[1] == 'p':
		i, iok := hexDigit(t[2])
		f, fok := hexDigit(t[3])
		if !iok || !fok || i+f != 16 || len(data) != 2 {
			return UnknownValue(data)
		}
		u := binary.BigEndian.Uint16(data)
		return FloatValue(float32(float64(u) / float64(uint32(1)<<f)))
	case t[0] == 's' && t[1] == 'p':
		i, iok := hexDigit(t[2])
		f, fok := hexDigit(t[3])
		if !iok || !fok || i+f != 15 || len(data) != 2 {
			return UnknownValue(data)
		}
		s := int16(binary.BigEndian.Uint16(data))
		return FloatValue(float32(float64(s) / float64(uint32(1)<<f)))
	}

	return UnknownValue(data)
}

// intWidth maps the two suffix characters of a ui/si tag to a byte width
func intWidth(a, b byte) (int, bool) {
	switch string([]byte{a, b}) {
	case "8 ":
		return 1, true
	case "16":
		return 2, true
	case "32":
		return 4, true
	case "64":
		return 8, true
	}
	return 0, false
}

func readUnsigned(data []byte, width int) (uint64, bool) {
	if len(data) != width {
		return 0, false
	}
	switch width {
	case 1:
		return uint64(data[0]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(data)), true
	case 4:
		return uint64(binary.BigEndian.Uint32(data)), true
	case 8:
		return binary.BigEndian.Uint64(data), true
	}
	return 0, false
}

func readSigned(data []byte, width int) (int64, bool) {
	if len(data) != width {
		return 0, false
	}
	switch width {
	case 1:
		return int64(int8(data[0])), true
	case 2:
		return int64(int16(binary.BigEndian.Uint16(data))), true
	case 4:
		return int64(int32(binary.BigEndian.Uint32(data))), true
	case 8:
		return int64(binary.BigEndian.Uint64(data)), true
	}
	return 0, false
}

func hexDigit(c byte) (uint, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint(c - '0'), true
	case c >= 'a' && c <= 'f':
		return uint(c-'a') + 10, true
	}
	return 0, false
}

// cString returns the text up to the first NUL, replacing invalid UTF-8
func cString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			data = data[:i]
			break
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}

	var sb strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
			data = data[invalidPrefix(data):]
			continue
		}
		sb.Write(data[:size])
		data = data[size:]
	}
	return sb.String()
}

// invalidPrefix returns the length of the longest prefix of b that begins a
// UTF-8 sequence without completing it. Each such prefix, or a lone invalid
// byte, becomes one replacement character.
func invalidPrefix(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}

	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}

// String renders the value for display
func (v Value) String() string {
	switch v.Kind {
	case KindFlag:
		return fmt.Sprintf("%t", v.Flag)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindText:
		return fmt.Sprintf("%q", v.Text)
	default:
		return fmt.Sprintf("% X", v.Raw)
	}
}

// Interface returns the populated field as a plain Go value
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindFlag:
		return v.Flag
	case KindFloat:
		return v.Float
	case KindInt:
		return v.Int
	case KindUint:
		return v.Uint
	case KindText:
		return v.Text
	default:
		return v.Raw
	}
}

// Equal compares kind and populated field. Raw is ignored except for
// unknown values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindFlag:
		return v.Flag == o.Flag
	case KindFloat:
		return v.Float == o.Float
	case KindInt:
		return v.Int == o.Int
	case KindUint:
		return v.Uint == o.Uint
	case KindText:
		return v.Text == o.Text
	default:
		return string(v.Raw) == string(o.Raw)
	}
}
