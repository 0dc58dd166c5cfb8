// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"testing"
)

// ============================================================
// Codec Literal Cases
// ============================================================

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		data     []byte
		expected Value
	}{
		{"flt one", "flt ", []byte{0x00, 0x00, 0x80, 0x3F}, FloatValue(1.0)},
		{"flt 42.5", "flt ", []byte{0x00, 0x00, 0x2A, 0x42}, FloatValue(42.5)},
		{"ui8 max", "ui8 ", []byte{0xFF}, UintValue(255)},
		{"ui16", "ui16", []byte{0x12, 0x34}, UintValue(0x1234)},
		{"ui32", "ui32", []byte{0x00, 0x00, 0x01, 0x00}, UintValue(256)},
		{"ui64", "ui64", []byte{0, 0, 0, 0, 0, 0, 0x01, 0x02}, UintValue(0x0102)},
		{"si8 minus one", "si8 ", []byte{0xFF}, IntValue(-1)},
		{"si16 negative", "si16", []byte{0xFF, 0x38}, IntValue(-200)},
		{"si32 negative", "si32", []byte{0xFF, 0xFF, 0xFF, 0xFE}, IntValue(-2)},
		{"si64 positive", "si64", []byte{0, 0, 0, 0, 0, 0, 0, 0x07}, IntValue(7)},
		{"sp78 minus one", "sp78", []byte{0xFF, 0x00}, FloatValue(-1.0)},
		{"sp78 positive", "sp78", []byte{0x2A, 0x80}, FloatValue(42.5)},
		{"spf0", "spf0", []byte{0x00, 0x05}, FloatValue(5)},
		{"fpe2", "fpe2", []byte{0x00, 0x0A}, FloatValue(2.5)},
		{"fp88", "fp88", []byte{0x01, 0x80}, FloatValue(1.5)},
		{"fp4c", "fp4c", []byte{0x10, 0x00}, FloatValue(1.0)},
		{"flag true", "flag", []byte{0x01}, FlagValue(true)},
		{"flag zero", "flag", []byte{0x00}, FlagValue(false)},
		{"flag empty", "flag", []byte{}, FlagValue(false)},
		{"hex_ one byte", "hex_", []byte{0xAB}, UintValue(0xAB)},
		{"hex_ two bytes", "hex_", []byte{0xAB, 0xCD}, UintValue(0xABCD)},
		{"ch8* terminated", "ch8*", []byte("abc\x00def"), TextValue("abc")},
		{"ch8* unterminated", "ch8*", []byte("abcd"), TextValue("abcd")},
		{"ch8* empty", "ch8*", []byte{}, TextValue("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.data, MustKey(tt.tag))
			if !got.Equal(tt.expected) {
				t.Errorf("Decode(%X, %q) = %s (%s), want %s (%s)",
					tt.data, tt.tag, got, got.Kind, tt.expected, tt.expected.Kind)
			}
		})
	}
}

func TestDecode_UnknownFallback(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		data []byte
	}{
		{"unrecognized tag", "{fds", []byte{1, 2, 3}},
		{"flt short", "flt ", []byte{0, 0, 0x80}},
		{"flt long", "flt ", []byte{0, 0, 0x80, 0x3F, 0}},
		{"ui16 three bytes", "ui16", []byte{1, 2, 3}},
		{"ui8 empty", "ui8 ", []byte{}},
		{"si32 two bytes", "si32", []byte{1, 2}},
		{"ui width unknown", "ui24", []byte{1, 2, 3}},
		{"fp wrong sum", "fp78", []byte{1, 2}},
		{"sp wrong sum", "sp88", []byte{1, 2}},
		{"fp non hex", "fpzz", []byte{1, 2}},
		{"fp wrong length", "fp88", []byte{1}},
		{"hex_ three bytes", "hex_", []byte{1, 2, 3}},
		{"hex_ empty", "hex_", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.data, MustKey(tt.tag))
			if got.Kind != KindUnknown {
				t.Fatalf("expected unknown, got %s (%s)", got, got.Kind)
			}
			if string(got.Raw) != string(tt.data) {
				t.Errorf("raw bytes not preserved: %X", got.Raw)
			}
		})
	}
}

func TestDecode_InvalidUTF8IsLossy(t *testing.T) {
	got := Decode([]byte{'o', 'k', 0xFF, 0x00, 'x'}, TypeText)
	if got.Kind != KindText {
		t.Fatalf("expected text, got %s", got.Kind)
	}
	if got.Text != "ok\uFFFD" {
		t.Errorf("got %q", got.Text)
	}
}

func TestDecode_InvalidUTF8ReplacementCount(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"two lone bytes", []byte{0xFF, 0xFF}, "\uFFFD\uFFFD"},
		{"stray continuations", []byte{'a', 0x80, 0x80, 'b'}, "a\uFFFD\uFFFDb"},
		{"truncated three byte", []byte{0xE2, 0x82, 'x'}, "\uFFFDx"},
		{"truncated then lone", []byte{0xE2, 0x82, 0xFF}, "\uFFFD\uFFFD"},
		{"surrogate lead", []byte{0xED, 0xA0, 0x80}, "\uFFFD\uFFFD\uFFFD"},
		{"truncated four byte at end", []byte{'z', 0xF0, 0x9F, 0x98}, "z\uFFFD"},
		{"valid between invalid", []byte{0xC3, 0xA9, 0xC3, 'e'}, "\u00E9\uFFFDe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.data, TypeText)
			if got.Text != tt.want {
				t.Errorf("Decode(%X) = %q, want %q", tt.data, got.Text, tt.want)
			}
		})
	}
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	data := []byte{1, 2, 3}
	v := Decode(data, MustKey("zzzz"))
	data[0] = 9
	if v.Raw[0] != 1 {
		t.Error("decoded value shares the caller's buffer")
	}
}

func TestDecode_Deterministic(t *testing.T) {
	data := []byte{0x2A, 0x80}
	a := Decode(data, MustKey("sp78"))
	b := Decode(data, MustKey("sp78"))
	if !a.Equal(b) {
		t.Errorf("decode not deterministic: %s vs %s", a, b)
	}
}

// ============================================================
// Converter Tests
// ============================================================

func TestConverters(t *testing.T) {
	if c, ok := ToCelsius(FloatValue(42.5)); !ok || c != 42.5 {
		t.Errorf("ToCelsius: %v %v", c, ok)
	}
	if _, ok := ToCelsius(UintValue(42)); ok {
		t.Error("ToCelsius accepted uint")
	}
	if r, ok := ToRpm(UintValue(1200)); !ok || r != 1200 {
		t.Errorf("ToRpm(uint): %v %v", r, ok)
	}
	if _, ok := ToRpm(UintValue(70000)); ok {
		t.Error("ToRpm accepted value above u16")
	}
	if m, ok := ToFanMode(UintValue(1)); !ok || m != FanModeForced {
		t.Errorf("ToFanMode(1): %v %v", m, ok)
	}
	if m, ok := ToFanMode(FlagValue(false)); !ok || m != FanModeAuto {
		t.Errorf("ToFanMode(false): %v %v", m, ok)
	}
	if _, ok := ToFanMode(TextValue("x")); ok {
		t.Error("ToFanMode accepted text")
	}
	if v, ok := ToVolt(UintValue(12450)); !ok || v != 12.45 {
		t.Errorf("ToVolt(mV): %v %v", v, ok)
	}
	if a, ok := ToMilliAmpere(IntValue(-1500)); !ok || a != -1500 {
		t.Errorf("ToMilliAmpere: %v %v", a, ok)
	}
	if _, ok := ToMilliAmpere(IntValue(1 << 40)); ok {
		t.Error("ToMilliAmpere accepted value beyond i32")
	}
	if _, ok := ToUint8(UintValue(256)); ok {
		t.Error("ToUint8 accepted 256")
	}
	s, ok := ToBatteryStatus(UintValue(0x43))
	if !ok || !s.Charging || !s.ACPresent || !s.HealthOK {
		t.Errorf("ToBatteryStatus(0x43): %+v", s)
	}
	s, _ = ToBatteryStatus(UintValue(0x02))
	if s.Charging || !s.ACPresent || s.HealthOK {
		t.Errorf("ToBatteryStatus(0x02): %+v", s)
	}
}

func TestConvert_DecodeError(t *testing.T) {
	p := Payload{
		Info: KeyInfo{Key: MustKey("TC0P"), Type: TypeUi8, Size: 1},
		Data: []byte{40},
	}
	_, err := Convert(OpCPUProximity, p)
	de, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("expected *DecodeError, got %T %v", err, err)
	}
	if de.Key != OpCPUProximity.Key || de.Type != TypeUi8 {
		t.Errorf("unexpected error fields %+v", de)
	}
}

// ============================================================
// Unit Tests
// ============================================================

func TestCelsius_Fahrenheit(t *testing.T) {
	tests := []struct {
		c Celsius
		f Fahrenheit
	}{
		{0, 32},
		{100, 212},
		{-40, -40},
	}
	for _, tt := range tests {
		if got := tt.c.Fahrenheit(); got != tt.f {
			t.Errorf("%v°C: got %v°F, want %v°F", tt.c, got, tt.f)
		}
	}
}

func TestFanSpeed_Percentage(t *testing.T) {
	f := FanSpeed{Actual: 3000, Min: 1000, Max: 5000}
	if p := f.Percentage(); p != 50 {
		t.Errorf("expected 50%%, got %v", p)
	}
	f.Actual = 500
	if p := f.Percentage(); p != 0 {
		t.Errorf("below min should clamp to 0, got %v", p)
	}
	th := FanSpeed{Min: 1200, Max: 6000}.Thresholds()
	if th != [4]Rpm{1200, 2800, 4400, 6000} {
		t.Errorf("unexpected thresholds %v", th)
	}
}

func TestBatteryDetail_Times(t *testing.T) {
	b := BatteryDetail{CurrentCapacity: 3000, FullCapacity: 6000, Amperage: -1500}
	if p := b.Percentage(); p != 50 {
		t.Errorf("expected 50%%, got %v", p)
	}
	d, ok := b.TimeRemaining()
	if !ok || d.Hours() != 2 {
		t.Errorf("remaining: %v %v", d, ok)
	}
	if _, ok := b.TimeUntilFull(); ok {
		t.Error("time until full defined while discharging")
	}

	b.Amperage = 3000
	d, ok = b.TimeUntilFull()
	if !ok || d.Hours() != 1 {
		t.Errorf("until full: %v %v", d, ok)
	}
	if _, ok := b.TimeRemaining(); ok {
		t.Error("time remaining defined while charging")
	}
}

func TestLevel(t *testing.T) {
	if n := Level(Celsius(70), CelsiusThresholds()); n != 2 {
		t.Errorf("70°C level: got %d, want 2", n)
	}
	if n := Level(Watt(10), WattThresholds()); n != 0 {
		t.Errorf("10W level: got %d, want 0", n)
	}
}
