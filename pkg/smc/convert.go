// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import "math"

// Converter maps a decoded value to a semantic type. The boolean is false
// when the value has the wrong kind or does not fit.
type Converter[T any] func(Value) (T, bool)

// ToValue accepts any value unchanged
func ToValue(v Value) (Value, bool) {
	return v, true
}

func ToCelsius(v Value) (Celsius, bool) {
	if v.Kind == KindFloat {
		return Celsius(v.Float), true
	}
	return 0, false
}

func ToRpm(v Value) (Rpm, bool) {
	switch v.Kind {
	case KindFloat:
		return Rpm(v.Float), true
	case KindUint:
		if v.Uint <= math.MaxUint16 {
			return Rpm(v.Uint), true
		}
	}
	return 0, false
}

// ToFanMode treats any nonzero value as forced
func ToFanMode(v Value) (FanMode, bool) {
	var forced bool
	switch v.Kind {
	case KindFlag:
		forced = v.Flag
	case KindInt:
		forced = v.Int != 0
	case KindUint:
		forced = v.Uint != 0
	case KindFloat:
		forced = v.Float != 0
	default:
		return FanModeAuto, false
	}
	if forced {
		return FanModeForced, true
	}
	return FanModeAuto, true
}

func ToBatteryStatus(v Value) (BatteryStatus, bool) {
	if v.Kind != KindUint {
		return BatteryStatus{}, false
	}
	return BatteryStatus{
		Charging:  v.Uint&batteryCharging != 0,
		ACPresent: v.Uint&batteryACPresent != 0,
		HealthOK:  v.Uint&batteryHealthOK != 0,
	}, true
}

func ToMilliAmpereHours(v Value) (MilliAmpereHours, bool) {
	if v.Kind == KindUint && v.Uint <= math.MaxUint32 {
		return MilliAmpereHours(v.Uint), true
	}
	return 0, false
}

func ToMilliAmpere(v Value) (MilliAmpere, bool) {
	if v.Kind == KindInt && v.Int >= math.MinInt32 && v.Int <= math.MaxInt32 {
		return MilliAmpere(v.Int), true
	}
	return 0, false
}

func ToWatt(v Value) (Watt, bool) {
	if v.Kind == KindFloat {
		return Watt(v.Float), true
	}
	return 0, false
}

// ToVolt accepts a float in volts or an unsigned reading in millivolts
func ToVolt(v Value) (Volt, bool) {
	switch v.Kind {
	case KindFloat:
		return Volt(v.Float), true
	case KindUint:
		if v.Uint <= math.MaxUint16 {
			return Volt(float32(v.Uint) / 1000), true
		}
	}
	return 0, false
}

func ToBool(v Value) (bool, bool) {
	if v.Kind == KindFlag {
		return v.Flag, true
	}
	return false, false
}

func ToUint8(v Value) (uint8, bool) {
	if v.Kind == KindUint && v.Uint <= math.MaxUint8 {
		return uint8(v.Uint), true
	}
	return 0, false
}

func ToUint32(v Value) (uint32, bool) {
	if v.Kind == KindUint && v.Uint <= math.MaxUint32 {
		return uint32(v.Uint), true
	}
	return 0, false
}

// Convert dispatches on the expected type of an operation. It is used by
// callers that handle operations generically, such as exporters.
func Convert(op Op, p Payload) (interface{}, error) {
	v := p.Value()
	var (
		out interface{}
		ok  bool
	)
	switch op.Expect {
	case ExpectCelsius:
		out, ok = ToCelsius(v)
	case ExpectRpm:
		out, ok = ToRpm(v)
	case ExpectFanMode:
		out, ok = ToFanMode(v)
	case ExpectBatteryStatus:
		out, ok = ToBatteryStatus(v)
	case ExpectMilliAmpereHours:
		out, ok = ToMilliAmpereHours(v)
	case ExpectMilliAmpere:
		out, ok = ToMilliAmpere(v)
	case ExpectWatt:
		out, ok = ToWatt(v)
	case ExpectVolt:
		out, ok = ToVolt(v)
	case ExpectBool:
		out, ok = ToBool(v)
	case ExpectUint8:
		out, ok = ToUint8(v)
	case ExpectUint32:
		out, ok = ToUint32(v)
	default:
		out, ok = v, true
	}
	if !ok {
		return nil, &DecodeError{Key: op.Key, Type: p.Info.Type, Want: op.Expect.String()}
	}
	return out, nil
}
