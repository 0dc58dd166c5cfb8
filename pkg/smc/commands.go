// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import "fmt"

// Expect names the semantic type an operation's value is converted to
type Expect uint8

const (
	ExpectValue Expect = iota
	ExpectCelsius
	ExpectRpm
	ExpectFanMode
	ExpectBatteryStatus
	ExpectMilliAmpereHours
	ExpectMilliAmpere
	ExpectWatt
	ExpectVolt
	ExpectBool
	ExpectUint8
	ExpectUint32
)

func (e Expect) String() string {
	switch e {
	case ExpectCelsius:
		return "celsius"
	case ExpectRpm:
		return "rpm"
	case ExpectFanMode:
		return "fan mode"
	case ExpectBatteryStatus:
		return "battery status"
	case ExpectMilliAmpereHours:
		return "mAh"
	case ExpectMilliAmpere:
		return "mA"
	case ExpectWatt:
		return "watt"
	case ExpectVolt:
		return "volt"
	case ExpectBool:
		return "bool"
	case ExpectUint8:
		return "u8"
	case ExpectUint32:
		return "u32"
	default:
		return "value"
	}
}

// Op is a resolved read operation: the key to read and what it decodes to
type Op struct {
	Name   string
	Key    Key
	Expect Expect
}

func (o Op) String() string {
	if o.Name == "" {
		return o.Key.String()
	}
	return fmt.Sprintf("%s (%s)", o.Name, o.Key)
}

// Template is a parameterized operation. At substitutes Base+n as a single
// ASCII digit at Offset of Key.
type Template struct {
	Name   string
	Key    Key
	Offset int
	Base   int
	Expect Expect
}

// At resolves the template for index n
func (t Template) At(n int) (Op, error) {
	key, err := t.Key.WithDigit(t.Offset, t.Base+n)
	if err != nil {
		return Op{}, err
	}
	return Op{Name: fmt.Sprintf("%s %d", t.Name, n), Key: key, Expect: t.Expect}, nil
}

// DynamicOp builds an untyped operation for an arbitrary key string
func DynamicOp(s string) (Op, error) {
	key, err := ParseKey(s)
	if err != nil {
		return Op{}, err
	}
	return Op{Key: key, Expect: ExpectValue}, nil
}

func fixed(name, key string, expect Expect) Op {
	return Op{Name: name, Key: MustKey(key), Expect: expect}
}

func template(name, key string, offset, base int, expect Expect) Template {
	return Template{Name: name, Key: MustKey(key), Offset: offset, Base: base, Expect: expect}
}

// General
var (
	OpNumberOfKeys = fixed("number of keys", "#KEY", ExpectUint32)
	OpNumberOfFans = fixed("number of fans", "FNum", ExpectUint8)
)

// Fans
var (
	FanActual  = template("fan actual speed", "F0Ac", 1, 0, ExpectRpm)
	FanMin     = template("fan min speed", "F0Mn", 1, 0, ExpectRpm)
	FanMax     = template("fan max speed", "F0Mx", 1, 0, ExpectRpm)
	FanTarget  = template("fan target speed", "F0Tg", 1, 0, ExpectRpm)
	FanSafe    = template("fan safe speed", "F0Sf", 1, 0, ExpectRpm)
	FanControl = template("fan mode", "F0Md", 1, 0, ExpectFanMode)
)

// Battery
var (
	OpNumberOfBatteries  = fixed("number of batteries", "BNum", ExpectUint8)
	OpBatteryPowered     = fixed("battery powered", "BATP", ExpectBool)
	OpBatteryInfo        = fixed("battery status", "BSIn", ExpectBatteryStatus)
	OpBatteryTempMax     = fixed("battery temperature max", "TB0T", ExpectCelsius)
	OpBatteryTemp1       = fixed("battery temperature 1", "TB1T", ExpectCelsius)
	OpBatteryTemp2       = fixed("battery temperature 2", "TB2T", ExpectCelsius)
	BatteryCycles        = template("battery cycle count", "B0CT", 1, 0, ExpectUint32)
	BatteryCurrentCharge = template("battery current capacity", "B0RM", 1, 0, ExpectMilliAmpereHours)
	BatteryFullCharge    = template("battery full capacity", "B0FC", 1, 0, ExpectMilliAmpereHours)
	BatteryAmperage      = template("battery amperage", "B0AC", 1, 0, ExpectMilliAmpere)
	BatteryVoltage       = template("battery voltage", "B0AV", 1, 0, ExpectVolt)
	BatteryPower         = template("battery power", "B0AP", 1, 0, ExpectWatt)
)

// CPU and GPU temperatures. Core temperatures are numbered from 1 in the key.
var (
	OpCPUProximity   = fixed("cpu proximity", "TC0P", ExpectCelsius)
	OpCPUDie         = fixed("cpu die", "TC0F", ExpectCelsius)
	OpCPUGraphics    = fixed("cpu graphics", "TCGC", ExpectCelsius)
	OpCPUSystemAgent = fixed("cpu system agent", "TCSA", ExpectCelsius)
	CPUCoreTemp      = template("cpu core", "TC0C", 2, 1, ExpectCelsius)
	OpGPUProximity   = fixed("gpu proximity", "TG0P", ExpectCelsius)
	OpGPUDie         = fixed("gpu die", "TGDD", ExpectCelsius)
)

// Other temperatures
var (
	OpMemoryBankProximity = fixed("memory bank proximity", "TM0P", ExpectCelsius)
	OpMainboardProximity  = fixed("mainboard proximity", "Tm0P", ExpectCelsius)
	OpPCHDie              = fixed("platform controller hub die", "TPCD", ExpectCelsius)
	OpAirport             = fixed("airport", "TW0P", ExpectCelsius)
	OpAirflowLeft         = fixed("airflow left", "TaLC", ExpectCelsius)
	OpAirflowRight        = fixed("airflow right", "TaRC", ExpectCelsius)
	OpThunderboltLeft     = fixed("thunderbolt left", "TTLD", ExpectCelsius)
	OpThunderboltRight    = fixed("thunderbolt right", "TTRD", ExpectCelsius)
	OpHeatpipe1           = fixed("heatpipe 1", "Th1H", ExpectCelsius)
	OpHeatpipe2           = fixed("heatpipe 2", "Th2H", ExpectCelsius)
	OpPalmRest1           = fixed("palm rest 1", "Ts0P", ExpectCelsius)
	OpPalmRest2           = fixed("palm rest 2", "Ts1P", ExpectCelsius)
)

// Power
var (
	OpCPUCorePower     = fixed("cpu core power", "PCPC", ExpectWatt)
	OpCPUDRAMPower     = fixed("cpu dram power", "PCPD", ExpectWatt)
	OpCPUGFXPower      = fixed("cpu gfx power", "PCPG", ExpectWatt)
	OpCPURailPower     = fixed("cpu rail power", "PC0R", ExpectWatt)
	OpCPUTotalPower    = fixed("cpu total power", "PCPT", ExpectWatt)
	OpGPURailPower     = fixed("gpu rail power", "PG0R", ExpectWatt)
	OpDCInPower        = fixed("dc in power", "PDTR", ExpectWatt)
	OpSystemTotalPower = fixed("system total power", "PSTR", ExpectWatt)
)

// Ops lists every fixed operation in registry order
func Ops() []Op {
	return []Op{
		OpNumberOfKeys, OpNumberOfFans,
		OpNumberOfBatteries, OpBatteryPowered, OpBatteryInfo,
		OpBatteryTempMax, OpBatteryTemp1, OpBatteryTemp2,
		OpCPUProximity, OpCPUDie, OpCPUGraphics, OpCPUSystemAgent,
		OpGPUProximity, OpGPUDie,
		OpMemoryBankProximity, OpMainboardProximity, OpPCHDie, OpAirport,
		OpAirflowLeft, OpAirflowRight, OpThunderboltLeft, OpThunderboltRight,
		OpHeatpipe1, OpHeatpipe2, OpPalmRest1, OpPalmRest2,
		OpCPUCorePower, OpCPUDRAMPower, OpCPUGFXPower, OpCPURailPower,
		OpCPUTotalPower, OpGPURailPower, OpDCInPower, OpSystemTotalPower,
	}
}

// Templates lists every parameterized operation
func Templates() []Template {
	return []Template{
		FanActual, FanMin, FanMax, FanTarget, FanSafe, FanControl,
		BatteryCycles, BatteryCurrentCharge, BatteryFullCharge,
		BatteryAmperage, BatteryVoltage, BatteryPower,
		CPUCoreTemp,
	}
}

// LookupOp finds a fixed operation by name or key string
func LookupOp(s string) (Op, bool) {
	for _, op := range Ops() {
		if op.Name == s || op.Key.String() == s {
			return op, true
		}
	}
	return Op{}, false
}
