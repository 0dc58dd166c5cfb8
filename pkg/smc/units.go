// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"math"
	"time"
)

// Celsius is a temperature in degrees Celsius
type Celsius float32

// Fahrenheit is a temperature in degrees Fahrenheit
type Fahrenheit float32

// Fahrenheit converts the temperature
func (c Celsius) Fahrenheit() Fahrenheit {
	return Fahrenheit(float32(c)*(9.0/5.0) + 32.0)
}

// CelsiusThresholds returns the warm/hot/very hot/critical boundaries
func CelsiusThresholds() [4]Celsius {
	return [4]Celsius{50, 68, 80, 90}
}

// Rpm is a fan speed in revolutions per minute
type Rpm float32

// Watt is electrical power
type Watt float32

// WattThresholds returns the package power boundaries used for display
func WattThresholds() [4]Watt {
	return [4]Watt{35, 50, 70, 85}
}

// Volt is electrical potential
type Volt float32

// MilliAmpere is a signed current; negative values mean discharge
type MilliAmpere int32

// MilliAmpereHours is a charge capacity
type MilliAmpereHours uint32

// FanMode is the fan control mode
type FanMode uint8

const (
	FanModeAuto FanMode = iota
	FanModeForced
)

func (m FanMode) String() string {
	if m == FanModeForced {
		return "forced"
	}
	return "auto"
}

// FanSpeed is the snapshot of one fan
type FanSpeed struct {
	Actual Rpm
	Min    Rpm
	Max    Rpm
	Target Rpm
	Safe   Rpm
	Mode   FanMode
}

// Percentage returns the actual speed within the min..max range
func (f FanSpeed) Percentage() float32 {
	rpm := float32(math.Max(float64(f.Actual-f.Min), 0))
	return 100 * rpm / float32(f.Max-f.Min)
}

// Thresholds splits min..max into three equal bands
func (f FanSpeed) Thresholds() [4]Rpm {
	span := (f.Max - f.Min) / 3
	return [4]Rpm{f.Min, f.Min + span, f.Min + 2*span, f.Max}
}

// BatteryStatus is the decoded battery status bitfield
type BatteryStatus struct {
	Charging  bool
	ACPresent bool
	HealthOK  bool
}

// Battery status bits
const (
	batteryCharging  = 0x01
	batteryACPresent = 0x02
	batteryHealthOK  = 0x40
)

// BatteryInfo is the system level battery snapshot
type BatteryInfo struct {
	BatteryPowered bool
	Charging       bool
	ACPresent      bool
	HealthOK       bool
	TemperatureMax Celsius
	Temperature1   Celsius
	Temperature2   Celsius
}

// BatteryDetail is the snapshot of one battery
type BatteryDetail struct {
	Cycles          uint32
	CurrentCapacity MilliAmpereHours
	FullCapacity    MilliAmpereHours
	Amperage        MilliAmpere
	Voltage         Volt
	Power           Watt
}

// Percentage returns the charge level
func (b BatteryDetail) Percentage() float32 {
	return float32(100 * (float64(b.CurrentCapacity) / float64(b.FullCapacity)))
}

// TimeRemaining estimates time to empty. Only defined while discharging.
func (b BatteryDetail) TimeRemaining() (time.Duration, bool) {
	if b.Amperage >= 0 {
		return 0, false
	}
	hours := float64(b.CurrentCapacity) / float64(-int64(b.Amperage))
	return time.Duration(hours * float64(time.Hour)), true
}

// TimeUntilFull estimates time to full charge. Only defined while charging.
func (b BatteryDetail) TimeUntilFull() (time.Duration, bool) {
	if b.Amperage <= 0 {
		return 0, false
	}
	missing := float64(b.FullCapacity) - float64(b.CurrentCapacity)
	hours := missing / float64(b.Amperage)
	return time.Duration(hours * float64(time.Hour)), true
}

// CPUTemperatures groups the package level CPU sensors
type CPUTemperatures struct {
	Proximity   Celsius
	Die         Celsius
	Graphics    Celsius
	SystemAgent Celsius
}

// GPUTemperatures groups the discrete GPU sensors
type GPUTemperatures struct {
	Proximity Celsius
	Die       Celsius
}

// OtherTemperatures groups the board level sensors
type OtherTemperatures struct {
	MemoryBankProximity      Celsius
	MainboardProximity       Celsius
	PlatformControllerHubDie Celsius
	Airport                  Celsius
	AirflowLeft              Celsius
	AirflowRight             Celsius
	ThunderboltLeft          Celsius
	ThunderboltRight         Celsius
	Heatpipe1                Celsius
	Heatpipe2                Celsius
	PalmRest1                Celsius
	PalmRest2                Celsius
}

// CPUPower groups the CPU power rails
type CPUPower struct {
	Core  Watt
	DRAM  Watt
	GFX   Watt
	Rail  Watt
	Total Watt
}
