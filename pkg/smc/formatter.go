// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"fmt"
	"strings"
	"time"
)

// FormatStatus returns a human-readable name for a call status
func FormatStatus(s Status) string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotPrivileged:
		return "NOT_PRIVILEGED"
	default:
		return fmt.Sprintf("0x%08X", uint32(s))
	}
}

// FormatCommand returns the name of a KeyData command selector
func FormatCommand(cmd uint8) string {
	switch cmd {
	case CmdReadBytes:
		return "READ_BYTES"
	case CmdReadByIndex:
		return "READ_BY_INDEX"
	case CmdReadKeyInfo:
		return "READ_KEY_INFO"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", cmd)
	}
}

// FormatPayload formats a payload as `KEY [type] size=N value`
func FormatPayload(p Payload) string {
	return fmt.Sprintf("%s [%s] size=%d %s", p.Info.Key, p.Info.Type, p.Info.Size, p.Value())
}

// FormatReading formats one catalog dump entry
func FormatReading(r KeyReading) string {
	head := fmt.Sprintf("%s [%s] size=%d", r.Info.Key, r.Info.Type, r.Info.Size)
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s error: %v", head, r.Err)
	case !r.Present:
		return head + " not found"
	default:
		return fmt.Sprintf("%s %s", head, r.Value)
	}
}

// FormatCelsius formats a temperature with its Fahrenheit equivalent
func FormatCelsius(c Celsius) string {
	return fmt.Sprintf("%.1f°C (%.1f°F)", float32(c), float32(c.Fahrenheit()))
}

// FormatFan formats one fan snapshot
func FormatFan(index int, f FanSpeed) string {
	return fmt.Sprintf("Fan %d: %.0f rpm (%.0f%%) min=%.0f max=%.0f target=%.0f safe=%.0f mode=%s",
		index, float32(f.Actual), f.Percentage(), float32(f.Min), float32(f.Max),
		float32(f.Target), float32(f.Safe), f.Mode)
}

// FormatBatteryInfo formats the system battery status
func FormatBatteryInfo(b BatteryInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Battery powered: %t\n", b.BatteryPowered)
	fmt.Fprintf(&sb, "  Charging:        %t\n", b.Charging)
	fmt.Fprintf(&sb, "  AC present:      %t\n", b.ACPresent)
	fmt.Fprintf(&sb, "  Health OK:       %t\n", b.HealthOK)
	fmt.Fprintf(&sb, "  Temperature max: %s\n", FormatCelsius(b.TemperatureMax))
	fmt.Fprintf(&sb, "  Temperature 1:   %s\n", FormatCelsius(b.Temperature1))
	fmt.Fprintf(&sb, "  Temperature 2:   %s\n", FormatCelsius(b.Temperature2))
	return sb.String()
}

// FormatBatteryDetail formats one battery
func FormatBatteryDetail(index int, b BatteryDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Battery %d: %.1f%%\n", index, b.Percentage())
	fmt.Fprintf(&sb, "  Cycles:   %d\n", b.Cycles)
	fmt.Fprintf(&sb, "  Capacity: %d / %d mAh\n", b.CurrentCapacity, b.FullCapacity)
	fmt.Fprintf(&sb, "  Current:  %d mA\n", b.Amperage)
	fmt.Fprintf(&sb, "  Voltage:  %.3f V\n", float32(b.Voltage))
	fmt.Fprintf(&sb, "  Power:    %.2f W\n", float32(b.Power))
	if d, ok := b.TimeRemaining(); ok {
		fmt.Fprintf(&sb, "  Remaining: %s\n", d.Round(time.Minute))
	}
	if d, ok := b.TimeUntilFull(); ok {
		fmt.Fprintf(&sb, "  Until full: %s\n", d.Round(time.Minute))
	}
	return sb.String()
}

// FormatSensorReading formats a platform sensor read
func FormatSensorReading(r SensorReading) string {
	if r.Err != nil {
		return fmt.Sprintf("%-4s %-26s -- (%v)", r.Sensor.Key, r.Sensor.Name, r.Err)
	}
	return fmt.Sprintf("%-4s %-26s %s", r.Sensor.Key, r.Sensor.Name, FormatCelsius(r.Celsius))
}

// Level returns how many thresholds v has reached, 0-4
func Level[T ~float32](v T, thresholds [4]T) int {
	n := 0
	for _, t := range thresholds {
		if v >= t {
			n++
		}
	}
	return n
}
