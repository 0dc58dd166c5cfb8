// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Thermoquad/smcstat/internal/config"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

// Measurement names
const (
	MeasurementCPUTemp    = "cpu_temp"
	MeasurementCoreTemp   = "core_temp"
	MeasurementGPUTemp    = "gpu_temp"
	MeasurementSystemTemp = "system_temp"
	MeasurementPower      = "power"
	MeasurementFan        = "fan"
	MeasurementBattery    = "battery"
)

// MaxDigitCores is the number of cores addressable through the TC0C template
const MaxDigitCores = 9

// Collector reads the enabled metric groups from one connection. It is
// not safe for concurrent use, like the connection it reads.
type Collector struct {
	conn     *smc.Conn
	metrics  config.MetricsConfig
	hostname string
	cores    int
}

// NewCollector creates a Collector. cores bounds the per-core template
// reads used on Intel platforms.
func NewCollector(conn *smc.Conn, metrics config.MetricsConfig, hostname string, cores int) *Collector {
	return &Collector{
		conn:     conn,
		metrics:  metrics,
		hostname: hostname,
		cores:    min(cores, MaxDigitCores),
	}
}

// Collect reads every enabled group. Groups that fail are reported in the
// joined error; samples of the other groups are still returned.
func (c *Collector) Collect() ([]Sample, error) {
	var (
		samples []Sample
		errs    []error
	)

	groups := []struct {
		name    string
		enabled bool
		collect func() ([]Sample, error)
	}{
		{"cpu_temp", c.metrics.CPUTemp, c.cpuTemps},
		{"gpu_temp", c.metrics.GPUTemp, c.gpuTemps},
		{"system_temp", c.metrics.SystemTemp, c.systemTemps},
		{"power", c.metrics.Power, c.power},
		{"fans", c.metrics.Fans, c.fans},
		{"battery", c.metrics.Battery, c.battery},
	}

	for _, g := range groups {
		if !g.enabled {
			continue
		}
		s, err := g.collect()
		samples = append(samples, s...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.name, err))
		}
	}

	return samples, errors.Join(errs...)
}

func (c *Collector) sample(measurement, field string, value float64, tags ...string) Sample {
	t := map[string]string{"host": c.hostname}
	for i := 0; i+1 < len(tags); i += 2 {
		t[tags[i]] = tags[i+1]
	}
	return Sample{Measurement: measurement, Field: field, Value: value, Tags: t}
}

func (c *Collector) cpuTemps() ([]Sample, error) {
	t, err := c.conn.CPUTemperatures()
	if err != nil {
		return nil, err
	}
	out := []Sample{
		c.sample(MeasurementCPUTemp, "proximity", float64(t.Proximity)),
		c.sample(MeasurementCPUTemp, "die", float64(t.Die)),
		c.sample(MeasurementCPUTemp, "graphics", float64(t.Graphics)),
		c.sample(MeasurementCPUTemp, "system_agent", float64(t.SystemAgent)),
	}

	if c.conn.Platform().IsAppleSilicon() {
		readings, err := c.conn.PlatformCPUCoreTemps()
		if err != nil {
			return out, err
		}
		out = append(out, c.sensorSamples(MeasurementCoreTemp, readings)...)
		if avg, ok := smc.AverageCelsius(readings); ok {
			out = append(out, c.sample(MeasurementCPUTemp, "core_average", float64(avg)))
		}
		return out, nil
	}

	cores, err := c.conn.CPUCoreTemps(c.cores)
	if err != nil {
		return out, err
	}
	i := 0
	for temp, err := range cores.All() {
		if err == nil && temp != 0 {
			out = append(out, c.sample(MeasurementCoreTemp, "celsius", float64(temp), "core", strconv.Itoa(i)))
		}
		i++
	}
	return out, nil
}

func (c *Collector) sensorSamples(measurement string, readings []smc.SensorReading) []Sample {
	out := make([]Sample, 0, len(readings))
	for _, r := range readings {
		if r.Err != nil {
			continue
		}
		out = append(out, c.sample(measurement, "celsius", float64(r.Celsius),
			"sensor", r.Sensor.Key.String(), "name", r.Sensor.Name))
	}
	return out
}

func (c *Collector) gpuTemps() ([]Sample, error) {
	t, err := c.conn.GPUTemperatures()
	if err != nil {
		return nil, err
	}
	out := []Sample{
		c.sample(MeasurementGPUTemp, "proximity", float64(t.Proximity)),
		c.sample(MeasurementGPUTemp, "die", float64(t.Die)),
	}

	readings, err := c.conn.PlatformGPUTemps()
	if err != nil {
		return out, err
	}
	out = append(out, c.sensorSamples(MeasurementGPUTemp+"_sensor", readings)...)
	return out, nil
}

func (c *Collector) systemTemps() ([]Sample, error) {
	t, err := c.conn.OtherTemperatures()
	if err != nil {
		return nil, err
	}
	fields := []struct {
		name  string
		value smc.Celsius
	}{
		{"memory_bank_proximity", t.MemoryBankProximity},
		{"mainboard_proximity", t.MainboardProximity},
		{"pch_die", t.PlatformControllerHubDie},
		{"airport", t.Airport},
		{"airflow_left", t.AirflowLeft},
		{"airflow_right", t.AirflowRight},
		{"thunderbolt_left", t.ThunderboltLeft},
		{"thunderbolt_right", t.ThunderboltRight},
		{"heatpipe_1", t.Heatpipe1},
		{"heatpipe_2", t.Heatpipe2},
		{"palm_rest_1", t.PalmRest1},
		{"palm_rest_2", t.PalmRest2},
	}
	out := make([]Sample, 0, len(fields))
	for _, f := range fields {
		// zero means the board has no such sensor
		if f.value != 0 {
			out = append(out, c.sample(MeasurementSystemTemp, f.name, float64(f.value)))
		}
	}
	return out, nil
}

func (c *Collector) power() ([]Sample, error) {
	cpu, err := c.conn.CPUPower()
	if err != nil {
		return nil, err
	}
	out := []Sample{
		c.sample(MeasurementPower, "cpu_core", float64(cpu.Core)),
		c.sample(MeasurementPower, "cpu_dram", float64(cpu.DRAM)),
		c.sample(MeasurementPower, "cpu_gfx", float64(cpu.GFX)),
		c.sample(MeasurementPower, "cpu_rail", float64(cpu.Rail)),
		c.sample(MeasurementPower, "cpu_total", float64(cpu.Total)),
	}

	singles := []struct {
		name string
		read func() (smc.Watt, error)
	}{
		{"gpu", c.conn.GPUPower},
		{"dc_in", c.conn.DCInPower},
		{"system_total", c.conn.SystemTotalPower},
	}
	for _, s := range singles {
		w, err := s.read()
		if err != nil {
			return out, err
		}
		out = append(out, c.sample(MeasurementPower, s.name, float64(w)))
	}
	return out, nil
}

func (c *Collector) fans() ([]Sample, error) {
	fans, err := c.conn.Fans()
	if err != nil {
		return nil, err
	}

	var (
		out  []Sample
		errs []error
		i    int
	)
	for f, err := range fans.All() {
		idx := strconv.Itoa(i)
		i++
		if err != nil {
			errs = append(errs, fmt.Errorf("fan %s: %w", idx, err))
			continue
		}
		out = append(out,
			c.sample(MeasurementFan, "actual", float64(f.Actual), "fan", idx),
			c.sample(MeasurementFan, "min", float64(f.Min), "fan", idx),
			c.sample(MeasurementFan, "max", float64(f.Max), "fan", idx),
			c.sample(MeasurementFan, "target", float64(f.Target), "fan", idx),
			c.sample(MeasurementFan, "forced", boolValue(f.Mode == smc.FanModeForced), "fan", idx),
		)
		if f.Max > f.Min {
			out = append(out, c.sample(MeasurementFan, "percentage", float64(f.Percentage()), "fan", idx))
		}
	}
	return out, errors.Join(errs...)
}

func (c *Collector) battery() ([]Sample, error) {
	info, err := c.conn.BatteryInfo()
	if err != nil {
		return nil, err
	}
	out := []Sample{
		c.sample(MeasurementBattery, "battery_powered", boolValue(info.BatteryPowered)),
		c.sample(MeasurementBattery, "charging", boolValue(info.Charging)),
		c.sample(MeasurementBattery, "ac_present", boolValue(info.ACPresent)),
		c.sample(MeasurementBattery, "health_ok", boolValue(info.HealthOK)),
		c.sample(MeasurementBattery, "temperature_max", float64(info.TemperatureMax)),
	}

	batteries, err := c.conn.Batteries()
	if err != nil {
		return out, err
	}
	var (
		errs []error
		i    int
	)
	for b, err := range batteries.All() {
		idx := strconv.Itoa(i)
		i++
		if err != nil {
			errs = append(errs, fmt.Errorf("battery %s: %w", idx, err))
			continue
		}
		out = append(out,
			c.sample(MeasurementBattery, "cycles", float64(b.Cycles), "battery", idx),
			c.sample(MeasurementBattery, "current_capacity_mah", float64(b.CurrentCapacity), "battery", idx),
			c.sample(MeasurementBattery, "full_capacity_mah", float64(b.FullCapacity), "battery", idx),
			c.sample(MeasurementBattery, "amperage_ma", float64(b.Amperage), "battery", idx),
			c.sample(MeasurementBattery, "voltage", float64(b.Voltage), "battery", idx),
			c.sample(MeasurementBattery, "power", float64(b.Power), "battery", idx),
		)
		if b.FullCapacity > 0 {
			out = append(out, c.sample(MeasurementBattery, "percentage", float64(b.Percentage()), "battery", idx))
		}
	}
	return out, errors.Join(errs...)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
