// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"errors"
	"fmt"
)

// Conn owns one controller handle and routes every read through it.
//
// A Conn is not safe for concurrent use: both read phases share the
// controller's single request buffer, so a read (including every read of a
// composite) must complete before the next one starts. Use one Conn per
// goroutine or serialize access externally.
type Conn struct {
	caller   Caller
	registry *Registry
	stats    *Statistics
	closed   bool
}

// Option configures a Conn
type Option func(*Conn)

// WithPlatform selects the sensor catalog used for platform reads
func WithPlatform(p Platform) Option {
	return func(c *Conn) {
		c.registry = NewRegistry(p)
	}
}

// WithStatistics records every call and read into s
func WithStatistics(s *Statistics) Option {
	return func(c *Conn) {
		c.stats = s
	}
}

// NewConn takes ownership of an open caller
func NewConn(caller Caller, opts ...Option) *Conn {
	c := &Conn{caller: caller}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry(PlatformM1)
	}
	if c.stats != nil {
		c.caller = countingCaller{Caller: caller, stats: c.stats}
	}
	return c
}

// Open acquires a handle with open and wraps it in a Conn
func Open(open func() (Caller, error), opts ...Option) (*Conn, error) {
	caller, err := open()
	if err != nil {
		return nil, err
	}
	return NewConn(caller, opts...), nil
}

// Close releases the handle. Calling Close more than once is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.caller.Close()
}

// Platform returns the platform of the sensor catalog in use
func (c *Conn) Platform() Platform {
	return c.registry.Platform()
}

// Registry returns the platform sensor registry
func (c *Conn) Registry() *Registry {
	return c.registry
}

// Stats returns the statistics tracker, or nil
func (c *Conn) Stats() *Statistics {
	return c.stats
}

func (c *Conn) record(err error) {
	if c.stats != nil {
		c.stats.Update(err)
	}
}

// ReadPayload runs the two-phase read for op and returns the raw payload
func (c *Conn) ReadPayload(op Op) (Payload, error) {
	if c.closed {
		return Payload{}, ErrClosed
	}
	p, err := ReadKey(c.caller, op.Key)
	if err != nil {
		c.record(err)
		return p, err
	}
	return p, nil
}

// Read returns the decoded value for op. A missing key is an error.
func (c *Conn) Read(op Op) (Value, error) {
	p, err := c.ReadPayload(op)
	if err != nil {
		return Value{}, err
	}
	c.record(nil)
	return p.Value(), nil
}

// ReadOptional is like Read but reports a missing key as ok == false
func (c *Conn) ReadOptional(op Op) (Value, bool, error) {
	v, err := c.Read(op)
	if errors.Is(err, ErrUnknownKey) {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// ReadOrDefault is like ReadOptional but returns the zero Value for a
// missing key
func (c *Conn) ReadOrDefault(op Op) (Value, error) {
	v, _, err := c.ReadOptional(op)
	return v, err
}

// ReadKey reads an arbitrary key string without a semantic type
func (c *Conn) ReadKey(s string) (Value, error) {
	op, err := DynamicOp(s)
	if err != nil {
		return Value{}, err
	}
	return c.Read(op)
}

// ReadAs reads op and converts the value. A missing key and a failed
// conversion are both errors.
func ReadAs[T any](c *Conn, op Op, conv Converter[T]) (T, error) {
	var zero T
	p, err := c.ReadPayload(op)
	if err != nil {
		return zero, err
	}
	out, ok := conv(p.Value())
	if !ok {
		err := &DecodeError{Key: op.Key, Type: p.Info.Type, Want: op.Expect.String()}
		c.record(err)
		return zero, err
	}
	c.record(nil)
	return out, nil
}

// ReadOptionalAs is like ReadAs but reports a missing key as ok == false
func ReadOptionalAs[T any](c *Conn, op Op, conv Converter[T]) (T, bool, error) {
	out, err := ReadAs(c, op, conv)
	if errors.Is(err, ErrUnknownKey) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// ReadOrDefaultAs collapses a missing key or a failed conversion into the
// zero value of T. Call and protocol failures are still returned.
func ReadOrDefaultAs[T any](c *Conn, op Op, conv Converter[T]) (T, error) {
	out, err := ReadAs(c, op, conv)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, ErrUnknownKey) || errors.Is(err, ErrDecode) {
		if c.stats != nil {
			c.stats.DefaultedValues++
		}
		var zero T
		return zero, nil
	}
	return out, err
}

// KeyInfo returns the type tag and size of a key without reading its value
func (c *Conn) KeyInfo(key Key) (KeyInfo, error) {
	if c.closed {
		return KeyInfo{}, ErrClosed
	}
	info, err := ReadKeyInfo(c.caller, key)
	c.record(err)
	return info, err
}

// KeyInfoByIndex returns the metadata of the key at a catalog index
func (c *Conn) KeyInfoByIndex(index uint32) (KeyInfo, error) {
	if c.closed {
		return KeyInfo{}, ErrClosed
	}
	info, err := ReadKeyInfoByIndex(c.caller, index)
	c.record(err)
	return info, err
}

// NumberOfKeys returns the size of the controller's key catalog
func (c *Conn) NumberOfKeys() (uint32, error) {
	return ReadAs(c, OpNumberOfKeys, ToUint32)
}

// NumberOfFans returns the fan count, 0 when the controller has no fan key
func (c *Conn) NumberOfFans() (uint8, error) {
	return ReadOrDefaultAs(c, OpNumberOfFans, ToUint8)
}

// NumberOfBatteries returns the battery count, 0 when not reported
func (c *Conn) NumberOfBatteries() (uint8, error) {
	return ReadOrDefaultAs(c, OpNumberOfBatteries, ToUint8)
}

func readTemplate[T any](c *Conn, t Template, n int, conv Converter[T]) (T, error) {
	op, err := t.At(n)
	if err != nil {
		var zero T
		return zero, err
	}
	return ReadOrDefaultAs(c, op, conv)
}

// FanSpeed reads every speed register of one fan
func (c *Conn) FanSpeed(fan int) (FanSpeed, error) {
	var (
		f   FanSpeed
		err error
	)
	if f.Actual, err = readTemplate(c, FanActual, fan, ToRpm); err != nil {
		return f, err
	}
	if f.Min, err = readTemplate(c, FanMin, fan, ToRpm); err != nil {
		return f, err
	}
	if f.Max, err = readTemplate(c, FanMax, fan, ToRpm); err != nil {
		return f, err
	}
	if f.Target, err = readTemplate(c, FanTarget, fan, ToRpm); err != nil {
		return f, err
	}
	if f.Safe, err = readTemplate(c, FanSafe, fan, ToRpm); err != nil {
		return f, err
	}
	if f.Mode, err = readTemplate(c, FanControl, fan, ToFanMode); err != nil {
		return f, err
	}
	return f, nil
}

// BatteryInfo reads the system battery status
func (c *Conn) BatteryInfo() (BatteryInfo, error) {
	var b BatteryInfo
	status, err := ReadOrDefaultAs(c, OpBatteryInfo, ToBatteryStatus)
	if err != nil {
		return b, err
	}
	b.Charging, b.ACPresent, b.HealthOK = status.Charging, status.ACPresent, status.HealthOK

	if b.BatteryPowered, err = ReadOrDefaultAs(c, OpBatteryPowered, ToBool); err != nil {
		return b, err
	}
	if b.TemperatureMax, err = ReadOrDefaultAs(c, OpBatteryTempMax, ToCelsius); err != nil {
		return b, err
	}
	if b.Temperature1, err = ReadOrDefaultAs(c, OpBatteryTemp1, ToCelsius); err != nil {
		return b, err
	}
	if b.Temperature2, err = ReadOrDefaultAs(c, OpBatteryTemp2, ToCelsius); err != nil {
		return b, err
	}
	return b, nil
}

// BatteryDetail reads the registers of one battery
func (c *Conn) BatteryDetail(battery int) (BatteryDetail, error) {
	var (
		b   BatteryDetail
		err error
	)
	if b.Cycles, err = readTemplate(c, BatteryCycles, battery, ToUint32); err != nil {
		return b, err
	}
	if b.CurrentCapacity, err = readTemplate(c, BatteryCurrentCharge, battery, ToMilliAmpereHours); err != nil {
		return b, err
	}
	if b.FullCapacity, err = readTemplate(c, BatteryFullCharge, battery, ToMilliAmpereHours); err != nil {
		return b, err
	}
	if b.Amperage, err = readTemplate(c, BatteryAmperage, battery, ToMilliAmpere); err != nil {
		return b, err
	}
	if b.Voltage, err = readTemplate(c, BatteryVoltage, battery, ToVolt); err != nil {
		return b, err
	}
	if b.Power, err = readTemplate(c, BatteryPower, battery, ToWatt); err != nil {
		return b, err
	}
	return b, nil
}

// CPUCoreTemp reads the temperature of core n, counted from 0
func (c *Conn) CPUCoreTemp(core int) (Celsius, error) {
	return readTemplate(c, CPUCoreTemp, core, ToCelsius)
}

// readCelsius fills each destination from its operation in order
func (c *Conn) readCelsius(ops []Op, dst []*Celsius) error {
	for i, op := range ops {
		v, err := ReadOrDefaultAs(c, op, ToCelsius)
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

// CPUTemperatures reads the package level CPU sensors. The proximity key
// follows the platform catalog.
func (c *Conn) CPUTemperatures() (CPUTemperatures, error) {
	var t CPUTemperatures
	proximity := OpCPUProximity
	proximity.Key = c.registry.CPUProximityKey()
	err := c.readCelsius(
		[]Op{proximity, OpCPUDie, OpCPUGraphics, OpCPUSystemAgent},
		[]*Celsius{&t.Proximity, &t.Die, &t.Graphics, &t.SystemAgent},
	)
	return t, err
}

// GPUTemperatures reads the discrete GPU sensors
func (c *Conn) GPUTemperatures() (GPUTemperatures, error) {
	var t GPUTemperatures
	proximity := OpGPUProximity
	proximity.Key = c.registry.GPUProximityKey()
	err := c.readCelsius(
		[]Op{proximity, OpGPUDie},
		[]*Celsius{&t.Proximity, &t.Die},
	)
	return t, err
}

// OtherTemperatures reads the board level sensors
func (c *Conn) OtherTemperatures() (OtherTemperatures, error) {
	var t OtherTemperatures
	err := c.readCelsius(
		[]Op{
			OpMemoryBankProximity, OpMainboardProximity, OpPCHDie, OpAirport,
			OpAirflowLeft, OpAirflowRight, OpThunderboltLeft, OpThunderboltRight,
			OpHeatpipe1, OpHeatpipe2, OpPalmRest1, OpPalmRest2,
		},
		[]*Celsius{
			&t.MemoryBankProximity, &t.MainboardProximity, &t.PlatformControllerHubDie, &t.Airport,
			&t.AirflowLeft, &t.AirflowRight, &t.ThunderboltLeft, &t.ThunderboltRight,
			&t.Heatpipe1, &t.Heatpipe2, &t.PalmRest1, &t.PalmRest2,
		},
	)
	return t, err
}

// CPUPower reads the CPU power rails
func (c *Conn) CPUPower() (CPUPower, error) {
	var p CPUPower
	ops := []Op{OpCPUCorePower, OpCPUDRAMPower, OpCPUGFXPower, OpCPURailPower, OpCPUTotalPower}
	dst := []*Watt{&p.Core, &p.DRAM, &p.GFX, &p.Rail, &p.Total}
	for i, op := range ops {
		w, err := ReadOrDefaultAs(c, op, ToWatt)
		if err != nil {
			return p, err
		}
		*dst[i] = w
	}
	return p, nil
}

// GPUPower reads the GPU rail power
func (c *Conn) GPUPower() (Watt, error) {
	return ReadOrDefaultAs(c, OpGPURailPower, ToWatt)
}

// DCInPower reads the power drawn from the adapter
func (c *Conn) DCInPower() (Watt, error) {
	return ReadOrDefaultAs(c, OpDCInPower, ToWatt)
}

// SystemTotalPower reads the total system power
func (c *Conn) SystemTotalPower() (Watt, error) {
	return ReadOrDefaultAs(c, OpSystemTotalPower, ToWatt)
}

// SensorReading is one platform sensor read through the optional shape.
// Err is ErrUnknownKey when the sensor is absent.
type SensorReading struct {
	Sensor  SensorDescriptor
	Celsius Celsius
	Err     error
}

func (c *Conn) readSensors(sensors []SensorDescriptor) ([]SensorReading, error) {
	if c.closed {
		return nil, ErrClosed
	}
	out := make([]SensorReading, 0, len(sensors))
	for _, d := range sensors {
		r := SensorReading{Sensor: d}
		v, ok, err := ReadOptionalAs(c, d.Op(), ToCelsius)
		switch {
		case err != nil:
			r.Err = err
		case !ok:
			r.Err = fmt.Errorf("%s: %w", d.Key, ErrUnknownKey)
		default:
			r.Celsius = v
		}
		out = append(out, r)
	}
	return out, nil
}

// PlatformCPUCoreTemps reads every per-core CPU sensor of the platform
func (c *Conn) PlatformCPUCoreTemps() ([]SensorReading, error) {
	return c.readSensors(c.registry.CPUCoreTempKeys())
}

// PlatformGPUTemps reads every GPU temperature sensor of the platform
func (c *Conn) PlatformGPUTemps() ([]SensorReading, error) {
	return c.readSensors(c.registry.GPUTempKeys())
}

// AverageCelsius averages the successful readings
func AverageCelsius(readings []SensorReading) (Celsius, bool) {
	var (
		sum float64
		n   int
	)
	for _, r := range readings {
		if r.Err == nil {
			sum += float64(r.Celsius)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return Celsius(sum / float64(n)), true
}

// ReadSensor reads one catalogued sensor of the platform. Sensors outside
// the catalog are read as plain keys.
func (c *Conn) ReadSensor(key Key) (Value, error) {
	op := Op{Key: key}
	if d, ok := c.registry.Sensor(key); ok {
		op = d.Op()
	}
	return c.Read(op)
}

// KeyReading is one entry of a full catalog dump. Present is false when the
// key resolved by index could not be read by name.
type KeyReading struct {
	Info    KeyInfo
	Value   Value
	Present bool
	Err     error
}

// Fans iterates the fans reported by the controller
func (c *Conn) Fans() (*Iter[FanSpeed], error) {
	return NewIter(
		func() (int, error) {
			n, err := c.NumberOfFans()
			return int(n), err
		},
		c.FanSpeed,
	)
}

// Batteries iterates the batteries reported by the controller
func (c *Conn) Batteries() (*Iter[BatteryDetail], error) {
	return NewIter(
		func() (int, error) {
			n, err := c.NumberOfBatteries()
			return int(n), err
		},
		c.BatteryDetail,
	)
}

// CPUCoreTemps iterates per-core temperatures for cores 0..cores-1.
// Cores beyond the single digit key space yield ErrIndexOutOfRange.
func (c *Conn) CPUCoreTemps(cores int) (*Iter[Celsius], error) {
	if c.closed {
		return nil, ErrClosed
	}
	return NewIter(
		func() (int, error) { return cores, nil },
		c.CPUCoreTemp,
	)
}

// Keys iterates the metadata of every key in the controller catalog
func (c *Conn) Keys() (*Iter[KeyInfo], error) {
	return NewIter(c.keyCount, func(i int) (KeyInfo, error) {
		return c.KeyInfoByIndex(uint32(i))
	})
}

// Data iterates every key in the controller catalog with its value
func (c *Conn) Data() (*Iter[KeyReading], error) {
	return NewIter(c.keyCount, func(i int) (KeyReading, error) {
		info, err := c.KeyInfoByIndex(uint32(i))
		if err != nil {
			return KeyReading{}, err
		}
		r := KeyReading{Info: info}
		r.Value, r.Present, r.Err = c.ReadOptional(Op{Key: info.Key})
		return r, nil
	})
}

func (c *Conn) keyCount() (int, error) {
	n, err := c.NumberOfKeys()
	return int(n), err
}
