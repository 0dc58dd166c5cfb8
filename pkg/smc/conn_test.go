// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc_test

import (
	"errors"
	"testing"

	"github.com/Thermoquad/smcstat/pkg/smc"
	"github.com/Thermoquad/smcstat/pkg/smc/smctest"
)

// ============================================================
// Test Helpers
// ============================================================

// newLaptop returns a controller populated like a two-fan, one-battery laptop
func newLaptop() *smctest.Controller {
	return smctest.New().
		SetUint("FNum", 1, 2).
		SetFloat("F0Ac", 2000).SetFloat("F0Mn", 1200).SetFloat("F0Mx", 6000).
		SetFloat("F0Tg", 2000).SetFloat("F0Sf", 0).SetUint("F0Md", 1, 0).
		SetFloat("F1Ac", 2400).SetFloat("F1Mn", 1200).SetFloat("F1Mx", 5600).
		SetFloat("F1Tg", 2400).SetFloat("F1Sf", 0).SetUint("F1Md", 1, 1).
		SetUint("BNum", 1, 1).
		SetFlag("BATP", true).
		SetUint("BSIn", 1, 0x41).
		SetFloat("TB0T", 31.5).SetFloat("TB1T", 30).SetFloat("TB2T", 29).
		SetUint("B0CT", 2, 321).
		SetUint("B0RM", 2, 4200).
		SetUint("B0FC", 2, 5600).
		SetInt("B0AC", 2, -1400).
		SetUint("B0AV", 2, 12450).
		SetFloat("B0AP", 17.4).
		SetFloat("TC0P", 48).SetFloat("TC0F", 55).SetFloat("TCSA", 44).
		SetFloat("TC1C", 50).SetFloat("TC2C", 51).SetFloat("TC3C", 52).SetFloat("TC4C", 53).
		SetFloat("PCPC", 12.5).SetFloat("PCPT", 20).SetFloat("PSTR", 35)
}

func openConn(t *testing.T, ctrl *smctest.Controller, opts ...smc.Option) *smc.Conn {
	t.Helper()
	conn, err := smc.Open(func() (smc.Caller, error) { return ctrl, nil }, opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestOpen_Unavailable(t *testing.T) {
	_, err := smc.Open(func() (smc.Caller, error) { return nil, smc.ErrResourceUnavailable })
	if !errors.Is(err, smc.ErrResourceUnavailable) {
		t.Fatalf("expected ErrResourceUnavailable, got %v", err)
	}
}

func TestClose_ReleasesOnceAndFailsAfter(t *testing.T) {
	ctrl := newLaptop()
	conn := smc.NewConn(ctrl)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !ctrl.Closed() {
		t.Error("handle not released")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	ctrl.ResetCalls()
	if _, err := conn.Read(smc.OpCPUProximity); !errors.Is(err, smc.ErrClosed) {
		t.Errorf("Read after Close: expected ErrClosed, got %v", err)
	}
	if _, err := conn.KeyInfo(smc.OpCPUProximity.Key); !errors.Is(err, smc.ErrClosed) {
		t.Errorf("KeyInfo after Close: expected ErrClosed, got %v", err)
	}
	if _, err := conn.Fans(); !errors.Is(err, smc.ErrClosed) {
		t.Errorf("Fans after Close: expected ErrClosed, got %v", err)
	}
	if _, err := conn.CPUCoreTemps(4); !errors.Is(err, smc.ErrClosed) {
		t.Errorf("CPUCoreTemps after Close: expected ErrClosed, got %v", err)
	}
	if n := len(ctrl.Calls()); n != 0 {
		t.Errorf("closed conn issued %d calls", n)
	}
}

// ============================================================
// Read Shape Tests
// ============================================================

func TestRead_Shapes(t *testing.T) {
	conn := openConn(t, newLaptop())
	missing := smc.OpGPUDie

	if _, err := conn.Read(missing); !errors.Is(err, smc.ErrUnknownKey) {
		t.Errorf("required read: expected ErrUnknownKey, got %v", err)
	}

	v, ok, err := conn.ReadOptional(missing)
	if err != nil || ok {
		t.Errorf("optional read: got %s, %v, %v", v, ok, err)
	}

	v, err = conn.ReadOrDefault(missing)
	if err != nil || v.Kind != smc.KindUnknown {
		t.Errorf("default read: got %s, %v", v, err)
	}

	v, ok, err = conn.ReadOptional(smc.OpCPUProximity)
	if err != nil || !ok || !v.Equal(smc.FloatValue(48)) {
		t.Errorf("optional read of present key: got %s, %v, %v", v, ok, err)
	}
}

func TestReadOptional_PropagatesOtherErrors(t *testing.T) {
	ctrl := newLaptop()
	ctrl.KeyStatus[smc.OpCPUProximity.Key] = smc.StatusNotPrivileged
	conn := openConn(t, ctrl)

	if _, _, err := conn.ReadOptional(smc.OpCPUProximity); !errors.Is(err, smc.ErrNotPrivileged) {
		t.Errorf("expected ErrNotPrivileged, got %v", err)
	}
	if _, err := conn.ReadOrDefault(smc.OpCPUProximity); !errors.Is(err, smc.ErrNotPrivileged) {
		t.Errorf("default read must not hide privilege errors, got %v", err)
	}
}

func TestReadAs_EndToEndCelsius(t *testing.T) {
	conn := openConn(t, smctest.New().SetFloat("TC0P", 42.5))

	c, err := smc.ReadAs(conn, smc.OpCPUProximity, smc.ToCelsius)
	if err != nil {
		t.Fatalf("ReadAs failed: %v", err)
	}
	if c != smc.Celsius(42.5) {
		t.Errorf("expected 42.5°C, got %v", c)
	}
}

func TestReadAs_DecodeErrorNamesKey(t *testing.T) {
	conn := openConn(t, smctest.New().SetUint("TC0P", 1, 40))

	_, err := smc.ReadAs(conn, smc.OpCPUProximity, smc.ToCelsius)
	var de *smc.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Key != smc.OpCPUProximity.Key || de.Type != smc.TypeUi8 {
		t.Errorf("unexpected error fields %+v", de)
	}
	if !errors.Is(err, smc.ErrDecode) {
		t.Error("DecodeError does not match ErrDecode")
	}

	// The default shape collapses it
	c, err := smc.ReadOrDefaultAs(conn, smc.OpCPUProximity, smc.ToCelsius)
	if err != nil || c != 0 {
		t.Errorf("default read: got %v, %v", c, err)
	}
}

func TestReadKey_Dynamic(t *testing.T) {
	conn := openConn(t, newLaptop())

	v, err := conn.ReadKey("B0CT")
	if err != nil || !v.Equal(smc.UintValue(321)) {
		t.Errorf("got %s, %v", v, err)
	}
	if _, err := conn.ReadKey("B0C"); !errors.Is(err, smc.ErrInvalidKeyFormat) {
		t.Errorf("expected ErrInvalidKeyFormat, got %v", err)
	}
}

// ============================================================
// Composite Read Tests
// ============================================================

func TestFanSpeed(t *testing.T) {
	conn := openConn(t, newLaptop())

	f, err := conn.FanSpeed(1)
	if err != nil {
		t.Fatalf("FanSpeed failed: %v", err)
	}
	expected := smc.FanSpeed{Actual: 2400, Min: 1200, Max: 5600, Target: 2400, Safe: 0, Mode: smc.FanModeForced}
	if f != expected {
		t.Errorf("got %+v, want %+v", f, expected)
	}
	if _, err := conn.FanSpeed(10); !errors.Is(err, smc.ErrIndexOutOfRange) {
		t.Errorf("fan 10: expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestBatteryInfoAndDetail(t *testing.T) {
	conn := openConn(t, newLaptop())

	info, err := conn.BatteryInfo()
	if err != nil {
		t.Fatalf("BatteryInfo failed: %v", err)
	}
	expected := smc.BatteryInfo{
		BatteryPowered: true, Charging: true, HealthOK: true,
		TemperatureMax: 31.5, Temperature1: 30, Temperature2: 29,
	}
	if info != expected {
		t.Errorf("got %+v, want %+v", info, expected)
	}

	d, err := conn.BatteryDetail(0)
	if err != nil {
		t.Fatalf("BatteryDetail failed: %v", err)
	}
	if d.Cycles != 321 || d.CurrentCapacity != 4200 || d.FullCapacity != 5600 ||
		d.Amperage != -1400 || d.Voltage != 12.45 || d.Power != 17.4 {
		t.Errorf("unexpected detail %+v", d)
	}
}

func TestCPUTemperatures_MissingConstituentDefaults(t *testing.T) {
	conn := openConn(t, newLaptop())

	temps, err := conn.CPUTemperatures()
	if err != nil {
		t.Fatalf("CPUTemperatures failed: %v", err)
	}
	// TCGC is absent on this controller
	expected := smc.CPUTemperatures{Proximity: 48, Die: 55, Graphics: 0, SystemAgent: 44}
	if temps != expected {
		t.Errorf("got %+v, want %+v", temps, expected)
	}
}

func TestCompositeReads_AllAbsent(t *testing.T) {
	conn := openConn(t, smctest.New())

	other, err := conn.OtherTemperatures()
	if err != nil || other != (smc.OtherTemperatures{}) {
		t.Errorf("other temps: %+v, %v", other, err)
	}
	gpu, err := conn.GPUTemperatures()
	if err != nil || gpu != (smc.GPUTemperatures{}) {
		t.Errorf("gpu temps: %+v, %v", gpu, err)
	}
	n, err := conn.NumberOfFans()
	if err != nil || n != 0 {
		t.Errorf("fans: %d, %v", n, err)
	}
}

func TestCPUPower(t *testing.T) {
	conn := openConn(t, newLaptop())

	p, err := conn.CPUPower()
	if err != nil {
		t.Fatalf("CPUPower failed: %v", err)
	}
	if p.Core != 12.5 || p.Total != 20 || p.DRAM != 0 {
		t.Errorf("unexpected power %+v", p)
	}
	total, err := conn.SystemTotalPower()
	if err != nil || total != 35 {
		t.Errorf("system total: %v, %v", total, err)
	}
}

func TestComposite_ProtocolErrorAborts(t *testing.T) {
	ctrl := newLaptop()
	ctrl.KeyStatus[smc.OpCPUDie.Key] = 0xE0000001
	conn := openConn(t, ctrl)

	var pe *smc.ProtocolError
	if _, err := conn.CPUTemperatures(); !errors.As(err, &pe) {
		t.Errorf("expected protocol error to surface, got %v", err)
	}
}

// ============================================================
// Platform Read Tests
// ============================================================

func TestPlatformCPUCoreTemps(t *testing.T) {
	ctrl := smctest.New().
		SetFloat("Tp09", 40).
		SetFloat("Tp0T", 42).
		SetFloat("Tp01", 50).
		SetUint("Tp05", 1, 7)
	conn := openConn(t, ctrl, smc.WithPlatform(smc.PlatformM1Pro))

	readings, err := conn.PlatformCPUCoreTemps()
	if err != nil {
		t.Fatalf("PlatformCPUCoreTemps failed: %v", err)
	}
	if len(readings) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(readings))
	}
	if readings[0].Sensor.Key.String() != "Tp09" || readings[0].Celsius != 40 {
		t.Errorf("unexpected first reading %+v", readings[0])
	}
	if !errors.Is(readings[3].Err, smc.ErrDecode) {
		t.Errorf("non-float reading: expected decode error, got %v", readings[3].Err)
	}

	avg, ok := smc.AverageCelsius(readings)
	if !ok || avg != 44 {
		t.Errorf("average: got %v, %v", avg, ok)
	}
}

func TestPlatformGPUTemps_AbsentSensors(t *testing.T) {
	conn := openConn(t, smctest.New().SetFloat("Tg0f", 39), smc.WithPlatform(smc.PlatformM2))

	readings, err := conn.PlatformGPUTemps()
	if err != nil {
		t.Fatalf("PlatformGPUTemps failed: %v", err)
	}
	present := 0
	for _, r := range readings {
		switch {
		case r.Err == nil:
			present++
		case !errors.Is(r.Err, smc.ErrUnknownKey):
			t.Errorf("%s: unexpected error %v", r.Sensor.Key, r.Err)
		}
	}
	if present != 1 {
		t.Errorf("expected one present sensor, got %d", present)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics(t *testing.T) {
	stats := smc.NewStatistics()
	conn := openConn(t, newLaptop(), smc.WithStatistics(stats))

	conn.Read(smc.OpCPUProximity)
	conn.Read(smc.OpGPUDie)
	smc.ReadOrDefaultAs(conn, smc.OpGPUDie, smc.ToCelsius)

	if stats.TotalCalls != 4 {
		t.Errorf("expected 4 calls, got %d", stats.TotalCalls)
	}
	if stats.InfoCalls != 3 || stats.DataCalls != 1 {
		t.Errorf("info=%d data=%d", stats.InfoCalls, stats.DataCalls)
	}
	if stats.ValidReads != 1 || stats.UnknownKeys != 2 || stats.DefaultedValues != 1 {
		t.Errorf("valid=%d unknown=%d defaulted=%d", stats.ValidReads, stats.UnknownKeys, stats.DefaultedValues)
	}
	if s := stats.String(); s == "" {
		t.Error("empty statistics summary")
	}
}
