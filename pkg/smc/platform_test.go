// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"testing"
)

// ============================================================
// Platform Tests
// ============================================================

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		brand    string
		expected Platform
	}{
		{"Apple M1", PlatformM1},
		{"Apple M1 Pro", PlatformM1Pro},
		{"Apple M1 Max", PlatformM1Max},
		{"Apple M1 Ultra", PlatformM1Ultra},
		{"Apple M2", PlatformM2},
		{"Apple M3 Max", PlatformM3Max},
		{"Apple M4 Pro", PlatformM4Pro},
		{"  apple m4 ultra\n", PlatformM4Ultra},
		{"Intel(R) Core(TM) i9-9980HK CPU @ 2.40GHz", PlatformIntel},
		{"", PlatformM1},
		{"something else", PlatformM1},
	}
	for _, tt := range tests {
		t.Run(tt.brand, func(t *testing.T) {
			if got := DetectPlatform(tt.brand); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestPlatform_Properties(t *testing.T) {
	tests := []struct {
		p          Platform
		generation int
		silicon    bool
	}{
		{PlatformIntel, 0, false},
		{PlatformM1, 1, true},
		{PlatformM1Ultra, 1, true},
		{PlatformM2Pro, 2, true},
		{PlatformM3, 3, true},
		{PlatformM4Max, 4, true},
	}
	for _, tt := range tests {
		if g := tt.p.Generation(); g != tt.generation {
			t.Errorf("%s: generation %d, want %d", tt.p, g, tt.generation)
		}
		if s := tt.p.IsAppleSilicon(); s != tt.silicon {
			t.Errorf("%s: apple silicon %v", tt.p, s)
		}
	}
}

func TestParsePlatform_RoundTrip(t *testing.T) {
	for _, p := range Platforms() {
		got, err := ParsePlatform(p.String())
		if err != nil || got != p {
			t.Errorf("%s: got %s, %v", p, got, err)
		}
	}
	if _, err := ParsePlatform("m5"); err == nil {
		t.Error("expected error for unknown platform")
	}
}

// ============================================================
// Registry Tests
// ============================================================

func TestRegistry_Partitions(t *testing.T) {
	r := NewRegistry(PlatformM2Max)

	cores := r.CPUCoreTempKeys()
	if len(cores) != 12 {
		t.Errorf("M2 core sensors: got %d, want 12", len(cores))
	}
	for _, d := range cores {
		if d.Group != GroupCPU || d.Kind != SensorTemperature || !d.Average {
			t.Errorf("unexpected core sensor %+v", d)
		}
	}
	if cores[0].Key != MustKey("Tp1h") {
		t.Errorf("catalog order not kept: first is %s", cores[0].Key)
	}

	gpu := r.GPUTempKeys()
	if len(gpu) != 5 {
		t.Errorf("M2 GPU temperature sensors: got %d, want 5", len(gpu))
	}

	power := r.ByKind(SensorPower)
	if len(power) != 5 {
		t.Errorf("power sensors: got %d, want 5", len(power))
	}
	if r.Has(MustKey("Th1H")) {
		t.Error("Intel-only sensor present on M2")
	}
}

func TestRegistry_M4Variants(t *testing.T) {
	base := NewRegistry(PlatformM4)
	pro := NewRegistry(PlatformM4Pro)
	if !base.Has(MustKey("Tg0G")) || base.Has(MustKey("Tg1U")) {
		t.Error("M4 base GPU keys wrong")
	}
	if pro.Has(MustKey("Tg0G")) || !pro.Has(MustKey("Tg1U")) {
		t.Error("M4 Pro GPU keys wrong")
	}
}

func TestRegistry_Intel(t *testing.T) {
	r := NewRegistry(PlatformIntel)
	if len(r.CPUCoreTempKeys()) != 0 {
		t.Error("Intel has no averaged core sensors in the catalog")
	}
	d, ok := r.Sensor(MustKey("Th2H"))
	if !ok || d.Name != "Heatpipe 2" || d.Group != GroupSensor {
		t.Errorf("Th2H: %+v, %v", d, ok)
	}
}

func TestRegistry_ProximityKeys(t *testing.T) {
	r := NewRegistry(PlatformM3)
	if k := r.CPUProximityKey(); k != MustKey("TC0P") {
		t.Errorf("cpu proximity: got %s", k)
	}
	if k := r.GPUProximityKey(); k != MustKey("TG0P") {
		t.Errorf("gpu proximity: got %s", k)
	}
}

func TestRegistry_NoDuplicateKeys(t *testing.T) {
	for _, p := range Platforms() {
		seen := make(map[Key]bool)
		for _, d := range NewRegistry(p).Sensors() {
			if seen[d.Key] {
				t.Errorf("%s: duplicate key %s", p, d.Key)
			}
			seen[d.Key] = true
		}
	}
}

func TestSensorDescriptor_Op(t *testing.T) {
	d, _ := NewRegistry(PlatformM1).Sensor(MustKey("PSTR"))
	if op := d.Op(); op.Expect != ExpectWatt || op.Key != d.Key {
		t.Errorf("unexpected op %+v", op)
	}
}
