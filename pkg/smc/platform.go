// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"fmt"
	"strings"
)

// Platform identifies a hardware family with its own sensor key set
type Platform uint8

const (
	PlatformIntel Platform = iota
	PlatformM1
	PlatformM1Pro
	PlatformM1Max
	PlatformM1Ultra
	PlatformM2
	PlatformM2Pro
	PlatformM2Max
	PlatformM2Ultra
	PlatformM3
	PlatformM3Pro
	PlatformM3Max
	PlatformM3Ultra
	PlatformM4
	PlatformM4Pro
	PlatformM4Max
	PlatformM4Ultra
)

var platformNames = []string{
	"intel",
	"m1", "m1-pro", "m1-max", "m1-ultra",
	"m2", "m2-pro", "m2-max", "m2-ultra",
	"m3", "m3-pro", "m3-max", "m3-ultra",
	"m4", "m4-pro", "m4-max", "m4-ultra",
}

// Platforms returns every known platform
func Platforms() []Platform {
	out := make([]Platform, len(platformNames))
	for i := range out {
		out[i] = Platform(i)
	}
	return out
}

func (p Platform) String() string {
	if int(p) < len(platformNames) {
		return platformNames[p]
	}
	return fmt.Sprintf("platform(%d)", p)
}

// ParsePlatform parses a name as printed by String
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range platformNames {
		if name == s {
			return Platform(i), nil
		}
	}
	return 0, fmt.Errorf("unknown platform %q", s)
}

// IsAppleSilicon reports whether p is an M-series platform
func (p Platform) IsAppleSilicon() bool {
	return p != PlatformIntel
}

// Generation returns 1-4 for M-series platforms and 0 for Intel
func (p Platform) Generation() int {
	if p == PlatformIntel {
		return 0
	}
	return (int(p)-1)/4 + 1
}

// DetectPlatform classifies a CPU brand string such as "Apple M2 Pro".
// Unrecognized strings fall back to M1.
func DetectPlatform(brand string) Platform {
	b := strings.ToLower(strings.TrimSpace(brand))
	for gen := 1; gen <= 4; gen++ {
		if !strings.Contains(b, fmt.Sprintf("apple m%d", gen)) {
			continue
		}
		base := Platform(1 + (gen-1)*4)
		switch {
		case strings.Contains(b, "ultra"):
			return base + 3
		case strings.Contains(b, "max"):
			return base + 2
		case strings.Contains(b, "pro"):
			return base + 1
		}
		return base
	}
	if strings.Contains(b, "intel") {
		return PlatformIntel
	}
	return PlatformM1
}

// SensorGroup classifies where a sensor sits
type SensorGroup uint8

const (
	GroupCPU SensorGroup = iota
	GroupGPU
	GroupSystem
	GroupSensor
)

func (g SensorGroup) String() string {
	switch g {
	case GroupCPU:
		return "CPU"
	case GroupGPU:
		return "GPU"
	case GroupSystem:
		return "System"
	default:
		return "Sensor"
	}
}

// SensorKind is the measured quantity
type SensorKind uint8

const (
	SensorTemperature SensorKind = iota
	SensorVoltage
	SensorCurrent
	SensorPower
)

func (k SensorKind) String() string {
	switch k {
	case SensorTemperature:
		return "temperature"
	case SensorVoltage:
		return "voltage"
	case SensorCurrent:
		return "current"
	default:
		return "power"
	}
}

// SensorDescriptor describes one catalogued sensor key
type SensorDescriptor struct {
	Key       Key
	Name      string
	Group     SensorGroup
	Kind      SensorKind
	Platforms []Platform
	Average   bool // multiple instances should be averaged
}

// AppliesTo reports whether the sensor exists on p
func (d SensorDescriptor) AppliesTo(p Platform) bool {
	for _, q := range d.Platforms {
		if q == p {
			return true
		}
	}
	return false
}

// Op returns a read operation for the descriptor
func (d SensorDescriptor) Op() Op {
	expect := ExpectValue
	switch d.Kind {
	case SensorTemperature:
		expect = ExpectCelsius
	case SensorPower:
		expect = ExpectWatt
	case SensorVoltage:
		expect = ExpectVolt
	}
	return Op{Name: d.Name, Key: d.Key, Expect: expect}
}

func generation(gen int) []Platform {
	base := Platform(1 + (gen-1)*4)
	return []Platform{base, base + 1, base + 2, base + 3}
}

func sensor(key, name string, group SensorGroup, kind SensorKind, platforms []Platform, average bool) SensorDescriptor {
	return SensorDescriptor{Key: MustKey(key), Name: name, Group: group, Kind: kind, Platforms: platforms, Average: average}
}

// catalog is built once and never mutated
var catalog = buildCatalog()

func buildCatalog() []SensorDescriptor {
	all := Platforms()
	intel := []Platform{PlatformIntel}
	m1, m2, m3, m4 := generation(1), generation(2), generation(3), generation(4)

	return []SensorDescriptor{
		// Universal temperatures
		sensor("TC0D", "CPU diode", GroupCPU, SensorTemperature, all, false),
		sensor("TC0F", "CPU diode filtered", GroupCPU, SensorTemperature, all, false),
		sensor("TC0P", "CPU proximity", GroupCPU, SensorTemperature, all, false),
		sensor("TCGC", "GPU Intel Graphics", GroupGPU, SensorTemperature, all, false),
		sensor("TG0P", "GPU proximity", GroupGPU, SensorTemperature, all, false),
		sensor("TGDD", "GPU AMD Radeon", GroupGPU, SensorTemperature, all, false),

		// Intel only
		sensor("Th1H", "Heatpipe 1", GroupSensor, SensorTemperature, intel, false),
		sensor("Th2H", "Heatpipe 2", GroupSensor, SensorTemperature, intel, false),

		// M1
		sensor("Tp09", "CPU efficiency core 1", GroupCPU, SensorTemperature, m1, true),
		sensor("Tp0T", "CPU efficiency core 2", GroupCPU, SensorTemperature, m1, true),
		sensor("Tp01", "CPU performance core 1", GroupCPU, SensorTemperature, m1, true),
		sensor("Tp05", "CPU performance core 2", GroupCPU, SensorTemperature, m1, true),
		sensor("Tg05", "GPU 1", GroupGPU, SensorTemperature, m1, true),
		sensor("Tg0D", "GPU 2", GroupGPU, SensorTemperature, m1, true),

		// M2
		sensor("Tp1h", "CPU efficiency core 1", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp1t", "CPU efficiency core 2", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp1p", "CPU efficiency core 3", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp1l", "CPU efficiency core 4", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp01", "CPU performance core 1", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp05", "CPU performance core 2", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp09", "CPU performance core 3", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp0D", "CPU performance core 4", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp0X", "CPU performance core 5", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp0b", "CPU performance core 6", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp0f", "CPU performance core 7", GroupCPU, SensorTemperature, m2, true),
		sensor("Tp0j", "CPU performance core 8", GroupCPU, SensorTemperature, m2, true),
		sensor("Tg0f", "GPU 1", GroupGPU, SensorTemperature, m2, true),
		sensor("Tg0j", "GPU 2", GroupGPU, SensorTemperature, m2, true),

		// M3
		sensor("Te05", "CPU efficiency core 1", GroupCPU, SensorTemperature, m3, true),
		sensor("Te0L", "CPU efficiency core 2", GroupCPU, SensorTemperature, m3, true),
		sensor("Tf04", "CPU performance core 1", GroupCPU, SensorTemperature, m3, true),
		sensor("Tf09", "CPU performance core 2", GroupCPU, SensorTemperature, m3, true),
		sensor("Tf14", "GPU 1", GroupGPU, SensorTemperature, m3, true),
		sensor("Tf18", "GPU 2", GroupGPU, SensorTemperature, m3, true),

		// M4. GPU keys differ between the base chip and the larger variants.
		sensor("Te05", "CPU efficiency core 1", GroupCPU, SensorTemperature, m4, true),
		sensor("Te0S", "CPU efficiency core 2", GroupCPU, SensorTemperature, m4, true),
		sensor("Tp01", "CPU performance core 1", GroupCPU, SensorTemperature, m4, true),
		sensor("Tp05", "CPU performance core 2", GroupCPU, SensorTemperature, m4, true),
		sensor("Tg0G", "GPU 1", GroupGPU, SensorTemperature, []Platform{PlatformM4}, true),
		sensor("Tg1U", "GPU 1", GroupGPU, SensorTemperature, []Platform{PlatformM4Pro, PlatformM4Max, PlatformM4Ultra}, true),

		// Power
		sensor("PCPC", "CPU Package", GroupCPU, SensorPower, all, false),
		sensor("PCPT", "CPU Package total", GroupCPU, SensorPower, all, false),
		sensor("PG0R", "GPU 1", GroupGPU, SensorPower, all, false),
		sensor("PDTR", "DC In", GroupSensor, SensorPower, all, false),
		sensor("PSTR", "System Total", GroupSensor, SensorPower, all, false),
	}
}

// Catalog returns a copy of the full descriptor catalog
func Catalog() []SensorDescriptor {
	return append([]SensorDescriptor(nil), catalog...)
}

// Registry is the read-only view of the catalog for one platform.
// Sensors keep catalog order.
type Registry struct {
	platform Platform
	sensors  []SensorDescriptor
	byKey    map[Key]int
}

// NewRegistry selects the descriptors that apply to p
func NewRegistry(p Platform) *Registry {
	r := &Registry{platform: p, byKey: make(map[Key]int)}
	for _, d := range catalog {
		if !d.AppliesTo(p) {
			continue
		}
		if _, dup := r.byKey[d.Key]; dup {
			continue
		}
		r.byKey[d.Key] = len(r.sensors)
		r.sensors = append(r.sensors, d)
	}
	return r
}

// Platform returns the platform the registry was built for
func (r *Registry) Platform() Platform {
	return r.platform
}

// Sensors returns the descriptors for the platform
func (r *Registry) Sensors() []SensorDescriptor {
	return append([]SensorDescriptor(nil), r.sensors...)
}

// Has reports whether key is catalogued for the platform
func (r *Registry) Has(key Key) bool {
	_, ok := r.byKey[key]
	return ok
}

// Sensor returns the descriptor for key
func (r *Registry) Sensor(key Key) (SensorDescriptor, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return SensorDescriptor{}, false
	}
	return r.sensors[i], true
}

// Filter returns the descriptors matching fn
func (r *Registry) Filter(fn func(SensorDescriptor) bool) []SensorDescriptor {
	var out []SensorDescriptor
	for _, d := range r.sensors {
		if fn(d) {
			out = append(out, d)
		}
	}
	return out
}

// ByKind returns the descriptors measuring kind
func (r *Registry) ByKind(kind SensorKind) []SensorDescriptor {
	return r.Filter(func(d SensorDescriptor) bool { return d.Kind == kind })
}

// ByGroup returns the descriptors in group
func (r *Registry) ByGroup(group SensorGroup) []SensorDescriptor {
	return r.Filter(func(d SensorDescriptor) bool { return d.Group == group })
}

// CPUCoreTempKeys returns the per-core CPU temperature sensors to average
func (r *Registry) CPUCoreTempKeys() []SensorDescriptor {
	return r.Filter(func(d SensorDescriptor) bool {
		return d.Group == GroupCPU && d.Kind == SensorTemperature && d.Average
	})
}

// GPUTempKeys returns the GPU temperature sensors
func (r *Registry) GPUTempKeys() []SensorDescriptor {
	return r.Filter(func(d SensorDescriptor) bool {
		return d.Group == GroupGPU && d.Kind == SensorTemperature
	})
}

// CPUProximityKey returns the first catalogued CPU proximity candidate
func (r *Registry) CPUProximityKey() Key {
	return r.firstOf(OpCPUProximity.Key, "TC0P", "TCAD", "TC0D")
}

// GPUProximityKey returns the first catalogued GPU proximity candidate
func (r *Registry) GPUProximityKey() Key {
	return r.firstOf(OpGPUProximity.Key, "TG0P", "TGDD", "TCGC")
}

func (r *Registry) firstOf(fallback Key, candidates ...string) Key {
	for _, c := range candidates {
		if k := MustKey(c); r.Has(k) {
			return k
		}
	}
	return fallback
}
