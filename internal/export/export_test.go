// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/smcstat/internal/config"
	"github.com/Thermoquad/smcstat/pkg/smc"
	"github.com/Thermoquad/smcstat/pkg/smc/smctest"
)

// ============================================================
// Test Helpers
// ============================================================

func newMachine() *smctest.Controller {
	return smctest.New().
		SetFloat("TC0P", 48).SetFloat("TC0F", 55).
		SetFloat("TC1C", 50).SetFloat("TC2C", 52).
		SetFloat("TG0P", 60).
		SetFloat("TM0P", 41).SetFloat("Th1H", 45).
		SetFloat("PCPC", 12.5).SetFloat("PCPT", 20).SetFloat("PSTR", 35).
		SetUint("FNum", 1, 1).
		SetFloat("F0Ac", 2400).SetFloat("F0Mn", 1200).SetFloat("F0Mx", 6000).
		SetFloat("F0Tg", 2400).SetUint("F0Md", 1, 1).
		SetUint("BNum", 1, 1).
		SetFlag("BATP", true).SetUint("BSIn", 1, 0x41).
		SetUint("B0CT", 2, 100).SetUint("B0RM", 2, 2500).SetUint("B0FC", 2, 5000).
		SetInt("B0AC", 2, -1000).SetUint("B0AV", 2, 12000).SetFloat("B0AP", 12)
}

func allMetrics() config.MetricsConfig {
	return config.Default().Metrics
}

func find(samples []Sample, measurement, field string, tags ...string) (Sample, bool) {
	for _, s := range samples {
		if s.Measurement != measurement || s.Field != field {
			continue
		}
		match := true
		for i := 0; i+1 < len(tags); i += 2 {
			if s.Tags[tags[i]] != tags[i+1] {
				match = false
			}
		}
		if match {
			return s, true
		}
	}
	return Sample{}, false
}

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (w *fakeWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	w.points = append(w.points, points...)
	return w.err
}

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu           sync.Mutex
	messages     []published
	err          error
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{err: p.err}
}

func (p *fakePublisher) Disconnect(uint) { p.disconnected = true }

type fakeSink struct {
	batches [][]Sample
	err     error
	closed  bool
}

func (s *fakeSink) Write(_ context.Context, samples []Sample) error {
	s.batches = append(s.batches, samples)
	return s.err
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeSource struct {
	calls   int
	samples []Sample
	err     error
}

func (s *fakeSource) Collect() ([]Sample, error) {
	s.calls++
	return s.samples, s.err
}

// ============================================================
// Group Tests
// ============================================================

func TestGroup(t *testing.T) {
	samples := []Sample{
		{Measurement: "fan", Field: "actual", Value: 1, Tags: map[string]string{"fan": "0"}},
		{Measurement: "fan", Field: "actual", Value: 2, Tags: map[string]string{"fan": "1"}},
		{Measurement: "fan", Field: "min", Value: 3, Tags: map[string]string{"fan": "0"}},
		{Measurement: "power", Field: "cpu", Value: 4},
	}

	points := Group(samples)
	require.Len(t, points, 3)
	assert.Equal(t, map[string]float64{"actual": 1, "min": 3}, points[0].Fields)
	assert.Equal(t, "1", points[1].Tags["fan"])
	assert.Equal(t, "power", points[2].Measurement)
}

// ============================================================
// Collector Tests
// ============================================================

func TestCollector_Intel(t *testing.T) {
	conn := smc.NewConn(newMachine(), smc.WithPlatform(smc.PlatformIntel))
	c := NewCollector(conn, allMetrics(), "studio", 4)

	samples, err := c.Collect()
	require.NoError(t, err)

	s, ok := find(samples, MeasurementCPUTemp, "proximity")
	require.True(t, ok)
	assert.Equal(t, 48.0, s.Value)
	assert.Equal(t, "studio", s.Tags["host"])

	s, ok = find(samples, MeasurementCoreTemp, "celsius", "core", "1")
	require.True(t, ok)
	assert.Equal(t, 52.0, s.Value)
	_, ok = find(samples, MeasurementCoreTemp, "celsius", "core", "3")
	assert.False(t, ok, "absent core keys read as zero and are skipped")

	s, ok = find(samples, MeasurementSystemTemp, "heatpipe_1")
	require.True(t, ok)
	assert.Equal(t, 45.0, s.Value)
	_, ok = find(samples, MeasurementSystemTemp, "airport")
	assert.False(t, ok)

	s, ok = find(samples, MeasurementPower, "system_total")
	require.True(t, ok)
	assert.Equal(t, 35.0, s.Value)

	s, ok = find(samples, MeasurementFan, "percentage", "fan", "0")
	require.True(t, ok)
	assert.InDelta(t, 25.0, s.Value, 0.001)
	s, ok = find(samples, MeasurementFan, "forced", "fan", "0")
	require.True(t, ok)
	assert.Equal(t, 1.0, s.Value)

	s, ok = find(samples, MeasurementBattery, "percentage", "battery", "0")
	require.True(t, ok)
	assert.InDelta(t, 50.0, s.Value, 0.001)
	s, ok = find(samples, MeasurementBattery, "voltage", "battery", "0")
	require.True(t, ok)
	assert.InDelta(t, 12.0, s.Value, 0.001)
}

func TestCollector_AppleSiliconSensors(t *testing.T) {
	ctrl := newMachine().SetFloat("Tp01", 61).SetFloat("Tp05", 63)
	conn := smc.NewConn(ctrl, smc.WithPlatform(smc.PlatformM1))
	c := NewCollector(conn, config.MetricsConfig{CPUTemp: true}, "air", 8)

	samples, err := c.Collect()
	require.NoError(t, err)

	s, ok := find(samples, MeasurementCoreTemp, "celsius", "sensor", "Tp05")
	require.True(t, ok)
	assert.Equal(t, 63.0, s.Value)
	assert.Equal(t, "CPU performance core 2", s.Tags["name"])

	s, ok = find(samples, MeasurementCPUTemp, "core_average")
	require.True(t, ok)
	assert.Equal(t, 62.0, s.Value)

	_, ok = find(samples, MeasurementFan, "actual")
	assert.False(t, ok, "disabled groups are not read")
}

func TestCollector_PartialFailure(t *testing.T) {
	ctrl := newMachine()
	ctrl.KeyStatus = map[smc.Key]smc.Status{smc.MustKey("F0Ac"): 0xE00002BC}

	conn := smc.NewConn(ctrl, smc.WithPlatform(smc.PlatformIntel))
	c := NewCollector(conn, allMetrics(), "studio", 2)

	samples, err := c.Collect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fans")

	var perr *smc.ProtocolError
	assert.True(t, errors.As(err, &perr))

	_, ok := find(samples, MeasurementPower, "cpu_core")
	assert.True(t, ok, "other groups still report")
}

func TestCollector_BatteryFailureKeepsOthers(t *testing.T) {
	ctrl := newMachine().
		SetUint("BNum", 1, 2).
		SetUint("B1CT", 2, 300).SetUint("B1RM", 2, 1000).SetUint("B1FC", 2, 4000).
		SetInt("B1AC", 2, 500).SetUint("B1AV", 2, 11000).SetFloat("B1AP", 5)
	ctrl.KeyStatus[smc.MustKey("B0CT")] = 0xE00002BC

	conn := smc.NewConn(ctrl, smc.WithPlatform(smc.PlatformIntel))
	c := NewCollector(conn, config.MetricsConfig{Battery: true}, "studio", 2)

	samples, err := c.Collect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "battery 0")

	_, ok := find(samples, MeasurementBattery, "cycles", "battery", "0")
	assert.False(t, ok)
	s, ok := find(samples, MeasurementBattery, "cycles", "battery", "1")
	require.True(t, ok, "later batteries still report")
	assert.Equal(t, 300.0, s.Value)
	_, ok = find(samples, MeasurementBattery, "charging")
	assert.True(t, ok)
}

// ============================================================
// InfluxDB Sink Tests
// ============================================================

func TestInfluxSink_Points(t *testing.T) {
	w := &fakeWriter{}
	sink := newInfluxSink(w, config.InfluxConfig{
		MeasurementPrefix: "smc",
		Tags:              map[string]string{"site": "lab"},
	})
	sink.now = func() time.Time { return time.Unix(1700000000, 0) }

	err := sink.Write(context.Background(), []Sample{
		{Measurement: "power", Field: "cpu_total", Value: 20, Tags: map[string]string{"host": "studio"}},
		{Measurement: "power", Field: "gpu", Value: 5, Tags: map[string]string{"host": "studio"}},
	})
	require.NoError(t, err)
	require.Len(t, w.points, 1)

	line := write.PointToLineProtocol(w.points[0], time.Second)
	assert.True(t, strings.HasPrefix(line, "smc_power,host=studio,site=lab "), line)
	assert.Contains(t, line, "cpu_total=20")
	assert.Contains(t, line, "gpu=5")
	assert.Contains(t, line, "1700000000")
}

func TestInfluxSink_EmptyBatch(t *testing.T) {
	w := &fakeWriter{err: errors.New("unreachable")}
	sink := newInfluxSink(w, config.InfluxConfig{})
	assert.NoError(t, sink.Write(context.Background(), nil))
	assert.Empty(t, w.points)
}

func TestInfluxSink_WriteError(t *testing.T) {
	sink := newInfluxSink(&fakeWriter{err: errors.New("401 unauthorized")}, config.InfluxConfig{})
	err := sink.Write(context.Background(), []Sample{{Measurement: "fan", Field: "actual", Value: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewInfluxSink_Disabled(t *testing.T) {
	_, err := NewInfluxSink(context.Background(), config.InfluxConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

// ============================================================
// MQTT Sink Tests
// ============================================================

func TestMQTTSink_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	sink := newMQTTSink(pub, config.MQTTConfig{TopicPrefix: "/smcstat/", QoS: 1, Retained: true}, "studio")
	sink.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := sink.Write(context.Background(), []Sample{
		{Measurement: "fan", Field: "actual", Value: 2400, Tags: map[string]string{"host": "studio", "fan": "0"}},
		{Measurement: "power", Field: "cpu_total", Value: 20, Tags: map[string]string{"host": "studio"}},
	})
	require.NoError(t, err)
	require.Len(t, pub.messages, 2)

	assert.Equal(t, "smcstat/studio/fan/0", pub.messages[0].topic)
	assert.Equal(t, "smcstat/studio/power", pub.messages[1].topic)
	assert.Equal(t, byte(1), pub.messages[0].qos)
	assert.True(t, pub.messages[0].retained)

	var doc mqttDocument
	require.NoError(t, json.Unmarshal(pub.messages[0].payload, &doc))
	assert.Equal(t, "fan", doc.Measurement)
	assert.Equal(t, 2400.0, doc.Fields["actual"])
	assert.Equal(t, "2025-01-02T03:04:05Z", doc.Timestamp)

	require.NoError(t, sink.Close())
	assert.True(t, pub.disconnected)
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	sink := newMQTTSink(pub, config.MQTTConfig{TopicPrefix: "smcstat"}, "studio")

	err := sink.Write(context.Background(), []Sample{{Measurement: "power", Field: "gpu", Value: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smcstat/studio/power")
}

func TestMQTTSink_TopicWithoutPrefix(t *testing.T) {
	sink := newMQTTSink(&fakePublisher{}, config.MQTTConfig{}, "mini")
	topic := sink.Topic(Point{Measurement: "core_temp", Tags: map[string]string{"host": "mini", "sensor": "Tp01", "name": "CPU"}})
	assert.Equal(t, "mini/core_temp/Tp01", topic)
}

func TestDefaultClientID(t *testing.T) {
	a, b := DefaultClientID(), DefaultClientID()
	assert.True(t, strings.HasPrefix(a, "smcstat-"))
	assert.Len(t, a, len("smcstat-")+8)
	assert.NotEqual(t, a, b)
}

// ============================================================
// Runner Tests
// ============================================================

func TestRunner_RunOnce(t *testing.T) {
	src := &fakeSource{samples: []Sample{{Measurement: "power", Field: "gpu", Value: 3}}}
	good, bad := &fakeSink{}, &fakeSink{err: errors.New("down")}
	r := &Runner{Source: src, Sinks: []Sink{good, bad}, Interval: time.Second}

	n, err := r.RunOnce(context.Background())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, good.batches, 1)
	assert.Len(t, bad.batches, 1, "a failing sink does not starve the others")
}

func TestRunner_PartialCollectionStillDelivered(t *testing.T) {
	src := &fakeSource{
		samples: []Sample{{Measurement: "power", Field: "gpu", Value: 3}},
		err:     errors.New("fans: boom"),
	}
	sink := &fakeSink{}
	r := &Runner{Source: src, Sinks: []Sink{sink}, Interval: time.Second}

	_, err := r.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 1)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{err: errors.New("always failing")}
	sink := &fakeSink{}
	r := &Runner{Source: src, Sinks: []Sink{sink}, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, src.calls, 2, "errors do not stop the loop")

	require.NoError(t, r.Close())
	assert.True(t, sink.closed)
}

func TestRunner_InvalidInterval(t *testing.T) {
	r := &Runner{Source: &fakeSource{}}
	assert.Error(t, r.Run(context.Background()))
}
