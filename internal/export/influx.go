// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Thermoquad/smcstat/internal/config"
)

const influxPingTimeout = 5 * time.Second

var (
	// ErrDisabled is returned when constructing a sink that is switched off
	ErrDisabled = errors.New("export: sink disabled")
	// ErrConnectionFailed is returned when a sink cannot reach its server
	ErrConnectionFailed = errors.New("export: connection failed")
)

// pointWriter is the part of api.WriteAPIBlocking the sink uses
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes samples through the InfluxDB v2 blocking write API
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	prefix string
	tags   map[string]string
	now    func() time.Time
}

// NewInfluxSink connects to the server in cfg and checks that it is healthy
func NewInfluxSink(ctx context.Context, cfg config.InfluxConfig) (*InfluxSink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Second))

	pingCtx, cancel := context.WithTimeout(ctx, influxPingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	s := newInfluxSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg)
	s.client = client
	return s, nil
}

func newInfluxSink(w pointWriter, cfg config.InfluxConfig) *InfluxSink {
	return &InfluxSink{
		writer: w,
		prefix: cfg.MeasurementPrefix,
		tags:   maps.Clone(cfg.Tags),
		now:    time.Now,
	}
}

// Points converts samples into line protocol points
func (s *InfluxSink) Points(samples []Sample) []*write.Point {
	ts := s.now()
	groups := Group(samples)
	points := make([]*write.Point, 0, len(groups))
	for _, g := range groups {
		tags := maps.Clone(s.tags)
		if tags == nil {
			tags = make(map[string]string, len(g.Tags))
		}
		maps.Copy(tags, g.Tags)

		fields := make(map[string]interface{}, len(g.Fields))
		for k, v := range g.Fields {
			fields[k] = v
		}

		points = append(points, write.NewPoint(s.measurement(g.Measurement), tags, fields, ts))
	}
	return points
}

func (s *InfluxSink) measurement(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "_" + name
}

// Write sends samples in one request
func (s *InfluxSink) Write(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, s.Points(samples)...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close releases the HTTP client
func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
