// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package export collects controller readings and ships them to
// time-series sinks.
package export

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// Sample is one numeric reading
type Sample struct {
	Measurement string
	Field       string
	Value       float64
	Tags        map[string]string
}

// Point groups the samples that share a measurement and tag set
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
}

// Sink receives batches of samples
type Sink interface {
	Write(ctx context.Context, samples []Sample) error
	Close() error
}

// Group merges samples into points, keeping first-seen order
func Group(samples []Sample) []Point {
	var (
		points []Point
		index  = make(map[string]int)
	)
	for _, s := range samples {
		id := seriesKey(s.Measurement, s.Tags)
		i, ok := index[id]
		if !ok {
			i = len(points)
			index[id] = i
			points = append(points, Point{
				Measurement: s.Measurement,
				Tags:        maps.Clone(s.Tags),
				Fields:      make(map[string]float64),
			})
		}
		points[i].Fields[s.Field] = s.Value
	}
	return points
}

func seriesKey(measurement string, tags map[string]string) string {
	var sb strings.Builder
	sb.WriteString(measurement)
	for _, k := range slices.Sorted(maps.Keys(tags)) {
		sb.WriteByte(',')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(tags[k])
	}
	return sb.String()
}
