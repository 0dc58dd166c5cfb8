// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks controller calls and read outcomes for one Conn
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Calls by selector
	TotalCalls   uint64
	InfoCalls    uint64
	DataCalls    uint64
	IndexCalls   uint64
	TransportErr uint64

	// Read outcomes
	TotalReads      uint64
	ValidReads      uint64
	UnknownKeys     uint64
	NotPrivileged   uint64
	ProtocolErrors  uint64
	OversizedReads  uint64
	DecodeErrors    uint64
	DefaultedValues uint64

	// Rates (calculated)
	CallRate  float64 // calls/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordCall counts one call primitive invocation
func (s *Statistics) RecordCall(command uint8, err error) {
	s.TotalCalls++
	switch command {
	case CmdReadKeyInfo:
		s.InfoCalls++
	case CmdReadBytes:
		s.DataCalls++
	case CmdReadByIndex:
		s.IndexCalls++
	}
	if err != nil {
		s.TransportErr++
	}
	s.LastUpdateTime = time.Now()
}

// Update classifies the outcome of one read
func (s *Statistics) Update(err error) {
	s.TotalReads++

	var pe *ProtocolError
	switch {
	case err == nil:
		s.ValidReads++
	case errors.Is(err, ErrUnknownKey):
		s.UnknownKeys++
	case errors.Is(err, ErrNotPrivileged):
		s.NotPrivileged++
	case errors.Is(err, ErrOversizedPayload):
		s.OversizedReads++
	case errors.Is(err, ErrDecode):
		s.DecodeErrors++
	case errors.As(err, &pe):
		s.ProtocolErrors++
	}

	s.LastUpdateTime = time.Now()
}

// Errors returns the number of failed reads, excluding unknown keys
func (s *Statistics) Errors() uint64 {
	return s.NotPrivileged + s.ProtocolErrors + s.OversizedReads + s.DecodeErrors + s.TransportErr
}

// CalculateRates calculates call and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CallRate = float64(s.TotalCalls) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, unknownPercent float64
	if s.TotalReads > 0 {
		validPercent = float64(s.ValidReads) * 100.0 / float64(s.TotalReads)
		unknownPercent = float64(s.UnknownKeys) * 100.0 / float64(s.TotalReads)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Calls:     %8d (info %d, data %d, index %d)\n", s.TotalCalls, s.InfoCalls, s.DataCalls, s.IndexCalls)
	result += fmt.Sprintf("Total Reads:     %8d\n", s.TotalReads)
	result += fmt.Sprintf("Valid Reads:     %8d (%.1f%%)\n", s.ValidReads, validPercent)

	if s.UnknownKeys > 0 {
		result += fmt.Sprintf("Unknown Keys:    %8d (%.1f%%)\n", s.UnknownKeys, unknownPercent)
	}
	if s.DefaultedValues > 0 {
		result += fmt.Sprintf("Defaulted:       %8d\n", s.DefaultedValues)
	}
	if s.NotPrivileged > 0 {
		result += fmt.Sprintf("Not Privileged:  %8d\n", s.NotPrivileged)
	}
	if s.ProtocolErrors > 0 {
		result += fmt.Sprintf("Protocol Errors: %8d\n", s.ProtocolErrors)
	}
	if s.OversizedReads > 0 {
		result += fmt.Sprintf("Oversized:       %8d\n", s.OversizedReads)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.TransportErr > 0 {
		result += fmt.Sprintf("Transport Errs:  %8d\n", s.TransportErr)
	}

	result += fmt.Sprintf("Call Rate:       %8.1f calls/sec\n", s.CallRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

// countingCaller feeds every call into a Statistics
type countingCaller struct {
	Caller
	stats *Statistics
}

func (c countingCaller) Call(req []byte, respSize int) ([]byte, Status, error) {
	resp, status, err := c.Caller.Call(req, respSize)
	var command uint8
	if len(req) > offCommand {
		command = req[offCommand]
	}
	c.stats.RecordCall(command, err)
	return resp, status, err
}
