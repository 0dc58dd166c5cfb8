// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/smcstat/internal/logging"
)

// Source produces one batch of samples
type Source interface {
	Collect() ([]Sample, error)
}

// Runner collects on a fixed interval and fans each batch out to every sink
type Runner struct {
	Source   Source
	Sinks    []Sink
	Interval time.Duration
	Log      *logging.Logger
}

// RunOnce performs one collection. Collection errors with partial samples
// still deliver what was read.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	samples, collectErr := r.Source.Collect()
	if collectErr != nil {
		r.log().Warn("collection incomplete", "error", collectErr, "samples", len(samples))
	}

	var errs []error
	if collectErr != nil {
		errs = append(errs, collectErr)
	}
	for i, sink := range r.Sinks {
		if err := sink.Write(ctx, samples); err != nil {
			r.log().Error("sink write failed", "sink", fmt.Sprintf("%T", sink), "index", i, "error", err)
			errs = append(errs, err)
		}
	}
	return len(samples), errors.Join(errs...)
}

// Run collects immediately and then on every tick until ctx is cancelled.
// Failed rounds are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return fmt.Errorf("export: interval must be positive, got %v", r.Interval)
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		if err == nil {
			r.log().Debug("exported samples", "count", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes every sink
func (r *Runner) Close() error {
	var errs []error
	for _, sink := range r.Sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) log() *logging.Logger {
	if r.Log == nil {
		return logging.Discard()
	}
	return r.Log
}
