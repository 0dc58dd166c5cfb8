// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/internal/export"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

var (
	monitorInterval time.Duration
	monitorPlain    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of temperatures, fans and power",
	Long: `Read temperatures, fans, power and battery on an interval and show them in a
live dashboard together with call statistics.

Use --plain for a line based output suitable for logs.

Examples:
  smcstat monitor
  smcstat monitor --interval 500ms
  smcstat monitor --url ws://mac.local:8765/smc --plain`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", time.Second, "Refresh interval")
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "Print snapshots instead of the dashboard")
	rootCmd.AddCommand(monitorCmd)
}

// reading is one row of a snapshot
type reading struct {
	group string
	name  string
	value string
	level int
}

// snapshot is one round of reads. stats is a copy taken after the round.
type snapshot struct {
	taken    time.Time
	readings []reading
	fans     []smc.FanSpeed
	stats    smc.Statistics
	errs     []error
}

func celsiusReading(group, name string, c smc.Celsius) reading {
	return reading{group: group, name: name, value: smc.FormatCelsius(c), level: smc.Level(c, smc.CelsiusThresholds())}
}

func wattReading(name string, w smc.Watt) reading {
	return reading{group: "Power", name: name, value: fmt.Sprintf("%.2f W", float32(w)), level: smc.Level(w, smc.WattThresholds())}
}

// readSnapshot reads everything the dashboard shows. Failed groups are
// recorded in errs and skipped.
func readSnapshot(conn *smc.Conn, cores int) snapshot {
	snap := snapshot{taken: time.Now()}
	fail := func(what string, err error) {
		snap.errs = append(snap.errs, fmt.Errorf("%s: %w", what, err))
	}

	if cpu, err := conn.CPUTemperatures(); err != nil {
		fail("cpu temperatures", err)
	} else {
		snap.readings = append(snap.readings,
			celsiusReading("CPU", "Proximity", cpu.Proximity),
			celsiusReading("CPU", "Die", cpu.Die),
		)
	}

	if conn.Platform().IsAppleSilicon() {
		if readings, err := conn.PlatformCPUCoreTemps(); err != nil {
			fail("core temperatures", err)
		} else if avg, ok := smc.AverageCelsius(readings); ok {
			snap.readings = append(snap.readings, celsiusReading("CPU", "Core average", avg))
		}
		if readings, err := conn.PlatformGPUTemps(); err != nil {
			fail("gpu temperatures", err)
		} else if avg, ok := smc.AverageCelsius(readings); ok {
			snap.readings = append(snap.readings, celsiusReading("GPU", "Average", avg))
		}
	} else {
		it, err := conn.CPUCoreTemps(min(cores, export.MaxDigitCores))
		if err != nil {
			fail("core temperatures", err)
		} else {
			i := 0
			for c, err := range it.All() {
				if err == nil && c != 0 {
					snap.readings = append(snap.readings, celsiusReading("CPU", fmt.Sprintf("Core %d", i), c))
				}
				i++
			}
		}
		if gpu, err := conn.GPUTemperatures(); err != nil {
			fail("gpu temperatures", err)
		} else if gpu.Proximity != 0 {
			snap.readings = append(snap.readings, celsiusReading("GPU", "Proximity", gpu.Proximity))
		}
	}

	if cpu, err := conn.CPUPower(); err != nil {
		fail("cpu power", err)
	} else {
		snap.readings = append(snap.readings, wattReading("CPU total", cpu.Total))
	}
	if total, err := conn.SystemTotalPower(); err != nil {
		fail("system power", err)
	} else {
		snap.readings = append(snap.readings, wattReading("System total", total))
	}

	if it, err := conn.Fans(); err != nil {
		fail("fans", err)
	} else {
		for f, err := range it.All() {
			if err != nil {
				fail("fan", err)
				continue
			}
			snap.fans = append(snap.fans, f)
		}
	}

	if it, err := conn.Batteries(); err != nil {
		fail("batteries", err)
	} else if b, ok, err := it.Nth(0); err != nil {
		fail("battery", err)
	} else if ok && b.FullCapacity > 0 {
		snap.readings = append(snap.readings, reading{
			group: "Battery",
			name:  "Charge",
			value: fmt.Sprintf("%.1f%% (%d mA)", b.Percentage(), b.Amperage),
		})
	}

	if stats := conn.Stats(); stats != nil {
		snap.stats = *stats
	}
	return snap
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval < 100*time.Millisecond {
		return fmt.Errorf("--interval must be at least 100ms")
	}

	conn, info, err := openConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	if monitorPlain {
		return runMonitorPlain(cmd.Context(), conn)
	}

	p := tea.NewProgram(newMonitorModel(conn, info, monitorInterval, runtime.NumCPU()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func runMonitorPlain(ctx context.Context, conn *smc.Conn) error {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		snap := readSnapshot(conn, runtime.NumCPU())
		fmt.Printf("[%s]", snap.taken.Format("15:04:05"))
		for _, r := range snap.readings {
			fmt.Printf(" %s/%s=%s", r.group, r.name, r.value)
		}
		for i, f := range snap.fans {
			fmt.Printf(" fan%d=%.0frpm", i, float32(f.Actual))
		}
		fmt.Println()

		for _, err := range snap.errs {
			log.Warn("read failed", "error", err)
		}
		if err := errors.Join(snap.errs...); errors.Is(err, smc.ErrClosed) {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
