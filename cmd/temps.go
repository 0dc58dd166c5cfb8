// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/internal/export"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

var tempsCores int

// levelNames labels the result of smc.Level
var levelNames = [5]string{"", "warm", "hot", "very hot", "critical"}

var tempsCmd = &cobra.Command{
	Use:   "temps",
	Short: "Show CPU, GPU and board temperatures",
	Long: `Show the CPU, GPU and board temperature composites followed by the
per-core sensors of the platform.

On Intel the cores are read through the numbered core keys (at most 9); on
Apple Silicon the platform sensor catalog is used.`,
	RunE: runTemps,
}

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Show power rails",
	RunE:  runPower,
}

func init() {
	tempsCmd.Flags().IntVar(&tempsCores, "cores", runtime.NumCPU(), "Number of Intel cores to read")
	rootCmd.AddCommand(tempsCmd)
	rootCmd.AddCommand(powerCmd)
}

func celsiusLine(name string, c smc.Celsius) string {
	line := fmt.Sprintf("  %-26s %s", name+":", smc.FormatCelsius(c))
	if l := levelNames[smc.Level(c, smc.CelsiusThresholds())]; l != "" {
		line += "  [" + l + "]"
	}
	return line
}

func wattLine(name string, w smc.Watt) string {
	line := fmt.Sprintf("  %-26s %6.2f W", name+":", float32(w))
	if l := levelNames[smc.Level(w, smc.WattThresholds())]; l != "" {
		line += "  [" + l + "]"
	}
	return line
}

func runTemps(cmd *cobra.Command, args []string) error {
	return withConn(func(conn *smc.Conn) error {
		cpu, err := conn.CPUTemperatures()
		if err != nil {
			return err
		}
		fmt.Printf("CPU (%s):\n", conn.Platform())
		fmt.Println(celsiusLine("Proximity", cpu.Proximity))
		fmt.Println(celsiusLine("Die", cpu.Die))
		fmt.Println(celsiusLine("Graphics", cpu.Graphics))
		fmt.Println(celsiusLine("System agent", cpu.SystemAgent))

		if err := printCores(conn); err != nil {
			return err
		}

		gpu, err := conn.GPUTemperatures()
		if err != nil {
			return err
		}
		fmt.Println("\nGPU:")
		fmt.Println(celsiusLine("Proximity", gpu.Proximity))
		fmt.Println(celsiusLine("Die", gpu.Die))
		if conn.Platform().IsAppleSilicon() {
			readings, err := conn.PlatformGPUTemps()
			if err != nil {
				return err
			}
			for _, r := range readings {
				fmt.Println("  " + smc.FormatSensorReading(r))
			}
		}

		other, err := conn.OtherTemperatures()
		if err != nil {
			return err
		}
		fmt.Println("\nBoard:")
		for _, f := range []struct {
			name  string
			value smc.Celsius
		}{
			{"Memory bank proximity", other.MemoryBankProximity},
			{"Mainboard proximity", other.MainboardProximity},
			{"PCH die", other.PlatformControllerHubDie},
			{"Airport", other.Airport},
			{"Airflow left", other.AirflowLeft},
			{"Airflow right", other.AirflowRight},
			{"Thunderbolt left", other.ThunderboltLeft},
			{"Thunderbolt right", other.ThunderboltRight},
			{"Heatpipe 1", other.Heatpipe1},
			{"Heatpipe 2", other.Heatpipe2},
			{"Palm rest 1", other.PalmRest1},
			{"Palm rest 2", other.PalmRest2},
		} {
			if f.value == 0 {
				continue
			}
			fmt.Println(celsiusLine(f.name, f.value))
		}
		return nil
	})
}

func printCores(conn *smc.Conn) error {
	fmt.Println("\nCores:")

	if conn.Platform().IsAppleSilicon() {
		readings, err := conn.PlatformCPUCoreTemps()
		if err != nil {
			return err
		}
		for _, r := range readings {
			fmt.Println("  " + smc.FormatSensorReading(r))
		}
		if avg, ok := smc.AverageCelsius(readings); ok {
			fmt.Println(celsiusLine("Average", avg))
		}
		return nil
	}

	it, err := conn.CPUCoreTemps(min(tempsCores, export.MaxDigitCores))
	if err != nil {
		return err
	}
	i := 0
	for c, err := range it.All() {
		if err != nil {
			return fmt.Errorf("core %d: %w", i, err)
		}
		if c != 0 {
			fmt.Println(celsiusLine(fmt.Sprintf("Core %d", i), c))
		}
		i++
	}
	return nil
}

func runPower(cmd *cobra.Command, args []string) error {
	return withConn(func(conn *smc.Conn) error {
		cpu, err := conn.CPUPower()
		if err != nil {
			return err
		}
		gpu, err := conn.GPUPower()
		if err != nil {
			return err
		}
		dc, err := conn.DCInPower()
		if err != nil {
			return err
		}
		total, err := conn.SystemTotalPower()
		if err != nil {
			return err
		}

		fmt.Println("Power:")
		fmt.Println(wattLine("CPU core", cpu.Core))
		fmt.Println(wattLine("CPU DRAM", cpu.DRAM))
		fmt.Println(wattLine("CPU GFX", cpu.GFX))
		fmt.Println(wattLine("CPU rail", cpu.Rail))
		fmt.Println(wattLine("CPU total", cpu.Total))
		fmt.Println(wattLine("GPU rail", gpu))
		fmt.Println(wattLine("DC in", dc))
		fmt.Println(wattLine("System total", total))
		return nil
	})
}
