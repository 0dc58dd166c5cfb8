// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var (
	sensorsCatalog bool
	sensorsGroup   string
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "List the platform sensor catalog and probe each sensor",
	Long: `List the sensors catalogued for the platform and read each one.

With --catalog the static catalog is printed for every platform without
opening a connection.`,
	RunE: runSensors,
}

func init() {
	sensorsCmd.Flags().BoolVar(&sensorsCatalog, "catalog", false, "Print the catalog for all platforms without reading")
	sensorsCmd.Flags().StringVar(&sensorsGroup, "group", "", "Only sensors of a group (cpu, gpu, system, sensor)")
	rootCmd.AddCommand(sensorsCmd)
}

func parseGroup(s string) (smc.SensorGroup, error) {
	for _, g := range []smc.SensorGroup{smc.GroupCPU, smc.GroupGPU, smc.GroupSystem, smc.GroupSensor} {
		if strings.EqualFold(g.String(), s) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor group %q", s)
}

func runSensors(cmd *cobra.Command, args []string) error {
	filter := func(smc.SensorDescriptor) bool { return true }
	if sensorsGroup != "" {
		g, err := parseGroup(sensorsGroup)
		if err != nil {
			return err
		}
		filter = func(d smc.SensorDescriptor) bool { return d.Group == g }
	}

	if sensorsCatalog {
		for _, d := range smc.Catalog() {
			if !filter(d) {
				continue
			}
			names := make([]string, 0, len(d.Platforms))
			for _, p := range d.Platforms {
				names = append(names, p.String())
			}
			fmt.Printf("%-4s %-26s %-6s %-11s %s\n", d.Key, d.Name, d.Group, d.Kind, strings.Join(names, ","))
		}
		return nil
	}

	return withConn(func(conn *smc.Conn) error {
		sensors := conn.Registry().Filter(filter)
		fmt.Printf("Platform %s: %d sensors\n\n", conn.Platform(), len(sensors))

		available := 0
		for _, d := range sensors {
			v, err := conn.ReadSensor(d.Key)
			switch {
			case errors.Is(err, smc.ErrUnknownKey):
				fmt.Printf("  %-4s %-26s %-6s --\n", d.Key, d.Name, d.Group)
			case err != nil:
				return fmt.Errorf("%s: %w", d.Key, err)
			default:
				available++
				fmt.Printf("  %-4s %-26s %-6s %s\n", d.Key, d.Name, d.Group, v)
			}
		}

		fmt.Printf("\n%d of %d sensors available\n", available, len(sensors))
		return nil
	})
}
