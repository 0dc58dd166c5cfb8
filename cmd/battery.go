// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Show battery status and per-battery details",
	RunE:  runBattery,
}

func init() {
	rootCmd.AddCommand(batteryCmd)
}

func runBattery(cmd *cobra.Command, args []string) error {
	return withConn(func(conn *smc.Conn) error {
		info, err := conn.BatteryInfo()
		if err != nil {
			return err
		}
		fmt.Println("Battery status:")
		fmt.Print(smc.FormatBatteryInfo(info))

		it, err := conn.Batteries()
		if err != nil {
			return err
		}
		if it.Len() == 0 {
			fmt.Println("\nNo batteries reported")
			return nil
		}

		i := 0
		for b, err := range it.All() {
			if err != nil {
				return fmt.Errorf("battery %d: %w", i, err)
			}
			fmt.Println()
			fmt.Print(smc.FormatBatteryDetail(i, b))
			i++
		}
		return nil
	})
}
