// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var fansCmd = &cobra.Command{
	Use:   "fans",
	Short: "Show fan speeds",
	RunE:  runFans,
}

func init() {
	rootCmd.AddCommand(fansCmd)
}

func runFans(cmd *cobra.Command, args []string) error {
	return withConn(func(conn *smc.Conn) error {
		it, err := conn.Fans()
		if err != nil {
			return err
		}
		if it.Len() == 0 {
			fmt.Println("No fans reported")
			return nil
		}

		i := 0
		for f, err := range it.All() {
			if err != nil {
				return fmt.Errorf("fan %d: %w", i, err)
			}
			fmt.Println(smc.FormatFan(i, f))
			i++
		}
		return nil
	})
}
