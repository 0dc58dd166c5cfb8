// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var readTyped bool

var readCmd = &cobra.Command{
	Use:   "read KEY...",
	Short: "Read registers by key",
	Long: `Read one or more registers by their four character key.

Registered operations may also be named (e.g. "cpu proximity"). With --typed,
registered keys are additionally converted to their unit.

Examples:
  smcstat read TC0P FNum
  smcstat read --typed F0Ac PSTR`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRead,
}

var infoCmd = &cobra.Command{
	Use:   "info KEY...",
	Short: "Show the type and size of registers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

func init() {
	readCmd.Flags().BoolVar(&readTyped, "typed", false, "Convert registered keys to their unit")
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(infoCmd)
}

// resolveOp maps a command line argument to an operation
func resolveOp(arg string) (smc.Op, error) {
	if op, ok := smc.LookupOp(arg); ok {
		return op, nil
	}
	return smc.DynamicOp(arg)
}

func runRead(cmd *cobra.Command, args []string) error {
	ops := make([]smc.Op, 0, len(args))
	for _, arg := range args {
		op, err := resolveOp(arg)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	return withConn(func(conn *smc.Conn) error {
		for _, op := range ops {
			line, err := readLine(conn, op)
			if err != nil {
				return err
			}
			fmt.Println(line)
		}
		return nil
	})
}

// readLine reads op and renders it. Unknown keys render as "not found".
func readLine(conn *smc.Conn, op smc.Op) (string, error) {
	p, err := conn.ReadPayload(op)
	if errors.Is(err, smc.ErrUnknownKey) {
		return fmt.Sprintf("%s not found", op.Key), nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op.Key, err)
	}

	line := smc.FormatPayload(p)
	if readTyped && op.Expect != smc.ExpectValue {
		v, err := smc.Convert(op, p)
		if err != nil {
			return line + fmt.Sprintf(" (%v)", err), nil
		}
		line += fmt.Sprintf(" => %v %s", v, op.Expect)
	}
	return line, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	keys := make([]smc.Key, 0, len(args))
	for _, arg := range args {
		op, err := resolveOp(arg)
		if err != nil {
			return err
		}
		keys = append(keys, op.Key)
	}

	return withConn(func(conn *smc.Conn) error {
		for _, key := range keys {
			info, err := conn.KeyInfo(key)
			switch {
			case errors.Is(err, smc.ErrUnknownKey):
				fmt.Printf("%s not found\n", key)
			case err != nil:
				return fmt.Errorf("%s: %w", key, err)
			default:
				fmt.Println(info)
			}
		}
		return nil
	})
}
