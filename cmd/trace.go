// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var traceCmd = &cobra.Command{
	Use:   "trace KEY...",
	Short: "Read keys and display every controller call",
	Long: `Read one or more keys and print each request/response exchange with the
controller: command, key, status, result byte and returned data.

Useful for seeing the two read phases and how errors are reported by the
controller or a bridge.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
}

// tracingCaller prints every exchange passing through it
type tracingCaller struct {
	smc.Caller
	out io.Writer
	seq int
}

func (c *tracingCaller) Call(req []byte, respSize int) ([]byte, smc.Status, error) {
	c.seq++

	var in smc.KeyData
	if err := in.UnmarshalBinary(req); err != nil {
		fmt.Fprintf(c.out, "#%d [ERROR] %v\n", c.seq, err)
	}

	start := time.Now()
	resp, status, err := c.Caller.Call(req, respSize)
	elapsed := time.Since(start)

	fmt.Fprintf(c.out, "#%-3d %s %-13s %s", c.seq, start.Format("15:04:05.000"), smc.FormatCommand(in.Command), in.Key)
	if in.Command == smc.CmdReadByIndex {
		fmt.Fprintf(c.out, " index=%d", in.Index)
	}
	if err != nil {
		fmt.Fprintf(c.out, " -> TRANSPORT ERROR %v (%v)\n", err, elapsed.Round(time.Microsecond))
		return resp, status, err
	}

	var out smc.KeyData
	if uerr := out.UnmarshalBinary(resp); uerr != nil {
		fmt.Fprintf(c.out, " -> %s %v (%v)\n", smc.FormatStatus(status), uerr, elapsed.Round(time.Microsecond))
		return resp, status, err
	}

	fmt.Fprintf(c.out, " -> %s result=%d", smc.FormatStatus(status), out.Result)
	switch in.Command {
	case smc.CmdReadKeyInfo:
		fmt.Fprintf(c.out, " type=%s size=%d attr=0x%02X", out.Info.Type, out.Info.Size, out.Info.Attributes)
	case smc.CmdReadByIndex:
		fmt.Fprintf(c.out, " key=%s", out.Key)
	case smc.CmdReadBytes:
		n := min(int(in.Info.Size), smc.PayloadSize)
		fmt.Fprintf(c.out, " data=[% X]", out.Bytes[:n])
	}
	fmt.Fprintf(c.out, " (%v)\n", elapsed.Round(time.Microsecond))

	return resp, status, err
}

func runTrace(cmd *cobra.Command, args []string) error {
	ops := make([]smc.Op, 0, len(args))
	for _, arg := range args {
		op, err := resolveOp(arg)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	caller, connInfo, err := OpenCaller()
	if err != nil {
		return exitOnUnavailable(err)
	}

	fmt.Printf("smcstat - Call Trace\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	conn := smc.NewConn(&tracingCaller{Caller: caller, out: os.Stdout}, smc.WithPlatform(resolvePlatform()))
	defer conn.Close()

	for _, op := range ops {
		v, err := conn.Read(op)
		switch {
		case errors.Is(err, smc.ErrUnknownKey):
			fmt.Printf("=> %s not found\n\n", op.Key)
		case err != nil:
			fmt.Printf("=> %s error: %v\n\n", op.Key, err)
		default:
			fmt.Printf("=> %s = %s\n\n", op.Key, v)
		}
	}
	return nil
}
