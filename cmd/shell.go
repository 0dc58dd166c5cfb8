// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive register probe",
	Long: `Open an interactive prompt for probing registers on one connection.

Type 'help' at the prompt for the list of commands.`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// shell is the interactive command loop over one Conn
type shell struct {
	conn *smc.Conn
	rl   *readline.Instance
	out  io.Writer
}

func newShell(conn *smc.Conn) (*shell, error) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("read"),
		readline.PcItem("info"),
		readline.PcItem("count"),
		readline.PcItem("keys"),
		readline.PcItem("fans"),
		readline.PcItem("sensors"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "smc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &shell{conn: conn, rl: rl, out: rl.Stdout()}, nil
}

func runShell(cmd *cobra.Command, args []string) error {
	conn, info, err := openConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	sh, err := newShell(conn)
	if err != nil {
		return err
	}
	defer sh.rl.Close()

	fmt.Fprintf(sh.out, "Connected (%s, platform %s)\n", info, conn.Platform())
	sh.printHelp()

	for {
		line, err := sh.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(sh.out, "Exiting...")
			return nil
		}

		if !sh.exec(line) {
			fmt.Fprintln(sh.out, "Exiting...")
			return nil
		}
	}
}

// exec runs one input line. It returns false when the shell should exit.
func (s *shell) exec(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	args := parts[1:]

	switch strings.ToLower(parts[0]) {
	case "help", "?":
		s.printHelp()
	case "read", "r":
		s.cmdRead(args)
	case "info", "i":
		s.cmdInfo(args)
	case "count", "c":
		s.cmdCount()
	case "keys", "k":
		s.cmdKeys(args)
	case "fans", "f":
		s.cmdFans()
	case "sensors", "s":
		s.cmdSensors()
	case "stats":
		if stats := s.conn.Stats(); stats != nil {
			fmt.Fprint(s.out, stats.String())
		}
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", parts[0])
	}
	return true
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
Commands:
  read KEY...       Read registers (r)
  info KEY...       Show type and size (i)
  count             Number of keys in the catalog (c)
  keys [FROM] [N]   List N keys starting at index FROM (k)
  fans              Fan speeds (f)
  sensors           Platform sensors (s)
  stats             Call statistics
  help              This help (?)
  exit              Leave the shell (q)`)
}

func (s *shell) cmdRead(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: read KEY...")
		fmt.Fprintln(s.out, "  Example: read TC0P FNum")
		return
	}
	for _, arg := range args {
		op, err := resolveOp(arg)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid key: %v\n", err)
			continue
		}
		line, err := readLine(s.conn, op)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *shell) cmdInfo(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: info KEY...")
		return
	}
	for _, arg := range args {
		op, err := resolveOp(arg)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid key: %v\n", err)
			continue
		}
		info, err := s.conn.KeyInfo(op.Key)
		switch {
		case errors.Is(err, smc.ErrUnknownKey):
			fmt.Fprintf(s.out, "%s not found\n", op.Key)
		case err != nil:
			fmt.Fprintf(s.out, "Error: %v\n", err)
		default:
			fmt.Fprintln(s.out, info)
		}
	}
}

func (s *shell) cmdCount() {
	n, err := s.conn.NumberOfKeys()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%d keys\n", n)
}

func (s *shell) cmdKeys(args []string) {
	from, limit := 0, 10
	var err error
	if len(args) > 0 {
		if from, err = strconv.Atoi(args[0]); err != nil || from < 0 {
			fmt.Fprintln(s.out, "Usage: keys [FROM] [N]")
			return
		}
	}
	if len(args) > 1 {
		if limit, err = strconv.Atoi(args[1]); err != nil {
			fmt.Fprintln(s.out, "Usage: keys [FROM] [N]")
			return
		}
	}

	it, err := s.conn.Keys()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	_ = window(it, from, limit, false, func(info smc.KeyInfo, err error) error {
		if err != nil {
			fmt.Fprintf(s.out, "  error: %v\n", err)
		} else {
			fmt.Fprintf(s.out, "  %s\n", info)
		}
		return nil
	})
}

func (s *shell) cmdFans() {
	it, err := s.conn.Fans()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if it.Len() == 0 {
		fmt.Fprintln(s.out, "No fans reported")
		return
	}
	i := 0
	for f, err := range it.All() {
		if err != nil {
			fmt.Fprintf(s.out, "Fan %d: error: %v\n", i, err)
		} else {
			fmt.Fprintln(s.out, smc.FormatFan(i, f))
		}
		i++
	}
}

func (s *shell) cmdSensors() {
	cores, err := s.conn.PlatformCPUCoreTemps()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	gpus, err := s.conn.PlatformGPUTemps()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	for _, r := range append(cores, gpus...) {
		fmt.Fprintln(s.out, smc.FormatSensorReading(r))
	}
}
