// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/internal/config"
	"github.com/Thermoquad/smcstat/internal/logging"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

// Version is the smcstat release
const Version = "0.3.0"

// exitUnavailable is the exit code when no controller can be reached
const exitUnavailable = 2

var (
	configPath string
	logLevel   string
	platform   string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
	callTimeoutMs int

	cfg *config.Config
	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "smcstat",
	Short: "System Management Controller reader",
	Long: `smcstat - read temperatures, fans, power and battery registers from the
System Management Controller.

Connection modes:
  Local:     (default) the controller of this Mac
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host:8765/smc [--username user]

A bridge for the serial and WebSocket modes is started on the Mac with
'smcstat serve'. For WebSocket authentication, the password is read from the
SMCSTAT_PASSWORD environment variable, or prompted interactively if not set.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&platform, "platform", "", "Platform override (intel, m1, m1-pro, ... m4-ultra)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of a bridge")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	rootCmd.PersistentFlags().IntVar(&callTimeoutMs, "timeout", 0, "Bridge call timeout in milliseconds")
}

// setup loads the configuration and lets explicit flags override it
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Connection.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Connection.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("timeout") {
		cfg.Connection.TimeoutMillis = callTimeoutMs
	}
	if flags.Changed("platform") {
		if _, err := smc.ParsePlatform(platform); err != nil {
			return err
		}
		cfg.Platform = platform
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log = logging.New(cfg.Logging, Version)
	return nil
}

// Execute runs the root command. The command context is cancelled on
// SIGINT and SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// exitOnUnavailable ends the process with exitUnavailable when err means
// the controller could not be reached at all
func exitOnUnavailable(err error) error {
	if errors.Is(err, smc.ErrResourceUnavailable) || errors.Is(err, errNoTransport) {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitUnavailable)
	}
	return err
}
