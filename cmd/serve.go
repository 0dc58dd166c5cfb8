// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/smcstat/internal/link"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

var (
	serveListen string
	servePath   string
	serveSerial string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the local controller as a bridge",
	Long: `Open the local controller once and answer bridge requests on a WebSocket
endpoint and optionally on a serial port.

Every session shares the one controller handle; calls are serialized. When
--username is set, WebSocket clients must authenticate with HTTP Basic auth
using the password from SMCSTAT_PASSWORD (prompted if unset).

Examples:
  smcstat serve
  smcstat serve --listen 127.0.0.1:9000 --path /smc
  smcstat serve --serial /dev/cu.usbserial-0001 --baud 115200`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8765", "WebSocket listen address (empty to disable)")
	serveCmd.Flags().StringVar(&servePath, "path", "/smc", "WebSocket endpoint path")
	serveCmd.Flags().StringVar(&serveSerial, "serial", "", "Also serve on this serial port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen == "" && serveSerial == "" {
		return fmt.Errorf("nothing to serve: set --listen or --serial")
	}

	caller, err := smc.OpenIOKit()
	if err != nil {
		return exitOnUnavailable(err)
	}
	defer caller.Close()

	server := link.NewServer(caller, log)
	if cfg.Connection.Username != "" {
		password, err := GetPassword()
		if err != nil {
			return err
		}
		server.Username = cfg.Connection.Username
		server.Password = password
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	if serveListen != "" {
		mux := http.NewServeMux()
		mux.Handle(servePath, server)

		httpServer := &http.Server{
			Addr:              serveListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.Info("bridge listening", "addr", serveListen, "path", servePath, "auth", server.Username != "")
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if serveSerial != "" {
		stream, err := OpenSerialConnection(serveSerial, cfg.Connection.Baud)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(exitUnavailable)
		}

		g.Go(func() error {
			log.Info("bridge serving serial port", "port", serveSerial, "baud", cfg.Connection.Baud)
			err := server.Serve(ctx, stream)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	log.Info("bridge stopped")
	return err
}
