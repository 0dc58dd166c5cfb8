// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/smcstat/internal/export"
)

var exportOnce bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Periodically export readings to InfluxDB and/or MQTT",
	Long: `Collect the metric groups enabled in the configuration on the configured
interval and write them to every enabled sink.

Sinks are configured in the 'influx' and 'mqtt' sections of the config file.
A failed collection or write is logged and retried on the next interval.

Examples:
  smcstat export --config smcstat.yaml
  smcstat export --config smcstat.toml --once`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportOnce, "once", false, "Collect and export once, then exit")
	rootCmd.AddCommand(exportCmd)
}

// buildSinks connects every enabled sink
func buildSinks(cmd *cobra.Command) ([]export.Sink, error) {
	var sinks []export.Sink

	if cfg.Influx.Enabled {
		s, err := export.NewInfluxSink(cmd.Context(), cfg.Influx)
		if err != nil {
			return nil, err
		}
		log.Info("influx sink connected", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
		sinks = append(sinks, s)
	}

	if cfg.MQTT.Enabled {
		s, err := export.NewMQTTSink(cfg.MQTT, cfg.Hostname)
		if err != nil {
			for _, sink := range sinks {
				sink.Close()
			}
			return nil, err
		}
		log.Info("mqtt sink connected", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.TopicPrefix)
		sinks = append(sinks, s)
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("no sink enabled: enable influx or mqtt in the config file")
	}
	return sinks, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	sinks, err := buildSinks(cmd)
	if err != nil {
		return err
	}

	conn, info, err := openConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	runner := &export.Runner{
		Source:   export.NewCollector(conn, cfg.Metrics, cfg.Hostname, runtime.NumCPU()),
		Sinks:    sinks,
		Interval: cfg.IntervalDuration(),
		Log:      log.With("component", "export"),
	}
	defer runner.Close()

	if exportOnce {
		n, err := runner.RunOnce(cmd.Context())
		fmt.Printf("Exported %d samples from %s\n", n, info)
		return err
	}

	log.Info("export started", "connection", info, "interval", runner.Interval, "sinks", len(sinks))
	if err := runner.Run(cmd.Context()); err != nil && cmd.Context().Err() == nil {
		return err
	}
	log.Info("export stopped")
	return nil
}
