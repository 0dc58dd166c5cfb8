// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads smcstat settings from YAML or TOML files.
//
// The format is chosen by file extension: .yaml and .yml are read with
// gopkg.in/yaml.v3, .toml with github.com/BurntSushi/toml. Values missing
// from the file keep their defaults, and SMCSTAT_* environment variables
// override both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Config is the complete smcstat configuration
type Config struct {
	Hostname   string           `yaml:"hostname" toml:"hostname"`
	Interval   int              `yaml:"interval" toml:"interval"` // seconds
	Platform   string           `yaml:"platform" toml:"platform"`
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
	Influx     InfluxConfig     `yaml:"influx" toml:"influx"`
	MQTT       MQTTConfig       `yaml:"mqtt" toml:"mqtt"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ConnectionConfig selects the controller transport. An empty URL and port
// mean the local controller.
type ConnectionConfig struct {
	Port          string `yaml:"port" toml:"port"`
	Baud          int    `yaml:"baud" toml:"baud"`
	URL           string `yaml:"url" toml:"url"`
	Username      string `yaml:"username" toml:"username"`
	NoSSLVerify   bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`
	TimeoutMillis int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// MetricsConfig toggles the metric groups collected by export and monitor
type MetricsConfig struct {
	CPUTemp    bool `yaml:"cpu_temp" toml:"cpu_temp"`
	GPUTemp    bool `yaml:"gpu_temp" toml:"gpu_temp"`
	SystemTemp bool `yaml:"system_temp" toml:"system_temp"`
	Power      bool `yaml:"power" toml:"power"`
	Fans       bool `yaml:"fans" toml:"fans"`
	Battery    bool `yaml:"battery" toml:"battery"`
}

// InfluxConfig configures the InfluxDB v2 sink
type InfluxConfig struct {
	Enabled           bool              `yaml:"enabled" toml:"enabled"`
	URL               string            `yaml:"url" toml:"url"`
	Token             string            `yaml:"token" toml:"token"`
	Org               string            `yaml:"org" toml:"org"`
	Bucket            string            `yaml:"bucket" toml:"bucket"`
	MeasurementPrefix string            `yaml:"measurement_prefix" toml:"measurement_prefix"`
	Tags              map[string]string `yaml:"tags" toml:"tags"`
}

// MQTTConfig configures the MQTT sink
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Broker      string `yaml:"broker" toml:"broker"` // tcp://host:1883
	ClientID    string `yaml:"client_id" toml:"client_id"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
	QoS         int    `yaml:"qos" toml:"qos"`
	Retained    bool   `yaml:"retained" toml:"retained"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // json or text
	Output string `yaml:"output" toml:"output"` // stdout or stderr
}

// Default returns the configuration used when no file is given
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return &Config{
		Hostname: hostname,
		Interval: 30,
		Connection: ConnectionConfig{
			Baud:          115200,
			TimeoutMillis: 2000,
		},
		Metrics: MetricsConfig{
			CPUTemp:    true,
			GPUTemp:    true,
			SystemTemp: true,
			Power:      true,
			Fans:       true,
			Battery:    true,
		},
		Influx: InfluxConfig{
			URL:               "http://localhost:8086",
			Bucket:            "smcstat",
			MeasurementPrefix: "smc",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "smcstat",
			QoS:         1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch format(path) {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it is set and exists. Otherwise it returns
// the defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration in the format selected by the extension of path
func (c *Config) Save(path string) error {
	data, err := c.Marshal(format(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Marshal renders the configuration as "yaml" or "toml"
func (c *Config) Marshal(kind string) ([]byte, error) {
	switch kind {
	case "yaml":
		return yaml.Marshal(c)
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("encoding toml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind)
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SMCSTAT_URL"); v != "" {
		cfg.Connection.URL = v
	}
	if v := os.Getenv("SMCSTAT_PORT"); v != "" {
		cfg.Connection.Port = v
	}
	if v := os.Getenv("SMCSTAT_PLATFORM"); v != "" {
		cfg.Platform = v
	}
	if v := os.Getenv("SMCSTAT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Interval = n
		}
	}

	if v := os.Getenv("SMCSTAT_INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("SMCSTAT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("SMCSTAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []string

	if c.Interval < 1 {
		errs = append(errs, "interval must be at least 1 second")
	}

	if c.Platform != "" {
		if _, err := smc.ParsePlatform(c.Platform); err != nil {
			errs = append(errs, fmt.Sprintf("platform: %v", err))
		}
	}

	if c.Connection.Port != "" && c.Connection.URL != "" {
		errs = append(errs, "connection.port and connection.url are mutually exclusive")
	}
	if c.Connection.Baud < 0 {
		errs = append(errs, "connection.baud must not be negative")
	}

	if c.Influx.Enabled {
		if c.Influx.URL == "" {
			errs = append(errs, "influx.url is required when influx is enabled")
		}
		if c.Influx.Bucket == "" {
			errs = append(errs, "influx.bucket is required when influx is enabled")
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IntervalDuration returns the collection interval as a Duration
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Timeout returns the per-call bridge timeout
func (c *Config) Timeout() time.Duration {
	if c.Connection.TimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Connection.TimeoutMillis) * time.Millisecond
}

// PlatformOr resolves the configured platform, falling back to def when unset
func (c *Config) PlatformOr(def smc.Platform) smc.Platform {
	if c.Platform == "" {
		return def
	}
	p, err := smc.ParsePlatform(c.Platform)
	if err != nil {
		return def
	}
	return p
}
