// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/smcstat/internal/link"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

// errNoTransport is returned when a bridge stream cannot be opened
var errNoTransport = errors.New("bridge unreachable")

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open serial port %s: %v", errNoTransport, portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (io.ReadWriteCloser, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: WebSocket connection failed (HTTP %d): %v", errNoTransport, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: WebSocket connection failed: %v", errNoTransport, err)
	}

	return link.NewWSStream(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("SMCSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openBridge opens a bridge client over the configured WebSocket URL or
// serial port. The second return value describes the connection.
func openBridge() (*link.Client, string, error) {
	c := cfg.Connection

	if c.URL != "" {
		password := ""
		if c.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		stream, err := OpenWebSocketConnection(c.URL, c.Username, password, c.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		log.Debug("websocket bridge connected", "url", c.URL)
		return link.NewClient(stream, link.WithTimeout(cfg.Timeout())), fmt.Sprintf("WebSocket: %s", c.URL), nil
	}

	if c.Port != "" {
		stream, err := OpenSerialConnection(c.Port, c.Baud)
		if err != nil {
			return nil, "", err
		}
		log.Debug("serial bridge opened", "port", c.Port, "baud", c.Baud)
		return link.NewClient(stream, link.WithTimeout(cfg.Timeout())), fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenCaller opens the call primitive selected by the configuration: a
// WebSocket bridge, a serial bridge, or the local controller. The second
// return value describes the connection for display.
func OpenCaller() (smc.Caller, string, error) {
	if cfg.Connection.URL != "" || cfg.Connection.Port != "" {
		client, info, err := openBridge()
		if err != nil {
			return nil, "", err
		}
		return client, info, nil
	}

	caller, err := smc.OpenIOKit()
	if err != nil {
		return nil, "", err
	}
	return caller, "Local: AppleSMC", nil
}

// openConn opens a Conn with statistics and the configured or detected
// platform. Exits with code 2 when no controller is reachable.
func openConn() (*smc.Conn, string, error) {
	caller, info, err := OpenCaller()
	if err != nil {
		return nil, "", exitOnUnavailable(err)
	}

	p := resolvePlatform()
	log.Debug("controller opened", "connection", info, "platform", p)

	conn := smc.NewConn(caller, smc.WithPlatform(p), smc.WithStatistics(smc.NewStatistics()))
	return conn, info, nil
}

// resolvePlatform returns the configured platform, or the one detected from
// the CPU brand string when reading the local controller
func resolvePlatform() smc.Platform {
	if cfg.Platform != "" {
		return cfg.PlatformOr(smc.PlatformM1)
	}
	if cfg.Connection.URL != "" || cfg.Connection.Port != "" {
		// the brand string of this host says nothing about the bridged one
		return smc.PlatformM1
	}

	brand, err := cpuBrand()
	if err != nil {
		log.Debug("cpu brand unavailable", "error", err)
		return smc.PlatformM1
	}
	return smc.DetectPlatform(brand)
}

func cpuBrand() (string, error) {
	out, err := exec.Command("sysctl", "-n", "machdep.cpu.brand_string").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// withConn opens a Conn, runs fn and closes the Conn
func withConn(fn func(conn *smc.Conn) error) error {
	conn, _, err := openConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := fn(conn); err != nil {
		return err
	}
	if stats := conn.Stats(); stats != nil {
		log.Debug("session finished", "calls", stats.TotalCalls, "reads", stats.TotalReads, "errors", stats.Errors())
	}
	return nil
}
