// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// smcstat - System Management Controller reader
//
// A CLI tool for reading temperatures, fans, power and battery registers
// from the SMC, locally or through a serial or WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/smcstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
