// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !darwin || !cgo

package smc

import "fmt"

// OpenIOKit returns ErrResourceUnavailable on platforms without IOKit.
func OpenIOKit() (Caller, error) {
	return nil, fmt.Errorf("%w: IOKit is only available on macOS", ErrResourceUnavailable)
}

// OpenLocal opens a Conn on the local controller
func OpenLocal(opts ...Option) (*Conn, error) {
	return Open(OpenIOKit, opts...)
}
