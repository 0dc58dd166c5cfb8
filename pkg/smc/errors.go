// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceUnavailable is returned when the controller service cannot be
	// found or opened.
	ErrResourceUnavailable = errors.New("smc: controller unavailable")

	// ErrNotPrivileged is returned when the call primitive rejects the request
	// with the privilege-denied status.
	ErrNotPrivileged = errors.New("smc: operation not privileged")

	// ErrUnknownKey is returned when the controller reports the key does not exist.
	ErrUnknownKey = errors.New("smc: unknown key")

	// ErrOversizedPayload is returned when a key reports more than PayloadSize bytes.
	ErrOversizedPayload = errors.New("smc: payload exceeds 32 bytes")

	// ErrInvalidKeyFormat is returned for key strings that are not exactly four bytes.
	ErrInvalidKeyFormat = errors.New("smc: invalid key format")

	// ErrIndexOutOfRange is returned by digit substitution for indices above 9.
	ErrIndexOutOfRange = errors.New("smc: index out of range")

	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("smc: decode error")

	// ErrClosed is returned by any operation on a closed Conn.
	ErrClosed = errors.New("smc: connection closed")
)

// ProtocolError is a non-success call outcome other than the privilege and
// unknown-key cases.
type ProtocolError struct {
	Code   Status
	Result uint8
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("smc: call failed: status 0x%08X result %d", uint32(e.Code), e.Result)
}

// DecodeError reports bytes that could not be converted to the requested
// semantic type.
type DecodeError struct {
	Key  Key
	Type Key
	Want string
}

func (e *DecodeError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("smc: cannot decode %s [%s]", e.Key, e.Type)
	}
	return fmt.Sprintf("smc: cannot decode %s [%s] as %s", e.Key, e.Type, e.Want)
}

// Is reports ErrDecode so callers can match the class without errors.As.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
