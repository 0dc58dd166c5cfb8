// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link carries controller calls over a byte stream.
//
// Frames are START, then the byte-stuffed section (length, CBOR payload,
// CRC-16-CCITT big-endian), then END. The CBOR payload is the array
// [msgType, map]. A serial port or a WebSocket session can both carry the
// stream, so a controller on one machine can be read from another.
package link

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxPayloadSize = 250
	MaxFrameSize   = 1 + MaxPayloadSize + 2 // length + payload + crc, before stuffing
	MaxCallSize    = 128                    // largest response buffer a peer may request
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// SelectorSMC is the kernel selector of the controller struct call
const SelectorSMC = 2

// Message types
const (
	MsgCallRequest  = 0x10
	MsgCallResponse = 0x11
	MsgPingRequest  = 0x2F
	MsgPingResponse = 0x3F
	MsgError        = 0xE0
)

// Payload map keys
const (
	keySelector = 0
	keyRequest  = 1
	keyRespSize = 2

	keyStatus   = 0
	keyResponse = 1

	keyUptime = 0

	keyText = 0

	// keySeq tags a request and is echoed in its reply
	keySeq = 15
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
