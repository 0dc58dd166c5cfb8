// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "fmt"

// Decoder is a byte-at-a-time frame decoder. Bytes before a START are
// ignored, and a START in the middle of a frame restarts decoding.
type Decoder struct {
	state      int
	buffer     []byte // length + payload, unstuffed
	length     int
	crc        uint16
	escapeNext bool
	rawBuffer  []byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, 0, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset clears the decoder state
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.length = 0
	d.crc = 0
	d.escapeNext = false
	d.rawBuffer = d.rawBuffer[:0]
}

// RawBytes returns the raw bytes of the frame in progress
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte. It returns a message when b completes a valid
// frame, and an error when the frame in progress is malformed.
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	if d.escapeNext {
		d.escapeNext = false
		return d.consume(b ^ EscXor)
	}

	switch b {
	case StartByte:
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil

	case EndByte:
		if d.state == stateEnd {
			return d.finish()
		}
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	return d.consume(b)
}

// consume handles one unstuffed data byte
func (d *Decoder) consume(b byte) (*Message, error) {
	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength:
		if b == 0 || int(b) > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.length = int(b)
		d.buffer = append(d.buffer, b)
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.buffer = append(d.buffer, b)
		if len(d.buffer)-1 >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("frame overrun: expected END")
	}
}

func (d *Decoder) finish() (*Message, error) {
	defer d.Reset()

	calculated := CalculateCRC(d.buffer)
	if d.crc != calculated {
		return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculated, d.crc)
	}

	m, err := ParseMessage(d.buffer[1:])
	if err != nil {
		return nil, err
	}
	return &m, nil
}
