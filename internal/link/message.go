// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

// Message is one decoded bridge message
type Message struct {
	Type    uint8
	Payload map[int]interface{}
}

// CallRequest asks the peer to perform one controller call
func CallRequest(req []byte, respSize int) Message {
	return Message{Type: MsgCallRequest, Payload: map[int]interface{}{
		keySelector: uint64(SelectorSMC),
		keyRequest:  req,
		keyRespSize: uint64(respSize),
	}}
}

// CallResponse carries the status and response buffer of a call
func CallResponse(status smc.Status, resp []byte) Message {
	return Message{Type: MsgCallResponse, Payload: map[int]interface{}{
		keyStatus:   uint64(status),
		keyResponse: resp,
	}}
}

// PingRequest asks the peer for its uptime
func PingRequest() Message {
	return Message{Type: MsgPingRequest}
}

// PingResponse reports the peer uptime in milliseconds
func PingResponse(uptime time.Duration) Message {
	return Message{Type: MsgPingResponse, Payload: map[int]interface{}{
		keyUptime: uint64(uptime.Milliseconds()),
	}}
}

// ErrorMessage reports a failure the peer could not map to a call status
func ErrorMessage(text string) Message {
	return Message{Type: MsgError, Payload: map[int]interface{}{
		keyText: text,
	}}
}

// WithSeq returns a copy of m tagged with a request sequence number
func (m Message) WithSeq(seq uint64) Message {
	payload := make(map[int]interface{}, len(m.Payload)+1)
	for k, v := range m.Payload {
		payload[k] = v
	}
	payload[keySeq] = seq
	m.Payload = payload
	return m
}

// Seq returns the sequence number m carries, if any
func (m Message) Seq() (uint64, bool) {
	return GetMapUint(m.Payload, keySeq)
}

// Encode renders the message as a complete wire frame
func (m Message) Encode() ([]byte, error) {
	return EncodeFrame(m.Type, m.Payload)
}

// encodeCBORPayload creates the CBOR payload [msgType, payloadMap]
func encodeCBORPayload(msgType uint8, payload map[int]interface{}) ([]byte, error) {
	var msg interface{}
	if len(payload) == 0 {
		msg = []interface{}{uint64(msgType), nil}
	} else {
		msg = []interface{}{uint64(msgType), payload}
	}
	return cbor.Marshal(msg)
}

// ParseMessage decodes a CBOR payload [msgType, map|nil]
func ParseMessage(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, fmt.Errorf("empty CBOR payload")
	}

	var raw []interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(raw) != 2 {
		return Message{}, fmt.Errorf("expected 2-element array, got %d elements", len(raw))
	}

	var m Message
	switch v := raw[0].(type) {
	case uint64:
		if v > 255 {
			return Message{}, fmt.Errorf("message type out of range: %d", v)
		}
		m.Type = uint8(v)
	default:
		return Message{}, fmt.Errorf("expected uint for message type, got %T", raw[0])
	}

	if raw[1] == nil {
		return m, nil
	}

	v, ok := raw[1].(map[interface{}]interface{})
	if !ok {
		return Message{}, fmt.Errorf("expected map or nil for payload, got %T", raw[1])
	}
	m.Payload = make(map[int]interface{}, len(v))
	for key, val := range v {
		switch k := key.(type) {
		case uint64:
			m.Payload[int(k)] = val
		case int64:
			m.Payload[int(k)] = val
		default:
			return Message{}, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return m, nil
}

// GetMapUint extracts an unsigned integer from a payload map
func GetMapUint(m map[int]interface{}, key int) (uint64, bool) {
	switch v := m[key].(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// GetMapBytes extracts a byte string from a payload map
func GetMapBytes(m map[int]interface{}, key int) ([]byte, bool) {
	v, ok := m[key].([]byte)
	return v, ok
}

// GetMapString extracts a text string from a payload map
func GetMapString(m map[int]interface{}, key int) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

// TypeName returns the human-readable name of a message type
func TypeName(msgType uint8) string {
	switch msgType {
	case MsgCallRequest:
		return "CALL_REQUEST"
	case MsgCallResponse:
		return "CALL_RESPONSE"
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// String formats the message for debug logs
func (m Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (0x%02X)", TypeName(m.Type), m.Type)

	keys := make([]int, 0, len(m.Payload))
	for k := range m.Payload {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		switch v := m.Payload[k].(type) {
		case []byte:
			fmt.Fprintf(&sb, " %d=<%d bytes>", k, len(v))
		default:
			fmt.Fprintf(&sb, " %d=%v", k, v)
		}
	}
	return sb.String()
}
