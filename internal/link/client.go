// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

// DefaultTimeout bounds one call when no timeout option is given
const DefaultTimeout = 2 * time.Second

var (
	// ErrTimeout is returned when the peer does not answer in time
	ErrTimeout = errors.New("link: timed out waiting for peer")
	// ErrUnexpectedMessage is returned for a well-formed reply of the wrong shape
	ErrUnexpectedMessage = errors.New("link: unexpected message")
)

// RemoteError is an ERROR message sent by the peer
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return "link: remote: " + e.Text
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client implements smc.Caller over a framed byte stream. Calls are
// serialized so at most one request is in flight.
type Client struct {
	rw      io.ReadWriteCloser
	timeout time.Duration

	mu       sync.Mutex // one call in flight
	seq      uint64     // guarded by mu
	messages chan *Message
	done     chan struct{}
	readErr  error

	decodeErrors atomic.Uint64
	closeOnce    sync.Once
	closed       atomic.Bool
}

// NewClient starts a Client reading frames from rw
func NewClient(rw io.ReadWriteCloser, opts ...ClientOption) *Client {
	c := &Client{
		rw:       rw,
		timeout:  DefaultTimeout,
		messages: make(chan *Message, 8),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)

	decoder := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := c.rw.Read(buf)
		for _, b := range buf[:n] {
			m, derr := decoder.DecodeByte(b)
			if derr != nil {
				c.decodeErrors.Add(1)
				continue
			}
			if m != nil {
				c.deliver(m)
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
	}
}

// deliver queues m, dropping the oldest queued message when full
func (c *Client) deliver(m *Message) {
	for {
		select {
		case c.messages <- m:
			return
		default:
		}
		select {
		case <-c.messages:
		default:
		}
	}
}

// DecodeErrors returns the number of malformed frames received
func (c *Client) DecodeErrors() uint64 {
	return c.decodeErrors.Load()
}

// Call sends one controller call to the peer and waits for its response
func (c *Client) Call(req []byte, respSize int) ([]byte, smc.Status, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.CallContext(ctx, req, respSize)
}

// CallContext is Call bounded by ctx instead of the client timeout
func (c *Client) CallContext(ctx context.Context, req []byte, respSize int) ([]byte, smc.Status, error) {
	m, err := c.roundTrip(ctx, CallRequest(req, respSize), MsgCallResponse)
	if err != nil {
		return nil, 0, err
	}

	status, ok := GetMapUint(m.Payload, keyStatus)
	if !ok || status > 0xFFFFFFFF {
		return nil, 0, fmt.Errorf("%w: call response without status", ErrUnexpectedMessage)
	}
	resp, _ := GetMapBytes(m.Payload, keyResponse)
	return resp, smc.Status(status), nil
}

// Ping asks the peer for its uptime and measures the round trip
func (c *Client) Ping(ctx context.Context) (uptime, rtt time.Duration, err error) {
	start := time.Now()
	m, err := c.roundTrip(ctx, PingRequest(), MsgPingResponse)
	if err != nil {
		return 0, 0, err
	}
	rtt = time.Since(start)

	ms, _ := GetMapUint(m.Payload, keyUptime)
	return time.Duration(ms) * time.Millisecond, rtt, nil
}

func (c *Client) roundTrip(ctx context.Context, req Message, want uint8) (*Message, error) {
	if c.closed.Load() {
		return nil, smc.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// replies that arrived after an earlier timeout belong to nobody
	c.drain()

	c.seq++
	seq := c.seq
	frame, err := req.WithSeq(seq).Encode()
	if err != nil {
		return nil, err
	}
	if _, err := c.rw.Write(frame); err != nil {
		return nil, fmt.Errorf("link: write: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case <-c.done:
			if c.closed.Load() {
				return nil, smc.ErrClosed
			}
			return nil, fmt.Errorf("link: read: %w", c.readErr)
		case m := <-c.messages:
			if got, ok := m.Seq(); !ok || got != seq {
				continue
			}
			switch m.Type {
			case want:
				return m, nil
			case MsgError:
				text, _ := GetMapString(m.Payload, keyText)
				return nil, &RemoteError{Text: text}
			}
		}
	}
}

func (c *Client) drain() {
	for {
		select {
		case <-c.messages:
		default:
			return
		}
	}
}

// Close closes the stream and waits for the reader to stop
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.rw.Close()
		<-c.done
	})
	return err
}
