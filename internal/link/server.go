// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/smcstat/internal/logging"
	"github.com/Thermoquad/smcstat/pkg/smc"
)

// Server answers bridge frames with calls on a local controller. The
// controller handle is owned by the caller of NewServer; every session
// shares it and calls are serialized.
type Server struct {
	caller smc.Caller
	log    *logging.Logger
	start  time.Time

	mu sync.Mutex // serializes controller calls

	// Username and Password enable HTTP Basic auth on ServeHTTP when set
	Username string
	Password string

	upgrader websocket.Upgrader
}

// NewServer creates a Server for caller
func NewServer(caller smc.Caller, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		caller: caller,
		log:    log,
		start:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle answers one request message. The reply echoes the request's
// sequence number.
func (s *Server) Handle(m *Message) Message {
	reply := s.handle(m)
	if seq, ok := m.Seq(); ok {
		reply = reply.WithSeq(seq)
	}
	return reply
}

func (s *Server) handle(m *Message) Message {
	switch m.Type {
	case MsgPingRequest:
		return PingResponse(time.Since(s.start))

	case MsgCallRequest:
		selector, _ := GetMapUint(m.Payload, keySelector)
		if selector != SelectorSMC {
			return ErrorMessage(fmt.Sprintf("unsupported selector %d", selector))
		}
		req, ok := GetMapBytes(m.Payload, keyRequest)
		if !ok {
			return ErrorMessage("call request without data")
		}
		respSize := uint64(smc.KeyDataSize)
		if n, ok := GetMapUint(m.Payload, keyRespSize); ok {
			respSize = n
		}
		if respSize == 0 || respSize > MaxCallSize {
			return ErrorMessage(fmt.Sprintf("invalid response size %d", respSize))
		}

		s.mu.Lock()
		resp, status, err := s.caller.Call(req, int(respSize))
		s.mu.Unlock()
		if err != nil {
			return ErrorMessage(err.Error())
		}
		return CallResponse(status, resp)

	default:
		return ErrorMessage(fmt.Sprintf("unsupported message type 0x%02X", m.Type))
	}
}

// Serve reads frames from rw until it fails or ctx is cancelled, answering
// each request on the same stream.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer stop()

	decoder := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		for _, b := range buf[:n] {
			m, derr := decoder.DecodeByte(b)
			if derr != nil {
				s.log.Debug("dropping malformed frame", "error", derr)
				continue
			}
			if m == nil {
				continue
			}

			reply := s.Handle(m)
			s.log.Debug("bridge request", "request", m.String(), "reply", reply.String())
			frame, eerr := reply.Encode()
			if eerr != nil {
				s.log.Error("encoding reply", "error", eerr)
				continue
			}
			if _, werr := rw.Write(frame); werr != nil {
				return fmt.Errorf("link: write: %w", werr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket session and serves it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="smcstat"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	log := s.log.With("remote", r.RemoteAddr)
	log.Info("bridge session opened")
	err = s.Serve(r.Context(), NewWSStream(conn))
	log.Info("bridge session closed", "reason", err)
}
