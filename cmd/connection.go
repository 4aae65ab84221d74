// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package cmd

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Connection is a bidirectional byte stream to the bus.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port.
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

// readOnlyConnection rejects writes; used for plain serial targets
// where the converter has no transmit wiring.
type readOnlyConnection struct {
	Connection
}

func (r *readOnlyConnection) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("transport is read-only")
}

// ErrConnectionClosed is returned when reading from a closed WebSocket
// connection.
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection adapts a WebSocket to byte-level reading.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenTarget opens a transport by its target string. It reports
// whether the transport accepts outgoing frames.
func OpenTarget(target string, baudRate int) (Connection, bool, error) {
	switch {
	case strings.HasPrefix(target, "serial:"):
		conn, err := openSerial(strings.TrimPrefix(target, "serial:"), baudRate)
		if err != nil {
			return nil, false, err
		}
		return &readOnlyConnection{conn}, false, nil

	case strings.HasPrefix(target, "tx-serial:"):
		conn, err := openSerial(strings.TrimPrefix(target, "tx-serial:"), baudRate)
		return conn, true, err

	case strings.HasPrefix(target, "tcp:"):
		addr := strings.TrimPrefix(target, "tcp:")
		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err != nil {
			return nil, false, fmt.Errorf("tcp target %s: %w", addr, err)
		}
		return conn, true, nil

	case strings.HasPrefix(target, "ws:") || strings.HasPrefix(target, "wss:"):
		conn, err := openWebSocket(target)
		return conn, true, err
	}

	return nil, false, fmt.Errorf("invalid target %q", target)
}

func openSerial(device string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("serial port %s: %w", device, err)
	}
	return &SerialConnection{port: port}, nil
}

// openWebSocket connects to a bus bridge. Credentials come from the
// EMSCOLLECT_WS_USER and EMSCOLLECT_WS_PASSWORD environment variables;
// no password flag exists to keep credentials out of shell history.
func openWebSocket(wsURL string) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{}
	}

	headers := http.Header{}
	user := os.Getenv("EMSCOLLECT_WS_USER")
	pass := os.Getenv("EMSCOLLECT_WS_PASSWORD")
	if user != "" && pass != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return &WebSocketConnection{conn: conn}, nil
}
