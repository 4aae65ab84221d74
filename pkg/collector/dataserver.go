// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

// DataServer broadcasts every decoded value to all connected TCP
// clients as one "<subsystem> <quantity> = <value>" line. Input from
// clients is drained and ignored.
type DataServer struct {
	listener net.Listener
	log      *logrus.Entry

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewDataServer starts listening on port.
func NewDataServer(port int, log *logrus.Entry) (*DataServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("data socket: %w", err)
	}
	return &DataServer{
		listener: listener,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections until the context ends.
func (s *DataServer) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.listener.Close()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.drain(conn)
	}
}

func (s *DataServer) drain(conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// HandleValue renders and broadcasts one value. It is registered as an
// engine value subscriber.
func (s *DataServer) HandleValue(v ems.Value) {
	quantity := ems.QuantityName(v.Quantity)
	if quantity == "" {
		return
	}
	name := quantity
	if sub := ems.SubsystemName(v.Subsystem); sub != "" {
		name = sub + " " + name
	}
	line := fmt.Sprintf("%s = %s\n", name, ems.FormatValue(v))

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if _, err := conn.Write([]byte(line)); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
}
