// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// CommandServer accepts line-based TCP connections and feeds each line
// to the engine as one command. A connection processes one command at a
// time; the next line is read after the previous command reached its
// terminal verdict.
type CommandServer struct {
	engine   *Engine
	listener net.Listener
	log      *logrus.Entry

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewCommandServer starts listening on port.
func NewCommandServer(engine *Engine, port int, log *logrus.Entry) (*CommandServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("command socket: %w", err)
	}
	return &CommandServer{
		engine:   engine,
		listener: listener,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections until the context ends.
func (s *CommandServer) Serve(ctx context.Context) {
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
		go s.handleConnection(conn)
	}
}

func (s *CommandServer) handleConnection(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}

		// A disconnect mid-request does not cancel the request; the
		// result is discarded with the connection.
		done := make(chan struct{})
		var once sync.Once
		s.engine.Submit(line, func(response string) {
			if _, err := fmt.Fprintf(conn, "%s\n", response); err != nil {
				s.log.WithError(err).Debug("command connection write failed")
			}
			if isTerminal(response) {
				once.Do(func() { close(done) })
			}
		})
		select {
		case <-done:
		case <-s.engine.done:
			return
		}
	}
}

func isTerminal(response string) bool {
	switch response {
	case "OK", "FAIL", "ERRTIMEOUT", "ERRCMD", "ERRARGS", "ERRBUSY":
		return true
	}
	return false
}
