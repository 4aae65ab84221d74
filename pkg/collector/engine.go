// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

// Engine multiplexes everything on one event loop: inbound frames from
// the transport, timers, and command submissions. Bus state (scheduler,
// tracker, cache, decoder) is only ever touched from that loop, so none
// of it needs locking.
type Engine struct {
	cfg   Config
	conn  io.ReadWriteCloser
	sinks *DebugSinks
	log   *logrus.Entry

	cache    *ValueCache
	decoder  *ems.Decoder
	sched    *Scheduler
	tracker  *Tracker
	commands *Commands

	subscribers []ems.ValueFunc

	loop   chan func()
	frames chan []byte
	done   chan struct{}
}

// NewEngine wires the bus engine onto a transport connection.
func NewEngine(cfg Config, conn io.ReadWriteCloser, sinks *DebugSinks, log *logrus.Entry) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		conn:   conn,
		sinks:  sinks,
		log:    log,
		cache:  NewValueCache(),
		loop:   make(chan func(), 64),
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}

	rcType := ems.RCUnknown
	switch strings.ToLower(cfg.RCType) {
	case "rc30":
		rcType = ems.RC30
	case "rc35":
		rcType = ems.RC35
	}

	e.decoder = &ems.Decoder{
		Values: e.handleValue,
		Cache:  e.cache.Lookup,
		RCType: rcType,
	}
	e.sched = NewScheduler(cfg.MinRequestGap, e.writeFrame, e.after)
	e.tracker = NewTracker(e.sched, e.after, cfg.RequestTimeout,
		cfg.MaxRequestRetries, sinks)
	e.commands = NewCommands(e.tracker, e.sched, e.cache, e.after, cfg.TestmodeInterval)
	return e
}

// Cache exposes the latest-value cache.
func (e *Engine) Cache() *ValueCache {
	return e.cache
}

// Subscribe registers a value subscriber. Subscribers run on the engine
// loop and must not block. Register before Run, or from the loop via Do.
func (e *Engine) Subscribe(fn ems.ValueFunc) {
	e.subscribers = append(e.subscribers, fn)
}

// Do runs fn on the engine loop. It is safe from any goroutine and a
// no-op after shutdown.
func (e *Engine) Do(fn func()) {
	select {
	case e.loop <- fn:
	case <-e.done:
	}
}

// after schedules fn on the engine loop, returning a cancel func. The
// handle is owned by whoever armed it.
func (e *Engine) after(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { e.Do(fn) })
	return func() { t.Stop() }
}

// Submit posts a command line. Output lines and the terminal verdict
// are delivered through out.
func (e *Engine) Submit(line string, out func(string)) {
	e.Do(func() { e.runCommand(line, out) })
}

func (e *Engine) runCommand(line string, out func(string)) {
	complete := func(r Result) {
		switch r {
		case ResultSuccess:
			out("OK")
		case ResultFail:
			out("FAIL")
		case ResultTimeout:
			out("ERRTIMEOUT")
		}
	}

	switch e.commands.Execute(line, out, complete) {
	case Ok:
		if !e.tracker.Busy() {
			// synchronous command, nothing outstanding on the bus
			out("OK")
		}
	case InvalidCmd:
		out("ERRCMD")
	case InvalidArgs:
		out("ERRARGS")
	case Busy:
		out("ERRBUSY")
	}
}

// Run processes events until the context ends or the transport fails.
func (e *Engine) Run(ctx context.Context) error {
	readErr := make(chan error, 1)
	go e.readLoop(readErr)

	defer func() {
		close(e.done)
		e.sched.Stop()
		e.tracker.Stop()
		e.commands.Stop()
		e.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("transport: %w", err)
		case buf := <-e.frames:
			e.handleFrame(buf)
		case fn := <-e.loop:
			fn()
		}
	}
}

// readLoop pulls raw bytes off the transport and feeds the link-layer
// decoder. It is the only reader of the connection.
func (e *Engine) readLoop(readErr chan<- error) {
	decoder := ems.NewLinkDecoder()
	buf := make([]byte, 256)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			select {
			case readErr <- err:
			case <-e.done:
			}
			return
		}
		if e.sinks.IO.Enabled() {
			e.sinks.IO.Printf("got bytes % 02x", buf[:n])
		}
		for _, b := range buf[:n] {
			frame, err := decoder.DecodeByte(b)
			if err != nil {
				e.sinks.IO.Printf("link decode: %v", err)
				continue
			}
			if frame == nil {
				continue
			}
			select {
			case e.frames <- frame:
			case <-e.done:
				return
			}
		}
	}
}

func (e *Engine) handleFrame(buf []byte) {
	frame, err := ems.DecodeFrame(buf)
	if err != nil {
		// short or malformed frame: logged, dropped, never surfaced
		e.log.WithError(err).Debug("dropping malformed frame")
		return
	}

	e.sinks.Message.Printf("%s", frame)

	if !e.decoder.Handle(frame) {
		e.sinks.Data.Printf("unhandled message (source 0x%02x, type 0x%04x)",
			frame.Source, frame.Type)
	}

	if frame.Dest|ems.ResponseFlag == ems.AddrPC {
		e.sched.NoteActivity(frame.Source)
		e.tracker.OnFrame(frame)
	}
}

// writeFrame is the scheduler's dispatch target; it is the only writer
// of the connection.
func (e *Engine) writeFrame(f ems.Frame) {
	wire := ems.EncodeLink(f.SendData(false))
	if e.sinks.IO.Enabled() {
		e.sinks.IO.Printf("sending bytes % 02x", wire)
	}
	if _, err := e.conn.Write(wire); err != nil {
		e.log.WithError(err).Error("transport write failed")
	}
}

// handleValue fans a decoded value out to the cache, the data sink and
// all subscribers.
func (e *Engine) handleValue(v ems.Value) {
	e.cache.HandleValue(v)
	if e.sinks.Data.Enabled() {
		name := ems.QuantityName(v.Quantity)
		if sub := ems.SubsystemName(v.Subsystem); sub != "" {
			name = sub + " " + name
		}
		e.sinks.Data.Printf("%s = %s", name, ems.FormatValue(v))
	}
	for _, fn := range e.subscribers {
		fn(v)
	}
}
