// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"time"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

// AfterFunc schedules fn on the engine loop after d and returns a
// cancel function.
type AfterFunc func(d time.Duration, fn func()) (cancel func())

// Scheduler serialises access to the half-duplex bus. Frames are
// dispatched strictly in submission order; a frame whose peer was
// talked to less than the minimum gap ago is held back on a timer.
// All methods run on the engine loop.
type Scheduler struct {
	gap   time.Duration
	send  func(ems.Frame)
	after AfterFunc
	now   func() time.Time

	lastComm map[byte]time.Time
	pending  []ems.Frame
	cancel   func()
}

// NewScheduler creates a scheduler dispatching through send.
func NewScheduler(gap time.Duration, send func(ems.Frame), after AfterFunc) *Scheduler {
	return &Scheduler{
		gap:      gap,
		send:     send,
		after:    after,
		now:      time.Now,
		lastComm: make(map[byte]time.Time),
	}
}

// Submit queues a frame for dispatch.
func (s *Scheduler) Submit(f ems.Frame) {
	s.pending = append(s.pending, f)
	s.pump()
}

// NoteActivity records traffic from a peer, delaying the next frame to
// that peer by the minimum gap.
func (s *Scheduler) NoteActivity(peer byte) {
	s.lastComm[peer] = s.now()
}

// Stop cancels a pending dispatch timer and drops queued frames. No
// partial write ever reaches the transport.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = nil
}

func (s *Scheduler) pump() {
	if s.cancel != nil || len(s.pending) == 0 {
		return
	}
	head := s.pending[0]

	if last, ok := s.lastComm[head.Dest]; ok {
		wait := s.gap - s.now().Sub(last)
		if wait > 0 {
			s.cancel = s.after(wait, func() {
				s.cancel = nil
				s.dispatch()
			})
			return
		}
	}
	s.dispatch()
}

func (s *Scheduler) dispatch() {
	if len(s.pending) == 0 {
		return
	}
	head := s.pending[0]
	s.pending = s.pending[1:]
	s.send(head)
	s.lastComm[head.Dest] = s.now()
	s.pump()
}
