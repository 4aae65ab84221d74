// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

func newTestScheduler(clock *fakeClock) (*Scheduler, *[]ems.Frame) {
	sent := &[]ems.Frame{}
	s := NewScheduler(100*time.Millisecond, func(f ems.Frame) {
		*sent = append(*sent, f)
	}, clock.After)
	s.now = clock.Now
	return s, sent
}

func TestScheduler_ImmediateDispatch(t *testing.T) {
	clock := newFakeClock()
	s, sent := newTestScheduler(clock)

	s.Submit(ems.NewRequest(ems.AddrUBA2, ems.TypeVersion, 0, []byte{3}, true))
	require.Len(t, *sent, 1, "first frame to a quiet peer dispatches immediately")
}

func TestScheduler_EnforcesMinimumGap(t *testing.T) {
	clock := newFakeClock()
	s, sent := newTestScheduler(clock)

	first := ems.NewRequest(ems.AddrUBA2, ems.TypeVersion, 0, []byte{3}, true)
	second := ems.NewRequest(ems.AddrUBA2, ems.TypeVersion, 3, []byte{3}, true)

	s.Submit(first)
	s.Submit(second)
	require.Len(t, *sent, 1, "second frame to the same peer must wait")

	clock.advance(99 * time.Millisecond)
	assert.Len(t, *sent, 1, "gap not yet elapsed")

	clock.advance(1 * time.Millisecond)
	require.Len(t, *sent, 2)
	assert.Equal(t, byte(3), (*sent)[1].Offset)
}

func TestScheduler_GapAfterInboundActivity(t *testing.T) {
	clock := newFakeClock()
	s, sent := newTestScheduler(clock)

	s.NoteActivity(ems.AddrUBA2)
	s.Submit(ems.NewRequest(ems.AddrUBA2, ems.TypeVersion, 0, []byte{3}, true))
	require.Empty(t, *sent, "peer talked just now, frame must wait")

	clock.advance(100 * time.Millisecond)
	require.Len(t, *sent, 1)
}

func TestScheduler_PreservesSubmissionOrder(t *testing.T) {
	clock := newFakeClock()
	s, sent := newTestScheduler(clock)

	// delay the head; the frame to a different quiet peer must not
	// overtake it
	s.NoteActivity(ems.AddrUBA2)
	s.Submit(ems.NewRequest(ems.AddrUBA2, ems.TypeVersion, 0, []byte{3}, true))
	s.Submit(ems.NewRequest(ems.AddrUI800, ems.TypeVersion, 0, []byte{3}, true))
	require.Empty(t, *sent)

	clock.advance(100 * time.Millisecond)
	require.Len(t, *sent, 2)
	assert.Equal(t, byte(ems.AddrUBA2), (*sent)[0].Dest)
	assert.Equal(t, byte(ems.AddrUI800), (*sent)[1].Dest)
}

func TestScheduler_StopCancelsPending(t *testing.T) {
	clock := newFakeClock()
	s, sent := newTestScheduler(clock)

	s.NoteActivity(ems.AddrUBA2)
	s.Submit(ems.NewRequest(ems.AddrUBA2, ems.TypeVersion, 0, []byte{3}, true))
	s.Stop()

	clock.advance(time.Second)
	assert.Empty(t, *sent, "no partial or late write after Stop")
}
