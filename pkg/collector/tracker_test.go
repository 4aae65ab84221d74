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

type trackerHarness struct {
	clock   *fakeClock
	sent    *[]ems.Frame
	tracker *Tracker
	output  []string
	results []Result
}

func newTrackerHarness(t *testing.T) *trackerHarness {
	t.Helper()
	h := &trackerHarness{clock: newFakeClock()}
	sched, sent := newTestScheduler(h.clock)
	h.sent = sent
	h.tracker = NewTracker(sched, h.clock.After, time.Second, 3, nil)
	h.tracker.Bind(
		func(line string) { h.output = append(h.output, line) },
		func(r Result) { h.results = append(h.results, r) },
	)
	return h
}

func (h *trackerHarness) lastSent(t *testing.T) ems.Frame {
	t.Helper()
	require.NotEmpty(t, *h.sent)
	return (*h.sent)[len(*h.sent)-1]
}

// respond feeds a response frame matching the last sent request. The
// clock advances past the inter-request gap first, like a real bus
// round-trip would.
func (h *trackerHarness) respond(src byte, typ uint16, offset byte, data []byte) Verdict {
	h.clock.advance(150 * time.Millisecond)
	return h.tracker.OnFrame(ems.Frame{Source: src, Dest: ems.AddrPC, Type: typ,
		Offset: offset, Data: data})
}

// ack feeds a device acknowledgement for the last write.
func (h *trackerHarness) ack(src byte, offset byte) Verdict {
	h.clock.advance(150 * time.Millisecond)
	return h.tracker.OnFrame(ems.Frame{Source: src, Dest: ems.AddrPC,
		Type: ems.DeviceAck, Offset: offset, Data: []byte{offset}})
}

func TestTracker_PaginatedRead(t *testing.T) {
	h := newTrackerHarness(t)

	h.tracker.StartRequest(ems.AddrRC3x, ems.TypeErrorLog, 0, 4*ems.ErrorRecordSize, false)

	first := h.lastSent(t)
	assert.Equal(t, byte(ems.AddrRC3x|ems.ResponseFlag), first.Dest)
	assert.Equal(t, uint16(ems.TypeErrorLog), first.Type)
	assert.Equal(t, byte(0), first.Offset)
	assert.Equal(t, []byte{48}, first.Data, "payload byte is the remaining count")

	record := []byte{'6', 'L', 0x00, 0xE5, 0x80 | 26, 1, 7, 3, 15, 0x00, 0x0C, 0x10}

	// one record per page; each page yields one output line and the
	// next page request
	verdict := h.respond(ems.AddrRC3x, ems.TypeErrorLog, 0, record)
	assert.Equal(t, Pending, verdict)
	require.Len(t, h.output, 1)
	assert.Equal(t, "01 2026-01-03 07:15 10 6L 229 12", h.output[0])

	next := h.lastSent(t)
	assert.Equal(t, byte(12), next.Offset)
	assert.Equal(t, []byte{36}, next.Data)

	verdict = h.respond(ems.AddrRC3x, ems.TypeErrorLog, 12, record)
	assert.Equal(t, Pending, verdict)
	require.Len(t, h.output, 2)

	// an empty response ends the read early with success
	verdict = h.respond(ems.AddrRC3x, ems.TypeErrorLog, 24, nil)
	assert.Equal(t, Success, verdict)
	assert.Equal(t, []Result{ResultSuccess}, h.results)
	assert.False(t, h.tracker.Busy())
}

func TestTracker_PaginationReconstructsByteSequence(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(0x42, 0x77, 0, 8, true)

	h.respond(0x42, 0x77, 0, []byte{0xDE, 0xAD, 0xBE})
	h.respond(0x42, 0x77, 3, []byte{0xEF, 0x01, 0x02, 0x03, 0x04})

	require.Len(t, h.output, 1)
	assert.Equal(t, "0xde 0xad 0xbe 0xef 0x01 0x02 0x03 0x04", h.output[0])
	assert.Equal(t, []Result{ResultSuccess}, h.results)
}

func TestTracker_StaleResponseIgnored(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(ems.AddrRC3x, ems.TypeErrorLog, 0, 12, false)

	// wrong offset: a late answer to an earlier retried request
	verdict := h.respond(ems.AddrRC3x, ems.TypeErrorLog, 6, []byte{1, 2, 3})
	assert.Equal(t, Pending, verdict)
	assert.True(t, h.tracker.Busy())
	assert.Empty(t, h.results)

	// wrong source
	verdict = h.respond(ems.AddrUBA2, ems.TypeErrorLog, 0, []byte{1, 2, 3})
	assert.Equal(t, Pending, verdict)
	assert.True(t, h.tracker.Busy())
}

func TestTracker_NotMineWithoutActiveRequest(t *testing.T) {
	h := newTrackerHarness(t)
	verdict := h.respond(ems.AddrUBA2, 0xE4, 0, []byte{1, 2, 3})
	assert.Equal(t, Pending, verdict)
	assert.Empty(t, h.results)
}

func TestTracker_TimeoutRetriesThenFails(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(ems.AddrUBA2, ems.TypeVersion, 0, 3, false)
	require.Len(t, *h.sent, 1)

	h.clock.advance(time.Second)
	assert.Len(t, *h.sent, 2, "first timeout resends the same frame")
	assert.Equal(t, (*h.sent)[0], (*h.sent)[1])

	h.clock.advance(time.Second)
	assert.Len(t, *h.sent, 3)

	h.clock.advance(time.Second)
	assert.Len(t, *h.sent, 3, "retries exhausted")
	assert.Equal(t, []Result{ResultTimeout}, h.results)
	assert.False(t, h.tracker.Busy(), "timeout clears the active request slot")
}

func TestTracker_ResponseCancelsTimeout(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(0x42, 0x77, 0, 2, true)

	h.respond(0x42, 0x77, 0, []byte{0x01, 0x02})
	assert.Equal(t, []Result{ResultSuccess}, h.results)

	h.clock.advance(5 * time.Second)
	assert.Len(t, h.results, 1, "no timeout after completion")
}

func TestTracker_WriteAcknowledged(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.SendWrite(ems.AddrUI800, ems.TypeHKOpmode, 22, []byte{42})

	frame := h.lastSent(t)
	assert.False(t, frame.ExpectsResponse())
	assert.Equal(t, byte(ems.AddrUI800&^ems.ResponseFlag), frame.Dest)

	verdict := h.ack(ems.AddrUI800, 0x01)
	assert.Equal(t, Success, verdict)
	assert.Equal(t, []Result{ResultSuccess}, h.results)
}

func TestTracker_WriteRejected(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.SendWrite(ems.AddrUI800, ems.TypeHKOpmode, 22, []byte{42})

	verdict := h.ack(ems.AddrUI800, ems.DeviceAckRejOffset)
	assert.Equal(t, Failure, verdict)
	assert.Equal(t, []Result{ResultFail}, h.results)
	assert.False(t, h.tracker.Busy())
}

func TestTracker_ChainedWrites(t *testing.T) {
	h := newTrackerHarness(t)
	second := ems.NewRequest(ems.AddrUI800, ems.TypeContactInfo, 60, []byte{0x00, 0x48}, false)
	h.tracker.SendWrite(ems.AddrUI800, ems.TypeContactInfo, 40, []byte{0x00, 0x45}, second)
	require.Len(t, *h.sent, 1)

	// first ack triggers the queued write, second ack completes
	h.ack(ems.AddrUI800, 0x01)
	require.Len(t, *h.sent, 2)
	assert.Equal(t, byte(60), h.lastSent(t).Offset)
	assert.Empty(t, h.results)

	h.ack(ems.AddrUI800, 0x01)
	assert.Equal(t, []Result{ResultSuccess}, h.results)
}

func TestTracker_VersionChain(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(ems.AddrUBA2, ems.TypeVersion, 0, 3, false)

	first := h.lastSent(t)
	assert.Equal(t, byte(ems.AddrUBA2), first.Dest)
	assert.Equal(t, []byte{3}, first.Data)

	// UBA2 answers; the handler prints the version and chains to UI800
	verdict := h.respond(ems.AddrUBA2, ems.TypeVersion, 0, []byte{0x00, 0x04, 0x11})
	assert.Equal(t, Pending, verdict)
	require.Len(t, h.output, 1)
	assert.Equal(t, "UBA2 version: 4.17", h.output[0])

	next := h.lastSent(t)
	assert.Equal(t, byte(ems.AddrUI800), next.Dest)
	assert.Equal(t, uint16(ems.TypeVersion), next.Type)
	assert.Equal(t, []byte{3}, next.Data)

	verdict = h.respond(ems.AddrUI800, ems.TypeVersion, 0, []byte{0x00, 0x02, 0x05})
	assert.Equal(t, Pending, verdict)
	assert.Equal(t, "UI800 version: 2.05", h.output[1])
	assert.Equal(t, byte(ems.AddrRH800), h.lastSent(t).Dest)

	verdict = h.respond(ems.AddrRH800, ems.TypeVersion, 0, []byte{0x00, 0x01, 0x00})
	assert.Equal(t, Success, verdict)
	assert.Equal(t, "RH800 version: 1.00", h.output[2])
	assert.Equal(t, []Result{ResultSuccess}, h.results)
}

func TestTracker_ScheduleListing(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(ems.AddrRC3x, ems.TypeHKSchedule, 0, ems.ScheduleBytes, false)

	page := []byte{
		0, 42, 1, // monday 07:00 on
		2, 39, 1, // tuesday 06:30 on
		ems.ScheduleDayUnset, ems.ScheduleTimeUnset, ems.ScheduleOnUnset,
	}
	verdict := h.respond(ems.AddrRC3x, ems.TypeHKSchedule, 0, page)
	assert.Equal(t, Success, verdict, "unset entry terminates the listing")
	require.Len(t, h.output, 2)
	assert.Equal(t, "01 monday 07:00 on", h.output[0])
	assert.Equal(t, "02 tuesday 06:30 on", h.output[1])
}

func TestTracker_HolidayRead(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(ems.AddrRC3x, ems.TypeHKSchedule,
		ems.HolidayRangeOffset, 2*ems.HolidayEntrySize, false)

	request := h.lastSent(t)
	assert.Equal(t, byte(ems.HolidayRangeOffset), request.Offset)
	assert.Equal(t, []byte{6}, request.Data)

	verdict := h.respond(ems.AddrRC3x, ems.TypeHKSchedule, ems.HolidayRangeOffset,
		[]byte{26, 8, 10, 26, 8, 20})
	assert.Equal(t, Success, verdict)
	require.Len(t, h.output, 2)
	assert.Equal(t, "begin 2026-08-10", h.output[0])
	assert.Equal(t, "end 2026-08-20", h.output[1])
}

func TestTracker_ContactInfoDecode(t *testing.T) {
	h := newTrackerHarness(t)
	h.tracker.StartRequest(ems.AddrUI800, ems.TypeContactInfo, 0, 80, false)

	line := func(text string) []byte {
		out := make([]byte, 0, 40)
		for _, r := range text {
			out = append(out, 0x00, byte(r))
		}
		for len(out) < 40 {
			out = append(out, 0x00, ' ')
		}
		return out
	}

	h.respond(ems.AddrUI800, ems.TypeContactInfo, 0, line("KESSELWERK"))
	verdict := h.respond(ems.AddrUI800, ems.TypeContactInfo, 40, line("0800 1234"))
	assert.Equal(t, Success, verdict)
	require.Len(t, h.output, 2)
	assert.Equal(t, "KESSELWERK", h.output[0])
	assert.Equal(t, "0800 1234", h.output[1])
}

func TestTracker_SingleActiveRequest(t *testing.T) {
	h := newTrackerHarness(t)
	assert.False(t, h.tracker.Busy())
	h.tracker.StartRequest(ems.AddrUBA2, ems.TypeVersion, 0, 3, false)
	assert.True(t, h.tracker.Busy())
	h.respond(ems.AddrUBA2, ems.TypeVersion, 0, []byte{0, 1, 2})
	// the chain moved on to UI800, still exactly one active request
	assert.True(t, h.tracker.Busy())
}
