// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

// Verdict is the tracker's view of one inbound frame.
type Verdict int

const (
	// Pending: not ours, or ours but the request continues.
	Pending Verdict = iota
	Success
	Failure
)

// Result is the terminal outcome reported to the issuing client,
// exactly once per command.
type Result int

const (
	ResultSuccess Result = iota
	ResultFail
	ResultTimeout
)

// activeRequest is the single outstanding bus transaction.
type activeRequest struct {
	dest        byte
	typ         uint16
	offset      int
	length      int
	response    []byte
	raw         bool
	retriesLeft int
	parsePos    int
	counter     int
	frame       ems.Frame   // last sent frame, resent on timeout
	writeQueue  []ems.Frame // follow-up writes after an ack
}

// Tracker owns the active request: it paginates long reads, retries on
// timeout, matches inbound frames, and reports one terminal result per
// command. All methods run on the engine loop.
type Tracker struct {
	sched      *Scheduler
	after      AfterFunc
	timeout    time.Duration
	maxRetries int
	sinks      *DebugSinks

	active      *activeRequest
	cancelTimer func()

	// per-command callbacks, installed by the translator
	output   func(string)
	complete func(Result)
}

// NewTracker creates a tracker submitting through sched.
func NewTracker(sched *Scheduler, after AfterFunc, timeout time.Duration,
	maxRetries int, sinks *DebugSinks) *Tracker {
	return &Tracker{
		sched:      sched,
		after:      after,
		timeout:    timeout,
		maxRetries: maxRetries,
		sinks:      sinks,
	}
}

// Busy reports whether a request is outstanding.
func (t *Tracker) Busy() bool {
	return t.active != nil
}

// Bind installs the per-command output and completion callbacks.
func (t *Tracker) Bind(output func(string), complete func(Result)) {
	t.output = output
	t.complete = complete
}

func (t *Tracker) emit(line string) {
	if t.output != nil {
		t.output(line)
	}
}

func (t *Tracker) finish(r Result) {
	t.clear()
	if t.complete != nil {
		cb := t.complete
		t.complete = nil
		cb(r)
	}
}

func (t *Tracker) clear() {
	t.active = nil
	t.stopTimer()
}

func (t *Tracker) stopTimer() {
	if t.cancelTimer != nil {
		t.cancelTimer()
		t.cancelTimer = nil
	}
}

// Stop aborts any outstanding request without reporting a result.
func (t *Tracker) Stop() {
	t.clear()
	t.complete = nil
}

// StartRequest begins a paginated read of length bytes from
// (dest, typ) starting at offset. In raw mode the accumulated bytes
// are rendered as hex instead of being interpreted.
func (t *Tracker) StartRequest(dest byte, typ uint16, offset, length int, raw bool) {
	if t.sinks != nil {
		t.sinks.Message.Printf("start request: dest 0x%02x, type 0x%04x, offset %d, length %d",
			dest, typ, offset, length)
	}
	t.active = &activeRequest{
		dest:        dest,
		typ:         typ,
		offset:      offset,
		length:      length,
		raw:         raw,
		retriesLeft: t.maxRetries,
	}
	t.continueRequest()
}

// startFollowup replaces the active request while keeping the current
// command's callbacks (used by chaining response handlers).
func (t *Tracker) startFollowup(dest byte, typ uint16, offset, length int) {
	t.active = &activeRequest{
		dest:        dest,
		typ:         typ,
		offset:      offset,
		length:      length,
		retriesLeft: t.maxRetries,
	}
	t.continueRequest()
}

// SendWrite issues one or more writes; each follow-up write is sent
// after the previous one was acknowledged.
func (t *Tracker) SendWrite(dest byte, typ uint16, offset byte, data []byte, more ...ems.Frame) {
	t.active = &activeRequest{
		dest:        dest,
		typ:         typ,
		retriesLeft: t.maxRetries,
		writeQueue:  more,
	}
	t.active.frame = ems.NewRequest(dest, typ, offset, data, false)
	t.sendActiveRequest()
}

// continueRequest issues the next page of the active read. It reports
// whether more data was requested.
func (t *Tracker) continueRequest() bool {
	a := t.active
	already := len(a.response)
	if already >= a.length {
		return false
	}
	remaining := a.length - already
	if remaining > 255 {
		remaining = 255
	}
	a.frame = ems.NewRequest(a.dest, a.typ, byte(a.offset+already),
		[]byte{byte(remaining)}, true)
	t.sendActiveRequest()
	return true
}

func (t *Tracker) sendActiveRequest() {
	t.sched.Submit(t.active.frame)
	t.stopTimer()
	t.cancelTimer = t.after(t.timeout, t.onTimeout)
}

// onTimeout fires when no response arrived in time: resend, or give up
// after the final retry.
func (t *Tracker) onTimeout() {
	t.cancelTimer = nil
	if t.active == nil {
		return
	}
	t.active.retriesLeft--
	if t.active.retriesLeft <= 0 {
		t.finish(ResultTimeout)
		return
	}
	t.sendActiveRequest()
}

// OnFrame matches an inbound frame against the active request.
func (t *Tracker) OnFrame(f ems.Frame) Verdict {
	if t.active == nil {
		return Pending
	}

	if f.Type == ems.DeviceAck {
		return t.onAck(f)
	}

	a := t.active
	if f.Source != a.dest || f.Type != a.typ ||
		int(f.Offset) != a.offset+len(a.response) {
		// likely a response to a request we already retried
		return Pending
	}

	t.stopTimer()

	if len(f.Data) == 0 {
		// no further data available
		a.length = len(a.response)
	} else {
		a.response = append(a.response, f.Data...)
	}

	var verdict Verdict
	if a.raw {
		if t.continueRequest() {
			verdict = Pending
		} else {
			var b strings.Builder
			for _, d := range a.response {
				fmt.Fprintf(&b, "0x%02x ", d)
			}
			t.emit(strings.TrimSpace(b.String()))
			verdict = Success
		}
	} else {
		verdict = t.handleResponse()
	}

	switch verdict {
	case Success:
		t.finish(ResultSuccess)
	case Failure:
		t.finish(ResultFail)
	}
	return verdict
}

// onAck handles the single-byte device acknowledgement: the active
// request completes, successfully unless the device rejected it.
func (t *Tracker) onAck(f ems.Frame) Verdict {
	t.stopTimer()
	if f.Offset == ems.DeviceAckRejOffset {
		t.finish(ResultFail)
		return Failure
	}
	a := t.active
	if len(a.writeQueue) > 0 {
		a.frame = a.writeQueue[0]
		a.writeQueue = a.writeQueue[1:]
		a.retriesLeft = t.maxRetries
		t.sendActiveRequest()
		return Pending
	}
	t.finish(ResultSuccess)
	return Success
}

// versionTargets is the chain the getversion response handler walks.
var versionTargets = []struct {
	address byte
	name    string
}{
	{ems.AddrUBA2, "UBA2"},
	{ems.AddrUI800, "UI800"},
	{ems.AddrRH800, "RH800"},
}

// handleResponse dispatches on the active request type.
func (t *Tracker) handleResponse() Verdict {
	a := t.active
	switch {
	case a.typ == ems.TypeVersion:
		return t.handleVersionResponse()

	case a.typ == ems.TypeErrorLog:
		return t.loopOverResponse(ems.ErrorRecordSize, func(buf []byte) string {
			record, err := ems.DecodeErrorRecord(buf)
			if err != nil {
				return ""
			}
			return record.String()
		})

	case isScheduleType(a.typ) && a.offset == ems.HolidayRangeOffset:
		return t.handleHolidayResponse()

	case isScheduleType(a.typ):
		return t.loopOverResponse(ems.ScheduleEntrySize, func(buf []byte) string {
			entry, err := ems.DecodeScheduleEntry(buf)
			if err != nil {
				return ""
			}
			return entry.String()
		})

	case a.typ == ems.TypeContactInfo:
		return t.handleContactInfoResponse()
	}

	// no handler for this response
	return Failure
}

func isScheduleType(typ uint16) bool {
	return typ >= ems.TypeHKSchedule && typ < ems.TypeHKSchedule+4
}

func (t *Tracker) handleVersionResponse() Verdict {
	a := t.active
	if len(a.response) < 3 {
		if t.continueRequest() {
			return Pending
		}
		return Failure
	}
	major := a.response[1]
	minor := a.response[2]

	index := -1
	for i, target := range versionTargets {
		if target.address == a.dest {
			index = i
			break
		}
	}
	if index < 0 {
		return Failure
	}
	t.emit(fmt.Sprintf("%s version: %d.%02d", versionTargets[index].name, major, minor))

	if index == len(versionTargets)-1 {
		return Success
	}
	t.startFollowup(versionTargets[index+1].address, ems.TypeVersion, 0, 3)
	return Pending
}

// loopOverResponse iterates fixed-size records across pagination
// boundaries, emitting one numbered line per non-empty record. An
// empty record ends the listing early.
func (t *Tracker) loopOverResponse(size int, build func([]byte) string) Verdict {
	a := t.active
	for a.parsePos+size <= len(a.response) {
		line := build(a.response[a.parsePos : a.parsePos+size])
		a.parsePos += size
		a.counter++
		if line == "" {
			return Success
		}
		t.emit(fmt.Sprintf("%02d %s", a.counter, line))
	}
	if !t.continueRequest() {
		return Success
	}
	return Pending
}

func (t *Tracker) handleHolidayResponse() Verdict {
	a := t.active
	if t.continueRequest() {
		return Pending
	}
	if len(a.response) < 2*ems.HolidayEntrySize {
		return Failure
	}
	begin, err := ems.DecodeHolidayEntry(a.response[0:3])
	if err != nil {
		return Failure
	}
	end, err := ems.DecodeHolidayEntry(a.response[3:6])
	if err != nil {
		return Failure
	}
	t.emit("begin " + begin.String())
	t.emit("end " + end.String())
	return Success
}

// handleContactInfoResponse concatenates the full response, then
// decodes each 40-byte block as one UTF-16BE text line.
func (t *Tracker) handleContactInfoResponse() Verdict {
	a := t.active
	if t.continueRequest() {
		return Pending
	}
	for pos := 0; pos+40 <= len(a.response); pos += 40 {
		block := a.response[pos : pos+40]
		units := make([]uint16, 0, 20)
		for i := 0; i+1 < len(block); i += 2 {
			units = append(units, uint16(block[i])<<8|uint16(block[i+1]))
		}
		line := strings.TrimRight(string(utf16.Decode(units)), " \x00")
		t.emit(line)
	}
	return Success
}
