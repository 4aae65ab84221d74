// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

// CommandResult classifies a parsed command line.
type CommandResult int

const (
	Ok CommandResult = iota
	InvalidCmd
	InvalidArgs
	Busy
)

// apiVersion identifies the command API generation.
const apiVersion = "2026020301"

// Commands is the translator from line-oriented ASCII commands to bus
// writes and reads. It is side-effect-free apart from submitting frames
// through the tracker and scheduler; multi-step operations are chained
// by the tracker's response handlers.
type Commands struct {
	tracker  *Tracker
	sched    *Scheduler
	cache    *ValueCache
	every    AfterFunc // recurring arming uses repeated one-shots
	interval time.Duration

	testmodeCancel func()
}

// NewCommands creates a translator issuing through tracker and sched.
func NewCommands(tracker *Tracker, sched *Scheduler, cache *ValueCache,
	after AfterFunc, testmodeInterval time.Duration) *Commands {
	return &Commands{
		tracker:  tracker,
		sched:    sched,
		cache:    cache,
		every:    after,
		interval: testmodeInterval,
	}
}

// Stop cancels the testmode refresh timer.
func (c *Commands) Stop() {
	c.cancelTestmode()
}

// Execute parses one command line. Output lines for the issuing client
// go through out; if the command occupies the tracker, the terminal
// verdict arrives through complete, otherwise the caller reports
// success itself.
func (c *Commands) Execute(line string, out func(string), complete func(Result)) CommandResult {
	if c.tracker.Busy() {
		return Busy
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return InvalidCmd
	}
	c.tracker.Bind(out, complete)

	category, args := tokens[0], tokens[1:]
	switch category {
	case "help":
		out("Available commands (help with '<command> help'):")
		out("hk[1|2|3|4]")
		out("ww")
		out("uba")
		out("rc")
		if rawAvailable {
			out("raw")
		}
		out("cache")
		out("getversion")
		out("geterrors")
		return Ok
	case "hk1", "hk2", "hk3", "hk4":
		hk := int(category[2] - '0')
		return c.handleHk(hk, args, out)
	case "ww":
		return c.handleWw(args, out)
	case "uba":
		return c.handleUba(args, out)
	case "rc":
		return c.handleRc(args, out)
	case "cache":
		return c.handleCache(args, out)
	case "getversion":
		out("collector version: " + apiVersion)
		c.tracker.StartRequest(ems.AddrUBA2, ems.TypeVersion, 0, 3, false)
		return Ok
	case "geterrors":
		c.tracker.StartRequest(ems.AddrRC3x, ems.TypeErrorLog, 0, 4*ems.ErrorRecordSize, false)
		return Ok
	case "raw":
		return c.handleRaw(args, out)
	}

	return InvalidCmd
}

func hkOpmodeType(hk int) uint16 {
	return ems.TypeHKOpmode + uint16(hk-1)
}

func hkScheduleType(hk int) uint16 {
	return ems.TypeHKSchedule + uint16(hk-1)
}

func (c *Commands) handleHk(hk int, args []string, out func(string)) CommandResult {
	if len(args) == 0 {
		return InvalidCmd
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		out("Available subcommands:")
		out("mode off|manual|auto")
		out("manualtemp <temp>")
		out("boosttemp <temp>")
		out("boosthours <hours>")
		out("schedule <1..42> <day> <HH:MM> on|off")
		out("schedule <1..42> unset")
		out("getschedule")
		out("holidaymode YYYY-MM-DD YYYY-MM-DD")
		out("getholiday")
		return Ok

	case "mode":
		if len(args) != 1 {
			return InvalidArgs
		}
		var mode byte
		switch args[0] {
		case "off":
			mode = 0x00
		case "manual":
			mode = 0x01
		case "auto":
			mode = 0x02
		default:
			return InvalidArgs
		}
		c.tracker.SendWrite(ems.AddrUI800, hkOpmodeType(hk), 21, []byte{mode})
		return Ok

	case "manualtemp":
		return c.writeScaledByte(args, ems.AddrUI800, hkOpmodeType(hk), 22, 2, 5, 30)
	case "boosttemp":
		return c.writeScaledByte(args, ems.AddrUI800, hkOpmodeType(hk), 23, 2, 5, 30)
	case "boosthours":
		return c.writeScaledByte(args, ems.AddrUI800, hkOpmodeType(hk), 24, 1, 0, 8)

	case "schedule":
		return c.handleSchedule(hk, args)
	case "getschedule":
		c.tracker.StartRequest(ems.AddrRC3x, hkScheduleType(hk), 0, ems.ScheduleBytes, false)
		return Ok

	case "holidaymode":
		return c.handleHoliday(hk, args)
	case "getholiday":
		c.tracker.StartRequest(ems.AddrRC3x, hkScheduleType(hk),
			ems.HolidayRangeOffset, 2*ems.HolidayEntrySize, false)
		return Ok
	}

	return InvalidCmd
}

// writeScaledByte validates a decimal argument against [min, max] and
// writes round(multiplier * value) as a single byte.
func (c *Commands) writeScaledByte(args []string, dest byte, typ uint16,
	offset byte, multiplier, min, max float64) CommandResult {
	if len(args) != 1 {
		return InvalidArgs
	}
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return InvalidArgs
	}
	if value < min || value > max {
		return InvalidArgs
	}
	c.tracker.SendWrite(dest, typ, offset, []byte{byte(math.Round(multiplier * value))})
	return Ok
}

func (c *Commands) handleSchedule(hk int, args []string) CommandResult {
	if len(args) < 2 {
		return InvalidArgs
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 1 || index > ems.ScheduleEntryCount {
		return InvalidArgs
	}
	entry, ok := parseScheduleEntry(args[1:])
	if !ok {
		return InvalidArgs
	}
	offset := byte((index - 1) * ems.ScheduleEntrySize)
	c.tracker.SendWrite(ems.AddrRC3x, hkScheduleType(hk), offset, entry.Encode())
	return Ok
}

func parseScheduleEntry(args []string) (ems.ScheduleEntry, bool) {
	if len(args) == 1 && args[0] == "unset" {
		return ems.ScheduleEntry{
			Day:  ems.ScheduleDayUnset,
			Time: ems.ScheduleTimeUnset,
			On:   ems.ScheduleOnUnset,
		}, true
	}
	if len(args) != 3 {
		return ems.ScheduleEntry{}, false
	}

	day := -1
	for i, name := range ems.DayNames {
		if args[0] == name {
			day = i
			break
		}
	}
	if day < 0 {
		return ems.ScheduleEntry{}, false
	}

	hhmm := strings.Split(args[1], ":")
	if len(hhmm) != 2 {
		return ems.ScheduleEntry{}, false
	}
	hours, err1 := strconv.Atoi(hhmm[0])
	minutes, err2 := strconv.Atoi(hhmm[1])
	if err1 != nil || err2 != nil ||
		hours < 0 || hours > 23 || minutes < 0 || minutes > 59 || minutes%10 != 0 {
		return ems.ScheduleEntry{}, false
	}

	var on byte
	switch args[2] {
	case "on":
		on = 1
	case "off":
		on = 0
	default:
		return ems.ScheduleEntry{}, false
	}

	return ems.ScheduleEntry{
		Day:  byte(2 * day),
		Time: byte((hours*60 + minutes) / 10),
		On:   on,
	}, true
}

func (c *Commands) handleHoliday(hk int, args []string) CommandResult {
	if len(args) != 2 {
		return InvalidArgs
	}
	begin, ok := parseHolidayEntry(args[0])
	if !ok {
		return InvalidArgs
	}
	end, ok := parseHolidayEntry(args[1])
	if !ok {
		return InvalidArgs
	}
	if begin.Date().After(end.Date()) {
		return InvalidArgs
	}
	data := append(begin.Encode(), end.Encode()...)
	c.tracker.SendWrite(ems.AddrRC3x, hkScheduleType(hk), ems.HolidayRangeOffset, data)
	return Ok
}

func parseHolidayEntry(s string) (ems.HolidayEntry, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return ems.HolidayEntry{}, false
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return ems.HolidayEntry{}, false
	}
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return ems.HolidayEntry{}, false
	}
	return ems.HolidayEntry{
		Year:  byte(year - 2000),
		Month: byte(month),
		Day:   byte(day),
	}, true
}

func (c *Commands) handleWw(args []string, out func(string)) CommandResult {
	if len(args) == 0 {
		return InvalidCmd
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		out("Available subcommands:")
		out("temperature <30..80>")
		out("thermdesinfect on|off")
		return Ok

	case "temperature":
		if len(args) != 1 {
			return InvalidArgs
		}
		temp, err := strconv.Atoi(args[0])
		if err != nil || temp < 30 || temp > 80 {
			return InvalidArgs
		}
		c.tracker.SendWrite(ems.AddrUBA2, ems.TypeWWParameter, 2, []byte{byte(temp)})
		return Ok

	case "thermdesinfect":
		if len(args) != 1 {
			return InvalidArgs
		}
		var value byte
		switch args[0] {
		case "on":
			value = 0xFF
		case "off":
			value = 0x00
		default:
			return InvalidArgs
		}
		c.tracker.SendWrite(ems.AddrUBA2, ems.TypeWWParameter, 4, []byte{value})
		return Ok
	}

	return InvalidCmd
}

func (c *Commands) handleUba(args []string, out func(string)) CommandResult {
	if len(args) == 0 {
		return InvalidCmd
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		out("Available subcommands:")
		out("testmode on|off")
		return Ok

	case "testmode":
		if len(args) != 1 {
			return InvalidArgs
		}
		switch args[0] {
		case "on":
			c.armTestmode()
			return Ok
		case "off":
			c.cancelTestmode()
			c.sched.Submit(ems.NewRequest(ems.AddrUBA2, ems.TypeTestmode, 0,
				[]byte{0x00}, false))
			return Ok
		}
		return InvalidArgs
	}

	return InvalidCmd
}

// armTestmode starts the recurring testmode refresh. The enable byte
// has to be rewritten continuously or the device drops out of testmode.
// Arming twice leaves exactly one timer.
func (c *Commands) armTestmode() {
	c.cancelTestmode()
	c.refreshTestmode()
}

func (c *Commands) refreshTestmode() {
	// fire-and-forget write: the refresh must not occupy the tracker
	c.sched.Submit(ems.NewRequest(ems.AddrUBA2, ems.TypeTestmode, 0, []byte{0x5A}, false))
	c.testmodeCancel = c.every(c.interval, c.refreshTestmode)
}

func (c *Commands) cancelTestmode() {
	if c.testmodeCancel != nil {
		c.testmodeCancel()
		c.testmodeCancel = nil
	}
}

// TestmodeArmed reports whether the refresh timer is running.
func (c *Commands) TestmodeArmed() bool {
	return c.testmodeCancel != nil
}

func (c *Commands) handleRc(args []string, out func(string)) CommandResult {
	if len(args) == 0 {
		return InvalidCmd
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		out("Available subcommands:")
		out("settime YYYY-MM-DD HH:MM:SS")
		out("setcontactinfo 1|2|3 <text>")
		out("getcontactinfo")
		return Ok

	case "settime":
		if len(args) != 2 {
			return InvalidArgs
		}
		when, err := time.ParseInLocation("2006-01-02 15:04:05",
			args[0]+" "+args[1], time.Local)
		if err != nil {
			return InvalidArgs
		}
		record := ems.NewSystemTime(when)
		c.tracker.SendWrite(ems.AddrUI800, ems.TypeSystemTime, 0, record.Encode())
		return Ok

	case "setcontactinfo":
		return c.handleSetContactInfo(args)

	case "getcontactinfo":
		c.tracker.StartRequest(ems.AddrUI800, ems.TypeContactInfo, 0, 120, false)
		return Ok
	}

	return InvalidCmd
}

// handleSetContactInfo writes one display line of the contact info
// screen: text is space-padded to 20 UTF-16 units and written as two
// 20-byte big-endian chunks.
func (c *Commands) handleSetContactInfo(args []string) CommandResult {
	if len(args) < 2 {
		return InvalidArgs
	}
	line, err := strconv.Atoi(args[0])
	if err != nil || line < 1 || line > 3 {
		return InvalidArgs
	}

	units := utf16.Encode([]rune(strings.Join(args[1:], " ")))
	for len(units) < 20 {
		units = append(units, ' ')
	}
	units = units[:20]

	encoded := make([]byte, 0, 40)
	for _, u := range units {
		encoded = append(encoded, byte(u>>8), byte(u))
	}

	base := byte((line - 1) * 40)
	second := ems.NewRequest(ems.AddrUI800, ems.TypeContactInfo, base+20, encoded[20:], false)
	c.tracker.SendWrite(ems.AddrUI800, ems.TypeContactInfo, base, encoded[:20], second)
	return Ok
}

func (c *Commands) handleCache(args []string, out func(string)) CommandResult {
	if len(args) == 0 {
		return InvalidCmd
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		out("Available subcommands:")
		out("fetch <selector>")
		return Ok
	case "fetch":
		for _, line := range c.cache.Fetch(args) {
			out(line)
		}
		return Ok
	}

	return InvalidCmd
}

// parseIntArg parses a decimal or 0x-prefixed hex token up to max.
func parseIntArg(token string, max uint64) (uint64, bool) {
	base := 10
	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		token, base = token[2:], 16
	}
	value, err := strconv.ParseUint(token, base, 64)
	if err != nil || value > max {
		return 0, false
	}
	return value, true
}
