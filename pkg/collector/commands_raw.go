// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

//go:build rawcmd

package collector

import "github.com/kesselwerk/emscollect/pkg/ems"

// Raw bus access is an operator escape hatch; builds without the
// rawcmd tag reject the command category entirely.

const rawAvailable = true

func (c *Commands) handleRaw(args []string, out func(string)) CommandResult {
	if len(args) == 0 {
		return InvalidCmd
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		out("Available subcommands:")
		out("read <target> <type> <offset> <len>")
		out("write <target> <type> <offset> <data>")
		return Ok

	case "read":
		if len(args) != 4 {
			return InvalidArgs
		}
		target, ok1 := parseIntArg(args[0], 0xFF)
		typ, ok2 := parseIntArg(args[1], 0xFFFF)
		offset, ok3 := parseIntArg(args[2], 0xFF)
		length, ok4 := parseIntArg(args[3], 0xFF)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return InvalidArgs
		}
		c.tracker.StartRequest(byte(target), uint16(typ), int(offset), int(length), true)
		return Ok

	case "write":
		if len(args) != 4 {
			return InvalidArgs
		}
		target, ok1 := parseIntArg(args[0], 0xFF)
		typ, ok2 := parseIntArg(args[1], 0xFFFF)
		offset, ok3 := parseIntArg(args[2], 0xFF)
		value, ok4 := parseIntArg(args[3], 0xFF)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return InvalidArgs
		}
		c.tracker.SendWrite(byte(target), uint16(typ), byte(offset), []byte{byte(value)})
		return Ok
	}

	return InvalidCmd
}
