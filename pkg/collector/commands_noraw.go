// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

//go:build !rawcmd

package collector

const rawAvailable = false

func (c *Commands) handleRaw(args []string, out func(string)) CommandResult {
	return InvalidCmd
}
