// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk
//
// emscollect - Buderus/Bosch EMS bus collector and command gateway.

package main

import (
	"os"

	"github.com/kesselwerk/emscollect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
