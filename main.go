// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear
//
// Regloctl - Reglo ICC peristaltic pump control
//
// A CLI for driving Reglo ICC pumps over their ASCII serial protocol.

package main

import (
	"os"

	"github.com/labgear/regloctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
