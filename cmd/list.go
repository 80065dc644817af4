// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"
	"os"

	"github.com/labgear/regloctl/pkg/regloicc"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List USB-connected pumps",
	Long: `List serial ports whose USB vendor/product IDs match the pump family.

Detection is based on the IDs the OS reports; no port is opened or verified.
Pumps connected through USB-to-RS-232 converters are not detected.

Exit codes:
  0 - At least one pump found
  1 - No pumps found
  2 - Enumeration error`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := regloicc.FindPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enumeration error: %v\n", err)
		os.Exit(2)
	}

	if len(ports) == 0 {
		fmt.Printf("No USB-connected pumps found.\n")
		os.Exit(1)
	}

	fmt.Printf("Pumps found: %d\n", len(ports))
	for _, port := range ports {
		if port.SerialNumber != "" {
			fmt.Printf("  %s (USB serial %s)\n", port.Name, port.SerialNumber)
		} else {
			fmt.Printf("  %s\n", port.Name)
		}
	}
	return nil
}
