// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var displayCmd = &cobra.Command{
	Use:   "display <text>",
	Short: "Show a message on the pump display",
	Long:  `Show a short message on the pump's display. Text longer than 15 characters is truncated.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDisplay,
}

func init() {
	rootCmd.AddCommand(displayCmd)
}

func runDisplay(cmd *cobra.Command, args []string) error {
	pump, _, err := openPump()
	if err != nil {
		return err
	}
	defer pump.Close()

	if err := pump.ShowMessage(args[0]); err != nil {
		return err
	}
	fmt.Printf("Message shown\n")
	return nil
}
