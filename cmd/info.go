// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show pump identity",
	Long: `Open a session with the pump and print the identity data cached at
construction: serial number, model number, firmware version, head code and
the discovered channel count.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	pump, connInfo, err := openPump()
	if err != nil {
		return err
	}
	defer pump.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Address:    %d\n", pump.Address())
	fmt.Printf("Serial no:  %s\n", pump.SerialNo())
	fmt.Printf("Model no:   %s\n", pump.ModelNo())
	fmt.Printf("Firmware:   %s\n", pump.SoftwareVersion())
	fmt.Printf("Head code:  %s\n", pump.HeadCode())
	fmt.Printf("Channels:   %d\n", len(pump.Channels()))
	return nil
}
