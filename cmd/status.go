// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"
	"strconv"

	"github.com/labgear/regloctl/pkg/regloicc"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [channel]",
	Short: "Show run status per channel",
	Long: `Query whether channels are currently pumping. With no channel argument
every channel is queried in order.

Stall detection is active: a channel that reports running without odometer
progress for 2 seconds is stopped and reported as stalled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	pump, _, err := openPump()
	if err != nil {
		return err
	}
	defer pump.Close()

	channels := pump.Channels()
	if len(args) == 1 {
		ch, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid channel %q: %v", args[0], err)
		}
		channels = []int{ch}
	}

	for _, ch := range channels {
		running, err := pump.IsRunning(ch)
		switch {
		case regloicc.IsKind(err, regloicc.KindStallDetected):
			fmt.Printf("Channel %d: STALLED (stopped)\n", ch)
		case err != nil:
			return err
		case running:
			fmt.Printf("Channel %d: running\n", ch)
		default:
			fmt.Printf("Channel %d: stopped\n", ch)
		}
	}
	return nil
}
