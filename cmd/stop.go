// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"
	"strconv"

	"github.com/labgear/regloctl/pkg/regloicc"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop [channel]",
	Short: "Immediately stop pumping",
	Long: `Stop pumping on one channel, or on every channel in order when no
channel is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ch := regloicc.AllChannels
	if len(args) == 1 {
		var err error
		ch, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid channel %q: %v", args[0], err)
		}
	}

	pump, _, err := openPump()
	if err != nil {
		return err
	}
	defer pump.Close()

	if err := pump.Stop(ch); err != nil {
		return err
	}
	if ch == regloicc.AllChannels {
		fmt.Printf("Stopped all channels\n")
	} else {
		fmt.Printf("Stopped channel %d\n", ch)
	}
	return nil
}
