// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"
	"strconv"

	"github.com/labgear/regloctl/pkg/regloicc"
	"github.com/spf13/cobra"
)

var (
	pumpNoWait   bool
	runDirection string
)

var dispenseCmd = &cobra.Command{
	Use:   "dispense <channel> <volume-ml> <rate-ml-min>",
	Short: "Dispense a volume on a channel",
	Long: `Pump a volume in the channel's configured dispense direction.

By default the command blocks, polling the channel until the pump reports the
operation complete; stall detection is active while polling. With --no-wait
the command returns as soon as pumping starts.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVolume(args, func(p *regloicc.Pump, ch int, vol, rate float64) error {
			return p.DispenseVolume(ch, vol, rate, !pumpNoWait)
		})
	},
}

var aspirateCmd = &cobra.Command{
	Use:   "aspirate <channel> <volume-ml> <rate-ml-min>",
	Short: "Aspirate a volume on a channel",
	Long: `Pump a volume opposite to the channel's configured dispense direction.

Blocking behavior matches the dispense command.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVolume(args, func(p *regloicc.Pump, ch int, vol, rate float64) error {
			return p.AspirateVolume(ch, vol, rate, !pumpNoWait)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <channel> <volume-ml> <rate-ml-min>",
	Short: "Pump a volume with an explicit rotation direction",
	Long: `Pump a volume with the rotor direction given by --direction instead of
the configured dispense direction.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := regloicc.ParseDirection(runDirection)
		if err != nil {
			return err
		}
		return runVolume(args, func(p *regloicc.Pump, ch int, vol, rate float64) error {
			return p.PumpVolume(ch, dir, vol, rate, !pumpNoWait)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{dispenseCmd, aspirateCmd, runCmd} {
		c.Flags().BoolVar(&pumpNoWait, "no-wait", false, "Return as soon as pumping starts")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().StringVarP(&runDirection, "direction", "d", "cw", "Rotation direction (cw or ccw)")
}

func runVolume(args []string, op func(*regloicc.Pump, int, float64, float64) error) error {
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid channel %q: %v", args[0], err)
	}
	vol, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid volume %q: %v", args[1], err)
	}
	rate, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid rate %q: %v", args[2], err)
	}

	pump, _, err := openPump()
	if err != nil {
		return err
	}
	defer pump.Close()

	if err := op(pump, ch, vol, rate); err != nil {
		return err
	}
	if pumpNoWait {
		fmt.Printf("Channel %d: pumping %g mL at %g mL/min\n", ch, vol, rate)
	} else {
		fmt.Printf("Channel %d: pumped %g mL at %g mL/min\n", ch, vol, rate)
	}
	return nil
}
