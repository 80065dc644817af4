// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Serial connection flags
	portName string

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Pump session flags
	pumpAddr       int
	expectedSerial string

	// Tooling flags
	verbose    bool
	recordPath string
)

var rootCmd = &cobra.Command{
	Use:   "regloctl",
	Short: "Reglo ICC peristaltic pump control",
	Long: `Regloctl - a CLI for Reglo ICC peristaltic pumps.

Drives the pump's ASCII serial protocol: volumetric dispensing and
aspiration per channel, tubing calibration, status polling with stall
detection, and display messages.

Connection modes:
  Serial:    --port /dev/ttyACM0
  WebSocket: --url ws://host/path [--username user]
             (a byte bridge to a remotely attached pump)

Defaults are read from the environment (or a .env file): REGLO_PORT,
REGLO_URL, REGLO_ADDR, REGLO_SERIAL. For WebSocket authentication the
password comes from REGLO_PASSWORD, or an interactive prompt if unset.
The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version: "1.2.0",
}

func init() {
	// A .env in the working directory seeds flag defaults; a missing file
	// is fine.
	_ = godotenv.Load()

	addrDefault := 1
	if v := os.Getenv("REGLO_ADDR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			addrDefault = n
		}
	}

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", os.Getenv("REGLO_PORT"), "Serial port device")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", os.Getenv("REGLO_URL"), "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	rootCmd.PersistentFlags().IntVarP(&pumpAddr, "addr", "a", addrDefault, "Pump address (only matters when daisy-chaining)")
	rootCmd.PersistentFlags().StringVar(&expectedSerial, "serial", os.Getenv("REGLO_SERIAL"), "Fail unless the pump reports this serial number")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log wire traffic to stderr")
	rootCmd.PersistentFlags().StringVar(&recordPath, "record", "", "Record the wire transcript to a CBOR file")
}

// newLogger builds the session logger: development output on stderr with
// --verbose, otherwise silence.
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
