package main

import (
	"github.com/spf13/cobra"
)

var profileName string

var rootCmd = &cobra.Command{
	Use:   "nodesim",
	Short: "Host simulator for the sensor node",
	Long: `nodesim runs the sensor node firmware on a host.

The environmental sensor and the battery ADC are simulated from the
profile's sim section. The uplink uses a serial device when --device is
given and discards frames otherwise. Lines typed on stdin go to the
local terminal.

Profiles are YAML files or one of the embedded names (sim, quiet).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "sim", "Profile file or embedded profile name")
}
