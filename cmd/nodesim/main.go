// Command nodesim runs the sensor node on a host with simulated
// peripherals, a real or null serial uplink and stdin as the terminal.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
