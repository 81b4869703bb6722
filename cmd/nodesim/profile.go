package main

import (
	"os"

	"github.com/spf13/cobra"

	"sensornode-go/services/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the normalised profile",
	Long: `Load, validate and normalise the selected profile and print it as
YAML, showing the defaults and clamps the node will actually use.`,
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	p, err := loadProfile(moduleNames())
	if err != nil {
		return err
	}
	out, err := config.Marshal(p)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
