// Package cli implements the rivaltray CLI commands.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rivaltray",
	Short: "Battery tray icon for SteelSeries wireless mice",
	Long: `Rivaltray shows the battery level of a SteelSeries wireless mouse
as a system tray icon. It polls the device through rivalcfg and exposes
mouse settings from the tray menu.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add subcommands (alphabetical)
	rootCmd.AddCommand(batteryCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(versionCmd)
}
