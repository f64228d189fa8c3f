// Package cmd contains the CLI commands of wsbridge-host.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wsbridge-host",
	Short: "Run WebSocket servers driven by a host update loop",
	Long: `wsbridge-host embeds the WebSocket bridge the way a simulation host
does: servers are started by scripts and all network events are delivered
from a fixed-rate update loop.

Examples:
  # Run the echo script on the configured demo port
  wsbridge-host run --config configs/wsbridge.yaml

  # Send a message to a running echo server
  wsbridge-host ping --url ws://localhost:9000/ --message hello

Environment Variables:
  WSBRIDGE_*  Override any configuration value (e.g. WSBRIDGE_TICK_DEMO_PORT)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/wsbridge.yaml", "Path to configuration file")
}
