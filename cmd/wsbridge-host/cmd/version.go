package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-wsbridge/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and the user agent servers announce",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wsbridge-host %s (built %s)\n", version, buildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "user agent: %s\n", cfg.UserAgent())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
