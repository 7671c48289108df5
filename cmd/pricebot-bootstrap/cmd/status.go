package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/pricebot-bootstrap/internal/service/status"
)

// statusCmd prints the record of the last bootstrap run.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last bootstrap run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return status.Run(cmd.Context(), &status.Options{
			ConfigPath: configPath,
			Out:        cmd.OutOrStdout(),
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
