package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/curator/internal/bootstrap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the refresh and publish schedules",
		RunE: func(_ *cobra.Command, _ []string) error {
			return bootstrap.Start(cfgFile, version)
		},
	}
}
