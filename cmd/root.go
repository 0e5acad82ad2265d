// Package cmd implements the curator command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// version is set by Execute from build information.
	version = "dev"

	rootCmd = &cobra.Command{
		Use:   "curator",
		Short: "Dataset curation and publishing service",
		Long: `Curator tracks dataset entries through review, refreshes query
entries on their recurrence schedule, and publishes accepted content to
GeoServer, the search catalogue and the object store archive.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $CONFIG_PATH or ./config.yml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "curator version %s\n", version)
		},
	})

	rootCmd.AddCommand(
		newServeCommand(),
		newRefreshCommand(),
		newPublishCommand(),
		newMigrateCommand(),
	)
}
