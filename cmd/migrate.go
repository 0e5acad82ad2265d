package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/curator/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/curator/internal/database"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			deps, err := bootstrap.NewCommandDeps(cfgFile)
			if err != nil {
				return err
			}
			return database.MigrateDown(deps.Config.Database.URL(), steps, deps.Logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				deps, err := bootstrap.NewCommandDeps(cfgFile)
				if err != nil {
					return err
				}
				return database.MigrateUp(deps.Config.Database.URL(), deps.Logger)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(c *cobra.Command, _ []string) error {
				deps, err := bootstrap.NewCommandDeps(cfgFile)
				if err != nil {
					return err
				}
				v, dirty, err := database.MigrationVersion(deps.Config.Database.URL(), deps.Logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}
