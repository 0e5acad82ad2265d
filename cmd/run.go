package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/curator/internal/bootstrap"
)

// withServices builds the pipeline once, runs fn and releases everything.
func withServices(
	ctx context.Context,
	fn func(deps *bootstrap.CommandDeps, services *bootstrap.ServiceComponents),
) error {
	deps, err := bootstrap.NewCommandDeps(cfgFile)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	db, err := bootstrap.SetupDatabase(ctx, deps, false)
	if err != nil {
		return fmt.Errorf("failed to setup database: %w", err)
	}
	defer db.Close(deps.Logger)

	store, err := bootstrap.SetupStorage(ctx, deps)
	if err != nil {
		return fmt.Errorf("failed to setup storage: %w", err)
	}

	services, err := bootstrap.SetupServices(ctx, deps, db, store)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}
	defer services.Close(deps.Logger)

	fn(deps, services)
	return nil
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh pass over recurring entries and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(deps *bootstrap.CommandDeps, services *bootstrap.ServiceComponents) {
				bootstrap.RunRefresh(cmd.Context(), deps.Logger, services)
			})
		},
	}
}

func newPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Process one batch of publish jobs and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(deps *bootstrap.CommandDeps, services *bootstrap.ServiceComponents) {
				bootstrap.RunPublish(cmd.Context(), deps.Logger, services)
			})
		},
	}
}
