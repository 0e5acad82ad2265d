// Package bootstrap handles application initialization and lifecycle management
// for the curator service.
//
// The bootstrap process follows these phases:
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Database - Connect to PostgreSQL, migrate and create repositories
//   - Phase 3: Storage - Connect to the object store and Elasticsearch
//   - Phase 4: Services - Create lifecycle, queue, executor and refresh scheduler
//   - Phase 5: Schedules - Register the refresh and publish drivers with cron
//   - Phase 6: Server - Create and start HTTP server
//   - Phase 7: Run - Wait for interrupt signal or error
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// Start initializes and starts the curator service. It blocks until the
// server is interrupted or fails.
func Start(configPath, version string) error {
	ctx := context.Background()

	// Phase 1: Initialize config and logger
	deps, err := NewCommandDeps(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()

	// Phase 2: Setup database (PostgreSQL) and repositories
	dbComponents, err := SetupDatabase(ctx, deps, true)
	if err != nil {
		return fmt.Errorf("failed to setup database: %w", err)
	}
	defer dbComponents.Close(deps.Logger)

	// Phase 3: Setup storage (object store, Elasticsearch)
	storageComponents, err := SetupStorage(ctx, deps)
	if err != nil {
		return fmt.Errorf("failed to setup storage: %w", err)
	}

	// Phase 4: Setup services
	services, err := SetupServices(ctx, deps, dbComponents, storageComponents)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}
	defer services.Close(deps.Logger)

	// Phase 5: Register schedules
	cronRunner, err := SetupSchedules(deps, services)
	if err != nil {
		return fmt.Errorf("failed to setup schedules: %w", err)
	}
	cronRunner.Start()

	// Phase 6: Start HTTP server
	serverComponents := SetupHTTPServer(deps, dbComponents, storageComponents, services, version)

	deps.Logger.Info("Curator started",
		logger.String("address", deps.Config.Server.Address),
		logger.String("refresh_schedule", deps.Config.Scheduler.RefreshSchedule),
		logger.String("publish_schedule", deps.Config.Publish.Schedule),
	)

	// Phase 7: Run until interrupt or error
	return RunUntilInterrupt(deps, serverComponents, cronRunner)
}
