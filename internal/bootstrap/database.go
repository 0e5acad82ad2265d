package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// DatabaseComponents holds the connection and its repositories.
type DatabaseComponents struct {
	DB          *sqlx.DB
	EntryRepo   *database.EntryRepository
	ChannelRepo *database.ChannelRepository
	JobRepo     *database.JobRepository
}

// SetupDatabase connects to PostgreSQL, optionally applies pending
// migrations, and creates the repositories.
func SetupDatabase(ctx context.Context, deps *CommandDeps, migrateUp bool) (*DatabaseComponents, error) {
	if migrateUp {
		if err := database.MigrateUp(deps.Config.Database.URL(), deps.Logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	db, err := database.NewPostgresConnection(ctx, deps.Config.Database)
	if err != nil {
		return nil, err
	}
	deps.Logger.Info("Connected to database",
		logger.String("host", deps.Config.Database.Host),
		logger.String("database", deps.Config.Database.DBName),
	)

	return &DatabaseComponents{
		DB:          db,
		EntryRepo:   database.NewEntryRepository(db),
		ChannelRepo: database.NewChannelRepository(db),
		JobRepo:     database.NewJobRepository(db),
	}, nil
}

// Close releases the connection pool.
func (d *DatabaseComponents) Close(log logger.Logger) {
	if err := d.DB.Close(); err != nil {
		log.Error("Failed to close database", logger.Error(err))
	}
}
