package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonesrussell/north-cloud/curator/internal/api"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// ServerComponents holds the running HTTP server.
type ServerComponents struct {
	Server    *http.Server
	ErrorChan <-chan error
}

// SetupHTTPServer builds the API router and starts serving in the background.
func SetupHTTPServer(
	deps *CommandDeps,
	db *DatabaseComponents,
	store *StorageComponents,
	services *ServiceComponents,
	version string,
) *ServerComponents {
	health := map[string]api.HealthCheck{
		"database": db.DB.PingContext,
		"object_store": func(ctx context.Context) error {
			_, err := store.Objects.BucketExists(ctx, deps.Config.ObjectStore.ContentBucket)
			return err
		},
	}
	if services.Redis != nil {
		health["redis"] = func(ctx context.Context) error {
			return services.Redis.Ping(ctx).Err()
		}
	}

	router := api.NewRouter(api.Deps{
		Lifecycle: services.Lifecycle,
		Entries:   db.EntryRepo,
		Channels:  db.ChannelRepo,
		Jobs:      db.JobRepo,
		Publisher: services.Queue,
		Metrics:   services.Metrics,
		Health:    health,
		Logger:    deps.Logger.With(logger.String("component", "api")),
		Debug:     deps.Config.Debug,
		Version:   version,
	})
	server := router.NewServer(deps.Config.Server)

	errChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("Starting HTTP server", logger.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	return &ServerComponents{Server: server, ErrorChan: errChan}
}
