package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/curator/internal/backend"
	"github.com/jonesrussell/north-cloud/curator/internal/fetch"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
	"github.com/jonesrussell/north-cloud/curator/internal/notify"
	"github.com/jonesrussell/north-cloud/curator/internal/queue"
	"github.com/jonesrussell/north-cloud/curator/internal/recurrence"
	"github.com/jonesrussell/north-cloud/curator/internal/refresh"
	"github.com/jonesrussell/north-cloud/curator/internal/retry"
)

// ServiceComponents holds the pipeline services.
type ServiceComponents struct {
	Metrics   *metrics.Metrics
	Redis     *redis.Client
	Lifecycle *lifecycle.Service
	Queue     *queue.Queue
	Executor  *queue.Executor
	Refresh   *refresh.Scheduler
}

// SetupServices wires the lifecycle, publish queue, executor and refresh
// scheduler on top of the database and storage components.
func SetupServices(
	ctx context.Context,
	deps *CommandDeps,
	db *DatabaseComponents,
	store *StorageComponents,
) (*ServiceComponents, error) {
	cfg := deps.Config
	log := deps.Logger
	m := metrics.New(prometheus.DefaultRegisterer)

	notifier, redisClient, err := setupNotifier(ctx, deps)
	if err != nil {
		return nil, err
	}

	breakers := backend.NewBreakers(backend.BreakerConfig{
		FailureThreshold: cfg.Publish.BreakerMaxFailures,
		OpenTimeout:      cfg.Publish.BreakerTimeout,
		OnStateChange: func(channelID string, from, to backend.BreakerState) {
			log.Warn("Circuit breaker state changed",
				logger.ChannelID(channelID),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			m.BreakerOpen(channelID, to != backend.StateClosed)
		},
	})

	backends := []backend.Backend{
		backend.NewGeoServer(&http.Client{Timeout: cfg.Publish.BackendTimeout}, cfg.Publish.ListingCacheTTL),
		backend.NewArchive(store.Objects, cfg.ObjectStore.ArchiveBucket),
	}
	if store.Search != nil {
		catalogue := backend.NewCatalogue(store.Search, cfg.Elasticsearch.Index)
		if ensureErr := catalogue.EnsureIndex(ctx); ensureErr != nil {
			log.Warn("Failed to ensure catalogue index, documents will use dynamic mapping",
				logger.String("index", cfg.Elasticsearch.Index), logger.Error(ensureErr))
		}
		backends = append(backends, catalogue)
	}
	registry := backend.NewRegistry(breakers, backends...)

	q := queue.New(db.JobRepo, db.ChannelRepo, m, log.With(logger.String("component", "queue")))
	executor := queue.NewExecutor(db.JobRepo, db.ChannelRepo, db.EntryRepo, registry, queue.ExecutorConfig{
		BatchSize:      cfg.Publish.BatchSize,
		LeaseWindow:    cfg.Publish.LeaseWindow,
		BackendTimeout: cfg.Publish.BackendTimeout,
	}, m, log.With(logger.String("component", "executor")))

	service := lifecycle.NewService(db.EntryRepo, q, notifier, log.With(logger.String("component", "lifecycle")))

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewGeoJSON(nil, store.Content, fetch.Config{
		Timeout: cfg.Fetch.Timeout,
		Retry: retry.Config{
			MaxAttempts:  cfg.Fetch.MaxAttempts,
			InitialDelay: cfg.Fetch.InitialDelay,
			MaxDelay:     cfg.Fetch.MaxDelay,
		},
		RequestsPerSecond: cfg.Fetch.RateLimit,
		Burst:             cfg.Fetch.Burst,
	}, log.With(logger.String("component", "fetch")))

	scheduler := refresh.NewScheduler(
		db.EntryRepo,
		fetcher,
		service,
		recurrence.NewEvaluator(loc),
		log.With(logger.String("component", "refresh")),
		refresh.WithLease(cfg.Scheduler.RefreshLease),
		refresh.WithMetrics(m),
	)

	return &ServiceComponents{
		Metrics:   m,
		Redis:     redisClient,
		Lifecycle: service,
		Queue:     q,
		Executor:  executor,
		Refresh:   scheduler,
	}, nil
}

// setupNotifier publishes lifecycle events to Redis when enabled.
func setupNotifier(ctx context.Context, deps *CommandDeps) (lifecycle.Notifier, *redis.Client, error) {
	cfg := deps.Config.Redis
	if !cfg.Enabled {
		deps.Logger.Info("Redis notifications disabled")
		return notify.Nop{}, nil, nil
	}

	client, err := notify.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	deps.Logger.Info("Redis notifications enabled",
		logger.String("address", cfg.Address),
		logger.String("channel", cfg.Channel),
	)
	return notify.NewRedis(client, cfg.Channel, deps.Logger), client, nil
}

// Close releases the Redis client.
func (s *ServiceComponents) Close(log logger.Logger) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Close(); err != nil {
		log.Error("Failed to close redis client", logger.Error(err))
	}
}
