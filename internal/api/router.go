// Package api exposes the curation pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// Lifecycle runs entry lifecycle operations.
type Lifecycle interface {
	Lock(ctx context.Context, entryID string) (lifecycle.Outcome, error)
	Unlock(ctx context.Context, entryID string) (lifecycle.Outcome, error)
	Decline(ctx context.Context, entryID string) (lifecycle.Outcome, error)
	Assign(ctx context.Context, entryID string, user domain.User) (lifecycle.Outcome, error)
	Unassign(ctx context.Context, entryID string) (lifecycle.Outcome, error)
	Activate(ctx context.Context, entryID, submissionID string) (lifecycle.Outcome, error)
	Submit(ctx context.Context, entryID string, content domain.Content, attrs []domain.Attribute) (*domain.Submission, lifecycle.Outcome, error)
}

// EntryStore persists entries.
type EntryStore interface {
	Create(ctx context.Context, entry *domain.Entry) error
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	SetRecurrence(ctx context.Context, entryID string, spec *domain.RecurrenceSpec) error
	ReplaceAttributes(ctx context.Context, entryID string, attrs []domain.Attribute) error
	SetForceRun(ctx context.Context, entryID string) error
}

// ChannelStore persists publish channels.
type ChannelStore interface {
	Create(ctx context.Context, ch *domain.PublishChannel) error
	ListByEntry(ctx context.Context, entryID string) ([]domain.PublishChannel, error)
}

// JobStore reads publish jobs.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Stats(ctx context.Context) (*domain.JobStats, error)
}

// Publisher enqueues publish jobs.
type Publisher interface {
	Push(ctx context.Context, entry *domain.Entry, symbologyOnly bool, submitterID *string) (bool, error)
	HasActiveJob(ctx context.Context, entryID string) (bool, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps holds the router's collaborators.
type Deps struct {
	Lifecycle Lifecycle
	Entries   EntryStore
	Channels  ChannelStore
	Jobs      JobStore
	Publisher Publisher
	Metrics   *metrics.Metrics
	// Gatherer serves /metrics; the default gatherer is used when nil.
	Gatherer prometheus.Gatherer
	Health   map[string]HealthCheck
	Logger   logger.Logger
	Debug    bool
	Version  string
}

// Router holds the API dependencies.
type Router struct {
	deps Deps
	log  logger.Logger
}

// NewRouter creates a router.
func NewRouter(deps Deps) *Router {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Router{deps: deps, log: deps.Logger}
}

// Handler builds the gin engine with every route.
func (r *Router) Handler() *gin.Engine {
	if r.deps.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(r.log))

	router.GET("/health", r.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")

	entries := v1.Group("/entries")
	entries.POST("", r.createEntry)
	entries.GET("/:id", r.getEntry)
	entries.PUT("/:id/recurrence", r.setRecurrence)
	entries.PUT("/:id/attributes", r.replaceAttributes)
	entries.POST("/:id/force-run", r.forceRun)

	entries.POST("/:id/lock", r.lock)
	entries.POST("/:id/unlock", r.unlock)
	entries.POST("/:id/decline", r.decline)
	entries.POST("/:id/assign", r.assign)
	entries.DELETE("/:id/assignee", r.unassign)

	entries.POST("/:id/submissions", r.submit)
	entries.POST("/:id/submissions/:submission_id/activate", r.activate)

	entries.GET("/:id/channels", r.listChannels)
	entries.POST("/:id/channels", r.createChannel)
	entries.POST("/:id/publish", r.publish)

	jobs := v1.Group("/jobs")
	jobs.GET("/stats", r.jobStats) // before :id
	jobs.GET("/:id", r.getJob)

	return router
}

// NewServer wraps the handler in an http.Server configured from cfg.
func (r *Router) NewServer(cfg config.ServerConfig) *http.Server {
	read, write := cfg.ReadTimeout, cfg.WriteTimeout
	if read <= 0 {
		read = defaultReadTimeout
	}
	if write <= 0 {
		write = defaultWriteTimeout
	}
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           r.Handler(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       defaultIdleTimeout,
	}
}
