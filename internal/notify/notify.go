// Package notify publishes lifecycle events on a Redis pub/sub channel.
// Delivery is fire-and-forget: failures are logged and never reach the caller.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const (
	connectionTimeout = 2 * time.Second
	publishTimeout    = 2 * time.Second
)

// Event types.
const (
	EventEntryLocked         = "entry.locked"
	EventSubmissionActivated = "submission.activated"
	EventSubmissionDeclined  = "submission.declined"
)

// Event is the JSON message published for every lifecycle event.
type Event struct {
	Type         string             `json:"type"`
	EntryID      string             `json:"entry_id"`
	EntryStatus  domain.EntryStatus `json:"entry_status"`
	AssigneeID   *string            `json:"assignee_id,omitempty"`
	SubmissionID string             `json:"submission_id,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

var (
	_ lifecycle.Notifier = (*Redis)(nil)
	_ lifecycle.Notifier = Nop{}
)

// Redis publishes events with PUBLISH.
type Redis struct {
	client  *redis.Client
	channel string
	log     logger.Logger
	now     func() time.Time
}

// NewRedis creates a notifier publishing on channel.
func NewRedis(client *redis.Client, channel string, log logger.Logger) *Redis {
	return &Redis{client: client, channel: channel, log: log, now: time.Now}
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *Redis) EntryLocked(ctx context.Context, entry *domain.Entry) {
	r.publish(ctx, r.event(EventEntryLocked, entry, nil))
}

func (r *Redis) SubmissionActivated(ctx context.Context, entry *domain.Entry, sub *domain.Submission) {
	r.publish(ctx, r.event(EventSubmissionActivated, entry, sub))
}

func (r *Redis) SubmissionDeclined(ctx context.Context, entry *domain.Entry, sub *domain.Submission) {
	r.publish(ctx, r.event(EventSubmissionDeclined, entry, sub))
}

func (r *Redis) event(kind string, entry *domain.Entry, sub *domain.Submission) Event {
	ev := Event{
		Type:        kind,
		EntryID:     entry.ID,
		EntryStatus: entry.Status,
		AssigneeID:  entry.AssigneeID,
		OccurredAt:  r.now().UTC(),
	}
	if sub != nil {
		ev.SubmissionID = sub.ID
	}
	return ev
}

func (r *Redis) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("Failed to encode notification", logger.String("type", ev.Type), logger.Error(err))
		return
	}

	// the caller's request may already be finishing
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err = r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Warn("Failed to publish notification",
			logger.String("type", ev.Type),
			logger.EntryID(ev.EntryID),
			logger.Error(err),
		)
		return
	}
	r.log.Debug("Notification published", logger.String("type", ev.Type), logger.EntryID(ev.EntryID))
}

// Nop discards every event.
type Nop struct{}

func (Nop) EntryLocked(context.Context, *domain.Entry)                             {}
func (Nop) SubmissionActivated(context.Context, *domain.Entry, *domain.Submission) {}
func (Nop) SubmissionDeclined(context.Context, *domain.Entry, *domain.Submission)  {}
