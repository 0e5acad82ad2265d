// Package backend holds the downstream systems a publish job fans out to.
// The set is closed: geoserver, catalogue and archive. Each variant decodes
// its own channel settings.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// ErrUnknownBackend is returned for a channel whose backend is not registered.
var ErrUnknownBackend = errors.New("unknown publish backend")

// Request is one publish call against one channel.
type Request struct {
	Entry   *domain.Entry
	Channel domain.PublishChannel
	// ContentLocation is the active submission's content, empty when the entry has none.
	ContentLocation string
	// Extent is the active submission's bounding box, nil when unknown.
	Extent        *domain.Extent
	SymbologyOnly bool
}

// Backend publishes an entry to one downstream system.
type Backend interface {
	Kind() domain.BackendKind
	Publish(ctx context.Context, req Request) error
}

// Registry dispatches requests to backends by kind through a per-channel breaker.
type Registry struct {
	backends map[domain.BackendKind]Backend
	breakers *Breakers
}

// NewRegistry creates a registry. A nil breakers set disables circuit breaking.
func NewRegistry(breakers *Breakers, backends ...Backend) *Registry {
	r := &Registry{backends: make(map[domain.BackendKind]Backend, len(backends)), breakers: breakers}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

// Publish sends req to the channel's backend.
func (r *Registry) Publish(ctx context.Context, req Request) error {
	b, ok := r.backends[req.Channel.Backend]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, req.Channel.Backend)
	}
	if r.breakers == nil {
		return b.Publish(ctx, req)
	}
	return r.breakers.For(req.Channel.ID).Execute(func() error {
		return b.Publish(ctx, req)
	})
}

// decodeSettings unmarshals channel settings, treating empty settings as {}.
func decodeSettings(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode channel settings: %w", err)
	}
	return nil
}
