// Package fetch retrieves the content of query entries and derives the
// attribute list a new submission is fingerprinted with.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/retry"
)

const (
	contentName        = "data.geojson"
	contentType        = "application/geo+json"
	maxContentBytes    = 256 << 20
	defaultTimeout     = 60 * time.Second
	attributeTypeJSON  = "json"
	attributeTypeText  = "string"
	attributeTypeInt   = "integer"
	attributeTypeFloat = "number"
	attributeTypeBool  = "boolean"
)

// ErrNoQueryURL is returned for an entry without a source to query.
var ErrNoQueryURL = errors.New("entry has no query url")

// Result is the outcome of one successful fetch.
type Result struct {
	ContentLocation string
	Attributes      []domain.Attribute
	FeatureCount    int
	// Bound is the extent of all features. HasBound is false when no feature has a geometry.
	Bound     orb.Bound
	HasBound  bool
	FetchedAt time.Time
}

// Content describes the fetched data for a new submission.
func (r *Result) Content() domain.Content {
	c := domain.Content{Location: r.ContentLocation, CreatedAt: r.FetchedAt}
	if r.HasBound {
		c.Extent = &domain.Extent{
			MinX: r.Bound.Min.Lon(), MinY: r.Bound.Min.Lat(),
			MaxX: r.Bound.Max.Lon(), MaxY: r.Bound.Max.Lat(),
		}
	}
	return c
}

// ContentWriter stores fetched content and returns its location.
type ContentWriter interface {
	Put(ctx context.Context, entryID, name, contentType string, data []byte) (string, error)
}

// Config holds GeoJSON fetcher options.
type Config struct {
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration
	Retry   retry.Config
	// RequestsPerSecond throttles attempts across all entries. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// GeoJSON fetches a GeoJSON FeatureCollection from an entry's query URL.
type GeoJSON struct {
	client  *http.Client
	store   ContentWriter
	cfg     Config
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
}

// NewGeoJSON creates a fetcher.
func NewGeoJSON(client *http.Client, store ContentWriter, cfg Config, log logger.Logger) *GeoJSON {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = IsTransient
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return &GeoJSON{client: client, store: store, cfg: cfg, limiter: limiter, log: log, now: time.Now}
}

// Fetch downloads the entry's query result, stores it and derives its attributes.
func (g *GeoJSON) Fetch(ctx context.Context, entry *domain.Entry) (*Result, error) {
	if entry.QueryURL == nil || *entry.QueryURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoQueryURL, entry.ID)
	}
	url := *entry.QueryURL

	var body []byte
	err := retry.Do(ctx, g.cfg.Retry, func(ctx context.Context) error {
		if waitErr := g.limiter.Wait(ctx); waitErr != nil {
			return fmt.Errorf("wait for rate limiter: %w", waitErr)
		}
		var getErr error
		body, getErr = g.get(ctx, url)
		if getErr != nil && IsTransient(getErr) {
			g.log.Debug("Fetch attempt failed", logger.EntryID(entry.ID), logger.Error(getErr))
		}
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	location, err := g.store.Put(ctx, entry.ID, contentName, contentType, body)
	if err != nil {
		return nil, err
	}

	bound, hasBound := extent(fc)
	return &Result{
		ContentLocation: location,
		Attributes:      Attributes(fc),
		FeatureCount:    len(fc.Features),
		Bound:           bound,
		HasBound:        hasBound,
		FetchedAt:       g.now().UTC(),
	}, nil
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// IsTransient reports whether a fetch error is worth retrying: network
// failures, attempt timeouts, 429 and 5xx responses.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (g *GeoJSON) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxContentBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxContentBytes)
	}
	return body, nil
}

// Attributes derives the attribute list of a feature collection: the union
// of property names, sorted by name, each typed by the values it holds.
// Integer and fractional numbers widen to number; other conflicts fall back to string.
func Attributes(fc *geojson.FeatureCollection) []domain.Attribute {
	types := make(map[string]string)
	for _, f := range fc.Features {
		for name, v := range f.Properties {
			t := valueType(v)
			if t == "" {
				if _, ok := types[name]; !ok {
					types[name] = ""
				}
				continue
			}
			types[name] = mergeType(types[name], t)
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]domain.Attribute, len(names))
	for i, name := range names {
		t := types[name]
		if t == "" {
			t = attributeTypeText
		}
		attrs[i] = domain.Attribute{Name: name, Type: t, Position: i}
	}
	return attrs
}

func valueType(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return attributeTypeText
	case bool:
		return attributeTypeBool
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return attributeTypeInt
		}
		return attributeTypeFloat
	default:
		return attributeTypeJSON
	}
}

func mergeType(have, next string) string {
	switch {
	case have == "" || have == next:
		return next
	case (have == attributeTypeInt && next == attributeTypeFloat) ||
		(have == attributeTypeFloat && next == attributeTypeInt):
		return attributeTypeFloat
	default:
		return attributeTypeText
	}
}

// extent prefers the collection's own bbox member and falls back to the
// union of feature bounds. ok is false when there is nothing to bound.
func extent(fc *geojson.FeatureCollection) (b orb.Bound, ok bool) {
	if fc.BBox.Valid() {
		return fc.BBox.Bound(), true
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !ok {
			b, ok = f.Geometry.Bound(), true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, ok
}
