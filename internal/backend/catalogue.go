package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// CatalogueSettings is the channel settings document of a catalogue channel.
type CatalogueSettings struct {
	// Index overrides the default catalogue index.
	Index string `json:"index"`
}

// CatalogueDocument is the searchable record of a published entry.
type CatalogueDocument struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Kind            string     `json:"kind"`
	ContentLocation string     `json:"content_location,omitempty"`
	Extent          *Envelope  `json:"extent,omitempty"`
	HasSymbology    bool       `json:"has_symbology"`
	DataCreatedAt   *time.Time `json:"data_created_at,omitempty"`
	PublishedAt     time.Time  `json:"published_at"`
}

// Envelope is an Elasticsearch geo_shape envelope: upper left then lower right.
type Envelope struct {
	Type        string        `json:"type"`
	Coordinates [2][2]float64 `json:"coordinates"`
}

func envelopeOf(e *domain.Extent) *Envelope {
	if e == nil {
		return nil
	}
	return &Envelope{
		Type:        "envelope",
		Coordinates: [2][2]float64{{e.MinX, e.MaxY}, {e.MaxX, e.MinY}},
	}
}

// Catalogue indexes published entries into Elasticsearch.
type Catalogue struct {
	client       *es.Client
	defaultIndex string
	now          func() time.Time
}

// NewCatalogue creates a catalogue backend writing to defaultIndex unless a
// channel names its own.
func NewCatalogue(client *es.Client, defaultIndex string) *Catalogue {
	return &Catalogue{client: client, defaultIndex: defaultIndex, now: time.Now}
}

// catalogueMapping maps the extent as a shape so entries can be found by area.
var catalogueMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":               map[string]any{"type": "keyword"},
			"name":             map[string]any{"type": "text"},
			"description":      map[string]any{"type": "text"},
			"kind":             map[string]any{"type": "keyword"},
			"content_location": map[string]any{"type": "keyword"},
			"extent":           map[string]any{"type": "geo_shape"},
			"has_symbology":    map[string]any{"type": "boolean"},
			"data_created_at":  map[string]any{"type": "date"},
			"published_at":     map[string]any{"type": "date"},
		},
	},
}

// EnsureIndex creates the default index with the catalogue mapping unless it exists.
func (c *Catalogue) EnsureIndex(ctx context.Context) error {
	exists, err := c.indexExists(ctx)
	if err != nil || exists {
		return err
	}

	body, err := json.Marshal(catalogueMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal catalogue mapping: %w", err)
	}
	res, err := c.client.Indices.Create(
		c.defaultIndex,
		c.client.Indices.Create.WithBody(bytes.NewReader(body)),
		c.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create catalogue index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating catalogue index: %s", res.String())
	}
	return nil
}

func (c *Catalogue) indexExists(ctx context.Context) (bool, error) {
	res, err := c.client.Indices.Exists([]string{c.defaultIndex}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check catalogue index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("error checking catalogue index: %s", res.String())
	}
	return true, nil
}

func (c *Catalogue) Kind() domain.BackendKind { return domain.BackendCatalogue }

// Publish indexes the entry document, keyed by entry ID. The catalogue holds
// no styles, so symbology-only requests succeed without a call.
func (c *Catalogue) Publish(ctx context.Context, req Request) error {
	if req.SymbologyOnly {
		return nil
	}

	var s CatalogueSettings
	if err := decodeSettings(req.Channel.Settings, &s); err != nil {
		return err
	}
	index := s.Index
	if index == "" {
		index = c.defaultIndex
	}

	e := req.Entry
	doc := CatalogueDocument{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		Kind:            string(e.Kind),
		ContentLocation: req.ContentLocation,
		Extent:          envelopeOf(req.Extent),
		HasSymbology:    e.Symbology != nil,
		DataCreatedAt:   e.DataCreatedAt,
		PublishedAt:     c.now().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal catalogue document: %w", err)
	}

	res, err := c.client.Index(
		index,
		bytes.NewReader(body),
		c.client.Index.WithContext(ctx),
		c.client.Index.WithDocumentID(e.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index catalogue document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing catalogue document: %s", res.String())
	}
	return nil
}
