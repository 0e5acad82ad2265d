package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/cache"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const maxErrorBody = 512

// GeoServerSettings is the channel settings document of a geoserver channel.
type GeoServerSettings struct {
	URL       string `json:"url"`
	Workspace string `json:"workspace"`
	// Store is the datastore, coverage store or WMS store the layer is published into.
	Store    string `json:"store"`
	Username string `json:"username"`
	Password string `json:"password"`
	// Layer overrides the layer name; the entry ID is used when empty.
	Layer string `json:"layer"`
}

func (s *GeoServerSettings) validate() error {
	if s.URL == "" || s.Workspace == "" {
		return fmt.Errorf("%w: geoserver channel requires url and workspace", domain.ErrValidation)
	}
	return nil
}

// GeoServer publishes entries as layers through the GeoServer REST API.
type GeoServer struct {
	client   *http.Client
	listings *cache.TTL[string, map[string]bool]
}

// NewGeoServer creates a geoserver backend. Layer listings are cached per
// channel for listingTTL.
func NewGeoServer(client *http.Client, listingTTL time.Duration) *GeoServer {
	if client == nil {
		client = http.DefaultClient
	}
	return &GeoServer{client: client, listings: cache.NewTTL[string, map[string]bool](listingTTL)}
}

// WithClock replaces the time source of the listing cache, for tests.
func (g *GeoServer) WithClock(now func() time.Time) *GeoServer {
	g.listings.WithClock(now)
	return g
}

func (g *GeoServer) Kind() domain.BackendKind { return domain.BackendGeoServer }

// Publish creates or updates the entry's layer. A symbology-only request
// only uploads the entry's style.
func (g *GeoServer) Publish(ctx context.Context, req Request) error {
	var s GeoServerSettings
	if err := decodeSettings(req.Channel.Settings, &s); err != nil {
		return err
	}
	if err := s.validate(); err != nil {
		return err
	}
	layer := s.Layer
	if layer == "" {
		layer = req.Entry.ID
	}

	if req.SymbologyOnly {
		return g.putStyle(ctx, &s, layer, req.Entry)
	}

	layers, err := g.layers(ctx, req.Channel.ID, &s)
	if err != nil {
		return err
	}

	method, endpoint, body, err := layerRequest(&s, layer, req, layers[layer])
	if err != nil {
		return err
	}
	if err = g.do(ctx, &s, method, endpoint, "application/json", body); err != nil {
		return err
	}

	if !layers[layer] {
		// the listing no longer reflects the server
		g.listings.Delete(req.Channel.ID)
	}
	if req.Entry.Symbology != nil {
		return g.putStyle(ctx, &s, layer, req.Entry)
	}
	return nil
}

// layerRequest builds the REST call for the entry kind. Existing layers are
// updated in place.
func layerRequest(s *GeoServerSettings, layer string, req Request, exists bool) (string, string, []byte, error) {
	e := req.Entry
	var resource, wrapper, storePath string

	switch e.Kind {
	case domain.EntryKindFile, domain.EntryKindQuery:
		if req.ContentLocation == "" {
			return "", "", nil, fmt.Errorf("%w: entry %s has no active content", domain.ErrValidation, e.ID)
		}
		resource, wrapper, storePath = "featuretypes", "featureType", "datastores"
	case domain.EntryKindPostGIS, domain.EntryKindWFS:
		resource, wrapper, storePath = "featuretypes", "featureType", "datastores"
	case domain.EntryKindWMS:
		resource, wrapper, storePath = "wmslayers", "wmsLayer", "wmsstores"
	default:
		return "", "", nil, fmt.Errorf("%w: geoserver cannot publish %s entries", domain.ErrValidation, e.Kind)
	}

	store := s.Store
	if store == "" {
		store = s.Workspace
	}

	doc := map[string]any{
		"name":     layer,
		"title":    e.Name,
		"abstract": e.Description,
		"enabled":  true,
	}
	if req.ContentLocation != "" {
		doc["metadata"] = map[string]any{"entry": map[string]string{"@key": "source", "$": req.ContentLocation}}
	}
	body, err := json.Marshal(map[string]any{wrapper: doc})
	if err != nil {
		return "", "", nil, fmt.Errorf("encode layer: %w", err)
	}

	base := fmt.Sprintf("%s/rest/workspaces/%s/%s/%s/%s",
		s.URL, url.PathEscape(s.Workspace), storePath, url.PathEscape(store), resource)
	if exists {
		return http.MethodPut, base + "/" + url.PathEscape(layer), body, nil
	}
	return http.MethodPost, base, body, nil
}

func (g *GeoServer) putStyle(ctx context.Context, s *GeoServerSettings, layer string, e *domain.Entry) error {
	if e.Symbology == nil {
		return nil
	}
	endpoint := fmt.Sprintf("%s/rest/workspaces/%s/styles/%s?raw=true",
		s.URL, url.PathEscape(s.Workspace), url.PathEscape(layer))
	return g.do(ctx, s, http.MethodPut, endpoint, "application/vnd.ogc.sld+xml", []byte(*e.Symbology))
}

type layerListing struct {
	Layers json.RawMessage `json:"layers"`
}

type layerList struct {
	Layer []struct {
		Name string `json:"name"`
	} `json:"layer"`
}

// layers returns the set of layer names in the channel's workspace.
func (g *GeoServer) layers(ctx context.Context, channelID string, s *GeoServerSettings) (map[string]bool, error) {
	if cached, ok := g.listings.Get(channelID); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/rest/workspaces/%s/layers.json", s.URL, url.PathEscape(s.Workspace))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	g.authorize(httpReq, s)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list layers", resp)
	}

	var listing layerListing
	if err = json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode layer listing: %w", err)
	}

	names := make(map[string]bool)
	// An empty workspace is reported as "layers": "".
	var list layerList
	if len(listing.Layers) > 0 && listing.Layers[0] == '{' {
		if err = json.Unmarshal(listing.Layers, &list); err != nil {
			return nil, fmt.Errorf("decode layer listing: %w", err)
		}
	}
	for _, l := range list.Layer {
		names[l.Name] = true
	}

	g.listings.Set(channelID, names)
	return names, nil
}

func (g *GeoServer) do(ctx context.Context, s *GeoServerSettings, method, endpoint, contentType string, body []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	g.authorize(httpReq, s)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method+" "+endpoint, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (g *GeoServer) authorize(r *http.Request, s *GeoServerSettings) {
	if s.Username != "" {
		r.SetBasicAuth(s.Username, s.Password)
	}
}

// ErrUnexpectedStatus is wrapped by backend errors carrying an HTTP status.
var ErrUnexpectedStatus = errors.New("unexpected status")

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s: %w %d: %s", op, ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(msg))
}
