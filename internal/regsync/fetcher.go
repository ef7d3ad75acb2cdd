package regsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"formlink-backend/internal/cache"
	"formlink-backend/internal/metadata"
)

// Offline cache keys for registry snapshots. Fixed so a restart finds the
// last good copy.
const (
	cacheKeyFields      = "form_fields"
	cacheKeyConnections = "field_connections"
)

type fieldsPayload struct {
	Fields map[string][]*metadata.FieldDescriptor `json:"fields"`
}

type connectionsPayload struct {
	Connections []*metadata.Connection `json:"connections"`
}

// Fetcher loads registry configuration from the upstream configuration
// service, with the offline cache as fallback. Every successful fetch
// overwrites the cached copy; no merge of stale and fresh data is attempted.
type Fetcher struct {
	client  *http.Client
	baseURL string
	cache   cache.KV
}

func NewFetcher(baseURL string, timeout time.Duration, kv cache.KV) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		cache:   kv,
	}
}

// Load returns the current field and connection configuration. Upstream is
// tried first; on any failure (network error, non-2xx, malformed payload)
// the last cached copy is returned, else empty sets. Load never fails the
// caller — a form with no configuration simply has no automation.
func (f *Fetcher) Load(ctx context.Context) ([]*metadata.FieldDescriptor, []*metadata.Connection) {
	fields, fieldsErr := f.fetchFields(ctx)
	connections, connsErr := f.fetchConnections(ctx)

	if fieldsErr == nil && connsErr == nil {
		if err := f.cache.Set(ctx, cacheKeyFields, fields); err != nil {
			log.Printf("WARN: cache registry fields: %v", err)
		}
		if err := f.cache.Set(ctx, cacheKeyConnections, connections); err != nil {
			log.Printf("WARN: cache registry connections: %v", err)
		}
		return fields, connections
	}

	if fieldsErr != nil {
		log.Printf("WARN: upstream form_fields fetch failed, using cache: %v", fieldsErr)
	}
	if connsErr != nil {
		log.Printf("WARN: upstream field_connections fetch failed, using cache: %v", connsErr)
	}

	// All-or-nothing fallback: a partial fetch is discarded so the two
	// registries always describe the same configuration generation.
	fields = nil
	connections = nil
	if err := f.cache.Get(ctx, cacheKeyFields, &fields); err != nil && !errors.Is(err, cache.ErrMiss) {
		log.Printf("WARN: read cached registry fields: %v", err)
	}
	if err := f.cache.Get(ctx, cacheKeyConnections, &connections); err != nil && !errors.Is(err, cache.ErrMiss) {
		log.Printf("WARN: read cached registry connections: %v", err)
	}
	return fields, connections
}

// Sync loads configuration and replaces the registry contents.
func (f *Fetcher) Sync(ctx context.Context, reg *metadata.Registry) {
	fields, connections := f.Load(ctx)
	connections = metadata.ValidateConnections(connections)
	reg.Load(fields, connections)
	log.Printf("Registry synced: %d fields, %d connections", len(fields), len(connections))
}

func (f *Fetcher) fetchFields(ctx context.Context) ([]*metadata.FieldDescriptor, error) {
	var payload fieldsPayload
	if err := f.getJSON(ctx, f.baseURL+"/api/form_fields", &payload); err != nil {
		return nil, err
	}

	var fields []*metadata.FieldDescriptor
	for formID, descriptors := range payload.Fields {
		for _, d := range descriptors {
			if d.FormID == "" {
				d.FormID = formID
			}
			fields = append(fields, d)
		}
	}
	return fields, nil
}

func (f *Fetcher) fetchConnections(ctx context.Context) ([]*metadata.Connection, error) {
	var payload connectionsPayload
	if err := f.getJSON(ctx, f.baseURL+"/api/field_connections", &payload); err != nil {
		return nil, err
	}
	return payload.Connections, nil
}

func (f *Fetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024)) // max 4MB
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
