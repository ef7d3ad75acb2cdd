package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"formlink-backend/internal/cache"
)

type lookupResponse struct {
	Success bool `json:"success"`
	Value   any  `json:"value"`
}

// LookupClient resolves show_related connections against the configured
// related-value endpoint. Results are cached in memory and written through
// to the offline store; on upstream failure the caches answer instead, and
// a full miss is reported as not-ok so the caller leaves the target alone.
type LookupClient struct {
	client  *http.Client
	url     string
	memory  *cache.Memory
	offline cache.KV
}

func NewLookupClient(endpointURL string, timeout time.Duration, offline cache.KV) *LookupClient {
	return &LookupClient{
		client:  &http.Client{Timeout: timeout},
		url:     endpointURL,
		memory:  cache.NewMemory(0),
		offline: offline,
	}
}

// Lookup returns the related value for (sourceField, sourceValue, targetField)
// and whether one is available.
func (lc *LookupClient) Lookup(ctx context.Context, sourceField, sourceValue, targetField string) (string, bool) {
	key := lookupKey(sourceField, sourceValue, targetField)

	if cached, ok := lc.memory.Get(key); ok && len(cached) == 1 {
		return cached[0], true
	}

	value, err := lc.fetch(ctx, sourceField, sourceValue, targetField)
	if err == nil {
		lc.memory.Set(sourceField, key, []string{value})
		if cacheErr := lc.offline.Set(ctx, key, value); cacheErr != nil {
			log.Printf("WARN: cache related value %s: %v", key, cacheErr)
		}
		return value, true
	}
	log.Printf("WARN: related value fetch failed for %s, trying cache: %v", key, err)

	var cached string
	if cacheErr := lc.offline.Get(ctx, key, &cached); cacheErr == nil {
		return cached, true
	}
	return "", false
}

func (lc *LookupClient) fetch(ctx context.Context, sourceField, sourceValue, targetField string) (string, error) {
	q := url.Values{}
	q.Set("source_field", sourceField)
	q.Set("source_value", sourceValue)
	q.Set("target_field", targetField)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lc.url+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := lc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)) // max 64KB
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var payload lookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if !payload.Success {
		return "", fmt.Errorf("no value for key")
	}
	return stringifyValue(payload.Value), nil
}

func lookupKey(sourceField, sourceValue, targetField string) string {
	return "related_value:" + sourceField + ":" + sourceValue + ":" + targetField
}
