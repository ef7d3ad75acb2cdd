package suggest

import (
	"context"
	"log"
	"unicode/utf8"

	"formlink-backend/internal/cache"
	"formlink-backend/internal/config"
	"formlink-backend/internal/metadata"
)

// Loader answers autocomplete queries for suggestion-enabled fields.
// Tiering: in-memory cache (bounded per field), then history, then the
// offline store when the history source fails. The offline tier has no
// expiry; the memory tier evicts the oldest query per (form, field).
type Loader struct {
	registry   *metadata.Registry
	history    History
	memory     *cache.Memory
	offline    cache.KV
	minLength  int
	maxResults int
}

func NewLoader(reg *metadata.Registry, history History, offline cache.KV, cfg config.SuggestConfig) *Loader {
	minLength := cfg.MinQueryLength
	if minLength <= 0 {
		minLength = 2
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Loader{
		registry:   reg,
		history:    history,
		memory:     cache.NewMemory(cfg.MemoryCap),
		offline:    offline,
		minLength:  minLength,
		maxResults: maxResults,
	}
}

// Suggest returns up to maxResults previously-seen values for the field
// starting with query. Queries shorter than the minimum return nothing
// without touching any tier. Failures degrade to cached or empty results;
// Suggest never errors.
func (l *Loader) Suggest(ctx context.Context, formID, fieldName, query string) []string {
	// Counted in characters, not bytes, so multi-byte names gate the same.
	if utf8.RuneCountInString(query) < l.minLength {
		return nil
	}

	field := l.registry.GetField(formID, fieldName)
	if field == nil || !field.SuggestionsEnabled {
		return nil
	}

	key := suggestionKey(formID, fieldName, query)
	if cached, ok := l.memory.Get(key); ok {
		return cached
	}

	values, err := l.history.Search(ctx, formID, fieldName, query, l.maxResults)
	if err == nil {
		l.memory.Set(formID+":"+fieldName, key, values)
		if cacheErr := l.offline.Set(ctx, key, values); cacheErr != nil {
			log.Printf("WARN: cache suggestions %s: %v", key, cacheErr)
		}
		return values
	}
	log.Printf("WARN: suggestion search failed for %s, trying cache: %v", key, err)

	var cached []string
	if cacheErr := l.offline.Get(ctx, key, &cached); cacheErr == nil {
		return cached
	}
	return nil
}

// RecordValues feeds submitted form values into the history, skipping
// fields without suggestions enabled and empty values.
func (l *Loader) RecordValues(ctx context.Context, formID string, values map[string]string) {
	for fieldName, value := range values {
		if value == "" {
			continue
		}
		field := l.registry.GetField(formID, fieldName)
		if field == nil || !field.SuggestionsEnabled {
			continue
		}
		if err := l.history.Record(ctx, formID, fieldName, value); err != nil {
			log.Printf("WARN: record suggestion %s.%s: %v", formID, fieldName, err)
		}
	}
}

func suggestionKey(formID, fieldName, query string) string {
	return "offline_suggestions:" + formID + ":" + fieldName + ":" + query
}
