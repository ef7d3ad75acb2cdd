package regsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"formlink-backend/internal/cache"
	"formlink-backend/internal/metadata"
)

type fakeKV struct {
	entries map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{entries: make(map[string]string)}
}

func (f *fakeKV) Set(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.entries[key] = string(data)
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string, out any) error {
	data, ok := f.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal([]byte(data), out)
}

func newUpstream(t *testing.T, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing != nil && failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch r.URL.Path {
		case "/api/form_fields":
			json.NewEncoder(w).Encode(map[string]any{
				"fields": map[string]any{
					"payroll": []map[string]any{
						{"field_name": "employeeId", "suggestions_enabled": true},
						{"field_name": "employeeName"},
					},
				},
			})
		case "/api/field_connections":
			json.NewEncoder(w).Encode(map[string]any{
				"connections": []map[string]any{
					{
						"id":        "c1",
						"source":    map[string]string{"form_id": "payroll", "field_name": "dailyWage"},
						"target":    map[string]string{"form_id": "payroll", "field_name": "basicAmount"},
						"operation": "multiply",
						"parameters": map[string]any{
							"other_field": "daysWorked",
						},
					},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestFetcher_SyncPopulatesRegistry(t *testing.T) {
	srv := newUpstream(t, nil)
	defer srv.Close()

	kv := newFakeKV()
	f := NewFetcher(srv.URL, time.Second, kv)
	reg := metadata.NewRegistry()
	f.Sync(context.Background(), reg)

	field := reg.GetField("payroll", "employeeId")
	if field == nil || !field.SuggestionsEnabled {
		t.Fatalf("expected employeeId with suggestions enabled, got %+v", field)
	}
	conns := reg.ConnectionsForForm("payroll")
	if len(conns) != 1 || conns[0].ID != "c1" {
		t.Fatalf("expected connection c1, got %+v", conns)
	}

	// A successful fetch writes through to the offline cache.
	if _, ok := kv.entries[cacheKeyFields]; !ok {
		t.Fatal("expected fields cached")
	}
	if _, ok := kv.entries[cacheKeyConnections]; !ok {
		t.Fatal("expected connections cached")
	}
}

func TestFetcher_FallsBackToCacheOnUpstreamFailure(t *testing.T) {
	var failing atomic.Bool
	srv := newUpstream(t, &failing)
	defer srv.Close()

	kv := newFakeKV()
	f := NewFetcher(srv.URL, time.Second, kv)

	good := metadata.NewRegistry()
	f.Sync(context.Background(), good)

	// Upstream dies; a fresh sync must still produce the last good registry.
	failing.Store(true)
	recovered := metadata.NewRegistry()
	f.Sync(context.Background(), recovered)

	if recovered.GetField("payroll", "employeeId") == nil {
		t.Fatal("expected cached fields after upstream failure")
	}
	conns := recovered.ConnectionsForForm("payroll")
	if len(conns) != 1 || conns[0].ID != "c1" {
		t.Fatalf("expected cached connection c1, got %+v", conns)
	}
}

func TestFetcher_EmptyWhenNoCacheAndNoUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := NewFetcher(srv.URL, time.Second, newFakeKV())
	fields, connections := f.Load(context.Background())
	if len(fields) != 0 || len(connections) != 0 {
		t.Fatalf("expected empty configuration, got %d fields %d connections",
			len(fields), len(connections))
	}
}

func TestFetcher_PartialFetchDiscarded(t *testing.T) {
	// Connections endpoint is broken while fields still answer. The fetch
	// must not mix a fresh half with a stale half.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/form_fields" {
			json.NewEncoder(w).Encode(map[string]any{
				"fields": map[string]any{
					"payroll": []map[string]any{{"field_name": "fresh"}},
				},
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	kv := newFakeKV()
	kv.Set(context.Background(), cacheKeyFields, []*metadata.FieldDescriptor{
		{FormID: "payroll", FieldName: "stale"},
	})
	kv.Set(context.Background(), cacheKeyConnections, []*metadata.Connection{})

	f := NewFetcher(srv.URL, time.Second, kv)
	fields, _ := f.Load(context.Background())
	if len(fields) != 1 || fields[0].FieldName != "stale" {
		t.Fatalf("expected cached fields only, got %+v", fields)
	}
}
