package backendapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	"FinSight/pkg/cache"
	"FinSight/pkg/config"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func TestClientCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"healthy", http.StatusOK, `{"status":"healthy"}`, false},
		{"degraded", http.StatusOK, `{"status":"degraded"}`, true},
		{"server error", http.StatusInternalServerError, `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health/" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newTestClient(srv.URL).Check(context.Background())
			if tt.wantErr {
				if !errors.Is(err, drepo.ErrHealthCheckFailed) {
					t.Fatalf("want ErrHealthCheckFailed, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestClientFetchNormalizesAliases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/portfolio/metrics" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"totalValue": 25000.5,
			"totalReturn": 1200,
			"holdings": [
				{"symbol":"AAPL","companyName":"Apple Inc.","shares":50,"currentPrice":175.5,
				 "totalValue":8775,"costBasis":7500,"returnAmount":1275,"returnPercent":17,
				 "sector":"Technology"}
			]
		}`))
	}))
	defer srv.Close()

	m, err := newTestClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if m.Source != models.SourcePoller {
		t.Fatalf("source = %s, want %s", m.Source, models.SourcePoller)
	}
	if m.TotalValue == nil || *m.TotalValue != 25000.5 {
		t.Fatalf("totalValue not normalized: %v", m.TotalValue)
	}
	if m.TotalReturnPercent != nil {
		t.Fatal("absent totalReturnPercent should stay nil")
	}
	if len(m.Holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(m.Holdings))
	}
	h := m.Holdings[0]
	if h.Name != "Apple Inc." || h.Quantity != 50 || h.Price != 175.5 {
		t.Fatalf("alias fields not mapped: %+v", h)
	}
}

func TestCachedQueryServesFromCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"totalValue": 100}`))
	}))
	defer srv.Close()

	q := NewCachedQuery(newTestClient(srv.URL), cache.NewMemoryCache(), time.Minute)

	first, err := q.Query(context.Background())
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := q.Query(context.Background())
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("backend hits = %d, want 1", got)
	}
	if second.Source != models.SourceCached {
		t.Fatalf("second source = %s, want %s", second.Source, models.SourceCached)
	}
	if *first.TotalValue != *second.TotalValue {
		t.Fatal("cached copy diverged from fetched summary")
	}
}

func TestCachedQueryInvalidate(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"totalValue": 100}`))
	}))
	defer srv.Close()

	q := NewCachedQuery(newTestClient(srv.URL), cache.NewMemoryCache(), time.Minute)

	if _, err := q.Query(context.Background()); err != nil {
		t.Fatalf("query: %v", err)
	}
	q.Invalidate(context.Background())
	if _, err := q.Query(context.Background()); err != nil {
		t.Fatalf("query after invalidate: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("backend hits = %d, want 2", got)
	}
}
