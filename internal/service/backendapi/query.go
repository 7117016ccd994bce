package backendapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	"FinSight/pkg/cache"
	applogger "FinSight/pkg/logger"
)

const summaryKeyPrefix = "portfolio"

var summaryCacheKey = cache.GenerateKey(summaryKeyPrefix, "summary")

// CachedQuery serves portfolio summaries through a cache layer, falling
// back to the backend when the cached copy is missing or expired.
type CachedQuery struct {
	client *Client
	cache  cache.Service
	ttl    time.Duration
	log    *applogger.Logger
}

// NewCachedQuery creates a new CachedQuery instance.
func NewCachedQuery(client *Client, c cache.Service, ttl time.Duration) *CachedQuery {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedQuery{client: client, cache: c, ttl: ttl}
}

// SetLogger injects a structured logger.
func (q *CachedQuery) SetLogger(l *applogger.Logger) { q.log = l }

// Query returns the cached summary when present, otherwise fetches a
// fresh one and stores it. Payloads are cached as JSON strings: the
// memory layer only round-trips string values losslessly.
func (q *CachedQuery) Query(ctx context.Context) (*models.PortfolioMetrics, error) {
	if q.cache != nil {
		var raw string
		err := q.cache.Get(ctx, summaryCacheKey, &raw)
		if err == nil {
			var m models.PortfolioMetrics
			if uerr := json.Unmarshal([]byte(raw), &m); uerr == nil {
				m.Source = models.SourceCached
				return &m, nil
			} else if q.log != nil {
				q.log.Warn("query.cache_decode_error", applogger.Error(uerr))
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) && q.log != nil {
			q.log.Warn("query.cache_get_error", applogger.Error(err))
		}
	}

	m, err := q.client.Summary(ctx)
	if err != nil {
		return nil, err
	}
	if q.cache != nil {
		if b, merr := json.Marshal(m); merr == nil {
			if serr := q.cache.Set(ctx, summaryCacheKey, string(b), q.ttl); serr != nil && q.log != nil {
				q.log.Warn("query.cache_set_error", applogger.Error(serr))
			}
		}
	}
	return m, nil
}

// Invalidate drops every cached portfolio entry so the next query hits
// the backend.
func (q *CachedQuery) Invalidate(ctx context.Context) {
	if q.cache == nil {
		return
	}
	if err := q.cache.DeleteByPattern(ctx, cache.BuildPattern(summaryKeyPrefix)); err != nil && q.log != nil {
		q.log.Warn("query.cache_invalidate_error", applogger.Error(err))
	}
}

var _ drepo.PortfolioQuery = (*CachedQuery)(nil)
