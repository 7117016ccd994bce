package repository

import (
	"context"
	"time"

	"FinSight/internal/domain/models"
)

// HealthChecker probes the portfolio backend once. A nil return means
// healthy; the caller bounds the probe with its context.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// MetricsSource is the polling input: one fetch of the backend's current
// portfolio metrics, already normalized to the canonical partial shape.
type MetricsSource interface {
	Fetch(ctx context.Context) (*models.PortfolioMetrics, error)
}

// PortfolioQuery is the cached query input. Implementations serve from
// cache when possible and go to the backend otherwise.
type PortfolioQuery interface {
	Query(ctx context.Context) (*models.PortfolioMetrics, error)
}

// PushStream delivers server-pushed portfolio deltas.
type PushStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PortfolioMetrics, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SnapshotHistory persists resolved snapshots for range queries.
type SnapshotHistory interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Record(ctx context.Context, rec *models.SnapshotRecord) error
	RecordBatch(ctx context.Context, recs []*models.SnapshotRecord) error
	Query(ctx context.Context, from, to time.Time, limit int) ([]*models.SnapshotRecord, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// TelemetryPublisher emits session events to the event stream.
type TelemetryPublisher interface {
	PublishSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error
	PublishWake(ctx context.Context, ev models.WakeEvent) error
	PublishNavigation(ctx context.Context, req *models.NavigationRequest, outcome string) error
	Close() error
}

type Metrics interface {
	RecordGateCheck(outcome string)
	RecordSourceUpdate(source string)
	RecordFieldSource(field, source string)
	RecordWake(backend, outcome string)
	RecordBackendState(backend, state string)
	RecordNavigation(outcome string)
	RecordHistoryWrite(count int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
