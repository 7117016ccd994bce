package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	mid "FinSight/internal/middleware"
	"FinSight/pkg/bus"
	"FinSight/pkg/logger"
)

// DashboardSession owns one dashboard lifetime: it runs the health gate,
// polls the backend, consumes the push stream, issues the cached query
// once the gate opens, and recomputes the resolved snapshot on every
// contributing update. Source failures are absorbed; the snapshot is
// never empty thanks to the resolver's fallback.
type DashboardSession struct {
	id       string
	gate     *HealthGate
	resolver *SnapshotResolver
	source   drepo.MetricsSource
	stream   drepo.PushStream
	query    drepo.PortfolioQuery
	pipe     *mid.DeltaPipeline
	metrics  drepo.Metrics
	tel      drepo.TelemetryPublisher
	log      *logger.Logger
	topic    *bus.Topic[models.PortfolioSnapshot]

	pollInterval time.Duration

	mu           sync.Mutex
	latestPoller *models.PortfolioMetrics
	latestPush   *models.PortfolioMetrics
	latestCached *models.PortfolioMetrics
	snap         models.PortfolioSnapshot
	cancel       context.CancelFunc
	started      bool
	wg           sync.WaitGroup
}

// NewDashboardSession creates a new DashboardSession instance. telemetry
// may be nil; pipe may be nil to feed push deltas through unbuffered.
func NewDashboardSession(
	gate *HealthGate,
	resolver *SnapshotResolver,
	source drepo.MetricsSource,
	stream drepo.PushStream,
	query drepo.PortfolioQuery,
	pipe *mid.DeltaPipeline,
	pollInterval time.Duration,
	topic *bus.Topic[models.PortfolioSnapshot],
	metrics drepo.Metrics,
	tel drepo.TelemetryPublisher,
	log *logger.Logger,
) *DashboardSession {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &DashboardSession{
		id:           uuid.NewString(),
		gate:         gate,
		resolver:     resolver,
		source:       source,
		stream:       stream,
		query:        query,
		pipe:         pipe,
		pollInterval: pollInterval,
		topic:        topic,
		metrics:      metrics,
		tel:          tel,
		log:          log,
	}
}

// ID returns the session id stamped onto history records.
func (s *DashboardSession) ID() string { return s.id }

// SetPipeline injects the delta pipeline between the push stream and
// Apply. Must be called before Start.
func (s *DashboardSession) SetPipeline(p *mid.DeltaPipeline) { s.pipe = p }

// Start brings the session up. The push stream failing to connect is
// absorbed: the session runs on the remaining sources.
func (s *DashboardSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.snap = s.resolver.Fallback()
	s.mu.Unlock()

	s.topic.Publish(s.Snapshot())
	s.gate.Start(sctx)
	if s.pipe != nil {
		s.pipe.Start(sctx)
	}

	var deltaCh <-chan *models.PortfolioMetrics
	var errCh <-chan error
	if err := s.stream.Connect(sctx); err != nil {
		s.metrics.RecordError("push_connect")
		s.log.Warn("push stream unavailable, continuing without it", logger.Error(err))
	} else {
		if err := s.stream.Subscribe(sctx); err != nil {
			s.metrics.RecordError("push_subscribe")
			s.log.Warn("push subscribe failed, continuing without it", logger.Error(err))
		} else {
			deltaCh, errCh = s.stream.Read(sctx)
		}
	}

	s.wg.Add(1)
	go s.run(sctx, deltaCh, errCh)

	s.log.Info("dashboard session started",
		logger.String("session", s.id),
		logger.Duration("poll_interval", s.pollInterval))
	return nil
}

func (s *DashboardSession) run(ctx context.Context, deltaCh <-chan *models.PortfolioMetrics, errCh <-chan error) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Nilled out after the one-shot query so the select stops watching it.
	gateReady := s.gate.Ready()

	for {
		select {
		case <-ctx.Done():
			return

		case <-gateReady:
			gateReady = nil
			s.runQuery(ctx)

		case <-ticker.C:
			s.poll(ctx)

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				s.metrics.RecordError("stream")
				if rerr := s.stream.Reconnect(ctx); rerr != nil {
					s.log.Warn("push reconnect failed", logger.Error(rerr))
					deltaCh, errCh = nil, nil
				} else {
					// Read channels are per-connection; grab fresh ones.
					deltaCh, errCh = s.stream.Read(ctx)
				}
			}

		case m, ok := <-deltaCh:
			if !ok {
				deltaCh = nil
				continue
			}
			if m == nil {
				continue
			}
			if s.pipe != nil {
				_ = s.pipe.Process(ctx, m)
			} else {
				_ = s.Apply(ctx, m)
			}
		}
	}
}

func (s *DashboardSession) poll(ctx context.Context) {
	m, err := s.source.Fetch(ctx)
	if err != nil {
		// Keep the previous poller value; polling errors never surface.
		s.metrics.RecordError("poller_fetch")
		s.log.Debug("poller fetch failed", logger.Error(err))
		return
	}
	if m == nil {
		return
	}
	s.metrics.RecordSourceUpdate(models.SourcePoller)
	s.mu.Lock()
	s.latestPoller = m
	s.mu.Unlock()
	s.recompute()
}

func (s *DashboardSession) runQuery(ctx context.Context) {
	m, err := s.query.Query(ctx)
	if err != nil {
		s.metrics.RecordError("cached_query")
		s.log.Warn("cached portfolio query failed", logger.Error(err))
		return
	}
	if m == nil {
		return
	}
	s.metrics.RecordSourceUpdate(models.SourceCached)
	s.mu.Lock()
	s.latestCached = m
	s.mu.Unlock()
	s.recompute()
}

// Apply ingests one push delta. It is the pipeline's downstream sink.
func (s *DashboardSession) Apply(ctx context.Context, m *models.PortfolioMetrics) error {
	s.metrics.RecordSourceUpdate(models.SourcePush)
	s.mu.Lock()
	s.latestPush = m
	s.mu.Unlock()
	s.recompute()
	return nil
}

// RefreshQuery re-runs the cached query on demand. It fails with
// ErrQueryBlocked while the gate is closed.
func (s *DashboardSession) RefreshQuery(ctx context.Context) error {
	if !s.gate.CanQuery() {
		return drepo.ErrQueryBlocked
	}
	m, err := s.query.Query(ctx)
	if err != nil {
		return err
	}
	if m != nil {
		s.metrics.RecordSourceUpdate(models.SourceCached)
		s.mu.Lock()
		s.latestCached = m
		s.mu.Unlock()
		s.recompute()
	}
	return nil
}

func (s *DashboardSession) recompute() {
	s.mu.Lock()
	poller, push, cached := s.latestPoller, s.latestPush, s.latestCached
	s.mu.Unlock()

	snap := s.resolver.Resolve(poller, push, cached)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.metrics.RecordFieldSource("total_value", snap.Sources.TotalValue)
	s.metrics.RecordFieldSource("total_return", snap.Sources.TotalReturn)
	s.metrics.RecordFieldSource("total_return_percent", snap.Sources.TotalReturnPercent)
	s.metrics.RecordFieldSource("holdings", snap.Sources.Holdings)

	s.topic.Publish(snap)
	if s.tel != nil {
		go func() { _ = s.tel.PublishSnapshot(context.Background(), &snap) }()
	}
}

// Snapshot returns the current resolved snapshot. Before Start it is the
// deterministic fallback.
func (s *DashboardSession) Snapshot() models.PortfolioSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started && s.snap.Sources.Holdings == "" {
		s.snap = s.resolver.Fallback()
	}
	return s.snap
}

// IsConnected reports whether the push stream is attached.
func (s *DashboardSession) IsConnected() bool {
	return s.stream.IsConnected()
}

// GateStatus exposes the health gate state.
func (s *DashboardSession) GateStatus() models.HealthStatus {
	return s.gate.Status()
}

// Stop tears the session down: sources first, then the gate, so nothing
// recomputes after the gate freezes.
func (s *DashboardSession) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	if s.pipe != nil {
		s.pipe.Stop()
	}
	err := s.stream.Close()
	s.gate.Stop()
	s.log.Info("dashboard session stopped", logger.String("session", s.id))
	return err
}
