package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	"FinSight/pkg/logger"
)

// HealthGate runs one bounded backend probe per session and opens the
// query gate only after the settle delay has elapsed on top of a
// successful check. A failed or timed-out check keeps the gate closed for
// the rest of the session; there is no retry.
type HealthGate struct {
	checker drepo.HealthChecker
	timeout time.Duration
	settle  time.Duration
	metrics drepo.Metrics
	log     *logger.Logger

	mu        sync.Mutex
	state     models.GateState
	healthy   bool
	canQuery  bool
	checkedAt time.Time
	errText   string
	timer     *time.Timer
	ready     chan struct{}
	stopped   bool
}

// NewHealthGate creates a new HealthGate instance.
func NewHealthGate(checker drepo.HealthChecker, timeout, settle time.Duration, metrics drepo.Metrics, log *logger.Logger) *HealthGate {
	return &HealthGate{
		checker: checker,
		timeout: timeout,
		settle:  settle,
		metrics: metrics,
		log:     log,
		state:   models.GateUnknown,
		ready:   make(chan struct{}),
	}
}

// Start launches the single health check. It returns immediately; callers
// sequence on Ready or poll CanQuery.
func (g *HealthGate) Start(ctx context.Context) {
	g.mu.Lock()
	g.state = models.GateChecking
	g.mu.Unlock()

	go g.check(ctx)
}

func (g *HealthGate) check(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.checker.Check(cctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		// Result arriving after Stop is discarded.
		return
	}

	g.checkedAt = time.Now()
	if err != nil {
		g.state = models.GateUnhealthy
		g.healthy = false
		g.errText = err.Error()
		outcome := "fail"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		g.metrics.RecordGateCheck(outcome)
		g.log.Warn("backend health check failed", logger.Error(err), logger.String("outcome", outcome))
		return
	}

	g.state = models.GateHealthy
	g.healthy = true
	g.metrics.RecordGateCheck("ok")
	g.log.Info("backend healthy", logger.Duration("settle", g.settle))

	if g.settle <= 0 {
		g.openLocked()
		return
	}
	g.timer = time.AfterFunc(g.settle, g.open)
}

func (g *HealthGate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openLocked()
}

func (g *HealthGate) openLocked() {
	if g.stopped || g.canQuery {
		return
	}
	g.canQuery = true
	close(g.ready)
	g.log.Info("query gate open")
}

// CanQuery reports whether live queries are allowed yet.
func (g *HealthGate) CanQuery() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canQuery
}

// Healthy reports the result of the health check.
func (g *HealthGate) Healthy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.healthy
}

// Ready is closed once the gate opens. It never closes when the check
// fails or the gate is stopped first.
func (g *HealthGate) Ready() <-chan struct{} {
	return g.ready
}

// Status returns the externally visible gate state.
func (g *HealthGate) Status() models.HealthStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return models.HealthStatus{
		State:     g.state,
		Healthy:   g.healthy,
		CanQuery:  g.canQuery,
		CheckedAt: g.checkedAt,
		Err:       g.errText,
	}
}

// Stop cancels the settle timer and freezes the gate. No transition
// happens after Stop returns.
func (g *HealthGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
