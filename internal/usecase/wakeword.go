package usecase

import (
	"context"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	domservice "FinSight/internal/domain/service"
	"FinSight/pkg/logger"
)

// WakeWordCascade walks an ordered list of wake-word backends and listens
// on the first one that comes up. Backends that cannot be loaded are
// marked Unavailable without a start attempt; backends that load but
// refuse to start are marked FailedToStart. When every backend fails the
// cascade is Exhausted and voice stays off for the session, which is not
// an error.
//
// Detections are debounced on the leading edge: the first event fires the
// callback, later events inside the window are dropped.
type WakeWordCascade struct {
	backends  []domservice.WakeWordBackend
	debounce  time.Duration
	metrics   drepo.Metrics
	telemetry drepo.TelemetryPublisher
	log       *logger.Logger

	mu       sync.Mutex
	state    models.CascadeState
	statuses []models.BackendStatus
	active   domservice.WakeWordBackend
	onWake   func(models.WakeEvent)
	cancel   context.CancelFunc
	lastFire time.Time
	wg       sync.WaitGroup
}

// NewWakeWordCascade creates a new WakeWordCascade instance. telemetry
// may be nil when the event stream is disabled.
func NewWakeWordCascade(backends []domservice.WakeWordBackend, debounce time.Duration, metrics drepo.Metrics, telemetry drepo.TelemetryPublisher, log *logger.Logger) *WakeWordCascade {
	statuses := make([]models.BackendStatus, len(backends))
	for i, b := range backends {
		statuses[i] = models.BackendStatus{Name: b.Name(), State: models.BackendNotTried}
	}
	return &WakeWordCascade{
		backends:  backends,
		debounce:  debounce,
		metrics:   metrics,
		telemetry: telemetry,
		log:       log,
		state:     models.CascadeIdle,
		statuses:  statuses,
	}
}

// OnWake registers the detection callback. Register before Start.
func (c *WakeWordCascade) OnWake(cb func(models.WakeEvent)) {
	c.mu.Lock()
	c.onWake = cb
	c.mu.Unlock()
}

// Start probes and starts backends in order until one is listening.
// Backends after the active one are left untried.
func (c *WakeWordCascade) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != models.CascadeIdle {
		c.mu.Unlock()
		return
	}
	c.state = models.CascadeStarting
	c.mu.Unlock()

	for i, b := range c.backends {
		if c.stopRequested() {
			return
		}

		if err := b.Available(ctx); err != nil {
			c.setStatus(i, models.BackendUnavailable, err.Error())
			c.log.Debug("voice backend unavailable",
				logger.String("backend", b.Name()), logger.Error(err))
			continue
		}

		ok, err := b.Start(ctx)
		if err != nil || !ok {
			detail := "declined to start"
			if err != nil {
				detail = err.Error()
			}
			c.setStatus(i, models.BackendFailedToStart, detail)
			c.log.Warn("voice backend failed to start",
				logger.String("backend", b.Name()), logger.String("detail", detail))
			continue
		}

		lctx, cancel := context.WithCancel(ctx)
		c.mu.Lock()
		if c.state != models.CascadeStarting {
			// Stopped while the backend was starting up.
			c.mu.Unlock()
			cancel()
			_ = b.Stop(ctx)
			return
		}
		c.active = b
		c.cancel = cancel
		c.state = models.CascadeListening
		c.mu.Unlock()
		c.setStatus(i, models.BackendActive, "")
		c.log.Info("wake word listening", logger.String("backend", b.Name()))

		c.wg.Add(1)
		go c.listen(lctx, b)
		return
	}

	c.mu.Lock()
	c.state = models.CascadeExhausted
	c.mu.Unlock()
	c.log.Info("all voice backends exhausted, voice disabled")
}

func (c *WakeWordCascade) listen(ctx context.Context, b domservice.WakeWordBackend) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.Detections():
			if !ok {
				return
			}
			c.deliver(ev)
		}
	}
}

func (c *WakeWordCascade) deliver(ev models.WakeEvent) {
	c.mu.Lock()
	if c.state != models.CascadeListening {
		c.mu.Unlock()
		return
	}
	if !c.lastFire.IsZero() && time.Since(c.lastFire) < c.debounce {
		c.mu.Unlock()
		c.metrics.RecordWake(ev.Backend, "debounced")
		return
	}
	c.lastFire = time.Now()
	cb := c.onWake
	c.mu.Unlock()

	c.metrics.RecordWake(ev.Backend, "delivered")
	if cb != nil {
		cb(ev)
	}
	if c.telemetry != nil {
		go func() { _ = c.telemetry.PublishWake(context.Background(), ev) }()
	}
}

// Stop tears the cascade down. It blocks until the listener goroutine has
// exited, so no callback runs after Stop returns. The active backend is
// stopped and, when it implements Releaser, released.
func (c *WakeWordCascade) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state == models.CascadeStopped {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = models.CascadeStopped
	active := c.active
	cancel := c.cancel
	c.active = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if active != nil {
		if err := active.Stop(ctx); err != nil {
			c.log.Warn("voice backend stop failed",
				logger.String("backend", active.Name()), logger.Error(err))
		}
		if rel, ok := active.(domservice.Releaser); ok {
			if err := rel.Release(ctx); err != nil {
				c.log.Warn("voice backend release failed",
					logger.String("backend", active.Name()), logger.Error(err))
			}
		}
	}

	if prev == models.CascadeListening {
		c.log.Info("wake word stopped")
	}
}

// State returns the cascade state.
func (c *WakeWordCascade) State() models.CascadeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Statuses returns a copy of the per-backend states in cascade order.
func (c *WakeWordCascade) Statuses() []models.BackendStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.BackendStatus, len(c.statuses))
	copy(out, c.statuses)
	return out
}

func (c *WakeWordCascade) setStatus(i int, state models.BackendState, detail string) {
	c.mu.Lock()
	c.statuses[i].State = state
	c.statuses[i].Detail = detail
	name := c.statuses[i].Name
	c.mu.Unlock()
	c.metrics.RecordBackendState(name, string(state))
}

func (c *WakeWordCascade) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == models.CascadeStopped
}
