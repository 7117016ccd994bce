package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	svccache "FinSight/internal/service/cache"
	"FinSight/pkg/logger"
)

// NavigationDispatcher routes navigation intents to the bound handler
// with at-most-once delivery. While no handler is bound the newest
// request sits in a sticky pending slot with a bounded TTL; binding
// consumes it immediately instead of polling for it. Params ride a
// read-once side channel so a destination fetches them exactly once.
//
// All state hangs off the dispatcher instance; Reset restores a pristine
// container for remounts and tests.
type NavigationDispatcher struct {
	ttl       time.Duration
	paramsTTL time.Duration
	metrics   drepo.Metrics
	telemetry drepo.TelemetryPublisher
	log       *logger.Logger
	params    *svccache.TTLCache

	mu           sync.Mutex
	handler      func(*models.NavigationRequest)
	pending      *models.NavigationRequest
	pendingTimer *time.Timer
	seq          uint64
	consumedSeq  uint64
}

// DispatcherStatus is the externally visible dispatcher state.
type DispatcherStatus struct {
	Bound         bool
	HasPending    bool
	PendingScreen string
	LastDelivered uint64
}

// NewNavigationDispatcher creates a new NavigationDispatcher instance.
// telemetry may be nil when the event stream is disabled.
func NewNavigationDispatcher(pendingTTL, paramsTTL time.Duration, params *svccache.TTLCache, metrics drepo.Metrics, telemetry drepo.TelemetryPublisher, log *logger.Logger) *NavigationDispatcher {
	return &NavigationDispatcher{
		ttl:       pendingTTL,
		paramsTTL: paramsTTL,
		params:    params,
		metrics:   metrics,
		telemetry: telemetry,
		log:       log,
	}
}

// NavigateTo stamps and routes one intent, reporting how it went out.
// With a handler bound the request is delivered synchronously before
// NavigateTo returns; otherwise it supersedes any pending request and
// waits, at most ttl, for a bind.
func (d *NavigationDispatcher) NavigateTo(screen string, params map[string]any) (*models.NavigationRequest, string) {
	d.mu.Lock()
	d.seq++
	req := &models.NavigationRequest{
		ID:     uuid.NewString(),
		Screen: screen,
		Params: params,
		At:     time.Now(),
		Seq:    d.seq,
	}

	if h := d.handler; h != nil {
		d.consumedSeq = req.Seq
		d.mirrorParamsLocked(req)
		d.mu.Unlock()

		h(req)
		d.metrics.RecordNavigation(models.NavDelivered)
		d.publish(req, models.NavDelivered)
		return req, models.NavDelivered
	}

	if old := d.pending; old != nil {
		d.pendingTimer.Stop()
		d.metrics.RecordNavigation(models.NavSuperseded)
		d.log.Debug("pending navigation superseded",
			logger.String("old", old.Screen),
			logger.String("new", req.Screen))
		defer d.publish(old, models.NavSuperseded)
	}
	d.pending = req
	d.pendingTimer = time.AfterFunc(d.ttl, func() { d.expire(req.Seq) })
	d.metrics.RecordNavigation(models.NavPending)
	d.mu.Unlock()
	return req, models.NavPending
}

// Bind attaches the handler. A fresh, unconsumed pending request is
// delivered exactly once before Bind returns.
func (d *NavigationDispatcher) Bind(h func(*models.NavigationRequest)) {
	d.mu.Lock()
	d.handler = h

	var deliver *models.NavigationRequest
	if d.pending != nil && d.pending.Seq > d.consumedSeq {
		deliver = d.pending
		d.pending = nil
		d.pendingTimer.Stop()
		d.pendingTimer = nil
		d.consumedSeq = deliver.Seq
		d.mirrorParamsLocked(deliver)
	}
	d.mu.Unlock()

	if deliver != nil {
		h(deliver)
		d.metrics.RecordNavigation(models.NavDelivered)
		d.publish(deliver, models.NavDelivered)
	}
}

// Unbind detaches the handler. Requests issued afterwards queue as
// pending again.
func (d *NavigationDispatcher) Unbind() {
	d.mu.Lock()
	d.handler = nil
	d.mu.Unlock()
}

// TakeParams is the read-once side channel: the first call for a screen
// returns its params and clears them.
func (d *NavigationDispatcher) TakeParams(screen string) (map[string]any, bool) {
	v, ok := d.params.Take(paramsKey(screen))
	if !ok {
		return nil, false
	}
	p, ok := v.(map[string]any)
	return p, ok
}

// Status reports the externally visible dispatcher state.
func (d *NavigationDispatcher) Status() DispatcherStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := DispatcherStatus{Bound: d.handler != nil, LastDelivered: d.consumedSeq}
	if d.pending != nil {
		st.HasPending = true
		st.PendingScreen = d.pending.Screen
	}
	return st
}

// Reset restores the pristine container: handler, pending slot, counters,
// and the params store are all cleared. No timer fires afterwards.
func (d *NavigationDispatcher) Reset() {
	d.mu.Lock()
	if d.pendingTimer != nil {
		d.pendingTimer.Stop()
		d.pendingTimer = nil
	}
	d.handler = nil
	d.pending = nil
	d.seq = 0
	d.consumedSeq = 0
	d.mu.Unlock()
	d.params.Clear()
}

func (d *NavigationDispatcher) expire(seq uint64) {
	d.mu.Lock()
	if d.pending == nil || d.pending.Seq != seq {
		d.mu.Unlock()
		return
	}
	req := d.pending
	d.pending = nil
	d.pendingTimer = nil
	d.mu.Unlock()

	d.metrics.RecordNavigation(models.NavExpired)
	d.log.Warn("navigation target unresolved, dropping request",
		logger.String("screen", req.Screen),
		logger.String("id", req.ID),
		logger.Duration("ttl", d.ttl))
	d.publish(req, models.NavExpired)
}

func (d *NavigationDispatcher) mirrorParamsLocked(req *models.NavigationRequest) {
	if len(req.Params) == 0 {
		return
	}
	d.params.Set(paramsKey(req.Screen), req.Params, d.paramsTTL)
}

func (d *NavigationDispatcher) publish(req *models.NavigationRequest, outcome string) {
	if d.telemetry == nil {
		return
	}
	go func() {
		_ = d.telemetry.PublishNavigation(context.Background(), req, outcome)
	}()
}

func paramsKey(screen string) string { return "nav:params:" + screen }
