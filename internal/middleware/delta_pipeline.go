package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	domrepo "FinSight/internal/domain/repository"
)

// Sink is the minimal downstream interface the pipeline needs.
type Sink interface {
	Apply(ctx context.Context, m *models.PortfolioMetrics) error
}

// DeltaPipeline is a middleware between the push stream and the session.
// It validates incoming portfolio deltas and coalesces bursts: deltas
// arriving within the window are merged field-wise and forwarded as one
// update, so a chatty backend cannot thrash the resolver.
type DeltaPipeline struct {
	sink    Sink
	metrics domrepo.Metrics
	window  time.Duration
	maxWait time.Duration

	mu      sync.Mutex
	pending *models.PortfolioMetrics
	oldest  time.Time
	timer   *time.Timer
	ctx     context.Context
	started bool
}

type PipelineOption func(*DeltaPipeline)

// WithCoalesceWindow sets the quiet period merged deltas wait for.
func WithCoalesceWindow(d time.Duration) PipelineOption {
	return func(p *DeltaPipeline) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithMaxWait caps how long a merged delta can be held while a burst
// keeps extending the window.
func WithMaxWait(d time.Duration) PipelineOption {
	return func(p *DeltaPipeline) {
		if d > 0 {
			p.maxWait = d
		}
	}
}

// NewDeltaPipeline creates a new pipeline.
func NewDeltaPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *DeltaPipeline {
	p := &DeltaPipeline{
		sink:    sink,
		metrics: metrics,
		window:  150 * time.Millisecond,
		maxWait: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start binds the context used for flushes.
func (p *DeltaPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.started = true
	p.mu.Unlock()
}

// Stop cancels any pending flush; a held delta is forwarded one last time.
func (p *DeltaPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	pending := p.pending
	ctx := p.ctx
	p.pending = nil
	p.mu.Unlock()

	if pending != nil && ctx != nil {
		_ = p.sink.Apply(ctx, pending)
	}
}

// Process validates and coalesces one delta. With a zero window the delta
// goes straight through.
func (p *DeltaPipeline) Process(ctx context.Context, m *models.PortfolioMetrics) error {
	if err := validateDelta(m); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	if p.window <= 0 {
		return p.sink.Apply(ctx, m)
	}

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return p.sink.Apply(ctx, m)
	}
	if p.pending == nil {
		p.pending = m
		p.oldest = time.Now()
	} else {
		p.pending = mergeDeltas(p.pending, m)
		p.metrics.RecordError("pipeline_coalesced")
	}

	wait := p.window
	if held := time.Since(p.oldest); p.maxWait > 0 && held+wait > p.maxWait {
		wait = p.maxWait - held
		if wait < 0 {
			wait = 0
		}
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(wait, p.flush)
	p.mu.Unlock()
	return nil
}

func (p *DeltaPipeline) flush() {
	p.mu.Lock()
	pending := p.pending
	ctx := p.ctx
	p.pending = nil
	p.timer = nil
	started := p.started
	p.mu.Unlock()

	if pending == nil || !started || ctx == nil {
		return
	}
	if err := p.sink.Apply(ctx, pending); err != nil {
		p.metrics.RecordError("pipeline_flush")
	}
}

// mergeDeltas overlays next onto base field-wise; newer values win, absent
// fields keep the older value. A fresh struct comes back so downstream
// identity checks see a new update.
func mergeDeltas(base, next *models.PortfolioMetrics) *models.PortfolioMetrics {
	out := &models.PortfolioMetrics{
		TotalValue:         base.TotalValue,
		TotalReturn:        base.TotalReturn,
		TotalReturnPercent: base.TotalReturnPercent,
		Holdings:           base.Holdings,
		AsOf:               base.AsOf,
		Source:             models.SourcePush,
	}
	if next.TotalValue != nil {
		out.TotalValue = next.TotalValue
	}
	if next.TotalReturn != nil {
		out.TotalReturn = next.TotalReturn
	}
	if next.TotalReturnPercent != nil {
		out.TotalReturnPercent = next.TotalReturnPercent
	}
	if next.Holdings != nil {
		out.Holdings = next.Holdings
	}
	if next.AsOf.After(out.AsOf) {
		out.AsOf = next.AsOf
	}
	return out
}

func validateDelta(m *models.PortfolioMetrics) error {
	if m == nil {
		return fmt.Errorf("delta nil")
	}
	if m.TotalValue == nil && m.TotalReturn == nil && m.TotalReturnPercent == nil && m.Holdings == nil {
		return fmt.Errorf("delta carries no fields")
	}
	return nil
}
