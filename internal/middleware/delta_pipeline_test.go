package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinSight/internal/domain/models"
)

type captureSink struct {
	mu  sync.Mutex
	got []*models.PortfolioMetrics
}

func (s *captureSink) Apply(ctx context.Context, m *models.PortfolioMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *captureSink) last() *models.PortfolioMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil
	}
	return s.got[len(s.got)-1]
}

type nopMetrics struct{}

func (nopMetrics) RecordGateCheck(string)         {}
func (nopMetrics) RecordSourceUpdate(string)      {}
func (nopMetrics) RecordFieldSource(f, s string)  {}
func (nopMetrics) RecordWake(b, o string)         {}
func (nopMetrics) RecordBackendState(b, s string) {}
func (nopMetrics) RecordNavigation(string)        {}
func (nopMetrics) RecordHistoryWrite(int)         {}
func (nopMetrics) RecordError(string)             {}
func (nopMetrics) RecordLatency(string, float64)  {}

func fp(v float64) *float64 { return &v }

func TestPipelineCoalescesBurst(t *testing.T) {
	sink := &captureSink{}
	p := NewDeltaPipeline(sink, nopMetrics{}, WithCoalesceWindow(30*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	if err := p.Process(context.Background(), &models.PortfolioMetrics{TotalValue: fp(100)}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Process(context.Background(), &models.PortfolioMetrics{TotalReturn: fp(5)}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Process(context.Background(), &models.PortfolioMetrics{TotalValue: fp(120)}); err != nil {
		t.Fatalf("process: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if sink.count() != 1 {
		t.Fatalf("burst flushed %d updates, want 1", sink.count())
	}
	merged := sink.last()
	if merged.TotalValue == nil || *merged.TotalValue != 120 {
		t.Errorf("newest total value must win, got %v", merged.TotalValue)
	}
	if merged.TotalReturn == nil || *merged.TotalReturn != 5 {
		t.Errorf("merged delta must keep earlier fields, got %v", merged.TotalReturn)
	}
}

func TestPipelineRejectsEmptyDelta(t *testing.T) {
	sink := &captureSink{}
	p := NewDeltaPipeline(sink, nopMetrics{})
	p.Start(context.Background())
	defer p.Stop()

	if err := p.Process(context.Background(), &models.PortfolioMetrics{}); err == nil {
		t.Error("empty delta must be rejected")
	}
	if err := p.Process(context.Background(), nil); err == nil {
		t.Error("nil delta must be rejected")
	}
}

func TestPipelineStopFlushesHeldDelta(t *testing.T) {
	sink := &captureSink{}
	p := NewDeltaPipeline(sink, nopMetrics{}, WithCoalesceWindow(10*time.Second))
	p.Start(context.Background())

	if err := p.Process(context.Background(), &models.PortfolioMetrics{TotalValue: fp(1)}); err != nil {
		t.Fatalf("process: %v", err)
	}
	p.Stop()

	if sink.count() != 1 {
		t.Errorf("stop must forward the held delta, got %d", sink.count())
	}
}

func TestPipelineZeroWindowPassesThrough(t *testing.T) {
	sink := &captureSink{}
	p := NewDeltaPipeline(sink, nopMetrics{})
	p.window = 0
	p.Start(context.Background())
	defer p.Stop()

	if err := p.Process(context.Background(), &models.PortfolioMetrics{TotalValue: fp(9)}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("zero window must forward synchronously, got %d", sink.count())
	}
}
