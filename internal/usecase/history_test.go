package usecase

import (
	"context"
	"testing"
	"time"

	"FinSight/internal/domain/models"
	"FinSight/pkg/bus"
)

func snapAt(ts time.Time, value float64) models.PortfolioSnapshot {
	return models.PortfolioSnapshot{
		TotalValue: value,
		Holdings:   []models.Holding{{Symbol: "AAPL"}},
		Sources: models.FieldSources{
			TotalValue: models.SourcePoller,
			Holdings:   models.SourcePoller,
		},
		ResolvedAt: ts,
	}
}

func TestHistoryRecorderFlushesFullBatch(t *testing.T) {
	store := &fakeHistory{}
	topic := bus.NewTopic[models.PortfolioSnapshot](16)
	rec := NewHistoryRecorder("sess-1", store, nil, topic, 3, time.Hour, newFakeMetrics(), newTestLogger(t))

	rec.Start(context.Background())
	defer rec.Stop()

	base := time.Now()
	for i := 0; i < 3; i++ {
		topic.Publish(snapAt(base.Add(time.Duration(i)*time.Second), float64(i)))
	}

	waitFor(t, func() bool { return store.rowCount() == 3 }, 2*time.Second, "batch not flushed")
	if store.batchCount() != 1 {
		t.Fatalf("batches = %d, want 1", store.batchCount())
	}
	if store.rows[0].SessionID != "sess-1" {
		t.Fatalf("session id = %q", store.rows[0].SessionID)
	}
}

func TestHistoryRecorderSkipsMemoizedRepeats(t *testing.T) {
	store := &fakeHistory{}
	topic := bus.NewTopic[models.PortfolioSnapshot](16)
	rec := NewHistoryRecorder("sess-1", store, nil, topic, 50, time.Hour, newFakeMetrics(), newTestLogger(t))

	rec.Start(context.Background())

	ts := time.Now()
	same := snapAt(ts, 10)
	topic.Publish(same)
	topic.Publish(same)
	topic.Publish(same)
	topic.Publish(snapAt(ts.Add(time.Second), 11))

	rec.Stop()
	if got := store.rowCount(); got != 2 {
		t.Fatalf("rows = %d, want 2 (repeats skipped)", got)
	}
}

func TestHistoryRecorderFlushesOnStop(t *testing.T) {
	store := &fakeHistory{}
	topic := bus.NewTopic[models.PortfolioSnapshot](16)
	rec := NewHistoryRecorder("sess-1", store, nil, topic, 50, time.Hour, newFakeMetrics(), newTestLogger(t))

	rec.Start(context.Background())
	base := time.Now()
	topic.Publish(snapAt(base, 1))
	topic.Publish(snapAt(base.Add(time.Second), 2))

	rec.Stop()
	if got := store.rowCount(); got != 2 {
		t.Fatalf("rows = %d, want 2 after stop flush", got)
	}
}

func TestHistoryRecorderPrefersQueueRail(t *testing.T) {
	store := &fakeHistory{}
	q := &fakeQueueSvc{}
	topic := bus.NewTopic[models.PortfolioSnapshot](16)
	rec := NewHistoryRecorder("sess-1", store, q, topic, 2, time.Hour, newFakeMetrics(), newTestLogger(t))

	rec.Start(context.Background())
	defer rec.Stop()

	base := time.Now()
	topic.Publish(snapAt(base, 1))
	topic.Publish(snapAt(base.Add(time.Second), 2))

	waitFor(t, func() bool { return q.count() == 1 }, 2*time.Second, "batch not enqueued")
	if store.rowCount() != 0 {
		t.Fatalf("store rows = %d, want 0 when queue rail is up", store.rowCount())
	}
}

func TestHistoryUseCaseValidatesRange(t *testing.T) {
	uc := NewHistoryUseCase(&fakeHistory{})
	now := time.Now()
	if _, err := uc.GetHistory(context.Background(), GetHistoryParams{From: now, To: now.Add(-time.Hour)}); err == nil {
		t.Fatal("want error for inverted range")
	}
}

func TestHistoryUseCaseDefaultsLimit(t *testing.T) {
	store := &fakeHistory{}
	uc := NewHistoryUseCase(store)
	now := time.Now()
	if _, err := uc.GetHistory(context.Background(), GetHistoryParams{From: now.Add(-time.Hour), To: now}); err != nil {
		t.Fatalf("get history: %v", err)
	}
	if store.lastLimit != 500 {
		t.Fatalf("limit = %d, want default 500", store.lastLimit)
	}

	if _, err := uc.GetHistory(context.Background(), GetHistoryParams{From: now.Add(-time.Hour), To: now, Limit: 99999}); err != nil {
		t.Fatalf("get history: %v", err)
	}
	if store.lastLimit != 10000 {
		t.Fatalf("limit = %d, want cap 10000", store.lastLimit)
	}
}

func TestHistoryRecordJobDecodesQueuedPayload(t *testing.T) {
	store := &fakeHistory{}
	job := NewHistoryRecordJob(store)

	if job.Type() != historyMsgType {
		t.Fatalf("type = %q", job.Type())
	}

	// Payload as it arrives after the queue's JSON round-trip.
	payload := []interface{}{
		map[string]interface{}{
			"SessionID":    "sess-9",
			"ResolvedAt":   time.Now().UTC().Format(time.RFC3339),
			"TotalValue":   123.5,
			"HoldingCount": 5,
			"ValueSource":  models.SourcePoller,
		},
	}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.rowCount() != 1 {
		t.Fatalf("rows = %d, want 1", store.rowCount())
	}
	if store.rows[0].SessionID != "sess-9" || store.rows[0].TotalValue != 123.5 {
		t.Fatalf("decoded row mismatch: %+v", store.rows[0])
	}
}
