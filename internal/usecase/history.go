package usecase

import (
	"context"
	"fmt"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	"FinSight/pkg/bus"
	"FinSight/pkg/logger"
	"FinSight/pkg/queue"
)

// HistoryUseCase provides business logic for snapshot history queries.
type HistoryUseCase struct {
	store drepo.SnapshotHistory
}

func NewHistoryUseCase(store drepo.SnapshotHistory) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

type GetHistoryParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

type GetHistoryResult struct {
	From      time.Time
	To        time.Time
	Count     int
	Snapshots []*models.SnapshotRecord
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) (*GetHistoryResult, error) {
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	recs, err := uc.store.Query(ctx, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return &GetHistoryResult{
		From:      p.From,
		To:        p.To,
		Count:     len(recs),
		Snapshots: recs,
	}, nil
}

const historyMsgType = "history_record"

// HistoryRecorder drains the snapshot topic into history storage in
// batches. With a queue attached, batches ride the queue and the
// HistoryRecordJob performs the write; otherwise writes go direct.
type HistoryRecorder struct {
	sessionID    string
	store        drepo.SnapshotHistory
	queue        queue.QueueService
	topic        *bus.Topic[models.PortfolioSnapshot]
	batchSize    int
	batchTimeout time.Duration
	metrics      drepo.Metrics
	log          *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHistoryRecorder creates a new HistoryRecorder instance. q may be nil
// for direct writes.
func NewHistoryRecorder(
	sessionID string,
	store drepo.SnapshotHistory,
	q queue.QueueService,
	topic *bus.Topic[models.PortfolioSnapshot],
	batchSize int,
	batchTimeout time.Duration,
	metrics drepo.Metrics,
	log *logger.Logger,
) *HistoryRecorder {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}
	return &HistoryRecorder{
		sessionID:    sessionID,
		store:        store,
		queue:        q,
		topic:        topic,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Start subscribes to the snapshot topic and begins batching.
func (r *HistoryRecorder) Start(ctx context.Context) {
	rctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	snaps, unsub := r.topic.Subscribe()
	go r.run(rctx, snaps, unsub)
}

func (r *HistoryRecorder) run(ctx context.Context, snaps <-chan models.PortfolioSnapshot, unsub func()) {
	defer close(r.done)
	defer unsub()

	ticker := time.NewTicker(r.batchTimeout)
	defer ticker.Stop()

	batch := make([]*models.SnapshotRecord, 0, r.batchSize)
	var lastSeen time.Time

	for {
		select {
		case <-ctx.Done():
			// Parent context is gone; flush on a fresh one.
			fctx, fcancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.flush(fctx, batch)
			fcancel()
			return

		case snap := <-snaps:
			// Memoized recomputes republish the same snapshot; skip those.
			if snap.ResolvedAt.Equal(lastSeen) {
				continue
			}
			lastSeen = snap.ResolvedAt
			batch = append(batch, r.toRecord(snap))
			if len(batch) >= r.batchSize {
				r.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *HistoryRecorder) toRecord(snap models.PortfolioSnapshot) *models.SnapshotRecord {
	return &models.SnapshotRecord{
		SessionID:          r.sessionID,
		ResolvedAt:         snap.ResolvedAt,
		TotalValue:         snap.TotalValue,
		TotalReturn:        snap.TotalReturn,
		TotalReturnPercent: snap.TotalReturnPercent,
		HoldingCount:       len(snap.Holdings),
		ValueSource:        snap.Sources.TotalValue,
	}
}

func (r *HistoryRecorder) flush(ctx context.Context, batch []*models.SnapshotRecord) {
	if len(batch) == 0 {
		return
	}
	recs := make([]*models.SnapshotRecord, len(batch))
	copy(recs, batch)

	start := time.Now()
	if r.queue != nil {
		err := r.queue.PublishMessage(ctx, historyMsgType, recs)
		if err == nil {
			r.metrics.RecordHistoryWrite(len(recs))
			return
		}
		r.metrics.RecordError("history_enqueue")
		if r.log != nil {
			r.log.Warn("history enqueue failed, writing direct", logger.Error(err))
		}
	}
	if err := r.store.RecordBatch(ctx, recs); err != nil {
		r.metrics.RecordError("history_write")
		if r.log != nil {
			r.log.Warn("history write failed", logger.Int("rows", len(recs)), logger.Error(err))
		}
		return
	}
	r.metrics.RecordHistoryWrite(len(recs))
	r.metrics.RecordLatency("history_flush_seconds", time.Since(start).Seconds())
}

// Stop flushes the held batch and detaches from the topic.
func (r *HistoryRecorder) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// HistoryRecordJob writes queued snapshot batches to history storage.
type HistoryRecordJob struct {
	store drepo.SnapshotHistory
}

func NewHistoryRecordJob(store drepo.SnapshotHistory) *HistoryRecordJob {
	return &HistoryRecordJob{store: store}
}

func (j *HistoryRecordJob) Name() string { return "HistoryRecordJob" }

func (j *HistoryRecordJob) Type() string { return historyMsgType }

func (j *HistoryRecordJob) Handle(ctx context.Context, payload interface{}) error {
	recs, err := queue.ParsePayload[[]*models.SnapshotRecord](payload)
	if err != nil {
		return fmt.Errorf("history payload: %w", err)
	}
	return j.store.RecordBatch(ctx, *recs)
}

var _ queue.Job = (*HistoryRecordJob)(nil)
