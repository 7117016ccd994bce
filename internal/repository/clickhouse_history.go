package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	pkgch "FinSight/pkg/clickhouse"
	applogger "FinSight/pkg/logger"
)

// CHSnapshotHistory implements SnapshotHistory backed by ClickHouse.
type CHSnapshotHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHSnapshotHistory creates ClickHouse snapshot history storage.
func NewCHSnapshotHistory(ch *pkgch.Client, table string) *CHSnapshotHistory {
	if table == "" {
		table = "dashboard_snapshots"
	}
	return &CHSnapshotHistory{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHSnapshotHistory) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotHistory) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts                   DateTime64(3),
            session_id           String,
            total_value          Float64,
            total_return         Float64,
            total_return_percent Float64,
            holding_count        UInt16,
            value_source         LowCardinality(String)
        ) ENGINE = MergeTree()
        ORDER BY (session_id, ts)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init snapshot history: %w", err)
	}
	return nil
}

func (s *CHSnapshotHistory) Record(ctx context.Context, rec *models.SnapshotRecord) error {
	if rec == nil {
		return nil
	}
	return s.RecordBatch(ctx, []*models.SnapshotRecord{rec})
}

func (s *CHSnapshotHistory) RecordBatch(ctx context.Context, recs []*models.SnapshotRecord) error {
	if len(recs) == 0 {
		return nil
	}
	// Multi-row VALUES insert to keep round-trips down.
	const chunkSize = 1000
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, r := range recs[start:end] {
			if r == nil || r.SessionID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.ResolvedAt,
				r.SessionID,
				r.TotalValue,
				r.TotalReturn,
				r.TotalReturnPercent,
				r.HoldingCount,
				r.ValueSource,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (ts, session_id, total_value, total_return, total_return_percent, holding_count, value_source) VALUES %s",
			s.table, strings.Join(values, ","),
		)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse history insert error",
					applogger.String("table", s.table),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("record snapshots: %w", err)
		}
	}
	return nil
}

func (s *CHSnapshotHistory) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.SnapshotRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, session_id, total_value, total_return, total_return_percent, holding_count, value_source
        FROM %s
        WHERE ts >= ? AND ts <= ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse history query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.SnapshotRecord
	for rows.Next() {
		var r models.SnapshotRecord
		if err := rows.Scan(&r.ResolvedAt, &r.SessionID, &r.TotalValue, &r.TotalReturn, &r.TotalReturnPercent, &r.HoldingCount, &r.ValueSource); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, &r)
	}
	if s.l != nil {
		s.l.Debug("clickhouse history query",
			applogger.String("table", s.table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, rows.Err()
}

// Purge deletes rows older than the cutoff and returns how many matched.
// ClickHouse mutations run asynchronously, so the count is taken first.
func (s *CHSnapshotHistory) Purge(ctx context.Context, before time.Time) (int64, error) {
	var count int64
	countQ := fmt.Sprintf("SELECT count() FROM %s WHERE ts < ?", s.table)
	if err := s.db.QueryRowContext(ctx, countQ, before).Scan(&count); err != nil {
		return 0, fmt.Errorf("count purge candidates: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	mut := fmt.Sprintf("ALTER TABLE %s DELETE WHERE ts < ?", s.table)
	if _, err := s.db.ExecContext(ctx, mut, before); err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	if s.l != nil {
		s.l.Info("snapshot history purged",
			applogger.String("table", s.table),
			applogger.Int64("rows", count),
		)
	}
	return count, nil
}

func (s *CHSnapshotHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSnapshotHistory) Close() error {
	return nil // connection owned by pkg client
}

var _ drepo.SnapshotHistory = (*CHSnapshotHistory)(nil)
