package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

// RecordEvent appends a statistics event.
func (s *SQLiteStorage) RecordEvent(ctx context.Context, event lifecycle.StatisticsEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var metadata any
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			s.logError("record_event", fmt.Errorf("marshal metadata: %w", err),
				"event_type", string(event.EventType))
			return false
		}
		metadata = string(data)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_statistics (timestamp, event_type, category, value, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(event.Timestamp),
		string(event.EventType),
		nullString(event.Category),
		event.Value,
		metadata,
		formatTime(time.Now()),
	)
	if err != nil {
		s.logError("record_event", err, "event_type", string(event.EventType))
		return false
	}
	return true
}

// GetAggregatedStats groups events in [start, end] by period bucket, event
// type and category. Rows are ordered by bucket.
func (s *SQLiteStorage) GetAggregatedStats(ctx context.Context, period lifecycle.TimePeriod, start, end time.Time) []lifecycle.AggregateRow {
	rowsOut := []lifecycle.AggregateRow{}

	format, ok := bucketFormats[string(period)]
	if !ok {
		s.logError("aggregate", fmt.Errorf("unknown period %q", period))
		return rowsOut
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime(?, timestamp) AS bucket,
		       event_type,
		       COALESCE(category, ?) AS category,
		       COUNT(*),
		       AVG(value),
		       SUM(value)
		FROM storage_statistics
		WHERE timestamp BETWEEN ? AND ?
		GROUP BY bucket, event_type, COALESCE(category, ?)
		ORDER BY bucket, event_type, category`,
		format,
		lifecycle.UncategorizedBucket,
		formatTime(start),
		formatTime(end),
		lifecycle.UncategorizedBucket,
	)
	if err != nil {
		s.logError("aggregate", err, "period", string(period))
		return rowsOut
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row       lifecycle.AggregateRow
			eventType string
		)
		if err := rows.Scan(&row.Bucket, &eventType, &row.Category, &row.Count, &row.Avg, &row.Sum); err != nil {
			s.logError("aggregate", err, "period", string(period))
			return []lifecycle.AggregateRow{}
		}
		row.EventType = lifecycle.EventType(eventType)
		rowsOut = append(rowsOut, row)
	}
	if err := rows.Err(); err != nil {
		s.logError("aggregate", err, "period", string(period))
		return []lifecycle.AggregateRow{}
	}

	return rowsOut
}

// CountEvents counts events with timestamp in [start, end). With no types,
// every event type is counted.
func (s *SQLiteStorage) CountEvents(ctx context.Context, start, end time.Time, types ...lifecycle.EventType) int64 {
	query := `SELECT COUNT(*) FROM storage_statistics WHERE timestamp >= ? AND timestamp < ?`
	args := []any{formatTime(start), formatTime(end)}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND event_type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		s.logError("count_events", err)
		return 0
	}
	return count
}

// PruneEvents deletes events older than cutoff.
func (s *SQLiteStorage) PruneEvents(ctx context.Context, cutoff time.Time) int64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM storage_statistics WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		s.logError("prune_events", err)
		return 0
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		s.logError("prune_events", err)
		return 0
	}
	if deleted > 0 {
		s.logger.Info("pruned statistics events",
			"deleted", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted
}
