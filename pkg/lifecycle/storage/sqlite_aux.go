package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

// CreateTransactionLog inserts a transaction log entry.
func (s *SQLiteStorage) CreateTransactionLog(ctx context.Context, log *lifecycle.TransactionLog) bool {
	if log == nil || log.ID == "" {
		s.logger.Error("refusing to insert transaction log without id")
		return false
	}

	files := log.AffectedFiles
	if files == nil {
		files = []string{}
	}
	affected, err := json.Marshal(files)
	if err != nil {
		s.logError("create_transaction_log", err, "transaction_id", log.ID)
		return false
	}
	rollback, err := marshalOptional(log.RollbackData)
	if err != nil {
		s.logError("create_transaction_log", err, "transaction_id", log.ID)
		return false
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	if log.Status == "" {
		log.Status = lifecycle.TransactionPending
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transaction_logs (
			transaction_id, operation_type, affected_files, timestamp,
			status, rollback_data, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.OperationType,
		string(affected),
		formatTime(log.Timestamp),
		string(log.Status),
		rollback,
		now,
		now,
	)
	if err != nil {
		s.logError("create_transaction_log", err, "transaction_id", log.ID)
		return false
	}
	return true
}

// UpdateTransactionStatus sets the status of a transaction log. A nil
// rollbackData leaves the stored rollback data unchanged.
func (s *SQLiteStorage) UpdateTransactionStatus(ctx context.Context, id string, status lifecycle.TransactionStatus, rollbackData map[string]any) bool {
	query := `UPDATE transaction_logs SET status = ?, updated_at = ? WHERE transaction_id = ?`
	args := []any{string(status), formatTime(time.Now()), id}

	if rollbackData != nil {
		rollback, err := marshalOptional(rollbackData)
		if err != nil {
			s.logError("update_transaction_status", err, "transaction_id", id)
			return false
		}
		query = `UPDATE transaction_logs SET status = ?, updated_at = ?, rollback_data = ? WHERE transaction_id = ?`
		args = []any{string(status), formatTime(time.Now()), rollback, id}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logError("update_transaction_status", err, "transaction_id", id)
		return false
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		s.logger.Warn("transaction log not found",
			"transaction_id", id,
			"status", string(status),
		)
		return false
	}
	return true
}

// GetTransactionLog retrieves a transaction log by id.
func (s *SQLiteStorage) GetTransactionLog(ctx context.Context, id string) (*lifecycle.TransactionLog, bool) {
	var (
		log       lifecycle.TransactionLog
		affected  string
		timestamp string
		status    string
		rollback  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, operation_type, affected_files, timestamp, status, rollback_data
		FROM transaction_logs WHERE transaction_id = ?`, id,
	).Scan(&log.ID, &log.OperationType, &affected, &timestamp, &status, &rollback)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logError("get_transaction_log", err, "transaction_id", id)
		}
		return nil, false
	}

	if err := json.Unmarshal([]byte(affected), &log.AffectedFiles); err != nil {
		s.logError("get_transaction_log", fmt.Errorf("unmarshal affected_files: %w", err), "transaction_id", id)
		return nil, false
	}
	if rollback.Valid && rollback.String != "" {
		if err := json.Unmarshal([]byte(rollback.String), &log.RollbackData); err != nil {
			s.logError("get_transaction_log", fmt.Errorf("unmarshal rollback_data: %w", err), "transaction_id", id)
			return nil, false
		}
	}
	if log.Timestamp, err = parseTime(timestamp); err != nil {
		s.logError("get_transaction_log", err, "transaction_id", id)
		return nil, false
	}
	log.Status = lifecycle.TransactionStatus(status)

	return &log, true
}

// UpsertDedupEntry inserts a duplicate-cache entry or, when the MD5 hash is
// already cached, increments its reference count and refreshes its
// verification and expiry times.
func (s *SQLiteStorage) UpsertDedupEntry(ctx context.Context, entry *lifecycle.DedupEntry) bool {
	if entry == nil || entry.MD5Hash == "" {
		return false
	}

	now := time.Now()
	if entry.FirstSeen.IsZero() {
		entry.FirstSeen = now
	}
	if entry.LastVerified.IsZero() {
		entry.LastVerified = now
	}
	if entry.ReferenceCount <= 0 {
		entry.ReferenceCount = 1
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_cache (
			md5_hash, sha256_hash, file_size, first_seen, last_verified,
			reference_count, cache_expiry, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(md5_hash) DO UPDATE SET
			reference_count = duplicate_cache.reference_count + 1,
			last_verified = excluded.last_verified,
			cache_expiry = excluded.cache_expiry,
			updated_at = excluded.updated_at`,
		entry.MD5Hash,
		entry.SHA256Hash,
		entry.FileSize,
		formatTime(entry.FirstSeen),
		formatTime(entry.LastVerified),
		entry.ReferenceCount,
		formatTime(entry.CacheExpiry),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		s.logError("upsert_dedup_entry", err, "md5_hash", entry.MD5Hash)
		return false
	}
	return true
}

// GetDedupEntry looks up a cache entry by MD5 hash. Expired entries are
// still returned until CleanupExpiredCache removes them.
func (s *SQLiteStorage) GetDedupEntry(ctx context.Context, md5Hash string) (*lifecycle.DedupEntry, bool) {
	var (
		entry                       lifecycle.DedupEntry
		firstSeen, verified, expiry string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT md5_hash, sha256_hash, file_size, first_seen, last_verified, reference_count, cache_expiry
		FROM duplicate_cache WHERE md5_hash = ?`, md5Hash,
	).Scan(&entry.MD5Hash, &entry.SHA256Hash, &entry.FileSize, &firstSeen, &verified, &entry.ReferenceCount, &expiry)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logError("get_dedup_entry", err, "md5_hash", md5Hash)
		}
		return nil, false
	}

	for _, field := range []struct {
		raw string
		dst *time.Time
	}{
		{firstSeen, &entry.FirstSeen},
		{verified, &entry.LastVerified},
		{expiry, &entry.CacheExpiry},
	} {
		t, err := parseTime(field.raw)
		if err != nil {
			s.logError("get_dedup_entry", err, "md5_hash", md5Hash)
			return nil, false
		}
		*field.dst = t
	}

	return &entry, true
}

// CleanupExpiredCache removes dedup entries whose expiry has passed.
func (s *SQLiteStorage) CleanupExpiredCache(ctx context.Context) int64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM duplicate_cache WHERE cache_expiry < ?`, formatTime(time.Now()))
	if err != nil {
		s.logError("cleanup_expired_cache", err)
		return 0
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		s.logError("cleanup_expired_cache", err)
		return 0
	}
	if deleted > 0 {
		s.logger.Info("expired dedup entries removed", "deleted", deleted)
	}
	return deleted
}

// RecordConfigChange appends a configuration change.
func (s *SQLiteStorage) RecordConfigChange(ctx context.Context, change lifecycle.ConfigChange) bool {
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_history (config_key, old_value, new_value, changed_by, change_reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		change.Key,
		change.OldValue,
		change.NewValue,
		change.ChangedBy,
		change.Reason,
		formatTime(change.Timestamp),
	)
	if err != nil {
		s.logError("record_config_change", err, "config_key", change.Key)
		return false
	}
	return true
}

// GetConfigHistory returns the most recent configuration changes, newest
// first. A non-positive limit returns every change.
func (s *SQLiteStorage) GetConfigHistory(ctx context.Context, limit int) []lifecycle.ConfigChange {
	changes := []lifecycle.ConfigChange{}

	query := `SELECT config_key, COALESCE(old_value, ''), COALESCE(new_value, ''),
		COALESCE(changed_by, ''), COALESCE(change_reason, ''), timestamp
		FROM config_history ORDER BY timestamp DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logError("get_config_history", err)
		return changes
	}
	defer rows.Close()

	for rows.Next() {
		var (
			change    lifecycle.ConfigChange
			timestamp string
		)
		if err := rows.Scan(&change.Key, &change.OldValue, &change.NewValue, &change.ChangedBy, &change.Reason, &timestamp); err != nil {
			s.logError("get_config_history", err)
			return []lifecycle.ConfigChange{}
		}
		if change.Timestamp, err = parseTime(timestamp); err != nil {
			s.logError("get_config_history", err)
			return []lifecycle.ConfigChange{}
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		s.logError("get_config_history", err)
		return []lifecycle.ConfigChange{}
	}
	return changes
}

func marshalOptional(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return string(encoded), nil
}
