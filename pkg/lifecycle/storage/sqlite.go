package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/keeper/pkg/lifecycle"
)

const (
	// DriverCGO selects github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"

	// DriverPureGo selects modernc.org/sqlite.
	DriverPureGo = "sqlite"
)

// timeLayout is the on-disk timestamp format. It sorts lexically and is
// understood by SQLite's date functions.
const timeLayout = "2006-01-02 15:04:05.000"

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is the database/sql driver name, DriverCGO or DriverPureGo.
	// Default: DriverCGO
	Driver string

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/keeper.db",
		Driver:      DriverCGO,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements lifecycle.Storage using SQLite.
//
// The pool is capped at one connection and every write additionally takes
// writeMu, so there is exactly one writer at any time.
type SQLiteStorage struct {
	db      *sql.DB
	config  *SQLiteConfig
	writeMu sync.Mutex
	logger  *slog.Logger
}

var _ lifecycle.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens the database and creates the schema if needed.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, lifecycle.NewStorageError(config.Driver, "open", errors.New("db path cannot be empty"))
	}
	if config.Driver == "" {
		config.Driver = DriverCGO
	}
	if config.Driver != DriverCGO && config.Driver != DriverPureGo {
		return nil, lifecycle.NewStorageError(config.Driver, "open",
			fmt.Errorf("unsupported driver %q", config.Driver))
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "lifecycle.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, lifecycle.NewStorageError(config.Driver, "open", err)
	}

	// Single connection: SQLite allows one writer, and PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return lifecycle.NewStorageError(s.config.Driver, "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return lifecycle.NewStorageError(s.config.Driver, "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return lifecycle.NewStorageError(s.config.Driver, "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, formatTime(time.Now())); err != nil {
		return lifecycle.NewStorageError(s.config.Driver, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return lifecycle.NewStorageError(s.config.Driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return lifecycle.NewStorageError(s.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return lifecycle.NewStorageError(s.config.Driver, "ping", err)
	}
	return nil
}

// Checkpoint truncates the write-ahead log into the main database file.
func (s *SQLiteStorage) Checkpoint(ctx context.Context) error {
	if !s.config.WALMode {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return lifecycle.NewStorageError(s.config.Driver, "checkpoint", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Close(); err != nil {
		return lifecycle.NewStorageError(s.config.Driver, "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// CreateRecord inserts a lifecycle record.
func (s *SQLiteStorage) CreateRecord(ctx context.Context, record *lifecycle.LifecycleRecord) bool {
	if record == nil || record.ID == "" {
		s.logger.Error("refusing to insert record without id")
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM lifecycle_records WHERE record_id = ?`, record.ID).Scan(&exists)
	if err == nil {
		s.logger.Warn("duplicate lifecycle record",
			"record_id", record.ID,
			"error", lifecycle.ErrDuplicateRecord,
		)
		return false
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logError("create_record", err, "record_id", record.ID)
		return false
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_records (
			record_id, raw_file_path, categorized_file_path,
			creation_timestamp, processing_timestamp, status,
			category, failure_reason, md5_hash, sha256_hash,
			file_size, last_access_timestamp, access_count, priority_level,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RawFilePath,
		nullString(record.CategorizedFilePath),
		formatTime(record.CreationTimestamp),
		nullTime(record.ProcessingTimestamp),
		string(record.Status),
		nullString(record.Category),
		nullString(record.FailureReason),
		record.MD5Hash,
		record.SHA256Hash,
		record.FileSize,
		nullTime(record.LastAccessTimestamp),
		record.AccessCount,
		record.PriorityLevel,
		now,
		now,
	)
	if err != nil {
		s.logError("create_record", err, "record_id", record.ID)
		return false
	}

	s.logger.Debug("lifecycle record created",
		"record_id", record.ID,
		"raw_file_path", record.RawFilePath,
	)
	return true
}

// UpdateRecord applies the non-nil fields of update to the record.
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, id string, update lifecycle.RecordUpdate) bool {
	sets := make([]string, 0, 11)
	args := make([]any, 0, 12)

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.CategorizedFilePath != nil {
		add("categorized_file_path", *update.CategorizedFilePath)
	}
	if update.CreationTimestamp != nil {
		add("creation_timestamp", formatTime(*update.CreationTimestamp))
	}
	if update.ProcessingTimestamp != nil {
		add("processing_timestamp", formatTime(*update.ProcessingTimestamp))
	}
	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.FailureReason != nil {
		add("failure_reason", *update.FailureReason)
	}
	if update.FileSize != nil {
		add("file_size", *update.FileSize)
	}
	if update.LastAccessTimestamp != nil {
		add("last_access_timestamp", formatTime(*update.LastAccessTimestamp))
	}
	if update.AccessCount != nil {
		add("access_count", *update.AccessCount)
	}
	if update.PriorityLevel != nil {
		add("priority_level", *update.PriorityLevel)
	}
	add("updated_at", formatTime(time.Now()))
	args = append(args, id)

	query := "UPDATE lifecycle_records SET " + strings.Join(sets, ", ") + " WHERE record_id = ?"

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logError("update_record", err, "record_id", id)
		return false
	}
	affected, err := result.RowsAffected()
	if err != nil {
		s.logError("update_record", err, "record_id", id)
		return false
	}
	if affected == 0 {
		s.logger.Warn("lifecycle record not found for update",
			"record_id", id,
			"error", lifecycle.ErrRecordNotFound,
		)
		return false
	}
	return true
}

// GetRecord retrieves a lifecycle record by id.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*lifecycle.LifecycleRecord, bool) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM lifecycle_records WHERE record_id = ?", id)
	record, err := scanRecord(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logError("get_record", err, "record_id", id)
		}
		return nil, false
	}
	return record, true
}

// GetRecordsByStatus returns every record with the given status, oldest first.
func (s *SQLiteStorage) GetRecordsByStatus(ctx context.Context, status lifecycle.ProcessingStatus) []*lifecycle.LifecycleRecord {
	return s.queryRecords(ctx, "get_records_by_status",
		"SELECT "+recordColumns+" FROM lifecycle_records WHERE status = ? ORDER BY creation_timestamp, rowid",
		string(status))
}

// GetAllRecords returns every record, oldest first.
func (s *SQLiteStorage) GetAllRecords(ctx context.Context) []*lifecycle.LifecycleRecord {
	return s.queryRecords(ctx, "get_all_records",
		"SELECT "+recordColumns+" FROM lifecycle_records ORDER BY creation_timestamp, rowid")
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, operation, query string, args ...any) []*lifecycle.LifecycleRecord {
	records := []*lifecycle.LifecycleRecord{}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logError(operation, err)
		return records
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			s.logError(operation, err)
			return []*lifecycle.LifecycleRecord{}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		s.logError(operation, err)
		return []*lifecycle.LifecycleRecord{}
	}
	return records
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*lifecycle.LifecycleRecord, error) {
	var (
		record          lifecycle.LifecycleRecord
		categorizedPath sql.NullString
		creation        string
		processing      sql.NullString
		status          string
		category        sql.NullString
		failureReason   sql.NullString
		lastAccess      sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.RawFilePath,
		&categorizedPath,
		&creation,
		&processing,
		&status,
		&category,
		&failureReason,
		&record.MD5Hash,
		&record.SHA256Hash,
		&record.FileSize,
		&lastAccess,
		&record.AccessCount,
		&record.PriorityLevel,
	)
	if err != nil {
		return nil, err
	}

	created, err := parseTime(creation)
	if err != nil {
		return nil, fmt.Errorf("parse creation_timestamp of %s: %w", record.ID, err)
	}
	record.CreationTimestamp = created
	record.Status = lifecycle.ProcessingStatus(status)
	record.CategorizedFilePath = stringPtr(categorizedPath)
	record.Category = stringPtr(category)
	record.FailureReason = stringPtr(failureReason)

	if record.ProcessingTimestamp, err = timePtr(processing); err != nil {
		return nil, fmt.Errorf("parse processing_timestamp of %s: %w", record.ID, err)
	}
	if record.LastAccessTimestamp, err = timePtr(lastAccess); err != nil {
		return nil, fmt.Errorf("parse last_access_timestamp of %s: %w", record.ID, err)
	}

	return &record, nil
}

func (s *SQLiteStorage) logError(operation string, err error, args ...any) {
	attrs := append([]any{"error", lifecycle.NewStorageError(s.config.Driver, operation, err)}, args...)
	s.logger.Error("storage operation failed", attrs...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the on-disk layout plus SQLite's CURRENT_TIMESTAMP and
// RFC 3339 forms.
func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func nullString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func timePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
