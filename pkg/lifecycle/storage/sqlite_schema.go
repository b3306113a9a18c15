package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the lifecycle database schema.
const Schema = `
-- Lifecycle records
CREATE TABLE IF NOT EXISTS lifecycle_records (
    record_id TEXT PRIMARY KEY,
    raw_file_path TEXT NOT NULL,
    categorized_file_path TEXT,
    creation_timestamp TEXT NOT NULL,
    processing_timestamp TEXT,
    status TEXT NOT NULL,
    category TEXT,
    failure_reason TEXT,
    md5_hash TEXT NOT NULL,
    sha256_hash TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    last_access_timestamp TEXT,
    access_count INTEGER NOT NULL DEFAULT 0,
    priority_level INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Statistics events
CREATE TABLE IF NOT EXISTS storage_statistics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    event_type TEXT NOT NULL,
    category TEXT,
    value REAL NOT NULL,
    metadata TEXT,
    aggregation_period TEXT,
    created_at TEXT NOT NULL
);

-- Duplicate detection cache
CREATE TABLE IF NOT EXISTS duplicate_cache (
    md5_hash TEXT PRIMARY KEY,
    sha256_hash TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    first_seen TEXT NOT NULL,
    last_verified TEXT NOT NULL,
    reference_count INTEGER NOT NULL DEFAULT 1,
    cache_expiry TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Multi-file operation logs
CREATE TABLE IF NOT EXISTS transaction_logs (
    transaction_id TEXT PRIMARY KEY,
    operation_type TEXT NOT NULL,
    affected_files TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    status TEXT NOT NULL,
    rollback_data TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Configuration change history
CREATE TABLE IF NOT EXISTS config_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    config_key TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    changed_by TEXT,
    change_reason TEXT,
    timestamp TEXT NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lifecycle_status ON lifecycle_records(status);
CREATE INDEX IF NOT EXISTS idx_lifecycle_category ON lifecycle_records(category);
CREATE INDEX IF NOT EXISTS idx_lifecycle_creation ON lifecycle_records(creation_timestamp);
CREATE INDEX IF NOT EXISTS idx_lifecycle_access ON lifecycle_records(last_access_timestamp);
CREATE INDEX IF NOT EXISTS idx_lifecycle_hashes ON lifecycle_records(md5_hash, sha256_hash);
CREATE INDEX IF NOT EXISTS idx_lifecycle_raw_path ON lifecycle_records(raw_file_path);
CREATE INDEX IF NOT EXISTS idx_lifecycle_categorized_path ON lifecycle_records(categorized_file_path);

CREATE INDEX IF NOT EXISTS idx_stats_timestamp ON storage_statistics(timestamp);
CREATE INDEX IF NOT EXISTS idx_stats_event_type ON storage_statistics(event_type);
CREATE INDEX IF NOT EXISTS idx_stats_category ON storage_statistics(category);

CREATE INDEX IF NOT EXISTS idx_duplicate_hashes ON duplicate_cache(md5_hash, sha256_hash);
CREATE INDEX IF NOT EXISTS idx_duplicate_expiry ON duplicate_cache(cache_expiry);

CREATE INDEX IF NOT EXISTS idx_transaction_timestamp ON transaction_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_transaction_status ON transaction_logs(status);

CREATE INDEX IF NOT EXISTS idx_config_history_key ON config_history(config_key);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

// recordColumns is the column list used by every lifecycle record SELECT.
const recordColumns = `
    record_id, raw_file_path, categorized_file_path,
    creation_timestamp, processing_timestamp, status,
    category, failure_reason, md5_hash, sha256_hash,
    file_size, last_access_timestamp, access_count, priority_level`

// bucketFormats maps aggregation periods to strftime patterns. Weekly buckets
// use calendar week numbering (%W), not sliding 7-day windows.
var bucketFormats = map[string]string{
	"hourly":  "%Y-%m-%d %H",
	"daily":   "%Y-%m-%d",
	"weekly":  "%Y-%W",
	"monthly": "%Y-%m",
}
