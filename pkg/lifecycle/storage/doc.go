// Package storage provides the SQLite persistence layer for lifecycle
// records, statistics events, transaction logs, the duplicate-detection cache
// and configuration history.
//
// # Drivers
//
// Two database/sql drivers are registered:
//
//   - "sqlite3" (github.com/mattn/go-sqlite3, cgo), the default
//   - "sqlite" (modernc.org/sqlite, pure Go), for CGO_ENABLED=0 builds
//
// # Concurrency
//
// The connection pool holds a single connection and every write takes an
// internal mutex. Reads are not blocked by the mutex but share the
// connection, so they are serialized at the pool.
//
// # Timestamps
//
// All timestamps are stored as UTC text in the form
// "2006-01-02 15:04:05.000". The format sorts lexically, round-trips to the
// millisecond, and is accepted by SQLite's strftime, which the aggregation
// queries use for hourly, daily, weekly and monthly buckets.
//
// # Error Handling
//
// Methods do not return errors for expected failures. Lookups return
// (value, false), writes return false, and list queries return an empty
// slice. Every failure is logged with a lifecycle.StorageError.
//
// # Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:        "data/keeper.db",
//	    Driver:      storage.DriverCGO,
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package storage
