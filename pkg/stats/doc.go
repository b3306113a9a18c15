// Package stats records lifecycle statistics events and derives storage
// metrics, performance metrics, periodic aggregates and anomaly reports from
// them.
//
// Metric snapshots are cached in an LRU for five minutes by default and the
// cache is purged on every recorded event. Concurrent cache misses for the
// same snapshot share one computation.
//
// Anomaly heuristics:
//
//   - rapid_growth: events in the last hour exceed the hour before by more
//     than 200% (skipped when the previous hour is empty)
//   - high_failure_rate: failed / (processed + failed) above 20% in the last
//     hour, critical above 50%
//   - high_access_volume: more than 1000 accesses in the last hour
package stats
