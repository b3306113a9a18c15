// Package maintenance runs periodic housekeeping for keeper.
//
// A tick performs, in order: quota enforcement, coordinated cleanup, expiry
// of the duplicate-detection cache, pruning of old statistics events,
// refresh of record status gauges, anomaly detection and a WAL checkpoint.
//
// Runner.RunOnce executes a single tick. Scheduler runs ticks on a cron
// schedule using github.com/robfig/cron/v3 and skips a tick while the
// previous one is still running.
package maintenance
