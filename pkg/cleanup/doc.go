// Package cleanup removes expired files from raw and categorized storage in
// a fixed order: orphaned files first, then raw files of eligible records
// and of records quota enforcement already marked, then categorized files of
// records marked for deletion.
//
// A record is marked for deletion through the lifecycle manager before its
// raw file is removed. The mark re-checks the stored record, so a record
// that started processing, was accessed or gained priority after the pass
// listed it keeps its file. Each pass is recorded as a transaction log and file
// removals can be routed through a circuit breaker, so a failing filesystem
// stops the sweep instead of producing one error per file.
//
// Eligibility is decided by IsEligibleForCleanup, a pure function of the
// record, the RetentionPolicy and the current time, measured in whole days.
package cleanup
