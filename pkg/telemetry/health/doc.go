// Package health serves liveness, readiness and version endpoints for
// `keeper run`.
//
// Readiness aggregates named checks run concurrently with a per-check
// timeout. keeper registers a storage ping, the raw and categories
// directories and the filesystem circuit breaker:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("storage", health.StorageCheck(store))
//	checker.RegisterCheck("raw_dir", health.DirectoryCheck(cfg.Storage.RawDir, true))
//	checker.RegisterCheck("circuit_breaker", health.CircuitBreakerCheck(breaker))
//	health.Register(mux, checker, version, commit, buildTime)
package health
