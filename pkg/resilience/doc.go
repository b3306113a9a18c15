// Package resilience provides a circuit breaker for filesystem operations and
// a recorder for multi-file transaction logs.
package resilience
