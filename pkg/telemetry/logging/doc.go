// Package logging configures keeper's structured logging on top of log/slog.
//
// Setup builds a JSON or text handler from the telemetry.logging section
// and installs it as the slog default. Components keep creating their own
// loggers with slog.Default().With("component", "cleanup.manager") and
// inherit the level and format.
//
// The handler also copies operation, tick_id, record_id and transaction_id
// from the context into every record logged through the *Context methods:
//
//	ctx = logging.WithOperation(ctx, "maintenance")
//	ctx = logging.WithTickID(ctx, uuid.NewString())
//	logger.InfoContext(ctx, "maintenance tick completed", "files_removed", 3)
package logging
