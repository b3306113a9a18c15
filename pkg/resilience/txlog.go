package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/keeper/pkg/lifecycle"
)

// TransactionRecorder writes multi-file operation logs. A transaction is
// begun before the files are touched and finished with Commit, Fail or
// RollBack.
type TransactionRecorder struct {
	store  lifecycle.TransactionStore
	logger *slog.Logger
}

// NewTransactionRecorder creates a recorder over store.
func NewTransactionRecorder(store lifecycle.TransactionStore) *TransactionRecorder {
	return &TransactionRecorder{
		store:  store,
		logger: slog.Default().With("component", "resilience.txlog"),
	}
}

// Begin records a pending transaction and returns its id. It returns "" if
// the log could not be written; the caller proceeds without a log.
func (r *TransactionRecorder) Begin(ctx context.Context, operation string, files []string) string {
	log := &lifecycle.TransactionLog{
		ID:            uuid.New().String(),
		OperationType: operation,
		AffectedFiles: files,
		Timestamp:     time.Now(),
		Status:        lifecycle.TransactionPending,
	}
	if !r.store.CreateTransactionLog(ctx, log) {
		r.logger.Warn("failed to begin transaction log", "operation", operation)
		return ""
	}
	r.logger.Debug("transaction begun",
		"transaction_id", log.ID,
		"operation", operation,
		"files", len(files),
	)
	return log.ID
}

// Commit marks the transaction committed.
func (r *TransactionRecorder) Commit(ctx context.Context, id string, summary map[string]any) bool {
	return r.finish(ctx, id, lifecycle.TransactionCommitted, summary)
}

// Fail marks the transaction failed.
func (r *TransactionRecorder) Fail(ctx context.Context, id string, summary map[string]any) bool {
	return r.finish(ctx, id, lifecycle.TransactionFailed, summary)
}

// RollBack marks the transaction rolled back.
func (r *TransactionRecorder) RollBack(ctx context.Context, id string, summary map[string]any) bool {
	return r.finish(ctx, id, lifecycle.TransactionRolledBack, summary)
}

func (r *TransactionRecorder) finish(ctx context.Context, id string, status lifecycle.TransactionStatus, summary map[string]any) bool {
	if id == "" {
		return false
	}
	if !r.store.UpdateTransactionStatus(ctx, id, status, summary) {
		r.logger.Warn("failed to finish transaction log",
			"transaction_id", id,
			"status", string(status),
		)
		return false
	}
	return true
}
