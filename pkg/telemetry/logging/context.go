package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// OperationKey is the context key for the operation name
	// (e.g., "cleanup", "quota_enforce", "maintenance").
	OperationKey contextKey = "operation"

	// RecordIDKey is the context key for lifecycle record IDs.
	RecordIDKey contextKey = "record_id"

	// TransactionIDKey is the context key for transaction log IDs.
	TransactionIDKey contextKey = "transaction_id"

	// TickIDKey is the context key for maintenance tick identifiers.
	TickIDKey contextKey = "tick_id"
)

// contextFields lists the keys extracted into log records, in output order.
var contextFields = []contextKey{OperationKey, TickIDKey, RecordIDKey, TransactionIDKey}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// GetOperation retrieves the operation name from the context.
func GetOperation(ctx context.Context) string {
	return stringValue(ctx, OperationKey)
}

// WithRecordID adds a lifecycle record ID to the context.
func WithRecordID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RecordIDKey, id)
}

// GetRecordID retrieves the lifecycle record ID from the context.
func GetRecordID(ctx context.Context) string {
	return stringValue(ctx, RecordIDKey)
}

// WithTransactionID adds a transaction log ID to the context.
func WithTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TransactionIDKey, id)
}

// GetTransactionID retrieves the transaction log ID from the context.
func GetTransactionID(ctx context.Context) string {
	return stringValue(ctx, TransactionIDKey)
}

// WithTickID adds a maintenance tick identifier to the context.
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TickIDKey, id)
}

// GetTickID retrieves the maintenance tick identifier from the context.
func GetTickID(ctx context.Context) string {
	return stringValue(ctx, TickIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the non-empty context fields as slog attributes.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextFields {
		if v := stringValue(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
