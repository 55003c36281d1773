package log

import (
	"context"

	"flowtrack/internal/core"
)

// TransactionWritten records a successful create, update or delete.
func (l *Logger) TransactionWritten(ctx context.Context, op string, tx core.Transaction) {
	args := append(transactionAttrs(tx), FieldOperation, op)
	l.WithComponent(ComponentTransaction).InfoContext(ctx, "Transaction "+op+" succeeded", args...)
}

// UndatedSkipped warns that n of owner's transactions were left out of the
// aggregates. Nothing is logged when n is zero.
func (l *Logger) UndatedSkipped(ctx context.Context, owner string, n int) {
	if n == 0 {
		return
	}
	l.WithComponent(ComponentAggregate).WarnContext(ctx, "Undated transactions excluded from aggregates",
		FieldOperation, OpAggregate,
		FieldOwner, owner,
		FieldSkipped, n)
}

// Failed logs err under component for operation op.
func (l *Logger) Failed(ctx context.Context, msg string, err error, component, op string, args ...any) {
	attrs := append([]any{FieldError, err, FieldOperation, op}, args...)
	l.WithComponent(component).ErrorContext(ctx, msg, attrs...)
}
