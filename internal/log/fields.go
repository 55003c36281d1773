package log

import "flowtrack/internal/core"

// Attribute keys.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldOwner         = "owner"
	FieldAmountCents   = "amount_cents"
	FieldCategory      = "category"
	FieldDate          = "date"
	FieldSkipped       = "skipped"
)

// Component names.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentTransaction = "transaction"
	ComponentAggregate   = "aggregate"
	ComponentStorage     = "storage"
)

// Operation names.
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpAggregate = "aggregate"
)

// transactionAttrs describes tx without its notes, which may be personal.
func transactionAttrs(tx core.Transaction) []any {
	return []any{
		FieldTransactionID, tx.ID,
		FieldOwner, tx.Owner,
		FieldAmountCents, tx.Amount.Cents,
		FieldCategory, string(tx.Category),
		FieldDate, core.FormatDate(tx.Date),
	}
}
