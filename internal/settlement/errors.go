package settlement

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrChildOrderNotFound = errors.New("child order not found")
	ErrAmountMismatch     = errors.New("payment amount does not match order total")
	// ErrLedgerWriteFailed marks a child order whose wallet or ledger write
	// failed. The confirmation must be retried.
	ErrLedgerWriteFailed = errors.New("ledger write failed")
)
