package enums

import "fmt"

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// IsValid reports whether the value is CREDIT or DEBIT.
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// TransactionSource names the business event behind a ledger entry.
type TransactionSource string

const (
	TransactionSourceOrderPayment  TransactionSource = "ORDER_PAYMENT"
	TransactionSourceCommission    TransactionSource = "COMMISSION"
	TransactionSourceWithdrawal    TransactionSource = "WITHDRAWAL"
	TransactionSourceWithdrawalFee TransactionSource = "WITHDRAWAL_FEE"
	TransactionSourceRefund        TransactionSource = "REFUND"
	TransactionSourceTopUp         TransactionSource = "TOPUP"
	TransactionSourceDeliveryFee   TransactionSource = "DELIVERY_FEE"
)

var validTransactionSources = []TransactionSource{
	TransactionSourceOrderPayment,
	TransactionSourceCommission,
	TransactionSourceWithdrawal,
	TransactionSourceWithdrawalFee,
	TransactionSourceRefund,
	TransactionSourceTopUp,
	TransactionSourceDeliveryFee,
}

// IsValid reports whether the value matches a known transaction source.
func (s TransactionSource) IsValid() bool {
	for _, candidate := range validTransactionSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionSource converts raw input into TransactionSource.
func ParseTransactionSource(value string) (TransactionSource, error) {
	for _, candidate := range validTransactionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction source %q", value)
}

// TransactionStatus tracks whether a ledger entry has taken effect.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsValid reports whether the value matches a known transaction status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}
