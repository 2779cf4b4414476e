package enums

import "fmt"

// PaymentState maps to the payment_state column on orders.
type PaymentState string

const (
	PaymentStatePending PaymentState = "PENDING"
	PaymentStatePaid    PaymentState = "PAID"
	PaymentStateFailed  PaymentState = "FAILED"
)

var validPaymentStates = []PaymentState{
	PaymentStatePending,
	PaymentStatePaid,
	PaymentStateFailed,
}

// IsValid reports whether the value matches a known payment state.
func (p PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentState converts raw input into PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
