package enums

import "fmt"

// ChildOrderStatus tracks a vendor's slice of an order from payment to delivery.
type ChildOrderStatus string

const (
	ChildOrderStatusPending   ChildOrderStatus = "PENDING"
	ChildOrderStatusPaid      ChildOrderStatus = "PAID"
	ChildOrderStatusPreparing ChildOrderStatus = "PREPARING"
	ChildOrderStatusReady     ChildOrderStatus = "READY"
	ChildOrderStatusDelivered ChildOrderStatus = "DELIVERED"
	ChildOrderStatusCancelled ChildOrderStatus = "CANCELLED"
)

var validChildOrderStatuses = []ChildOrderStatus{
	ChildOrderStatusPending,
	ChildOrderStatusPaid,
	ChildOrderStatusPreparing,
	ChildOrderStatusReady,
	ChildOrderStatusDelivered,
	ChildOrderStatusCancelled,
}

// IsValid reports whether the value matches a known child order status.
func (s ChildOrderStatus) IsValid() bool {
	for _, candidate := range validChildOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsSettled reports whether the child order has already been credited.
// Every status past PAID implies settlement happened.
func (s ChildOrderStatus) IsSettled() bool {
	switch s {
	case ChildOrderStatusPaid, ChildOrderStatusPreparing, ChildOrderStatusReady, ChildOrderStatusDelivered:
		return true
	}
	return false
}

// ParseChildOrderStatus converts raw input into ChildOrderStatus.
func ParseChildOrderStatus(value string) (ChildOrderStatus, error) {
	for _, candidate := range validChildOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid child order status %q", value)
}
