package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregateChildOrder OutboxAggregateType = "child_order"
	AggregateWithdrawal OutboxAggregateType = "withdrawal"
)

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateOrder, AggregateChildOrder, AggregateWithdrawal:
		return true
	}
	return false
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderPaid           OutboxEventType = "order_paid"
	EventPaymentSettled      OutboxEventType = "payment_settled"
	EventPaymentFailed       OutboxEventType = "payment_failed"
	EventWithdrawalRequested OutboxEventType = "withdrawal_requested"
	EventWithdrawalCompleted OutboxEventType = "withdrawal_completed"
	EventWithdrawalReversed  OutboxEventType = "withdrawal_reversed"
)

// eventAggregates pins every event type to the aggregate whose id it carries.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderPaid:           AggregateOrder,
	EventPaymentFailed:       AggregateOrder,
	EventPaymentSettled:      AggregateChildOrder,
	EventWithdrawalRequested: AggregateWithdrawal,
	EventWithdrawalCompleted: AggregateWithdrawal,
	EventWithdrawalReversed:  AggregateWithdrawal,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type rows of this event must carry, or ""
// for unknown event types.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
