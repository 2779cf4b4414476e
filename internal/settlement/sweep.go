package settlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
)

// SweepResult counts what one ResumeUnsettled pass did.
type SweepResult struct {
	Scanned int
	Resumed int
	Failed  int
}

// ResumeUnsettled replays settlement for PAID orders that were confirmed more
// than olderThan ago and still have PENDING child orders.
func (s *service) ResumeUnsettled(ctx context.Context, olderThan time.Duration, limit int) (*SweepResult, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	candidates, err := s.orders.ListPaidOrdersWithUnsettledChildren(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unsettled orders")
	}

	result := &SweepResult{Scanned: len(candidates)}
	var errs error
	for _, order := range candidates {
		reference := ""
		if order.PaymentReference != nil {
			reference = *order.PaymentReference
		}
		if _, err := s.SettlePayment(ctx, SettlePaymentInput{
			OrderID:           order.ID,
			ExternalReference: reference,
		}); err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		result.Resumed++
	}
	return result, errs
}
