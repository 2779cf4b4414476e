package withdrawals

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FeeSchedule prices a withdrawal as a flat fee plus a proportional fee.
type FeeSchedule struct {
	FlatCents int64
	Rate      decimal.Decimal
}

// NewFeeSchedule parses the configured fee. The rate must sit in [0, 1).
func NewFeeSchedule(flatCents int64, rate string) (FeeSchedule, error) {
	if flatCents < 0 {
		return FeeSchedule{}, fmt.Errorf("flat withdrawal fee must be non-negative, got %d", flatCents)
	}
	parsed := decimal.Zero
	if trimmed := strings.TrimSpace(rate); trimmed != "" {
		var err error
		parsed, err = decimal.NewFromString(trimmed)
		if err != nil {
			return FeeSchedule{}, fmt.Errorf("parse withdrawal fee rate %q: %w", rate, err)
		}
	}
	if parsed.IsNegative() || parsed.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeSchedule{}, fmt.Errorf("withdrawal fee rate must be in [0, 1), got %s", parsed)
	}
	return FeeSchedule{FlatCents: flatCents, Rate: parsed}, nil
}

// Fee returns flat + round_half_up(amount × rate).
func (f FeeSchedule) Fee(amountCents int64) int64 {
	return f.FlatCents + decimal.NewFromInt(amountCents).Mul(f.Rate).Round(0).IntPart()
}
