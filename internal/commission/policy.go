package commission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// DefaultRates is the rate table applied when configuration does not override a role.
var DefaultRates = map[enums.VendorRole]decimal.Decimal{
	enums.VendorRoleChef:      decimal.RequireFromString("0.15"),
	enums.VendorRoleVendor:    decimal.RequireFromString("0.10"),
	enums.VendorRolePharmacy:  decimal.RequireFromString("0.10"),
	enums.VendorRoleTopVendor: decimal.RequireFromString("0.08"),
	enums.VendorRoleRider:     decimal.RequireFromString("0.20"),
}

// DefaultFallbackRate applies to roles missing from the table.
var DefaultFallbackRate = decimal.RequireFromString("0.10")

var one = decimal.NewFromInt(1)

// rateScale matches the numeric(5,4) column the rate is captured into.
const rateScale = 4

// Policy maps vendor roles to commission rates. It is immutable once built.
type Policy struct {
	rates    map[enums.VendorRole]decimal.Decimal
	fallback decimal.Decimal
}

// Split is the commission breakdown of one child order subtotal.
type Split struct {
	Rate            decimal.Decimal
	CommissionCents int64
	VendorCents     int64
}

// NewPolicy builds a policy from the provided rates. Every rate must sit in
// [0, 1) with at most four decimal places.
func NewPolicy(rates map[enums.VendorRole]decimal.Decimal, fallback decimal.Decimal) (*Policy, error) {
	if err := validateRate("default", fallback); err != nil {
		return nil, err
	}
	copied := make(map[enums.VendorRole]decimal.Decimal, len(rates))
	for role, rate := range rates {
		if !role.IsValid() {
			return nil, fmt.Errorf("unknown vendor role %q", role)
		}
		if err := validateRate(string(role), rate); err != nil {
			return nil, err
		}
		copied[role] = rate
	}
	return &Policy{rates: copied, fallback: fallback}, nil
}

// NewPolicyFromConfig layers the configured overrides on top of DefaultRates.
// Keys are vendor roles, values are decimal fractions such as "0.15".
func NewPolicyFromConfig(overrides map[string]string, fallback string) (*Policy, error) {
	rates := make(map[enums.VendorRole]decimal.Decimal, len(DefaultRates))
	for role, rate := range DefaultRates {
		rates[role] = rate
	}
	for rawRole, rawRate := range overrides {
		role, err := enums.ParseVendorRole(rawRole)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(rawRate))
		if err != nil {
			return nil, fmt.Errorf("invalid commission rate %q for %s: %w", rawRate, role, err)
		}
		rates[role] = rate
	}

	fallbackRate := DefaultFallbackRate
	if strings.TrimSpace(fallback) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid default commission rate %q: %w", fallback, err)
		}
		fallbackRate = parsed
	}
	return NewPolicy(rates, fallbackRate)
}

// Rate returns the commission fraction for role; unknown roles get the default rate.
func (p *Policy) Rate(role enums.VendorRole) decimal.Decimal {
	if rate, ok := p.rates[role]; ok {
		return rate
	}
	return p.fallback
}

// Split computes commission = round_half_up(subtotal x rate) in minor units and
// leaves the remainder to the vendor so the two always sum to the subtotal.
func (p *Policy) Split(subtotalCents int64, role enums.VendorRole) Split {
	rate := p.Rate(role)
	return SplitAt(subtotalCents, rate)
}

// SplitAt applies an explicit rate, used when replaying a rate already captured
// on a child order.
func SplitAt(subtotalCents int64, rate decimal.Decimal) Split {
	if subtotalCents <= 0 {
		return Split{Rate: rate}
	}
	commission := decimal.NewFromInt(subtotalCents).Mul(rate).Round(0).IntPart()
	if commission > subtotalCents {
		commission = subtotalCents
	}
	return Split{
		Rate:            rate,
		CommissionCents: commission,
		VendorCents:     subtotalCents - commission,
	}
}

// Rates returns a copy of the configured table, ordered by role for logging.
func (p *Policy) Rates() map[string]string {
	out := make(map[string]string, len(p.rates)+1)
	roles := make([]string, 0, len(p.rates))
	for role := range p.rates {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	for _, role := range roles {
		out[role] = p.rates[enums.VendorRole(role)].String()
	}
	out["default"] = p.fallback.String()
	return out
}

func validateRate(label string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return fmt.Errorf("commission rate for %s must be in [0, 1), got %s", label, rate.String())
	}
	if !rate.Equal(rate.Round(rateScale)) {
		return fmt.Errorf("commission rate for %s allows at most %d decimal places, got %s", label, rateScale, rate.String())
	}
	return nil
}
