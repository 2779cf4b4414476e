package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Validate checks the cross-field rules envconfig cannot express. Every
// violation is reported, not only the first.
func (c *Config) Validate() error {
	var err error
	if _, parseErr := uuid.Parse(c.Settlement.PlatformAccountID); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s must be a uuid: %w", EnvPlatformAccountID, parseErr))
	}
	err = multierr.Append(err, checkRate("MARKETPLACE_COMMISSION_DEFAULT_RATE", c.Settlement.DefaultRate))
	for role, rate := range c.Settlement.CommissionRates {
		err = multierr.Append(err, checkRate(EnvCommissionRates+"["+role+"]", rate))
	}
	err = multierr.Append(err, checkRate("MARKETPLACE_WITHDRAWAL_FEE_RATE", c.Withdrawal.FeeRate))
	if c.Withdrawal.MinimumCents < 0 || c.Withdrawal.FlatFeeCents < 0 {
		err = multierr.Append(err, fmt.Errorf("withdrawal minimum and flat fee must not be negative"))
	}
	if c.Cron.JobTimeout > 0 && c.Cron.LockTTL > 0 && c.Cron.JobTimeout >= c.Cron.LockTTL {
		err = multierr.Append(err, fmt.Errorf("cron job timeout %s must be shorter than the lock ttl %s", c.Cron.JobTimeout, c.Cron.LockTTL))
	}
	return err
}

// checkRate accepts a decimal fraction in [0, 1].
func checkRate(name, value string) error {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not a decimal", name, value)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s: %s is outside [0, 1]", name, value)
	}
	return nil
}
