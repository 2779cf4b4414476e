package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.IncChildOrder(OutcomeSettled)
	m.IncChildOrder(OutcomeSettled)
	m.IncChildOrder(OutcomeFailed)
	m.IncWithdrawal(OutcomeInsufficient)
	m.IncReconcileMismatch("ledger_total")
	m.AddCredit("chef", 8500)
	m.AddCredit("chef", 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	settled, err := fetchCounterValue(mfs, "settlement_child_orders_total", "outcome", OutcomeSettled)
	require.NoError(t, err)
	assert.Equal(t, 2.0, settled)

	failed, err := fetchCounterValue(mfs, "settlement_child_orders_total", "outcome", OutcomeFailed)
	require.NoError(t, err)
	assert.Equal(t, 1.0, failed)

	insufficient, err := fetchCounterValue(mfs, "withdrawal_requests_total", "outcome", OutcomeInsufficient)
	require.NoError(t, err)
	assert.Equal(t, 1.0, insufficient)

	mismatch, err := fetchCounterValue(mfs, "wallet_reconcile_mismatch_total", "check", "ledger_total")
	require.NoError(t, err)
	assert.Equal(t, 1.0, mismatch)

	credits, err := fetchCounterValue(mfs, "wallet_credits_cents_total", "role", "chef")
	require.NoError(t, err)
	assert.Equal(t, 8500.0, credits)
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncChildOrder(OutcomeSettled)
	m.IncWithdrawal(OutcomeAccepted)
	m.IncReconcileMismatch("x")
	m.AddCredit("chef", 1)
}

func TestLedgerMetricsLabelsBlankValuesUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.IncChildOrder("")
	m.IncReconcileMismatch("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	outcome, err := fetchCounterValue(mfs, "settlement_child_orders_total", "outcome", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, outcome)

	check, err := fetchCounterValue(mfs, "wallet_reconcile_mismatch_total", "check", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, check)
}
