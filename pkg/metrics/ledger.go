package metrics

import "github.com/prometheus/client_golang/prometheus"

// Settlement outcomes per child order.
const (
	OutcomeSettled = "settled"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Withdrawal request outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeRejected     = "rejected"
	OutcomeInsufficient = "insufficient_balance"
)

// LedgerMetrics counts money movements driven by settlement, withdrawals and
// reconciliation.
type LedgerMetrics struct {
	childOrders  *prometheus.CounterVec
	withdrawals  *prometheus.CounterVec
	mismatches   *prometheus.CounterVec
	creditsCents *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	childOrders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_child_orders_total",
		Help: "Child orders processed by settlement, by outcome.",
	}, []string{"outcome"})
	withdrawals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawal_requests_total",
		Help: "Withdrawal requests, by outcome.",
	}, []string{"outcome"})
	mismatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_reconcile_mismatch_total",
		Help: "Wallets failing a reconciliation identity, by check.",
	}, []string{"check"})
	creditsCents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_credits_cents_total",
		Help: "Minor units credited to wallets, by wallet role.",
	}, []string{"role"})
	reg.MustRegister(childOrders, withdrawals, mismatches, creditsCents)
	return &LedgerMetrics{
		childOrders:  childOrders,
		withdrawals:  withdrawals,
		mismatches:   mismatches,
		creditsCents: creditsCents,
	}
}

// IncChildOrder counts one child order settlement attempt.
func (m *LedgerMetrics) IncChildOrder(outcome string) {
	if m == nil || m.childOrders == nil {
		return
	}
	m.childOrders.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWithdrawal counts one withdrawal request.
func (m *LedgerMetrics) IncWithdrawal(outcome string) {
	if m == nil || m.withdrawals == nil {
		return
	}
	m.withdrawals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReconcileMismatch counts one wallet failing the named check.
func (m *LedgerMetrics) IncReconcileMismatch(check string) {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.WithLabelValues(normalizeLabel(check)).Inc()
}

// AddCredit records credited minor units for a wallet role.
func (m *LedgerMetrics) AddCredit(role string, cents int64) {
	if m == nil || m.creditsCents == nil || cents <= 0 {
		return
	}
	m.creditsCents.WithLabelValues(normalizeLabel(role)).Add(float64(cents))
}
