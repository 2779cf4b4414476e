package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
)

const defaultReconcileBatchSize = 500

// Reconcile check names, used as the mismatch metric label.
const (
	checkLifetimeTotals = "lifetime_totals"
	checkLedgerHeld     = "ledger_held"
	checkLedgerBalance  = "ledger_available"
)

type walletLister interface {
	ListAll(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error)
}

type ledgerTotals interface {
	Totals(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (ledger.Totals, error)
}

type WalletReconcileJobParams struct {
	Logger    *logger.Logger
	Wallets   walletLister
	Ledger    ledgerTotals
	Metrics   *metrics.LedgerMetrics
	BatchSize int
}

func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &walletReconcileJob{
		logg:      params.Logger,
		wallets:   params.Wallets,
		ledger:    params.Ledger,
		metrics:   params.Metrics,
		batchSize: batch,
	}, nil
}

// walletReconcileJob compares every wallet's cached balances with its lifetime
// totals and with the ledger rows behind it. It only reports; it never repairs.
type walletReconcileJob struct {
	logg      *logger.Logger
	wallets   walletLister
	ledger    ledgerTotals
	metrics   *metrics.LedgerMetrics
	batchSize int
}

func (j *walletReconcileJob) Name() string { return "wallet_reconcile" }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	var (
		errs    error
		checked int
		after   uuid.UUID
	)
	for {
		batch, err := j.wallets.ListAll(ctx, after, j.batchSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets: %w", err))
		}
		for _, wallet := range batch {
			checked++
			errs = multierr.Append(errs, j.check(ctx, wallet))
		}
		if len(batch) < j.batchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"wallets_checked": checked,
		"mismatches":      len(multierr.Errors(errs)),
	}), "wallet reconcile finished")
	return errs
}

func (j *walletReconcileJob) check(ctx context.Context, wallet models.Wallet) error {
	totals, err := j.ledger.Totals(ctx, wallet.AccountID, wallet.Role)
	if err != nil {
		return fmt.Errorf("wallet %s: ledger totals: %w", wallet.ID, err)
	}
	held := wallet.BalanceCents + wallet.PendingBalanceCents

	var errs error
	if !wallet.Reconciles() {
		errs = multierr.Append(errs, j.mismatch(ctx, wallet, checkLifetimeTotals,
			wallet.TotalEarnedCents-wallet.TotalWithdrawnCents, held))
	}
	if totals.Held() != held {
		errs = multierr.Append(errs, j.mismatch(ctx, wallet, checkLedgerHeld, totals.Held(), held))
	}
	if totals.Available() != wallet.BalanceCents {
		errs = multierr.Append(errs, j.mismatch(ctx, wallet, checkLedgerBalance, totals.Available(), wallet.BalanceCents))
	}
	return errs
}

func (j *walletReconcileJob) mismatch(ctx context.Context, wallet models.Wallet, check string, expected, actual int64) error {
	j.metrics.IncReconcileMismatch(check)
	err := fmt.Errorf("wallet %s (%s/%s) %s: expected %d, wallet holds %d",
		wallet.ID, wallet.AccountID, wallet.Role, check, expected, actual)
	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"wallet_id":      wallet.ID.String(),
		"account_id":     wallet.AccountID.String(),
		"role":           wallet.Role,
		"check":          check,
		"expected_cents": expected,
		"actual_cents":   actual,
	}), "wallet reconcile mismatch")
	return err
}
