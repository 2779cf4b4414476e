package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/internal/wallets"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Options carries the configured withdrawal policy.
type Options struct {
	MinimumCents int64
	Fees         FeeSchedule
}

// RequestInput is an account holder asking to pay out part of a wallet.
type RequestInput struct {
	AccountID   uuid.UUID
	Role        enums.WalletRole
	AmountCents int64
	BankDetails types.BankDetails
}

// Service runs the two-phase withdrawal workflow: funds are reserved into the
// wallet's pending balance on request and either finalized or released later.
type Service interface {
	RequestWithdrawal(ctx context.Context, input RequestInput) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Withdrawal, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Complete(ctx context.Context, id uuid.UUID, payoutReference string) (*models.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error)
}

type service struct {
	tx                txRunner
	repo              Repository
	walletRepo        wallets.Repository
	wallets           wallets.Service
	ledger            ledger.Service
	outbox            outboxPublisher
	metrics           *metrics.LedgerMetrics
	logg              *logger.Logger
	platformAccountID uuid.UUID
	opts              Options
	now               func() time.Time
}

// NewService wires the withdrawal workflow. Withdrawal fees are credited to the
// platform wallet owned by platformAccountID when a payout completes.
func NewService(
	tx txRunner,
	repo Repository,
	walletRepo wallets.Repository,
	walletSvc wallets.Service,
	ledgerSvc ledger.Service,
	publisher outboxPublisher,
	ledgerMetrics *metrics.LedgerMetrics,
	logg *logger.Logger,
	platformAccountID uuid.UUID,
	opts Options,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "withdrawals repository required")
	}
	if walletRepo == nil || walletSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet repository and service required")
	}
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if platformAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform account id required")
	}
	if opts.MinimumCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "minimum withdrawal must be non-negative")
	}
	return &service{
		tx:                tx,
		repo:              repo,
		walletRepo:        walletRepo,
		wallets:           walletSvc,
		ledger:            ledgerSvc,
		outbox:            publisher,
		metrics:           ledgerMetrics,
		logg:              logg,
		platformAccountID: platformAccountID,
		opts:              opts,
		now:               time.Now,
	}, nil
}

// RequestWithdrawal reserves the gross amount and records the net payout and
// the fee as PENDING debits, all in one database transaction.
func (s *service) RequestWithdrawal(ctx context.Context, input RequestInput) (*models.Withdrawal, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet role "+string(input.Role))
	}
	if err := validateBankDetails(input.BankDetails); err != nil {
		return nil, err
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}
	if input.AmountCents < s.opts.MinimumCents {
		s.metrics.IncWithdrawal(metrics.OutcomeRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrBelowMinimumWithdrawal,
			fmt.Sprintf("minimum withdrawal is %d", s.opts.MinimumCents)).
			WithDetails(map[string]any{"minimum_cents": s.opts.MinimumCents})
	}
	fee := s.opts.Fees.Fee(input.AmountCents)
	if fee >= input.AmountCents {
		s.metrics.IncWithdrawal(metrics.OutcomeRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrFeeExceedsAmount,
			fmt.Sprintf("fee %d leaves nothing to pay out", fee))
	}
	net := input.AmountCents - fee

	ctx = s.withLogFields(ctx, map[string]any{
		"account_id":   input.AccountID.String(),
		"role":         input.Role,
		"amount_cents": input.AmountCents,
	})

	wallet, err := s.walletRepo.Find(ctx, input.AccountID, input.Role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrWalletNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet.BalanceCents < input.AmountCents {
		s.metrics.IncWithdrawal(metrics.OutcomeInsufficient)
		return nil, insufficient(wallet.BalanceCents)
	}

	now := s.now().UTC()
	withdrawal := &models.Withdrawal{
		ID:             uuid.New(),
		AccountID:      input.AccountID,
		Role:           input.Role,
		AmountCents:    input.AmountCents,
		FeeCents:       fee,
		NetAmountCents: net,
		Status:         enums.WithdrawalStatusPending,
		BankDetails:    input.BankDetails,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, withdrawal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create withdrawal")
		}
		reserved, err := s.walletRepo.WithTx(tx).Reserve(ctx, input.AccountID, input.Role, input.AmountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve funds")
		}
		if !reserved {
			// balance moved between the check and the reservation
			return insufficient(-1)
		}
		withdrawalID := withdrawal.ID
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			Type:              enums.TransactionTypeDebit,
			Source:            enums.TransactionSourceWithdrawal,
			Status:            enums.TransactionStatusPending,
			AmountCents:       net,
			AccountID:         input.AccountID,
			Role:              input.Role,
			WithdrawalID:      &withdrawalID,
			ExternalReference: ledger.WithdrawalReference(withdrawalID),
			Description:       "payout to " + input.BankDetails.Masked().AccountNumber,
		}); err != nil {
			return err
		}
		if fee > 0 {
			if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
				Type:              enums.TransactionTypeDebit,
				Source:            enums.TransactionSourceWithdrawalFee,
				Status:            enums.TransactionStatusPending,
				AmountCents:       fee,
				AccountID:         input.AccountID,
				Role:              input.Role,
				WithdrawalID:      &withdrawalID,
				ExternalReference: ledger.WithdrawalFeeReference(withdrawalID),
				Description:       "withdrawal fee",
			}); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{AccountID: input.AccountID, Role: string(input.Role)},
			OccurredAt:    now,
			Data: payloads.WithdrawalRequestedEvent{
				WithdrawalID:   withdrawal.ID,
				AccountID:      input.AccountID,
				Role:           input.Role,
				AmountCents:    input.AmountCents,
				FeeCents:       fee,
				NetAmountCents: net,
			},
		})
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.metrics.IncWithdrawal(metrics.OutcomeInsufficient)
			return nil, err
		}
		if s.logg != nil {
			s.logg.Error(ctx, "withdrawal request failed", err)
		}
		return nil, asCoded(err, "request withdrawal")
	}

	s.metrics.IncWithdrawal(metrics.OutcomeAccepted)
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"withdrawal_id": withdrawal.ID.String(),
			"fee_cents":     fee,
		}), "withdrawal requested")
	}
	return withdrawal, nil
}

func (s *service) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id is required")
	}
	withdrawal, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrWithdrawalNotFound, "withdrawal not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal")
	}
	return withdrawal, nil
}

func (s *service) ListWithdrawals(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Withdrawal, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	rows, err := s.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list withdrawals")
	}
	return rows, nil
}

// MarkProcessing records that the payout process picked the request up.
func (s *service) MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return s.transition(ctx, id, transitionRule{
		from: []enums.WithdrawalStatus{enums.WithdrawalStatusPending},
		to:   enums.WithdrawalStatusProcessing,
		fields: func(now time.Time) map[string]any {
			return map[string]any{"processed_at": now}
		},
	})
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return s.transition(ctx, id, transitionRule{
		from: []enums.WithdrawalStatus{enums.WithdrawalStatusPending, enums.WithdrawalStatusProcessing},
		to:   enums.WithdrawalStatusApproved,
		fields: func(now time.Time) map[string]any {
			return map[string]any{"processed_at": gorm.Expr("COALESCE(processed_at, ?)", now)}
		},
	})
}

// Complete finalizes the reservation, settles the PENDING debits and credits
// the fee to the platform wallet.
func (s *service) Complete(ctx context.Context, id uuid.UUID, payoutReference string) (*models.Withdrawal, error) {
	reference := strings.TrimSpace(payoutReference)
	return s.transition(ctx, id, transitionRule{
		from: []enums.WithdrawalStatus{enums.WithdrawalStatusProcessing, enums.WithdrawalStatusApproved},
		to:   enums.WithdrawalStatusCompleted,
		fields: func(now time.Time) map[string]any {
			fields := map[string]any{
				"completed_at": now,
				"processed_at": gorm.Expr("COALESCE(processed_at, ?)", now),
			}
			if reference != "" {
				fields["payout_reference"] = reference
			}
			return fields
		},
		apply: func(ctx context.Context, tx *gorm.DB, w *models.Withdrawal, now time.Time) error {
			finalized, err := s.walletRepo.WithTx(tx).Finalize(ctx, w.AccountID, w.Role, w.AmountCents)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize reservation")
			}
			if !finalized {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrReservationMissing, "reserved funds not found")
			}
			if _, err := s.ledger.SettleWithdrawal(ctx, tx, w.ID, enums.TransactionStatusCompleted); err != nil {
				return err
			}
			if w.FeeCents > 0 {
				withdrawalID := w.ID
				if _, err := s.wallets.CreditWithLedger(ctx, tx, wallets.CreditInput{
					AccountID:         s.platformAccountID,
					Role:              enums.WalletRolePlatform,
					AmountCents:       w.FeeCents,
					Source:            enums.TransactionSourceWithdrawalFee,
					WithdrawalID:      &withdrawalID,
					ExternalReference: ledger.WithdrawalFeeIncomeReference(w.ID),
					Description:       "withdrawal fee income",
				}); err != nil {
					return err
				}
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventWithdrawalCompleted,
				AggregateType: enums.AggregateWithdrawal,
				AggregateID:   w.ID,
				OccurredAt:    now,
				Data: payloads.WithdrawalCompletedEvent{
					WithdrawalID:    w.ID,
					AccountID:       w.AccountID,
					Role:            w.Role,
					AmountCents:     w.AmountCents,
					PayoutReference: reference,
					CompletedAt:     now,
				},
			})
		},
		after: func(w *models.Withdrawal) {
			s.metrics.AddCredit(string(enums.WalletRolePlatform), w.FeeCents)
		},
	})
}

// Reject returns the reserved funds after an operator declines the request.
func (s *service) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error) {
	return s.reverse(ctx, id, enums.WithdrawalStatusRejected, reason)
}

// Fail returns the reserved funds after the payout process could not pay out.
func (s *service) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error) {
	return s.reverse(ctx, id, enums.WithdrawalStatusFailed, reason)
}

func (s *service) reverse(ctx context.Context, id uuid.UUID, to enums.WithdrawalStatus, reason string) (*models.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, id, transitionRule{
		from: []enums.WithdrawalStatus{
			enums.WithdrawalStatusPending,
			enums.WithdrawalStatusProcessing,
			enums.WithdrawalStatusApproved,
		},
		to: to,
		fields: func(now time.Time) map[string]any {
			fields := map[string]any{"processed_at": gorm.Expr("COALESCE(processed_at, ?)", now)}
			if reason != "" {
				fields["failure_reason"] = reason
			}
			return fields
		},
		apply: func(ctx context.Context, tx *gorm.DB, w *models.Withdrawal, now time.Time) error {
			released, err := s.walletRepo.WithTx(tx).Release(ctx, w.AccountID, w.Role, w.AmountCents)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservation")
			}
			if !released {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrReservationMissing, "reserved funds not found")
			}
			if _, err := s.ledger.SettleWithdrawal(ctx, tx, w.ID, enums.TransactionStatusFailed); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventWithdrawalReversed,
				AggregateType: enums.AggregateWithdrawal,
				AggregateID:   w.ID,
				OccurredAt:    now,
				Data: payloads.WithdrawalReversedEvent{
					WithdrawalID: w.ID,
					AccountID:    w.AccountID,
					Role:         w.Role,
					AmountCents:  w.AmountCents,
					Status:       to,
					Reason:       reason,
				},
			})
		},
	})
}

type transitionRule struct {
	from   []enums.WithdrawalStatus
	to     enums.WithdrawalStatus
	fields func(now time.Time) map[string]any
	apply  func(ctx context.Context, tx *gorm.DB, w *models.Withdrawal, now time.Time) error
	after  func(w *models.Withdrawal)
}

// transition moves a withdrawal with a conditional update and runs the side
// effects on the same transaction. Replaying a transition that already
// happened returns the current record without side effects.
func (s *service) transition(ctx context.Context, id uuid.UUID, rule transitionRule) (*models.Withdrawal, error) {
	current, err := s.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = s.withLogFields(ctx, map[string]any{
		"withdrawal_id": id.String(),
		"account_id":    current.AccountID.String(),
		"role":          current.Role,
		"from_status":   current.Status,
		"to_status":     rule.to,
	})
	if current.Status == rule.to {
		return current, nil
	}
	if !statusIn(current.Status, rule.from) {
		return nil, transitionConflict(current.Status, rule.to)
	}

	now := s.now().UTC()
	var won bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		won, err = s.repo.WithTx(tx).Transition(ctx, id, rule.from, rule.to, rule.fields(now))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update withdrawal status")
		}
		if !won || rule.apply == nil {
			return nil
		}
		return rule.apply(ctx, tx, current, now)
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "withdrawal transition failed", err)
		}
		return nil, asCoded(err, "withdrawal transition")
	}

	updated, err := s.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !won {
		if updated.Status == rule.to {
			return updated, nil
		}
		return nil, transitionConflict(updated.Status, rule.to)
	}
	if rule.after != nil {
		rule.after(updated)
	}
	s.info(ctx, "withdrawal status changed")
	return updated, nil
}

func statusIn(status enums.WithdrawalStatus, set []enums.WithdrawalStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func transitionConflict(from, to enums.WithdrawalStatus) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInvalidTransition,
		fmt.Sprintf("cannot move withdrawal from %s to %s", from, to)).
		WithDetails(map[string]any{"status": from})
}

func insufficient(balanceCents int64) error {
	err := pkgerrors.Wrap(pkgerrors.CodeInsufficient, ErrInsufficientBalance, "insufficient balance")
	if balanceCents >= 0 {
		err = err.WithDetails(map[string]any{"balance_cents": balanceCents})
	}
	return err
}

func validateBankDetails(details types.BankDetails) error {
	missing := []string{}
	if strings.TrimSpace(details.AccountName) == "" {
		missing = append(missing, "account_name")
	}
	if strings.TrimSpace(details.AccountNumber) == "" {
		missing = append(missing, "account_number")
	}
	if strings.TrimSpace(details.BankCode) == "" {
		missing = append(missing, "bank_code")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "bank details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func asCoded(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func (s *service) withLogFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
