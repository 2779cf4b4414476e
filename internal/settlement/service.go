package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/internal/commission"
	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/internal/orders"
	"github.com/angelmondragon/marketplace-ledger/internal/wallets"
	"github.com/angelmondragon/marketplace-ledger/pkg/db"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Outcome summarizes what a SettlePayment call did to the order.
type Outcome string

const (
	OutcomeSettled                  Outcome = "SETTLED"
	OutcomeResumed                  Outcome = "RESUMED"
	OutcomeAlreadySettled           Outcome = "ALREADY_SETTLED"
	OutcomeConcurrentSettlementLost Outcome = "CONCURRENT_SETTLEMENT_LOST"
)

// SettlePaymentInput is a confirmed customer payment for one order.
// AmountCents is checked against the order total when positive.
type SettlePaymentInput struct {
	OrderID           uuid.UUID
	ExternalReference string
	AmountCents       int64
}

// ChildResult reports one child order's split and whether this call settled it.
type ChildResult struct {
	ChildOrderID      uuid.UUID
	VendorID          uuid.UUID
	VendorRole        enums.VendorRole
	Outcome           string
	CommissionRate    string
	CommissionCents   int64
	VendorAmountCents int64
}

// Result is returned for every successful or partially successful settlement.
type Result struct {
	OrderID      uuid.UUID
	Outcome      Outcome
	Transitioned bool
	// ReferenceMismatch is set when the order was already paid under a
	// different payment reference than the one confirmed here.
	ReferenceMismatch bool
	Children          []ChildResult
}

// FailPaymentInput is a gateway report that the customer payment failed.
type FailPaymentInput struct {
	OrderID           uuid.UUID
	ExternalReference string
	Reason            string
}

// FailResult reports the order's payment state after FailPayment.
type FailResult struct {
	OrderID      uuid.UUID
	PaymentState enums.PaymentState
	Transitioned bool
}

// Summary is the settlement view of an order for operators.
type Summary struct {
	Order        *models.Order
	Transactions []models.Transaction
}

// Service settles customer payments into vendor and platform wallets.
type Service interface {
	SettlePayment(ctx context.Context, input SettlePaymentInput) (*Result, error)
	FailPayment(ctx context.Context, input FailPaymentInput) (*FailResult, error)
	GetSettlement(ctx context.Context, orderID uuid.UUID) (*Summary, error)
	ResumeUnsettled(ctx context.Context, olderThan time.Duration, limit int) (*SweepResult, error)
}

type service struct {
	tx                txRunner
	orders            orders.Repository
	wallets           wallets.Service
	ledger            ledger.Service
	policy            *commission.Policy
	outbox            outboxPublisher
	metrics           *metrics.LedgerMetrics
	logg              *logger.Logger
	platformAccountID uuid.UUID
	now               func() time.Time
}

// NewService builds the settlement engine. Commission is credited to the
// platform wallet owned by platformAccountID.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	walletSvc wallets.Service,
	ledgerSvc ledger.Service,
	policy *commission.Policy,
	publisher outboxPublisher,
	ledgerMetrics *metrics.LedgerMetrics,
	logg *logger.Logger,
	platformAccountID uuid.UUID,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if ordersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if walletSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet service required")
	}
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if policy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission policy required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if platformAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform account id required")
	}
	return &service{
		tx:                tx,
		orders:            ordersRepo,
		wallets:           walletSvc,
		ledger:            ledgerSvc,
		policy:            policy,
		outbox:            publisher,
		metrics:           ledgerMetrics,
		logg:              logg,
		platformAccountID: platformAccountID,
		now:               time.Now,
	}, nil
}

// SettlePayment applies a payment confirmation exactly once per child order.
//
// The order moves to PAID with a conditional update; a caller that loses that
// race returns success without touching child orders. Each PENDING child is
// then settled in its own transaction behind its own conditional update, so a
// failure rolls back that vendor only and a later retry finishes the rest.
func (s *service) SettlePayment(ctx context.Context, input SettlePaymentInput) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	reference := strings.TrimSpace(input.ExternalReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	ctx = s.withLogFields(ctx, map[string]any{
		"order_id":           input.OrderID.String(),
		"external_reference": reference,
	})

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.AmountCents > 0 && input.AmountCents != order.TotalAmountCents {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrAmountMismatch,
			fmt.Sprintf("payment amount %d does not match order total %d", input.AmountCents, order.TotalAmountCents))
	}
	if len(order.ChildOrders) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrChildOrderNotFound, "order has no child orders")
	}

	result := &Result{OrderID: order.ID, Outcome: OutcomeResumed}

	if order.PaymentState == enums.PaymentStatePaid {
		if stored := storedReference(order); stored != reference {
			result.ReferenceMismatch = true
			s.warn(s.withLogFields(ctx, map[string]any{"stored_reference": stored}),
				"payment confirmation reference differs from the reference the order was paid with")
		}
		if !hasPendingChildren(order.ChildOrders) {
			s.info(ctx, "payment confirmation replayed for settled order")
			result.Outcome = OutcomeAlreadySettled
			result.Children = skippedChildren(order.ChildOrders)
			return result, nil
		}
		s.info(ctx, "resuming settlement of paid order")
	} else {
		won, err := s.markOrderPaid(ctx, order, reference)
		if err != nil {
			return nil, err
		}
		if !won {
			s.info(ctx, "payment confirmation lost the order transition")
			result.Outcome = OutcomeConcurrentSettlementLost
			return result, nil
		}
		result.Outcome = OutcomeSettled
		result.Transitioned = true
	}

	var errs error
	for _, child := range order.ChildOrders {
		childResult, err := s.settleChild(ctx, order, child)
		result.Children = append(result.Children, childResult)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("child order %s: %w", child.ID, err))
		}
	}
	if errs != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "settlement incomplete", errs)
		}
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrLedgerWriteFailed, errs), "settlement incomplete, retry the confirmation")
	}
	s.info(ctx, "order settled")
	return result, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) markOrderPaid(ctx context.Context, order *models.Order, reference string) (bool, error) {
	paidAt := s.now().UTC()
	var won bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		won, err = s.orders.WithTx(tx).MarkOrderPaid(ctx, order.ID, reference, paidAt)
		if err != nil || !won {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    paidAt,
			Data: payloads.OrderPaidEvent{
				OrderID:          order.ID,
				PaymentReference: reference,
				TotalAmountCents: order.TotalAmountCents,
				ChildOrderCount:  len(order.ChildOrders),
				PaidAt:           paidAt,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolationAny(err, "ux_orders_payment_reference", "orders.payment_reference") {
			return false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment reference already used by another order")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	return won, nil
}

func (s *service) settleChild(ctx context.Context, order *models.Order, child models.ChildOrder) (ChildResult, error) {
	result := ChildResult{
		ChildOrderID: child.ID,
		VendorID:     child.VendorID,
		VendorRole:   child.VendorRole,
		Outcome:      metrics.OutcomeSkipped,
	}
	if child.Status != enums.ChildOrderStatusPending {
		fillFrozenSplit(&result, child)
		s.metrics.IncChildOrder(metrics.OutcomeSkipped)
		return result, nil
	}

	ctx = s.withLogFields(ctx, map[string]any{
		"child_order_id": child.ID.String(),
		"vendor_id":      child.VendorID.String(),
		"vendor_role":    child.VendorRole,
	})
	split := s.policy.Split(child.SubtotalCents, child.VendorRole)
	paidAt := s.now().UTC()
	orderID := order.ID
	childID := child.ID

	var won bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		won, err = s.orders.WithTx(tx).MarkChildOrderPaid(ctx, child.ID, orders.ChildSettlement{
			Rate:              split.Rate,
			CommissionCents:   split.CommissionCents,
			VendorAmountCents: split.VendorCents,
		}, paidAt)
		if err != nil || !won {
			return err
		}

		if split.VendorCents > 0 {
			if _, err := s.wallets.CreditWithLedger(ctx, tx, wallets.CreditInput{
				AccountID:         child.VendorID,
				Role:              child.VendorRole.WalletRole(),
				AmountCents:       split.VendorCents,
				Source:            enums.TransactionSourceOrderPayment,
				OrderID:           &orderID,
				ChildOrderID:      &childID,
				ExternalReference: ledger.OrderPaymentReference(child.ID),
				Description:       "vendor share of order " + order.ID.String(),
			}); err != nil {
				return err
			}
		}
		if split.CommissionCents > 0 {
			if _, err := s.wallets.CreditWithLedger(ctx, tx, wallets.CreditInput{
				AccountID:         s.platformAccountID,
				Role:              enums.WalletRolePlatform,
				AmountCents:       split.CommissionCents,
				Source:            enums.TransactionSourceCommission,
				OrderID:           &orderID,
				ChildOrderID:      &childID,
				ExternalReference: ledger.CommissionReference(child.ID),
				Description:       fmt.Sprintf("%s commission at %s", child.VendorRole, split.Rate.String()),
			}); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregateChildOrder,
			AggregateID:   child.ID,
			OccurredAt:    paidAt,
			Data: payloads.PaymentSettledEvent{
				OrderID:           order.ID,
				ChildOrderID:      child.ID,
				VendorID:          child.VendorID,
				VendorRole:        child.VendorRole,
				SubtotalCents:     child.SubtotalCents,
				CommissionRate:    split.Rate.String(),
				CommissionCents:   split.CommissionCents,
				VendorAmountCents: split.VendorCents,
				SettledAt:         paidAt,
			},
		})
	})

	result.CommissionRate = split.Rate.String()
	result.CommissionCents = split.CommissionCents
	result.VendorAmountCents = split.VendorCents

	if err != nil {
		result.Outcome = metrics.OutcomeFailed
		s.metrics.IncChildOrder(metrics.OutcomeFailed)
		if s.logg != nil {
			s.logg.Error(ctx, "child order settlement failed", err)
		}
		return result, err
	}
	if !won {
		s.metrics.IncChildOrder(metrics.OutcomeSkipped)
		s.info(ctx, "child order settled by a concurrent delivery")
		return result, nil
	}

	result.Outcome = metrics.OutcomeSettled
	s.metrics.IncChildOrder(metrics.OutcomeSettled)
	s.metrics.AddCredit(string(child.VendorRole.WalletRole()), split.VendorCents)
	s.metrics.AddCredit(string(enums.WalletRolePlatform), split.CommissionCents)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"commission_rate":     split.Rate.String(),
			"commission_cents":    split.CommissionCents,
			"vendor_amount_cents": split.VendorCents,
		})
		s.logg.Info(logCtx, "child order settled")
	}
	return result, nil
}

// FailPayment records a failed customer payment. Only PENDING orders move; a
// report for a PAID or already FAILED order is acknowledged without change.
func (s *service) FailPayment(ctx context.Context, input FailPaymentInput) (*FailResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx = s.withLogFields(ctx, map[string]any{"order_id": input.OrderID.String()})

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	result := &FailResult{OrderID: order.ID, PaymentState: order.PaymentState}
	if order.PaymentState != enums.PaymentStatePending {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_state", order.PaymentState), "payment failure ignored")
		}
		return result, nil
	}

	reason := strings.TrimSpace(input.Reason)
	var moved bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		moved, err = s.orders.WithTx(tx).MarkOrderFailed(ctx, order.ID, reason)
		if err != nil || !moved {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.PaymentFailedEvent{
				OrderID:          order.ID,
				PaymentReference: strings.TrimSpace(input.ExternalReference),
				Reason:           reason,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order failed")
	}
	if moved {
		result.PaymentState = enums.PaymentStateFailed
		result.Transitioned = true
		s.info(ctx, "order payment failed")
		return result, nil
	}

	// lost to a concurrent transition; report what won
	current, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	result.PaymentState = current.PaymentState
	return result, nil
}

func (s *service) GetSettlement(ctx context.Context, orderID uuid.UUID) (*Summary, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	txns, err := s.ledger.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Summary{Order: order, Transactions: txns}, nil
}

func hasPendingChildren(children []models.ChildOrder) bool {
	for _, child := range children {
		if child.Status == enums.ChildOrderStatusPending {
			return true
		}
	}
	return false
}

func skippedChildren(children []models.ChildOrder) []ChildResult {
	out := make([]ChildResult, 0, len(children))
	for _, child := range children {
		result := ChildResult{
			ChildOrderID: child.ID,
			VendorID:     child.VendorID,
			VendorRole:   child.VendorRole,
			Outcome:      metrics.OutcomeSkipped,
		}
		fillFrozenSplit(&result, child)
		out = append(out, result)
	}
	return out
}

func fillFrozenSplit(result *ChildResult, child models.ChildOrder) {
	if child.CommissionRate.Valid {
		result.CommissionRate = child.CommissionRate.Decimal.String()
	}
	result.CommissionCents = child.CommissionCents
	result.VendorAmountCents = child.VendorAmountCents
}

func (s *service) withLogFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func storedReference(order *models.Order) string {
	if order.PaymentReference == nil {
		return ""
	}
	return *order.PaymentReference
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
