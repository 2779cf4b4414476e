package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/pagination"
)

// External reference builders. Each names the business event a transaction
// records so a replay collides on the unique index instead of double-writing.
func OrderPaymentReference(childOrderID uuid.UUID) string {
	return "order_payment:" + childOrderID.String()
}

func CommissionReference(childOrderID uuid.UUID) string {
	return "commission:" + childOrderID.String()
}

func WithdrawalReference(withdrawalID uuid.UUID) string {
	return "withdrawal:" + withdrawalID.String()
}

func WithdrawalFeeReference(withdrawalID uuid.UUID) string {
	return "withdrawal_fee:" + withdrawalID.String()
}

func WithdrawalFeeIncomeReference(withdrawalID uuid.UUID) string {
	return "withdrawal_fee_income:" + withdrawalID.String()
}

// Service defines operations that record and read ledger transactions.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Transaction, error)
	SettleWithdrawal(ctx context.Context, tx *gorm.DB, withdrawalID uuid.UUID, status enums.TransactionStatus) (int64, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, params pagination.Params) (*Page, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
	Totals(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (Totals, error)
}

// RecordInput captures the immutable data a transaction requires.
type RecordInput struct {
	Type              enums.TransactionType
	Source            enums.TransactionSource
	Status            enums.TransactionStatus
	AmountCents       int64
	AccountID         uuid.UUID
	Role              enums.WalletRole
	OrderID           *uuid.UUID
	ChildOrderID      *uuid.UUID
	WithdrawalID      *uuid.UUID
	ExternalReference string
	Description       string
}

// Page is one page of an account's transactions, newest first.
type Page struct {
	Transactions []models.Transaction
	NextCursor   string
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Record appends one transaction on tx (or the service's own handle when tx is
// nil). COMPLETED and FAILED rows are stamped settled at creation.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Transaction, error) {
	if err := validateRecordInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	txn := &models.Transaction{
		ID:           uuid.New(),
		Type:         input.Type,
		Source:       input.Source,
		AmountCents:  input.AmountCents,
		AccountID:    input.AccountID,
		Role:         input.Role,
		OrderID:      input.OrderID,
		ChildOrderID: input.ChildOrderID,
		WithdrawalID: input.WithdrawalID,
		Status:       input.Status,
		CreatedAt:    now,
	}
	if ref := strings.TrimSpace(input.ExternalReference); ref != "" {
		txn.ExternalReference = &ref
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		txn.Description = &desc
	}
	if input.Status != enums.TransactionStatusPending {
		txn.SettledAt = &now
	}

	if err := s.repo.WithTx(tx).Append(ctx, txn); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transaction")
	}
	return txn, nil
}

func validateRecordInput(input RecordInput) error {
	switch {
	case !input.Type.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type "+string(input.Type))
	case !input.Source.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction source "+string(input.Source))
	case !input.Status.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction status "+string(input.Status))
	case input.AmountCents <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be positive")
	case input.AccountID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	case !input.Role.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet role "+string(input.Role))
	}
	return nil
}

// SettleWithdrawal moves the PENDING legs of a withdrawal to COMPLETED or FAILED.
func (s *service) SettleWithdrawal(ctx context.Context, tx *gorm.DB, withdrawalID uuid.UUID, status enums.TransactionStatus) (int64, error) {
	if status != enums.TransactionStatusCompleted && status != enums.TransactionStatusFailed {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal legs settle to COMPLETED or FAILED")
	}
	moved, err := s.repo.WithTx(tx).SettleWithdrawal(ctx, withdrawalID, status, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle withdrawal transactions")
	}
	return moved, nil
}

func (s *service) ListByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, params pagination.Params) (*Page, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet role "+string(role))
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByAccount(ctx, accountID, role, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return &Page{Transactions: rows, NextCursor: next}, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order transactions")
	}
	return rows, nil
}

func (s *service) Totals(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (Totals, error) {
	totals, err := s.repo.NetByAccount(ctx, accountID, role)
	if err != nil {
		return Totals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum transactions")
	}
	return totals, nil
}
