package wallets

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
)

// ErrWalletNotFound is returned when no wallet exists for an (account, role) pair.
var ErrWalletNotFound = errors.New("wallet not found")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreditInput describes one completed credit and the ledger row that records it.
type CreditInput struct {
	AccountID         uuid.UUID
	Role              enums.WalletRole
	AmountCents       int64
	Source            enums.TransactionSource
	OrderID           *uuid.UUID
	ChildOrderID      *uuid.UUID
	WithdrawalID      *uuid.UUID
	ExternalReference string
	Description       string
}

// Service pairs wallet balance changes with their ledger transactions.
type Service interface {
	CreditWithLedger(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error)
	GetWallet(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (*models.Wallet, error)
	ListWallets(ctx context.Context, accountID uuid.UUID) ([]models.Wallet, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	ledger ledger.Service
	logg   *logger.Logger
}

// NewService wires the wallet service.
func NewService(tx txRunner, repo Repository, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallets repository required")
	}
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	return &service{tx: tx, repo: repo, ledger: ledgerSvc, logg: logg}, nil
}

// CreditWithLedger appends a COMPLETED CREDIT transaction and increments the
// wallet on the same database transaction. When tx is nil a transaction is
// opened for the pair. The ledger row goes first so a duplicate reference
// aborts before any balance moves.
func (s *service) CreditWithLedger(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet role "+string(input.Role))
	}

	if tx == nil {
		var txn *models.Transaction
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			txn, err = s.credit(ctx, tx, input)
			return err
		})
		if err != nil {
			return nil, err
		}
		return txn, nil
	}
	return s.credit(ctx, tx, input)
}

func (s *service) credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error) {
	txn, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
		Type:              enums.TransactionTypeCredit,
		Source:            input.Source,
		Status:            enums.TransactionStatusCompleted,
		AmountCents:       input.AmountCents,
		AccountID:         input.AccountID,
		Role:              input.Role,
		OrderID:           input.OrderID,
		ChildOrderID:      input.ChildOrderID,
		WithdrawalID:      input.WithdrawalID,
		ExternalReference: input.ExternalReference,
		Description:       input.Description,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).Credit(ctx, input.AccountID, input.Role, input.AmountCents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id":   input.AccountID.String(),
			"role":         input.Role,
			"source":       input.Source,
			"amount_cents": input.AmountCents,
		})
		s.logg.Debug(logCtx, "wallet credited")
	}
	return txn, nil
}

func (s *service) GetWallet(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (*models.Wallet, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet role "+strings.TrimSpace(string(role)))
	}
	wallet, err := s.repo.Find(ctx, accountID, role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrWalletNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListWallets(ctx context.Context, accountID uuid.UUID) ([]models.Wallet, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	rows, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallets")
	}
	return rows, nil
}
