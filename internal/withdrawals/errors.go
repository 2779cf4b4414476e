package withdrawals

import (
	"errors"

	"github.com/angelmondragon/marketplace-ledger/internal/wallets"
)

var (
	ErrBelowMinimumWithdrawal = errors.New("withdrawal below minimum")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrWalletNotFound         = wallets.ErrWalletNotFound
	ErrWithdrawalNotFound     = errors.New("withdrawal not found")
	ErrFeeExceedsAmount       = errors.New("withdrawal fee must be less than the amount")
	ErrInvalidTransition      = errors.New("withdrawal status transition not allowed")
	// ErrReservationMissing means the wallet no longer holds the pending funds
	// a withdrawal reserved. It indicates ledger drift and is never retried.
	ErrReservationMissing = errors.New("withdrawal reservation missing from wallet")
)
