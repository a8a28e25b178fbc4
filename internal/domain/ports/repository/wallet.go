package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain/model"
)

// WalletRepository is the port for wallet aggregates.
type WalletRepository interface {
	Save(ctx context.Context, tx Tx, w *model.Wallet) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Wallet, error)
	// FindByAccount loads the wallet and its pockets.
	FindByAccount(ctx context.Context, tx Tx, accountID string) (*model.Wallet, error)
}

// PocketRepository is the port for per-currency balance buckets. All balance
// mutation happens through Debit/Credit so the amount >= 0 invariant is
// enforced in one place.
type PocketRepository interface {
	// GetOrCreate returns the pocket for (wallet, currency), inserting an
	// empty one on first use. Safe under concurrent first use of the same
	// currency (conditional insert).
	GetOrCreate(ctx context.Context, tx Tx, walletID, currency string) (*model.Pocket, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Pocket, error)

	// Debit subtracts amount only if the stored balance covers it; a guard
	// miss returns domain.ErrInsufficientFunds with no partial effect.
	Debit(ctx context.Context, tx Tx, pocketID string, amount decimal.Decimal) error
	// Credit adds amount unconditionally; a pocket can always receive funds.
	// Implementations create the pocket with the credited amount when it does
	// not exist yet.
	Credit(ctx context.Context, tx Tx, walletID, currency string, amount decimal.Decimal) (*model.Pocket, error)
}
