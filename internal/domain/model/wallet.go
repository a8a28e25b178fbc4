package model

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
)

// Wallet is the per-account container for pockets. It never holds balance
// itself; each currency lives in its own Pocket.
type Wallet struct {
	ID        string // UUID
	AccountID string
	CreatedAt time.Time

	// Pockets is populated by reads that request it; writes go through the
	// pocket repository directly.
	Pockets []*Pocket
}

// NewWallet validates and constructs a wallet for an account.
func NewWallet(id, accountID string, now time.Time) (*Wallet, error) {
	if id == "" || accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Wallet{ID: id, AccountID: accountID, CreatedAt: now}, nil
}

// PocketFor returns the loaded pocket for a currency, or nil.
func (w *Wallet) PocketFor(currency string) *Pocket {
	for _, p := range w.Pockets {
		if p.Currency == currency {
			return p
		}
	}
	return nil
}

// Pocket is a wallet's balance bucket for one currency.
// Invariant: Amount >= 0 at all times; Currency is immutable after creation.
type Pocket struct {
	ID       string // UUID
	WalletID string
	Currency string
	Amount   decimal.Decimal
}

// NewPocket constructs an empty pocket for (wallet, currency).
func NewPocket(id, walletID, currency string) (*Pocket, error) {
	if id == "" || walletID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Pocket{ID: id, WalletID: walletID, Currency: currency, Amount: decimal.Zero}, nil
}
