package repository

import (
	"context"
	"time"

	"wallet-billing/internal/domain/model"
)

// AccountRepository reads the billing columns of profiles owned by the
// identity service: the wallet link (account resolver) and the cached
// current-subscription pointer swept by the renewal worker.
type AccountRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	// WalletIDFor is the account resolver: accountID -> wallet id.
	WalletIDFor(ctx context.Context, tx Tx, accountID string) (string, error)
	// SetCurrentSubscription updates the cached pointer (nil clears it).
	SetCurrentSubscription(ctx context.Context, tx Tx, accountID string, subscriptionID *string) error
	// ClearStaleSubscriptionRefs bulk-clears pointers whose subscription is
	// no longer derived-available at `now`, returning the number of rows
	// cleared. Read-then-bulk-write; staleness of one sweep interval is
	// acceptable.
	ClearStaleSubscriptionRefs(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
