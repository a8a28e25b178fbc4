package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain/model"
)

// OrderRepository is the port for billable intents.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)

	// FindReusable returns unpaid, unexpired orders matching the de-dup key
	// (payee, currency, amount, app identifier), newest first. Metadata
	// comparison stays with the caller.
	FindReusable(ctx context.Context, tx Tx, payeeWalletID *string, currency string, amount decimal.Decimal, appIdentifier string, now time.Time) ([]*model.Order, error)

	// TransitionStatus flips status from -> to only if the row still holds
	// `from`, optionally linking the settling transaction. A guard miss
	// returns domain.ErrInvalidState so a concurrent double-apply fails
	// cleanly.
	TransitionStatus(ctx context.Context, tx Tx, id string, from, to model.OrderStatus, transactionID *string, now time.Time) error
}
