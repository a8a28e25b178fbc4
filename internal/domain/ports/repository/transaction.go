package repository

import (
	"context"

	"wallet-billing/internal/domain/model"
)

// TransactionRepository is the port for the immutable movement log.
// There is intentionally no update or delete.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	// ListByPocket returns the most recent movements touching a pocket,
	// newest first.
	ListByPocket(ctx context.Context, tx Tx, pocketID string, limit int) ([]*model.Transaction, error)
}
