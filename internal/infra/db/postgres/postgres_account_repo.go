package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
)

// Ensure accountRepo implements repository.AccountRepository
var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	const q = `
SELECT id, wallet_id, current_subscription_id
  FROM accounts
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	a := &model.Account{}
	var walletID *string
	if err := row.Scan(&a.ID, &walletID, &a.CurrentSubscriptionID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if walletID != nil {
		a.WalletID = *walletID
	}
	return a, nil
}

func (r *accountRepo) WalletIDFor(ctx context.Context, tx repository.Tx, accountID string) (string, error) {
	const q = `SELECT wallet_id FROM accounts WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return "", err
	}
	var walletID *string
	if err := row.Scan(&walletID); err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	if walletID == nil || *walletID == "" {
		return "", domain.ErrNoActiveWallet
	}
	return *walletID, nil
}

func (r *accountRepo) SetCurrentSubscription(ctx context.Context, tx repository.Tx, accountID string, subscriptionID *string) error {
	const q = `UPDATE accounts SET current_subscription_id = $2 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, accountID, subscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("account")
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepo) ClearStaleSubscriptionRefs(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	// A pointer is stale once its subscription is no longer available: paid,
	// active, inside [begun_at, ended_at) and not past its renewal anchor.
	// One bulk statement per sweep.
	const q = `
UPDATE accounts
   SET current_subscription_id = NULL
 WHERE current_subscription_id IS NOT NULL
   AND NOT EXISTS (
         SELECT 1 FROM subscriptions s
          WHERE s.id = accounts.current_subscription_id
            AND s.status = 'paid'
            AND s.is_active
            AND s.begun_at <= $1
            AND s.ended_at > $1
            AND (s.renewal_at IS NULL OR s.renewal_at >= $1)
       );`

	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return 0, err
		}
		metrics.IncDBError("account")
		return 0, domain.ErrOperationFailed
	}
	return tag.RowsAffected(), nil
}
