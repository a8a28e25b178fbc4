package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
)

// Ensure orderRepo implements repository.OrderRepository
var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, payee_wallet_id, currency, amount, expired_at, app_identifier, meta,
  status, transaction_id, created_at, updated_at
) VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  meta       = EXCLUDED.meta,
  status     = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.PayeeWalletID, o.Currency, o.Amount.String(), o.ExpiredAt,
		o.AppIdentifier, o.Meta, string(o.Status), o.TransactionID,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		metrics.IncDBError("order")
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	row, err := pickRow(ctx, r.pool, tx, orderSelect+` WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanOrderRow(row)
}

func (r *orderRepo) FindReusable(ctx context.Context, tx repository.Tx, payeeWalletID *string, currency string, amount decimal.Decimal, appIdentifier string, now time.Time) ([]*model.Order, error) {
	// IS NOT DISTINCT FROM keeps NULL payees (platform revenue) matchable.
	const q = orderSelect + `
 WHERE payee_wallet_id IS NOT DISTINCT FROM $1
   AND currency = $2
   AND amount = $3::numeric
   AND app_identifier = $4
   AND status = 'unpaid'
   AND expired_at > $5
 ORDER BY created_at DESC;`

	rows, err := queryRows(ctx, r.pool, tx, q, payeeWalletID, currency, amount.String(), appIdentifier, now)
	if err != nil {
		metrics.IncDBError("order")
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *orderRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.OrderStatus, transactionID *string, now time.Time) error {
	const q = `
UPDATE orders
   SET status = $3,
       transaction_id = COALESCE($4, transaction_id),
       updated_at = $5
 WHERE id = $1 AND status = $2;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), transactionID, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("order")
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

const orderSelect = `
SELECT id, payee_wallet_id, currency, amount::text, expired_at, app_identifier,
       meta, status, transaction_id, created_at, updated_at
  FROM orders`

func scanOrderRow(row rowScanner) (*model.Order, error) {
	o := &model.Order{}
	var amount, status string
	if err := row.Scan(&o.ID, &o.PayeeWalletID, &o.Currency, &amount, &o.ExpiredAt,
		&o.AppIdentifier, &o.Meta, &status, &o.TransactionID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.Amount = d
	o.Status = model.OrderStatus(status)
	return o, nil
}
