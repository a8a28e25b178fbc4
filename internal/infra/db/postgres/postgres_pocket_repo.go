package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/id"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
)

// Ensure pocketRepo implements repository.PocketRepository
var _ repository.PocketRepository = (*pocketRepo)(nil)

type pocketRepo struct {
	pool *pgxpool.Pool
	ids  id.Generator
}

func NewPocketRepo(pool *pgxpool.Pool, ids id.Generator) *pocketRepo {
	return &pocketRepo{pool: pool, ids: ids}
}

// GetOrCreate inserts an empty pocket on first use of a currency. The
// conditional insert makes concurrent first use safe: both callers land on
// the same row, whoever loses the insert just reads.
func (r *pocketRepo) GetOrCreate(ctx context.Context, tx repository.Tx, walletID, currency string) (*model.Pocket, error) {
	const qi = `
INSERT INTO pockets (id, wallet_id, currency, amount)
VALUES ($1,$2,$3,0)
ON CONFLICT (wallet_id, currency) DO NOTHING;`

	if _, err := execSQL(ctx, r.pool, tx, qi, r.ids.NewID(), walletID, currency); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		metrics.IncDBError("pocket")
		return nil, domain.ErrOperationFailed
	}

	const qs = `
SELECT id, wallet_id, currency, amount::text
  FROM pockets
 WHERE wallet_id=$1 AND currency=$2;`
	return r.queryOne(ctx, tx, qs, walletID, currency)
}

func (r *pocketRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Pocket, error) {
	const q = `SELECT id, wallet_id, currency, amount::text FROM pockets WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

// Debit is the no-overdraft guard: the decrement lands only when the stored
// balance covers it, in one statement, so two racing debits cannot both
// observe sufficient funds.
func (r *pocketRepo) Debit(ctx context.Context, tx repository.Tx, pocketID string, amount decimal.Decimal) error {
	const q = `
UPDATE pockets
   SET amount = amount - $2::numeric
 WHERE id=$1 AND amount >= $2::numeric;`

	tag, err := execSQL(ctx, r.pool, tx, q, pocketID, amount.String())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("pocket")
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// Credit adds unconditionally; a brand-new pocket starts at the credited
// amount in the same statement, no zero-then-add round trip.
func (r *pocketRepo) Credit(ctx context.Context, tx repository.Tx, walletID, currency string, amount decimal.Decimal) (*model.Pocket, error) {
	const q = `
INSERT INTO pockets (id, wallet_id, currency, amount)
VALUES ($1,$2,$3,$4::numeric)
ON CONFLICT (wallet_id, currency) DO UPDATE SET amount = pockets.amount + EXCLUDED.amount
RETURNING id, wallet_id, currency, amount::text;`

	row, err := pickRow(ctx, r.pool, tx, q, r.ids.NewID(), walletID, currency, amount.String())
	if err != nil {
		return nil, err
	}
	p := &model.Pocket{}
	var stored string
	if err := row.Scan(&p.ID, &p.WalletID, &p.Currency, &stored); err != nil {
		metrics.IncDBError("pocket")
		return nil, domain.ErrOperationFailed
	}
	d, err := decimal.NewFromString(stored)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Amount = d
	return p, nil
}

func (r *pocketRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Pocket, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	p := &model.Pocket{}
	var amount string
	if err := row.Scan(&p.ID, &p.WalletID, &p.Currency, &amount); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Amount = d
	return p, nil
}
