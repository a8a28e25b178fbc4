package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
)

// Ensure transactionRepo implements repository.TransactionRepository
var _ repository.TransactionRepository = (*transactionRepo)(nil)

// transactionRepo is append-only: the movement log has no UPDATE or DELETE
// statement anywhere in this file on purpose.
type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, payer_pocket_id, payee_pocket_id, currency, amount, type, remark, created_at
) VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.PayerPocketID, t.PayeePocketID, t.Currency, t.Amount.String(), string(t.Type), t.Remark, t.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("transaction")
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	const q = `
SELECT id, payer_pocket_id, payee_pocket_id, currency, amount::text, type, remark, created_at
  FROM transactions
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTransactionRow(row)
}

func (r *transactionRepo) ListByPocket(ctx context.Context, tx repository.Tx, pocketID string, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	// ULID ids sort by creation time, so ordering by id is newest-first.
	const q = `
SELECT id, payer_pocket_id, payee_pocket_id, currency, amount::text, type, remark, created_at
  FROM transactions
 WHERE payer_pocket_id=$1 OR payee_pocket_id=$1
 ORDER BY id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, pocketID, limit)
	if err != nil {
		metrics.IncDBError("transaction")
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransactionRow(row rowScanner) (*model.Transaction, error) {
	t := &model.Transaction{}
	var amount, typ string
	if err := row.Scan(&t.ID, &t.PayerPocketID, &t.PayeePocketID, &t.Currency, &amount, &typ, &t.Remark, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	t.Amount = d
	t.Type = model.TransactionType(typ)
	return t, nil
}
