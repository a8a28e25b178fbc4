package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
)

// Ensure walletRepo implements repository.WalletRepository
var _ repository.WalletRepository = (*walletRepo)(nil)

type walletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

func (r *walletRepo) Save(ctx context.Context, tx repository.Tx, w *model.Wallet) error {
	const q = `
INSERT INTO wallets (id, account_id, created_at) VALUES ($1,$2,$3);`

	_, err := execSQL(ctx, r.pool, tx, q, w.ID, w.AccountID, w.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("wallet")
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *walletRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Wallet, error) {
	const q = `SELECT id, account_id, created_at FROM wallets WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *walletRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Wallet, error) {
	const q = `SELECT id, account_id, created_at FROM wallets WHERE account_id=$1;`
	w, err := r.queryOne(ctx, tx, q, accountID)
	if err != nil {
		return nil, err
	}

	const qp = `
SELECT id, wallet_id, currency, amount::text
  FROM pockets
 WHERE wallet_id=$1
 ORDER BY currency ASC;`
	rows, err := queryRows(ctx, r.pool, tx, qp, w.ID)
	if err != nil {
		metrics.IncDBError("wallet")
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPocket(rows)
		if err != nil {
			return nil, err
		}
		w.Pockets = append(w.Pockets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return w, nil
}

func (r *walletRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Wallet, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	w := &model.Wallet{}
	if err := row.Scan(&w.ID, &w.AccountID, &w.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return w, nil
}

func scanPocket(rows pgx.Rows) (*model.Pocket, error) {
	p := &model.Pocket{}
	var amount string
	if err := rows.Scan(&p.ID, &p.WalletID, &p.Currency, &amount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Amount = d
	return p, nil
}
