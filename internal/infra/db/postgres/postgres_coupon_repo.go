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

// Ensure couponRepo implements repository.CouponRepository
var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct {
	pool *pgxpool.Pool
}

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

func (r *couponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (
  id, code, discount_amount, discount_rate, affected_at, expired_at,
  max_usage, used_count, created_at
) VALUES ($1,$2,$3::numeric,$4::numeric,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.Code, decimalPtrString(c.DiscountAmount), decimalPtrString(c.DiscountRate),
		c.AffectedAt, c.ExpiredAt, c.MaxUsage, c.UsedCount, c.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		metrics.IncDBError("coupon")
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *couponRepo) FindByIDOrCode(ctx context.Context, tx repository.Tx, ref string) (*model.Coupon, error) {
	const q = `
SELECT id, code, discount_amount::text, discount_rate::text, affected_at,
       expired_at, max_usage, used_count, created_at
  FROM coupons
 WHERE id = $1 OR code = $1
 LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	c := &model.Coupon{}
	var amount, rate *string
	if err := row.Scan(&c.ID, &c.Code, &amount, &rate, &c.AffectedAt,
		&c.ExpiredAt, &c.MaxUsage, &c.UsedCount, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrCouponNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if c.DiscountAmount, err = decimalPtrParse(amount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if c.DiscountRate, err = decimalPtrParse(rate); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *couponRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("coupon")
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func decimalPtrParse(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
