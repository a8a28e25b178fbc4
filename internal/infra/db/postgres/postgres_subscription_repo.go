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

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, account_id, plan_id, begun_at, ended_at, renewal_at, cycle_seconds,
  status, is_active, is_free_trial, currency, base_price, coupon_id,
  payment_method, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::numeric,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
  begun_at   = EXCLUDED.begun_at,
  ended_at   = EXCLUDED.ended_at,
  renewal_at = EXCLUDED.renewal_at,
  status     = EXCLUDED.status,
  is_active  = EXCLUDED.is_active,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.AccountID, s.PlanID, s.BegunAt, s.EndedAt, s.RenewalAt,
		int64(s.CycleDuration/time.Second), string(s.Status), s.IsActive,
		s.IsFreeTrial, s.Currency, s.BasePrice.String(), s.CouponID,
		string(s.PaymentMethod), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		metrics.IncDBError("subscription")
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, subscriptionSelect+` WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanSubscriptionRow(row)
}

func (r *subscriptionRepo) FindCurrent(ctx context.Context, tx repository.Tx, accountID, planID string) (*model.Subscription, error) {
	const q = subscriptionSelect + `
 WHERE account_id=$1 AND plan_id=$2 AND status <> 'expired'
 ORDER BY begun_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, planID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptionRow(row)
}

func (r *subscriptionRepo) FindLive(ctx context.Context, tx repository.Tx, accountID, planID string) (*model.Subscription, error) {
	const q = subscriptionSelect + `
 WHERE account_id=$1 AND plan_id=$2 AND status IN ('unpaid','paid')
 ORDER BY begun_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, planID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptionRow(row)
}

func (r *subscriptionRepo) ListDueForRenewal(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = subscriptionSelect + `
 WHERE status = 'paid'
   AND is_active
   AND NOT is_free_trial
   AND renewal_at IS NOT NULL
   AND renewal_at <= $1
 ORDER BY renewal_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		metrics.IncDBError("subscription")
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscriptionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	// Only subscriptions that can never auto-renew: the renewable ones stay
	// paid so the renewal pass can still pick them up.
	const q = `
UPDATE subscriptions
   SET status = 'expired', updated_at = $1
 WHERE status = 'paid'
   AND ended_at <= $1
   AND (renewal_at IS NULL OR NOT is_active OR is_free_trial);`

	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return 0, err
		}
		metrics.IncDBError("subscription")
		return 0, domain.ErrOperationFailed
	}
	return tag.RowsAffected(), nil
}

func (r *subscriptionRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus, now time.Time) error {
	// Cancellation also drops the renewal anchor so the scheduler never
	// touches the row again.
	const q = `
UPDATE subscriptions
   SET status = $3,
       renewal_at = CASE WHEN $3 = 'cancelled' THEN NULL ELSE renewal_at END,
       updated_at = $4
 WHERE id = $1 AND status = $2;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		metrics.IncDBError("subscription")
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		metrics.IncDBError("subscription")
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.SubscriptionStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

const subscriptionSelect = `
SELECT id, account_id, plan_id, begun_at, ended_at, renewal_at, cycle_seconds,
       status, is_active, is_free_trial, currency, base_price::text, coupon_id,
       payment_method, created_at, updated_at
  FROM subscriptions`

func scanSubscriptionRow(row rowScanner) (*model.Subscription, error) {
	s := &model.Subscription{}
	var cycleSeconds int64
	var price, status, method string
	if err := row.Scan(&s.ID, &s.AccountID, &s.PlanID, &s.BegunAt, &s.EndedAt,
		&s.RenewalAt, &cycleSeconds, &status, &s.IsActive, &s.IsFreeTrial,
		&s.Currency, &price, &s.CouponID, &method, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	s.BasePrice = d
	s.CycleDuration = time.Duration(cycleSeconds) * time.Second
	s.Status = model.SubscriptionStatus(status)
	s.PaymentMethod = model.PaymentMethod(method)
	return s, nil
}
