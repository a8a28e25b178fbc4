package repository

import (
	"context"
	"time"

	"wallet-billing/internal/domain/model"
)

// SubscriptionRepository is the port for recurring plan instances.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)

	// FindCurrent returns the most recent (BegunAt descending) non-expired
	// subscription for account+plan. Business rules keep it unique; storage
	// does not.
	FindCurrent(ctx context.Context, tx Tx, accountID, planID string) (*model.Subscription, error)

	// FindLive returns the most recent non-terminal (unpaid or paid)
	// subscription for account+plan, used by the one-live-per-plan guard.
	FindLive(ctx context.Context, tx Tx, accountID, planID string) (*model.Subscription, error)

	// ListDueForRenewal selects paid, active, non-trial subscriptions whose
	// renewal anchor is at or before now, oldest anchor first, bounded by
	// limit.
	ListDueForRenewal(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)

	// ExpireLapsed bulk-flips paid subscriptions past EndedAt that can never
	// auto-renew (nil anchor, kill-switched, or free trial) to expired and
	// returns how many rows changed.
	ExpireLapsed(ctx context.Context, tx Tx, now time.Time) (int64, error)

	// TransitionStatus flips status from -> to only if the row still holds
	// `from`; a guard miss returns domain.ErrInvalidState.
	TransitionStatus(ctx context.Context, tx Tx, id string, from, to model.SubscriptionStatus, now time.Time) error

	// CountByStatus feeds the subscriptions gauge.
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
