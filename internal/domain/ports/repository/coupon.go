package repository

import (
	"context"

	"wallet-billing/internal/domain/model"
)

// CouponRepository is the port for discount coupons.
type CouponRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Coupon) error
	// FindByIDOrCode resolves a coupon reference the way callers hand it
	// over: a UUID or a redemption code.
	FindByIDOrCode(ctx context.Context, tx Tx, ref string) (*model.Coupon, error)
	// IncrementUsage bumps the usage counter once a priced order settles.
	IncrementUsage(ctx context.Context, tx Tx, id string) error
}
