package model

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
)

// Coupon is an optional discount applicable to a subscription. A fixed
// DiscountAmount takes precedence over DiscountRate when both are set.
// Outside its activation window a coupon simply contributes no discount.
type Coupon struct {
	ID             string // UUID
	Code           string // human-facing redemption code
	DiscountAmount *decimal.Decimal
	DiscountRate   *decimal.Decimal // fraction in [0,1]
	AffectedAt     *time.Time       // nil = active since forever
	ExpiredAt      *time.Time       // nil = never expires
	MaxUsage       *int             // nil = unlimited
	UsedCount      int
	CreatedAt      time.Time
}

// NewCoupon validates and constructs a coupon.
func NewCoupon(id, code string, amount, rate *decimal.Decimal, affectedAt, expiredAt *time.Time, maxUsage *int, now time.Time) (*Coupon, error) {
	if id == "" || code == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount == nil && rate == nil {
		return nil, domain.ErrInvalidArgument
	}
	if amount != nil && amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	if rate != nil && (rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1))) {
		return nil, domain.ErrInvalidArgument
	}
	return &Coupon{
		ID:             id,
		Code:           code,
		DiscountAmount: amount,
		DiscountRate:   rate,
		AffectedAt:     affectedAt,
		ExpiredAt:      expiredAt,
		MaxUsage:       maxUsage,
		CreatedAt:      now,
	}, nil
}

// ActiveAt reports whether the coupon's window and usage cap allow it to
// discount at the given instant.
func (c *Coupon) ActiveAt(now time.Time) bool {
	if c.AffectedAt != nil && now.Before(*c.AffectedAt) {
		return false
	}
	if c.ExpiredAt != nil && now.After(*c.ExpiredAt) {
		return false
	}
	if c.MaxUsage != nil && c.UsedCount >= *c.MaxUsage {
		return false
	}
	return true
}

// DiscountOn returns the price after applying this coupon to base at the
// given instant. An inactive coupon returns base unchanged; the result is
// floored at zero.
func (c *Coupon) DiscountOn(base decimal.Decimal, now time.Time) decimal.Decimal {
	if !c.ActiveAt(now) {
		return base
	}
	var out decimal.Decimal
	switch {
	case c.DiscountAmount != nil:
		out = base.Sub(*c.DiscountAmount)
	case c.DiscountRate != nil:
		out = base.Mul(decimal.NewFromInt(1).Sub(*c.DiscountRate))
	default:
		return base
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
