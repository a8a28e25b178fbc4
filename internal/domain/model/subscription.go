package model

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusUnpaid    SubscriptionStatus = "unpaid"
	SubscriptionStatusPaid      SubscriptionStatus = "paid"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// subscriptionTransitions: unpaid -> paid|cancelled, paid -> expired|cancelled.
// Expired and cancelled are terminal; cancellation is irreversible.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusUnpaid: {SubscriptionStatusPaid, SubscriptionStatusCancelled},
	SubscriptionStatusPaid:   {SubscriptionStatusExpired, SubscriptionStatusCancelled},
}

// Subscription is one recurring plan instance for an account.
//
// The cycle length is stored explicitly at creation time (CycleDuration)
// and each renewal advances BegunAt/EndedAt/RenewalAt by exactly that
// duration, so the period never has to be re-derived from anchor
// arithmetic.
type Subscription struct {
	ID            string // UUID
	AccountID     string
	PlanID        string // plan identifier, owned by the catalog service
	BegunAt       time.Time
	EndedAt       time.Time
	RenewalAt     *time.Time // nil = no auto-renew
	CycleDuration time.Duration
	Status        SubscriptionStatus
	IsActive      bool // manual kill-switch, independent of Status
	IsFreeTrial   bool
	Currency      string
	BasePrice     decimal.Decimal
	CouponID      *string
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSubscription validates and constructs an unpaid subscription starting now.
// RenewalAt is set to EndedAt unless the plan is a free trial or auto-renew
// is disabled.
func NewSubscription(id, accountID, planID string, method PaymentMethod, cycle time.Duration, currency string, basePrice decimal.Decimal, couponID *string, freeTrial, autoRenew bool, now time.Time) (*Subscription, error) {
	if id == "" || accountID == "" || planID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !method.Valid() || cycle <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if basePrice.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	s := &Subscription{
		ID:            id,
		AccountID:     accountID,
		PlanID:        planID,
		BegunAt:       now,
		EndedAt:       now.Add(cycle),
		CycleDuration: cycle,
		Status:        SubscriptionStatusUnpaid,
		IsActive:      true,
		IsFreeTrial:   freeTrial,
		Currency:      currency,
		BasePrice:     basePrice,
		CouponID:      couponID,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if autoRenew && !freeTrial {
		renewal := s.EndedAt
		s.RenewalAt = &renewal
	}
	return s, nil
}

// CanTransition reports whether the state machine permits status -> next.
func (s *Subscription) CanTransition(next SubscriptionStatus) bool {
	for _, st := range subscriptionTransitions[s.Status] {
		if st == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the subscription can never change status again.
func (s *Subscription) Terminal() bool {
	return s.Status == SubscriptionStatusExpired || s.Status == SubscriptionStatusCancelled
}

// AvailableAt derives whether the subscription grants its benefit at the
// given instant. Never stored.
func (s *Subscription) AvailableAt(now time.Time) bool {
	if !s.IsActive || s.Status != SubscriptionStatusPaid {
		return false
	}
	if now.Before(s.BegunAt) || now.After(s.EndedAt) {
		return false
	}
	if s.RenewalAt != nil && now.After(*s.RenewalAt) {
		return false
	}
	return true
}

// FinalPrice computes the amount a renewal order should charge: zero for
// free trials, the coupon-adjusted price when a coupon is attached and
// active, the base price otherwise. The coupon argument may be nil even if
// CouponID is set (e.g. the coupon row vanished); pricing then falls back
// to base.
func (s *Subscription) FinalPrice(coupon *Coupon, now time.Time) decimal.Decimal {
	if s.IsFreeTrial {
		return decimal.Zero
	}
	if coupon == nil {
		return s.BasePrice
	}
	return coupon.DiscountOn(s.BasePrice, now)
}

// AdvancePeriod moves all anchors one cycle forward after a settled
// renewal. RenewalAt stays nil when auto-renew was switched off while the
// renewal order was in flight.
func (s *Subscription) AdvancePeriod() {
	s.BegunAt = s.BegunAt.Add(s.CycleDuration)
	s.EndedAt = s.EndedAt.Add(s.CycleDuration)
	if s.RenewalAt != nil {
		next := s.RenewalAt.Add(s.CycleDuration)
		s.RenewalAt = &next
	}
}
