package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/clock"
	"wallet-billing/internal/domain/ports/id"
	"wallet-billing/internal/domain/ports/repository"
)

// DefaultCycle applies when CreateSubscription is called without a cycle.
const DefaultCycle = 30 * 24 * time.Hour

// RenewalAppIdentifier tags renewal orders so repeated scheduler ticks
// de-duplicate onto the same unpaid order.
const RenewalAppIdentifier = "subscription-renewal"

// Compile-time check: subscription settlement hooks into order payment.
var _ SettlementHandler = (*SubscriptionUseCase)(nil)

// SubscriptionUseCase implements the recurring-plan lifecycle.
type SubscriptionUseCase struct {
	subs    repository.SubscriptionRepository
	coupons repository.CouponRepository
	orders  *OrderUseCase
	ids     id.Generator
	clock   clock.Clock
	log     *zerolog.Logger

	cycle time.Duration
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, coupons repository.CouponRepository, orders *OrderUseCase, ids id.Generator, clk clock.Clock, cycle time.Duration, logger *zerolog.Logger) *SubscriptionUseCase {
	if cycle <= 0 {
		cycle = DefaultCycle
	}
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &SubscriptionUseCase{subs: subs, coupons: coupons, orders: orders, ids: ids, clock: clk, cycle: cycle, log: &l}
}

// CreateSubscription starts an unpaid subscription for account+plan. One
// live (non-terminal) subscription per plan per account; the base price
// comes from the plan catalog service, which owns plan identity.
func (uc *SubscriptionUseCase) CreateSubscription(ctx context.Context, accountID, planID string, method model.PaymentMethod, cycle time.Duration, currency string, basePrice decimal.Decimal, couponRef string, freeTrial, autoRenew bool) (*model.Subscription, error) {
	if accountID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	live, err := uc.subs.FindLive(ctx, repository.NoTX, accountID, planID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if live != nil {
		return nil, domain.ErrAlreadyExists
	}

	var couponID *string
	if couponRef != "" {
		coupon, err := uc.coupons.FindByIDOrCode(ctx, repository.NoTX, couponRef)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrCouponNotFound
			}
			return nil, err
		}
		couponID = &coupon.ID
	}

	if cycle <= 0 {
		cycle = uc.cycle
	}
	s, err := model.NewSubscription(uc.ids.NewID(), accountID, planID, method, cycle, currency, basePrice, couponID, freeTrial, autoRenew, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", s.ID).Str("account_id", accountID).Str("plan_id", planID).Bool("free_trial", freeTrial).Msg("subscription created")
	return s, nil
}

// CancelSubscription cancels the most recent non-expired subscription for
// account+plan. Cancellation clears the renewal anchor and is irreversible.
func (uc *SubscriptionUseCase) CancelSubscription(ctx context.Context, accountID, planID string) (*model.Subscription, error) {
	s, err := uc.subs.FindCurrent(ctx, repository.NoTX, accountID, planID)
	if err != nil {
		return nil, err
	}
	if s.Status == model.SubscriptionStatusCancelled {
		return nil, domain.ErrInvalidState
	}
	now := uc.clock.Now()
	if err := uc.subs.TransitionStatus(ctx, repository.NoTX, s.ID, s.Status, model.SubscriptionStatusCancelled, now); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatusCancelled
	s.RenewalAt = nil
	s.UpdatedAt = now
	uc.log.Info().Str("subscription_id", s.ID).Msg("subscription cancelled")
	return s, nil
}

// GetSubscription returns the most recent non-expired subscription for
// account+plan.
func (uc *SubscriptionUseCase) GetSubscription(ctx context.Context, accountID, planID string) (*model.Subscription, error) {
	return uc.subs.FindCurrent(ctx, repository.NoTX, accountID, planID)
}

// CreateRenewalOrder builds the system-collected order that settles the next
// period of the current subscription, priced with the coupon applied and
// tagged with the subscription id so settlement finds its way back.
func (uc *SubscriptionUseCase) CreateRenewalOrder(ctx context.Context, accountID, planID string) (*model.Order, error) {
	s, err := uc.subs.FindCurrent(ctx, repository.NoTX, accountID, planID)
	if err != nil {
		return nil, err
	}
	price, err := uc.finalPrice(ctx, s)
	if err != nil {
		return nil, err
	}
	meta := map[string]interface{}{
		model.MetaKeySubscriptionID: s.ID,
		"plan_id":                   s.PlanID,
	}
	return uc.orders.CreateOrder(ctx, nil, s.Currency, price, nil, RenewalAppIdentifier, meta, true)
}

// HandleSettledOrder is the external entry point for settled subscription
// orders, used by callers outside the pay path such as manual settlement
// confirmation. The pay path reaches the tx-scoped variant directly.
func (uc *SubscriptionUseCase) HandleSettledOrder(ctx context.Context, order *model.Order) error {
	return uc.HandleSettledOrderTx(ctx, repository.NoTX, order)
}

// HandleSettledOrderTx advances a subscription once its order reached paid.
// Initial settlement flips unpaid->paid without touching the period the
// subscription was created with; renewal settlement advances all three
// anchors by the stored cycle duration. Orders without a subscription tag
// are ignored.
func (uc *SubscriptionUseCase) HandleSettledOrderTx(ctx context.Context, tx repository.Tx, order *model.Order) error {
	if order == nil {
		return domain.ErrInvalidArgument
	}
	subID, ok := order.SubscriptionID()
	if !ok {
		return nil
	}
	if order.Status != model.OrderStatusPaid {
		return domain.ErrInvalidState
	}

	s, err := uc.subs.FindByID(ctx, tx, subID)
	if err != nil {
		return err
	}
	now := uc.clock.Now()

	switch s.Status {
	case model.SubscriptionStatusUnpaid:
		if err := uc.subs.TransitionStatus(ctx, tx, s.ID, model.SubscriptionStatusUnpaid, model.SubscriptionStatusPaid, now); err != nil {
			return err
		}
		s.Status = model.SubscriptionStatusPaid
	case model.SubscriptionStatusPaid:
		s.AdvancePeriod()
		s.UpdatedAt = now
		if err := uc.subs.Save(ctx, tx, s); err != nil {
			return err
		}
	default:
		return domain.ErrInvalidState
	}

	if s.CouponID != nil && order.Amount.IsPositive() {
		if err := uc.coupons.IncrementUsage(ctx, tx, *s.CouponID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	uc.log.Info().Str("subscription_id", s.ID).Str("order_id", order.ID).Time("ended_at", s.EndedAt).Msg("subscription settlement applied")
	return nil
}

// finalPrice resolves the attached coupon (tolerating a vanished row) and
// derives the renewal price.
func (uc *SubscriptionUseCase) finalPrice(ctx context.Context, s *model.Subscription) (decimal.Decimal, error) {
	var coupon *model.Coupon
	if s.CouponID != nil {
		c, err := uc.coupons.FindByIDOrCode(ctx, repository.NoTX, *s.CouponID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, err
		}
		coupon = c
	}
	return s.FinalPrice(coupon, uc.clock.Now()), nil
}
