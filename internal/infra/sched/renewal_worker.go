package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/clock"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
	"wallet-billing/internal/infra/redis"
)

const renewalLockKey = "sched:renewal:tick"

// RenewalBilling is the slice of the subscription use case the worker drives.
type RenewalBilling interface {
	CreateRenewalOrder(ctx context.Context, accountID, planID string) (*model.Order, error)
}

// OrderSettler pays renewal orders from the subscriber's wallet.
type OrderSettler interface {
	PayOrder(ctx context.Context, orderID, payerWalletID string) (*model.Order, error)
}

// RenewalWorker drives the subscription lifecycle in three passes per tick:
// expire subscriptions that can never renew, renew the due ones, then sweep
// stale current-subscription pointers off accounts.
//
// Each tick runs under a distributed lock so scaling the process out does
// not double-bill anyone. The renewal pass takes one bounded batch per tick;
// a failed charge leaves the subscription untouched so the next tick picks
// it up again.
type RenewalWorker struct {
	interval  time.Duration
	batchSize int
	lockTTL   time.Duration

	subs     repository.SubscriptionRepository
	accounts repository.AccountRepository
	subUC    RenewalBilling
	orderUC  OrderSettler
	locker   redis.Locker
	clk      clock.Clock
	log      *zerolog.Logger
}

func NewRenewalWorker(interval time.Duration, batchSize int, lockTTL time.Duration, subs repository.SubscriptionRepository, accounts repository.AccountRepository, subUC RenewalBilling, orderUC OrderSettler, locker redis.Locker, clk clock.Clock, logger *zerolog.Logger) *RenewalWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	wLog := logger.With().Str("component", "RenewalWorker").Logger()
	return &RenewalWorker{
		interval:  interval,
		batchSize: batchSize,
		lockTTL:   lockTTL,
		subs:      subs,
		accounts:  accounts,
		subUC:     subUC,
		orderUC:   orderUC,
		locker:    locker,
		clk:       clk,
		log:       &wLog,
	}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting renewal worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RenewalWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, renewalLockKey, w.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrRenewalLockHeld) {
			w.log.Debug().Msg("renewal tick skipped, lock held elsewhere")
		} else {
			w.log.Error().Err(err).Msg("renewal lock acquire failed")
		}
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, renewalLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("renewal lock release failed")
		}
	}()

	started := w.clk.Now()
	w.expireLapsed(ctx, started)
	w.renewDue(ctx, started)
	w.sweepStaleRefs(ctx, w.clk.Now())
	metrics.ObserveRenewalTick(time.Since(started))

	w.publishGauges(ctx)
}

func (w *RenewalWorker) expireLapsed(ctx context.Context, now time.Time) {
	n, err := w.subs.ExpireLapsed(ctx, repository.NoTX, now)
	if err != nil {
		w.log.Error().Err(err).Msg("expire pass failed")
		return
	}
	if n > 0 {
		metrics.AddSubscriptionsExpired(n)
		w.log.Info().Int64("count", n).Msg("lapsed subscriptions expired")
	}
}

func (w *RenewalWorker) renewDue(ctx context.Context, now time.Time) {
	due, err := w.subs.ListDueForRenewal(ctx, repository.NoTX, now, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal pass failed to list due subscriptions")
		return
	}
	for _, s := range due {
		w.renewOne(ctx, s)
	}
}

// renewOne handles exactly one subscription and never aborts the batch: a
// panic or error in one account's renewal must not starve the rest.
func (w *RenewalWorker) renewOne(ctx context.Context, s *model.Subscription) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncRenewal("error")
			w.log.Error().Interface("panic", r).Str("subscription_id", s.ID).Msg("renewal panicked")
		}
	}()

	log := w.log.With().Str("subscription_id", s.ID).Str("account_id", s.AccountID).Logger()

	// The due listing is a snapshot; a concurrent cancellation may have
	// dropped the renewal anchor since. Re-read and finalize such rows as
	// cancelled instead of billing them.
	fresh, err := w.subs.FindByID(ctx, repository.NoTX, s.ID)
	if err != nil {
		metrics.IncRenewal("error")
		log.Error().Err(err).Msg("renewal candidate re-read failed")
		return
	}
	if fresh.RenewalAt == nil {
		w.cancelRacedCandidate(ctx, fresh, &log)
		return
	}

	order, err := w.subUC.CreateRenewalOrder(ctx, fresh.AccountID, fresh.PlanID)
	if err != nil {
		metrics.IncRenewal("error")
		log.Error().Err(err).Msg("renewal order creation failed")
		return
	}

	if !fresh.PaymentMethod.SupportsAutoSettle() {
		// External and manual methods settle out of band; the order waits
		// for their confirmation flow.
		metrics.IncRenewal("pending_manual")
		log.Info().Str("order_id", order.ID).Msg("renewal order awaiting out-of-band settlement")
		return
	}

	walletID, err := w.accounts.WalletIDFor(ctx, repository.NoTX, fresh.AccountID)
	if err != nil {
		w.countFailedCharge(err, &log)
		return
	}
	if _, err := w.orderUC.PayOrder(ctx, order.ID, walletID); err != nil {
		w.countFailedCharge(err, &log)
		return
	}

	metrics.IncRenewal("renewed")
	log.Info().Str("order_id", order.ID).Msg("subscription renewed")
}

// cancelRacedCandidate finalizes a due row whose anchor vanished between
// listing and billing. Already-terminal rows are left alone.
func (w *RenewalWorker) cancelRacedCandidate(ctx context.Context, s *model.Subscription, log *zerolog.Logger) {
	err := w.subs.TransitionStatus(ctx, repository.NoTX, s.ID, model.SubscriptionStatusPaid, model.SubscriptionStatusCancelled, w.clk.Now())
	if err != nil && !errors.Is(err, domain.ErrInvalidState) {
		metrics.IncRenewal("error")
		log.Error().Err(err).Msg("cancelling raced renewal candidate failed")
		return
	}
	metrics.IncRenewal("cancelled")
	log.Info().Msg("renewal anchor gone, subscription cancelled")
}

// countFailedCharge records a charge failure and leaves the subscription as
// it was: still paid, anchor intact, retried on the next tick.
func (w *RenewalWorker) countFailedCharge(cause error, log *zerolog.Logger) {
	switch {
	case errors.Is(cause, domain.ErrInsufficientFunds):
		metrics.IncRenewal("insufficient_funds")
	case errors.Is(cause, domain.ErrNoActiveWallet), errors.Is(cause, domain.ErrNotFound):
		metrics.IncRenewal("no_wallet")
	default:
		metrics.IncRenewal("error")
	}
	log.Warn().Err(cause).Msg("renewal charge failed, left for next tick")
}

func (w *RenewalWorker) sweepStaleRefs(ctx context.Context, now time.Time) {
	n, err := w.accounts.ClearStaleSubscriptionRefs(ctx, repository.NoTX, now)
	if err != nil {
		w.log.Error().Err(err).Msg("stale subscription ref sweep failed")
		return
	}
	if n > 0 {
		metrics.AddMembershipRefsCleared(n)
		w.log.Info().Int64("count", n).Msg("stale subscription refs cleared")
	}
}

func (w *RenewalWorker) publishGauges(ctx context.Context) {
	counts, err := w.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		w.log.Warn().Err(err).Msg("subscription gauge refresh failed")
		return
	}
	metrics.SetSubscriptionsTotal(counts)
}
