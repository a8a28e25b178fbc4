package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/clock"
	"wallet-billing/internal/domain/ports/id"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
)

// DefaultOrderExpiry applies when CreateOrder is called without an expiry.
const DefaultOrderExpiry = 24 * time.Hour

// SettlementHandler is notified inside the settlement transaction when an
// order it recognizes reaches paid. Returning an error rolls the whole
// settlement back.
type SettlementHandler interface {
	HandleSettledOrderTx(ctx context.Context, tx repository.Tx, order *model.Order) error
}

// OrderUseCase manages billable intents and their state machine.
type OrderUseCase struct {
	orders   repository.OrderRepository
	accounts repository.AccountRepository
	txns     repository.TransactionRepository
	engine   *TransactionUseCase
	tm       repository.TransactionManager
	ids      id.Generator
	clock    clock.Clock
	log      *zerolog.Logger

	expiry   time.Duration
	settlers []SettlementHandler
}

func NewOrderUseCase(orders repository.OrderRepository, accounts repository.AccountRepository, txns repository.TransactionRepository, engine *TransactionUseCase, tm repository.TransactionManager, ids id.Generator, clk clock.Clock, expiry time.Duration, logger *zerolog.Logger) *OrderUseCase {
	if expiry <= 0 {
		expiry = DefaultOrderExpiry
	}
	l := logger.With().Str("component", "OrderUC").Logger()
	return &OrderUseCase{
		orders:   orders,
		accounts: accounts,
		txns:     txns,
		engine:   engine,
		tm:       tm,
		ids:      ids,
		clock:    clk,
		log:      &l,
		expiry:   expiry,
	}
}

// RegisterSettlementHandler wires a handler for settled orders. Called once
// at startup; not safe for concurrent use afterwards.
func (uc *OrderUseCase) RegisterSettlementHandler(h SettlementHandler) {
	uc.settlers = append(uc.settlers, h)
}

// CreateOrder persists a new unpaid order, or — when reusable and an app
// identifier is given — returns an existing unpaid, unexpired order with the
// same payee/currency/amount/identifier and matching metadata, so client
// retries of the same logical purchase don't pile up duplicate intents.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, payeeWalletID *string, currency string, amount decimal.Decimal, expiry *time.Time, appIdentifier string, meta map[string]interface{}, reusable bool) (*model.Order, error) {
	if currency == "" || amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	now := uc.clock.Now()

	if reusable && appIdentifier != "" {
		candidates, err := uc.orders.FindReusable(ctx, repository.NoTX, payeeWalletID, currency, amount, appIdentifier, now)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		for _, c := range candidates {
			if meta == nil || c.MetaEquals(meta) {
				metrics.IncOrder("reused")
				return c, nil
			}
		}
	}

	expiredAt := now.Add(uc.expiry)
	if expiry != nil {
		expiredAt = *expiry
	}
	o, err := model.NewOrder(uc.ids.NewID(), payeeWalletID, currency, amount, expiredAt, appIdentifier, meta, now)
	if err != nil {
		return nil, err
	}
	if err := uc.orders.Save(ctx, repository.NoTX, o); err != nil {
		return nil, err
	}
	metrics.IncOrder("created")
	return o, nil
}

// PayOrder settles an unpaid order from the payer's wallet. The engine debit,
// the unpaid->paid transition and any settlement handler all share one
// storage transaction, so a concurrent second payment loses the status guard
// and rolls its debit back.
//
// Observing an expired order first finalizes it to expired — a legitimate
// lazy transition, not an error for that write — and then fails the pay
// attempt with ErrOrderExpired.
func (uc *OrderUseCase) PayOrder(ctx context.Context, orderID, payerWalletID string) (*model.Order, error) {
	if orderID == "" || payerWalletID == "" {
		return nil, domain.ErrInvalidArgument
	}
	o, err := uc.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderStatusUnpaid {
		return nil, domain.ErrInvalidState
	}
	now := uc.clock.Now()
	if o.IsExpired(now) {
		if err := uc.orders.TransitionStatus(ctx, repository.NoTX, o.ID, model.OrderStatusUnpaid, model.OrderStatusExpired, nil, now); err != nil && !errors.Is(err, domain.ErrInvalidState) {
			return nil, err
		}
		metrics.IncOrder("expired")
		return nil, domain.ErrOrderExpired
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var txnID *string
		// A fully-discounted order settles without money movement.
		if o.Amount.IsPositive() {
			t, err := uc.engine.CreateTransactionTx(ctx, tx, &payerWalletID, o.PayeeWalletID, o.Currency, o.Amount, fmt.Sprintf("order %s", o.ID), model.TransactionTypeOrder)
			if err != nil {
				return err
			}
			txnID = &t.ID
		}
		if err := uc.orders.TransitionStatus(ctx, tx, o.ID, model.OrderStatusUnpaid, model.OrderStatusPaid, txnID, now); err != nil {
			return err
		}
		o.Status = model.OrderStatusPaid
		o.TransactionID = txnID
		o.UpdatedAt = now

		for _, h := range uc.settlers {
			if err := h.HandleSettledOrderTx(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncOrder("pay_failed")
		return nil, err
	}
	metrics.IncOrder("paid")
	uc.log.Info().Str("order_id", o.ID).Str("payer_wallet_id", payerWalletID).Msg("order settled")
	return o, nil
}

// CancelOrder withdraws an unpaid order.
func (uc *OrderUseCase) CancelOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := uc.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now()
	if err := uc.orders.TransitionStatus(ctx, repository.NoTX, o.ID, model.OrderStatusUnpaid, model.OrderStatusCancelled, nil, now); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusCancelled
	o.UpdatedAt = now
	metrics.IncOrder("cancelled")
	return o, nil
}

// RefundOrder reverses a paid order's settling transaction and closes the
// order as finished. The order never reopens to unpaid.
func (uc *OrderUseCase) RefundOrder(ctx context.Context, orderID string) (*model.Order, *model.Transaction, error) {
	o, err := uc.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != model.OrderStatusPaid || o.TransactionID == nil {
		return nil, nil, domain.ErrInvalidState
	}
	orig, err := uc.txns.FindByID(ctx, repository.NoTX, *o.TransactionID)
	if err != nil {
		return nil, nil, err
	}

	now := uc.clock.Now()
	var reverse *model.Transaction
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := uc.engine.ReverseTransactionTx(ctx, tx, orig, fmt.Sprintf("refund order %s", o.ID))
		if err != nil {
			return err
		}
		if err := uc.orders.TransitionStatus(ctx, tx, o.ID, model.OrderStatusPaid, model.OrderStatusFinished, nil, now); err != nil {
			return err
		}
		reverse = t
		return nil
	})
	if err != nil {
		metrics.IncOrder("refund_failed")
		return nil, nil, err
	}
	o.Status = model.OrderStatusFinished
	o.UpdatedAt = now
	metrics.IncOrder("refunded")
	uc.log.Info().Str("order_id", o.ID).Str("transaction_id", reverse.ID).Msg("order refunded")
	return o, reverse, nil
}

// Transfer moves money between two accounts' wallets directly, with no order
// involved.
func (uc *OrderUseCase) Transfer(ctx context.Context, payerAccountID, payeeAccountID, currency string, amount decimal.Decimal) (*model.Transaction, error) {
	payerWallet, err := uc.accounts.WalletIDFor(ctx, repository.NoTX, payerAccountID)
	if err != nil {
		return nil, err
	}
	payeeWallet, err := uc.accounts.WalletIDFor(ctx, repository.NoTX, payeeAccountID)
	if err != nil {
		return nil, err
	}
	return uc.engine.CreateTransaction(ctx, &payerWallet, &payeeWallet, currency, amount, fmt.Sprintf("transfer %s -> %s", payerAccountID, payeeAccountID), model.TransactionTypeTransfer)
}
