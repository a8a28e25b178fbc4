package usecase

import (
	"context"
	"errors"

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

// TransactionUseCase is the money-movement primitive. Every balance change
// in the system funnels through CreateTransaction so the no-overdraft
// invariant lives in exactly one place: the pocket repository's conditional
// debit, executed inside a single storage transaction together with the
// credit and the movement record.
type TransactionUseCase struct {
	pockets repository.PocketRepository
	txns    repository.TransactionRepository
	tm      repository.TransactionManager
	ids     id.Generator
	clock   clock.Clock
	log     *zerolog.Logger
}

func NewTransactionUseCase(pockets repository.PocketRepository, txns repository.TransactionRepository, tm repository.TransactionManager, ids id.Generator, clk clock.Clock, logger *zerolog.Logger) *TransactionUseCase {
	l := logger.With().Str("component", "TransactionUC").Logger()
	return &TransactionUseCase{pockets: pockets, txns: txns, tm: tm, ids: ids, clock: clk, log: &l}
}

// CreateTransaction atomically debits the payer's pocket and/or credits the
// payee's pocket and records the movement. At least one wallet must be set;
// a nil payer means the system funds the amount, a nil payee means the
// system collects it. Debit and credit either both land or neither does.
func (uc *TransactionUseCase) CreateTransaction(ctx context.Context, payerWalletID, payeeWalletID *string, currency string, amount decimal.Decimal, remark string, typ model.TransactionType) (*model.Transaction, error) {
	var out *model.Transaction
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := uc.CreateTransactionTx(ctx, tx, payerWalletID, payeeWalletID, currency, amount, remark, typ)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			metrics.IncInsufficientFunds()
		}
		metrics.IncTransaction(string(typ), "failed")
		return nil, err
	}
	metrics.IncTransaction(string(typ), "ok")
	return out, nil
}

// CreateTransactionTx is the tx-scoped engine used by callers that need the
// movement inside a larger unit of work (order settlement, refunds). The
// caller owns commit/rollback.
func (uc *TransactionUseCase) CreateTransactionTx(ctx context.Context, tx repository.Tx, payerWalletID, payeeWalletID *string, currency string, amount decimal.Decimal, remark string, typ model.TransactionType) (*model.Transaction, error) {
	if payerWalletID == nil && payeeWalletID == nil {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" || !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}

	var payerPocketID, payeePocketID *string

	if payerWalletID != nil {
		pocket, err := uc.pockets.GetOrCreate(ctx, tx, *payerWalletID, currency)
		if err != nil {
			return nil, err
		}
		// Conditional decrement: zero rows affected means the stored balance
		// did not cover the amount, including the just-created-empty case.
		if err := uc.pockets.Debit(ctx, tx, pocket.ID, amount); err != nil {
			return nil, err
		}
		payerPocketID = &pocket.ID
	}

	if payeeWalletID != nil {
		pocket, err := uc.pockets.Credit(ctx, tx, *payeeWalletID, currency, amount)
		if err != nil {
			return nil, err
		}
		payeePocketID = &pocket.ID
	}

	t, err := model.NewTransaction(uc.ids.NewTransactionID(), payerPocketID, payeePocketID, currency, amount, typ, remark, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.txns.Save(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReverseTransactionTx creates the opposite movement of a settled
// transaction within the caller's unit of work: the original payee pocket is
// debited (with the same no-overdraft guard) and the original payer pocket
// is credited. One-sided system movements reverse one-sidedly.
func (uc *TransactionUseCase) ReverseTransactionTx(ctx context.Context, tx repository.Tx, orig *model.Transaction, remark string) (*model.Transaction, error) {
	if orig == nil {
		return nil, domain.ErrInvalidArgument
	}

	var payerPocketID, payeePocketID *string

	if orig.PayeePocketID != nil {
		if err := uc.pockets.Debit(ctx, tx, *orig.PayeePocketID, orig.Amount); err != nil {
			return nil, err
		}
		payerPocketID = orig.PayeePocketID
	}
	if orig.PayerPocketID != nil {
		pocket, err := uc.pockets.FindByID(ctx, tx, *orig.PayerPocketID)
		if err != nil {
			return nil, err
		}
		credited, err := uc.pockets.Credit(ctx, tx, pocket.WalletID, pocket.Currency, orig.Amount)
		if err != nil {
			return nil, err
		}
		payeePocketID = &credited.ID
	}

	t, err := model.NewTransaction(uc.ids.NewTransactionID(), payerPocketID, payeePocketID, orig.Currency, orig.Amount, orig.Type, remark, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.txns.Save(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}
