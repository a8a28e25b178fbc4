//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/clock"
	"wallet-billing/internal/domain/ports/id"
)

func newTransactionFixture() (*TransactionUseCase, *memPocketRepo, *memTransactionRepo) {
	pockets := newMemPocketRepo()
	txns := newMemTransactionRepo()
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	uc := NewTransactionUseCase(pockets, txns, &mockTxManager{}, id.NewSequential("txn"), clk, testLogger())
	return uc, pockets, txns
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()
	payer := "wallet-payer"
	payee := "wallet-payee"

	t.Run("moves funds and records the movement", func(t *testing.T) {
		uc, pockets, txns := newTransactionFixture()
		pockets.fund(payer, "USD", decimal.NewFromInt(100))

		txn, err := uc.CreateTransaction(ctx, &payer, &payee, "USD", decimal.NewFromInt(30), "test", model.TransactionTypeTransfer)
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		if txn.PayerPocketID == nil || txn.PayeePocketID == nil {
			t.Fatal("expected both pockets on the movement record")
		}
		if got := pockets.balance(payer, "USD"); !got.Equal(decimal.NewFromInt(70)) {
			t.Fatalf("payer balance: want 70, got %s", got)
		}
		if got := pockets.balance(payee, "USD"); !got.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("payee balance: want 30, got %s", got)
		}
		if txns.count() != 1 {
			t.Fatalf("expected 1 movement record, got %d", txns.count())
		}
	})

	t.Run("insufficient funds leaves no trace", func(t *testing.T) {
		uc, pockets, txns := newTransactionFixture()
		pockets.fund(payer, "USD", decimal.NewFromInt(10))

		_, err := uc.CreateTransaction(ctx, &payer, &payee, "USD", decimal.NewFromInt(30), "test", model.TransactionTypeTransfer)
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		if got := pockets.balance(payer, "USD"); !got.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("payer balance must not change, got %s", got)
		}
		if txns.count() != 0 {
			t.Fatal("no movement record should exist after a failed debit")
		}
	})

	t.Run("nil payer is a system deposit", func(t *testing.T) {
		uc, pockets, _ := newTransactionFixture()

		txn, err := uc.CreateTransaction(ctx, nil, &payee, "USD", decimal.NewFromInt(50), "top-up", model.TransactionTypeSystem)
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		if txn.PayerPocketID != nil {
			t.Fatal("system deposit must not have a payer pocket")
		}
		if got := pockets.balance(payee, "USD"); !got.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("payee balance: want 50, got %s", got)
		}
	})

	t.Run("nil payee is a system collection", func(t *testing.T) {
		uc, pockets, _ := newTransactionFixture()
		pockets.fund(payer, "USD", decimal.NewFromInt(40))

		txn, err := uc.CreateTransaction(ctx, &payer, nil, "USD", decimal.NewFromInt(15), "fee", model.TransactionTypeSystem)
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		if txn.PayeePocketID != nil {
			t.Fatal("system collection must not have a payee pocket")
		}
		if got := pockets.balance(payer, "USD"); !got.Equal(decimal.NewFromInt(25)) {
			t.Fatalf("payer balance: want 25, got %s", got)
		}
	})

	t.Run("rejects missing parties and non-positive amounts", func(t *testing.T) {
		uc, _, _ := newTransactionFixture()

		if _, err := uc.CreateTransaction(ctx, nil, nil, "USD", decimal.NewFromInt(1), "", model.TransactionTypeSystem); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("both-nil parties: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := uc.CreateTransaction(ctx, &payer, &payee, "USD", decimal.Zero, "", model.TransactionTypeTransfer); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("zero amount: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := uc.CreateTransaction(ctx, &payer, &payee, "", decimal.NewFromInt(1), "", model.TransactionTypeTransfer); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("empty currency: expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestReverseTransactionTx(t *testing.T) {
	ctx := context.Background()
	payer := "wallet-payer"
	payee := "wallet-payee"

	t.Run("reverses a two-sided movement", func(t *testing.T) {
		uc, pockets, _ := newTransactionFixture()
		pockets.fund(payer, "USD", decimal.NewFromInt(100))

		orig, err := uc.CreateTransaction(ctx, &payer, &payee, "USD", decimal.NewFromInt(60), "sale", model.TransactionTypeOrder)
		if err != nil {
			t.Fatalf("setup transaction failed: %v", err)
		}

		rev, err := uc.ReverseTransactionTx(ctx, nil, orig, "refund")
		if err != nil {
			t.Fatalf("ReverseTransactionTx failed: %v", err)
		}
		if got := pockets.balance(payer, "USD"); !got.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("payer balance after refund: want 100, got %s", got)
		}
		if got := pockets.balance(payee, "USD"); !got.IsZero() {
			t.Fatalf("payee balance after refund: want 0, got %s", got)
		}
		if !strPtrEq(rev.PayerPocketID, orig.PayeePocketID) {
			t.Fatal("reversal should debit the original payee pocket")
		}
	})

	t.Run("fails when the payee already spent the funds", func(t *testing.T) {
		uc, pockets, _ := newTransactionFixture()
		pockets.fund(payer, "USD", decimal.NewFromInt(100))

		orig, err := uc.CreateTransaction(ctx, &payer, &payee, "USD", decimal.NewFromInt(60), "sale", model.TransactionTypeOrder)
		if err != nil {
			t.Fatalf("setup transaction failed: %v", err)
		}
		// Payee drains their pocket before the refund lands.
		if _, err := uc.CreateTransaction(ctx, &payee, nil, "USD", decimal.NewFromInt(50), "spend", model.TransactionTypeSystem); err != nil {
			t.Fatalf("spend failed: %v", err)
		}

		_, err = uc.ReverseTransactionTx(ctx, nil, orig, "refund")
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
	})
}

// Racing debits against one pocket must never overdraw it: the guard admits
// exactly as many as the starting balance covers.
func TestCreateTransactionConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	payer := "wallet-payer"
	uc, pockets, txns := newTransactionFixture()
	pockets.fund(payer, "USD", decimal.NewFromInt(50))

	const attempts = 10
	amount := decimal.NewFromInt(10)

	var wg sync.WaitGroup
	var succeeded int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.CreateTransaction(ctx, &payer, nil, "USD", amount, "drain", model.TransactionTypeSystem)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, domain.ErrInsufficientFunds):
			default:
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("a balance of 50 covers exactly 5 debits of 10, got %d", succeeded)
	}
	if got := pockets.balance(payer, "USD"); !got.IsZero() {
		t.Fatalf("pocket should be drained to zero, got %s", got)
	}
	if txns.count() != 5 {
		t.Fatalf("expected 5 movement records, got %d", txns.count())
	}
}
