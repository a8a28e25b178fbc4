//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager runs the callback without a real storage transaction. The
// mem repos below apply writes immediately, so rollback semantics are not
// simulated; tests assert on the error paths instead.
type mockTxManager struct {
	beginErr error
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx, repository.NoTX)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// memPocketRepo is a small in-memory implementation used by unit tests.
type memPocketRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.Pocket
	byKey map[string]string // walletID|currency -> pocket id
	seq   int

	debitErr error // used by tests to simulate debit failures
}

func newMemPocketRepo() *memPocketRepo {
	return &memPocketRepo{byID: make(map[string]*model.Pocket), byKey: make(map[string]string)}
}

func pocketKey(walletID, currency string) string { return walletID + "|" + currency }

func (m *memPocketRepo) getOrCreateLocked(walletID, currency string) *model.Pocket {
	key := pocketKey(walletID, currency)
	if id, ok := m.byKey[key]; ok {
		return m.byID[id]
	}
	m.seq++
	p := &model.Pocket{
		ID:       fmt.Sprintf("pocket-%d", m.seq),
		WalletID: walletID,
		Currency: currency,
		Amount:   decimal.Zero,
	}
	m.byID[p.ID] = p
	m.byKey[key] = p.ID
	return p
}

func (m *memPocketRepo) GetOrCreate(ctx context.Context, tx repository.Tx, walletID, currency string) (*model.Pocket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.getOrCreateLocked(walletID, currency)
	return &cp, nil
}

func (m *memPocketRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Pocket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPocketRepo) Debit(ctx context.Context, tx repository.Tx, pocketID string, amount decimal.Decimal) error {
	if m.debitErr != nil {
		return m.debitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[pocketID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Amount.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	p.Amount = p.Amount.Sub(amount)
	return nil
}

func (m *memPocketRepo) Credit(ctx context.Context, tx repository.Tx, walletID, currency string, amount decimal.Decimal) (*model.Pocket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreateLocked(walletID, currency)
	p.Amount = p.Amount.Add(amount)
	cp := *p
	return &cp, nil
}

// balance is a test helper reading the current pocket amount.
func (m *memPocketRepo) balance(walletID, currency string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[pocketKey(walletID, currency)]; ok {
		return m.byID[id].Amount
	}
	return decimal.Zero
}

// fund is a test helper setting up an initial balance.
func (m *memPocketRepo) fund(walletID, currency string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreateLocked(walletID, currency)
	p.Amount = amount
}

type memWalletRepo struct {
	mu      sync.Mutex
	store   map[string]*model.Wallet // by id
	byAcct  map[string]string        // accountID -> wallet id
	pockets *memPocketRepo           // FindByAccount loads pockets from here
}

func newMemWalletRepo(pockets *memPocketRepo) *memWalletRepo {
	return &memWalletRepo{store: make(map[string]*model.Wallet), byAcct: make(map[string]string), pockets: pockets}
}

func (m *memWalletRepo) Save(ctx context.Context, tx repository.Tx, w *model.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAcct[w.AccountID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *w
	m.store[w.ID] = &cp
	m.byAcct[w.AccountID] = w.ID
	return nil
}

func (m *memWalletRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.loadLocked(w), nil
}

func (m *memWalletRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byAcct[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.loadLocked(m.store[id]), nil
}

func (m *memWalletRepo) loadLocked(w *model.Wallet) *model.Wallet {
	cp := *w
	cp.Pockets = nil
	if m.pockets != nil {
		m.pockets.mu.Lock()
		for _, p := range m.pockets.byID {
			if p.WalletID == w.ID {
				pcp := *p
				cp.Pockets = append(cp.Pockets, &pcp)
			}
		}
		m.pockets.mu.Unlock()
	}
	return &cp
}

type memTransactionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Transaction
	order []string

	saveErr error
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{store: make(map[string]*model.Transaction)}
}

func (m *memTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *memTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTransactionRepo) ListByPocket(ctx context.Context, tx repository.Tx, pocketID string, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		t := m.store[m.order[i]]
		if (t.PayerPocketID != nil && *t.PayerPocketID == pocketID) ||
			(t.PayeePocketID != nil && *t.PayeePocketID == pocketID) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTransactionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

type memOrderRepo struct {
	mu    sync.Mutex
	store map[string]*model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{store: make(map[string]*model.Order)}
}

func (m *memOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) FindReusable(ctx context.Context, tx repository.Tx, payeeWalletID *string, currency string, amount decimal.Decimal, appIdentifier string, now time.Time) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.Status != model.OrderStatusUnpaid || !o.ExpiredAt.After(now) {
			continue
		}
		if !strPtrEq(o.PayeeWalletID, payeeWalletID) || o.Currency != currency {
			continue
		}
		if !o.Amount.Equal(amount) || o.AppIdentifier != appIdentifier {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memOrderRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.OrderStatus, transactionID *string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok || o.Status != from {
		return domain.ErrInvalidState
	}
	o.Status = to
	if transactionID != nil {
		o.TransactionID = transactionID
	}
	o.UpdatedAt = now
	return nil
}

type memSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) findLatest(accountID, planID string, allowed func(model.SubscriptionStatus) bool) (*model.Subscription, error) {
	var best *model.Subscription
	for _, s := range m.store {
		if s.AccountID != accountID || s.PlanID != planID || !allowed(s.Status) {
			continue
		}
		if best == nil || s.BegunAt.After(best.BegunAt) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memSubscriptionRepo) FindCurrent(ctx context.Context, tx repository.Tx, accountID, planID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLatest(accountID, planID, func(st model.SubscriptionStatus) bool {
		return st != model.SubscriptionStatusExpired
	})
}

func (m *memSubscriptionRepo) FindLive(ctx context.Context, tx repository.Tx, accountID, planID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLatest(accountID, planID, func(st model.SubscriptionStatus) bool {
		return st == model.SubscriptionStatusUnpaid || st == model.SubscriptionStatusPaid
	})
}

func (m *memSubscriptionRepo) ListDueForRenewal(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status != model.SubscriptionStatusPaid || !s.IsActive || s.IsFreeTrial {
			continue
		}
		if s.RenewalAt == nil || s.RenewalAt.After(now) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RenewalAt.Before(*out[j].RenewalAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSubscriptionRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.store {
		if s.Status != model.SubscriptionStatusPaid || s.EndedAt.After(now) {
			continue
		}
		if s.RenewalAt == nil || !s.IsActive || s.IsFreeTrial {
			s.Status = model.SubscriptionStatusExpired
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memSubscriptionRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != from {
		return domain.ErrInvalidState
	}
	s.Status = to
	if to == model.SubscriptionStatusCancelled {
		s.RenewalAt = nil
	}
	s.UpdatedAt = now
	return nil
}

func (m *memSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

type memCouponRepo struct {
	mu    sync.Mutex
	store map[string]*model.Coupon
}

func newMemCouponRepo() *memCouponRepo {
	return &memCouponRepo{store: make(map[string]*model.Coupon)}
}

func (m *memCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *memCouponRepo) FindByIDOrCode(ctx context.Context, tx repository.Tx, ref string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.store {
		if c.ID == ref || c.Code == ref {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrCouponNotFound
}

func (m *memCouponRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrCouponNotFound
	}
	c.UsedCount++
	return nil
}

func (m *memCouponRepo) usage(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.store[id]; ok {
		return c.UsedCount
	}
	return 0
}

type memAccountRepo struct {
	mu    sync.Mutex
	store map[string]*model.Account
	subs  *memSubscriptionRepo
}

func newMemAccountRepo(subs *memSubscriptionRepo) *memAccountRepo {
	return &memAccountRepo{store: make(map[string]*model.Account), subs: subs}
}

func (m *memAccountRepo) add(accountID, walletID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[accountID] = &model.Account{ID: accountID, WalletID: walletID}
}

func (m *memAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) WalletIDFor(ctx context.Context, tx repository.Tx, accountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[accountID]
	if !ok {
		return "", domain.ErrNotFound
	}
	if a.WalletID == "" {
		return "", domain.ErrNoActiveWallet
	}
	return a.WalletID, nil
}

func (m *memAccountRepo) SetCurrentSubscription(ctx context.Context, tx repository.Tx, accountID string, subscriptionID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.CurrentSubscriptionID = subscriptionID
	return nil
}

func (m *memAccountRepo) ClearStaleSubscriptionRefs(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.store {
		if a.CurrentSubscriptionID == nil {
			continue
		}
		s, err := m.subs.FindByID(ctx, tx, *a.CurrentSubscriptionID)
		if err != nil || !s.AvailableAt(now) {
			a.CurrentSubscriptionID = nil
			n++
		}
	}
	return n, nil
}
