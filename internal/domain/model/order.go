package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
)

type OrderStatus string

const (
	OrderStatusUnpaid    OrderStatus = "unpaid"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFinished  OrderStatus = "finished" // paid and later refunded
	OrderStatusExpired   OrderStatus = "expired"
)

// orderTransitions is the closed state machine: unpaid -> paid|cancelled|expired,
// paid -> finished. Cancelled, finished and expired are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusUnpaid: {OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusPaid:   {OrderStatusFinished},
}

// MetaKeySubscriptionID tags an order as settling a subscription renewal.
const MetaKeySubscriptionID = "subscription_id"

// Order is a billable intent: pay Amount of Currency to PayeeWalletID.
// A nil payee means the amount is collected by the system. Orders are never
// hard-deleted; terminal statuses are the only exit.
type Order struct {
	ID            string // UUID
	PayeeWalletID *string
	Currency      string
	Amount        decimal.Decimal
	ExpiredAt     time.Time
	AppIdentifier string                 // opaque source tag, used for de-duplication
	Meta          map[string]interface{} // serialized in DB as JSONB
	Status        OrderStatus
	TransactionID *string // set once settled
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrder validates and constructs an unpaid order.
func NewOrder(id string, payeeWalletID *string, currency string, amount decimal.Decimal, expiredAt time.Time, appIdentifier string, meta map[string]interface{}, now time.Time) (*Order, error) {
	if id == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	// Zero is allowed: a fully-discounted renewal settles without movement.
	if amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	if !expiredAt.After(now) {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		ID:            id,
		PayeeWalletID: payeeWalletID,
		Currency:      currency,
		Amount:        amount,
		ExpiredAt:     expiredAt,
		AppIdentifier: appIdentifier,
		Meta:          meta,
		Status:        OrderStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransition reports whether the state machine permits status -> next.
func (o *Order) CanTransition(next OrderStatus) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// IsExpired reports whether the order's expiry instant has passed.
func (o *Order) IsExpired(now time.Time) bool {
	return now.After(o.ExpiredAt)
}

// SubscriptionID extracts the subscription tag from Meta, if present.
func (o *Order) SubscriptionID() (string, bool) {
	v, ok := o.Meta[MetaKeySubscriptionID]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// MetaEquals compares the order's metadata to a requested map by JSON
// normalization, so values that round-trip through JSONB still match.
func (o *Order) MetaEquals(meta map[string]interface{}) bool {
	if len(o.Meta) != len(meta) {
		return false
	}
	a, err := canonicalJSON(o.Meta)
	if err != nil {
		return false
	}
	b, err := canonicalJSON(meta)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func canonicalJSON(m map[string]interface{}) ([]byte, error) {
	// json.Marshal sorts map keys, which is all the normalization needed here.
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var round interface{}
	if err := json.Unmarshal(raw, &round); err != nil {
		return nil, err
	}
	return json.Marshal(round)
}
