package model

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/domain"
)

type TransactionType string

const (
	TransactionTypeSystem   TransactionType = "system"   // funded by / paid to the platform
	TransactionTypeTransfer TransactionType = "transfer" // peer-to-peer between wallets
	TransactionTypeOrder    TransactionType = "order"    // order settlement or refund
)

// Transaction is the immutable record of one completed money movement.
// At least one of PayerPocketID/PayeePocketID is set: a missing payer means
// the amount was minted by the system, a missing payee means it was collected
// by the system. Rows are inserted once and never updated or deleted.
type Transaction struct {
	ID            string // ULID, sortable by creation time
	PayerPocketID *string
	PayeePocketID *string
	Currency      string
	Amount        decimal.Decimal // > 0
	Type          TransactionType
	Remark        string
	CreatedAt     time.Time
}

// NewTransaction validates and constructs a transaction record.
func NewTransaction(id string, payerPocketID, payeePocketID *string, currency string, amount decimal.Decimal, typ TransactionType, remark string, now time.Time) (*Transaction, error) {
	if id == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if payerPocketID == nil && payeePocketID == nil {
		return nil, domain.ErrInvalidArgument
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return &Transaction{
		ID:            id,
		PayerPocketID: payerPocketID,
		PayeePocketID: payeePocketID,
		Currency:      currency,
		Amount:        amount,
		Type:          typ,
		Remark:        remark,
		CreatedAt:     now,
	}, nil
}
