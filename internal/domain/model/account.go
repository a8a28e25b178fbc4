package model

// Account is the billing-relevant slice of a profile owned by the identity
// service: its wallet link and the cached "current plan" pointer that the
// renewal worker's hygiene sweep keeps honest. This module never creates or
// deletes accounts.
type Account struct {
	ID                    string
	WalletID              string
	CurrentSubscriptionID *string
}
