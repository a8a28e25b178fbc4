package model

// PaymentMethod is a closed set of ways a subscription renewal can be
// settled. Only the in-app wallet supports automatic settlement by the
// renewal worker; everything else waits for a manual payment.
type PaymentMethod string

const (
	PaymentMethodWallet   PaymentMethod = "wallet"   // in-app wallet, auto-settled
	PaymentMethodExternal PaymentMethod = "external" // settled outside, manual only
	PaymentMethodManual   PaymentMethod = "manual"   // operator-confirmed, manual only
)

// SupportsAutoSettle reports whether the renewal worker may pay a renewal
// order for this method without user interaction.
func (m PaymentMethod) SupportsAutoSettle() bool {
	return m == PaymentMethodWallet
}

// Valid reports whether m is one of the known methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodWallet, PaymentMethodExternal, PaymentMethodManual:
		return true
	}
	return false
}
