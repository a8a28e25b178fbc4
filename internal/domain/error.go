package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOrderExpired      = errors.New("order has expired")
	ErrNoActiveWallet    = errors.New("account has no wallet")
	// ErrCouponNotFound wraps ErrNotFound so generic not-found handling
	// still applies to coupon lookups.
	ErrCouponNotFound     = fmt.Errorf("coupon: %w", ErrNotFound)
	ErrNoSubscription     = errors.New("no current subscription for plan")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context passed to repository")
	ErrRenewalLockHeld    = errors.New("renewal tick lock held by another instance")
)
