package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Store errors
	ErrOperationFailed    = errors.New("store operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrStoreUnavailable   = errors.New("store unavailable")

	// Webhook / reconciliation errors
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrMalformedPayload = errors.New("webhook payload matches no known schema")
	ErrUnknownOrder     = errors.New("no payment for gateway order id")
	ErrAlreadyTerminal  = errors.New("payment already in a terminal status")

	// Billing errors
	ErrPlanInactive         = errors.New("pricing plan is not active")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrLockNotAcquired      = errors.New("could not acquire lock")
)
