package models

import "errors"

// Sentinel errors for the credit engine. Handlers classify these with
// errors.Is after services have wrapped them with context.
var (
	// ErrInsufficientCredits means a debit would take the balance below zero.
	// Recoverable; the caller should prompt the user to buy more credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotEligible means a premium-only package was requested by a user
	// without an active subscription.
	ErrNotEligible = errors.New("not eligible")

	// ErrNotFound means an unknown user, project, package or subscription id.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is a transient failure of the atomic unlock
	// step (serialization failure, deadlock). The service retries it
	// internally; it is never surfaced to API callers.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
