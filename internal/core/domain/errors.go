package domain

import "errors"

// Sentinel errors returned by repositories. The service layer maps them to
// the client-facing apperror taxonomy.
var (
	// ErrDuplicateKey signals a unique-constraint violation on the ledger
	// idempotency key.
	ErrDuplicateKey = errors.New("duplicate idempotency key")

	// ErrVersionConflict signals that a wallet aggregate write lost an
	// optimistic-version race and should be retried.
	ErrVersionConflict = errors.New("wallet version conflict")
)
