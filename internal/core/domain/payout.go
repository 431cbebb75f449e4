package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutDestination is the bank/payout target an account withdraws to.
// It locks automatically on first save; only an administrative unlock clears
// the lock, and every mutation is captured in an append-only history.
type PayoutDestination struct {
	ID                 uuid.UUID  `json:"id"`
	AccountID          uuid.UUID  `json:"account_id"`
	BankName           string     `json:"bank_name"`
	AccountHolder      string     `json:"account_holder"`
	AccountNumberEnc   string     `json:"-"` // AES-256 encrypted, never expose raw
	AccountNumberLast4 string     `json:"account_number_last4"`
	IsLocked           bool       `json:"is_locked"`
	LockReason         *string    `json:"lock_reason,omitempty"`
	LockedAt           *time.Time `json:"locked_at,omitempty"`
	LockedBy           *string    `json:"locked_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsActive reports whether the destination can receive withdrawals.
// A locked destination is still active for payouts; the lock only gates
// edits to the destination itself.
func (d *PayoutDestination) IsActive() bool {
	return d != nil
}

// PayoutAction is the kind of audited destination mutation.
type PayoutAction string

const (
	PayoutActionCreated  PayoutAction = "CREATED"
	PayoutActionUpdated  PayoutAction = "UPDATED"
	PayoutActionLocked   PayoutAction = "LOCKED"
	PayoutActionUnlocked PayoutAction = "UNLOCKED"
)

// PayoutModification is one append-only audit entry for a destination.
type PayoutModification struct {
	ID            uuid.UUID    `json:"id"`
	DestinationID uuid.UUID    `json:"destination_id"`
	AccountID     uuid.UUID    `json:"account_id"`
	Action        PayoutAction `json:"action"`
	Actor         string       `json:"actor"`
	Details       *string      `json:"details,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
