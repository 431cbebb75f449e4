package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind is the kind of monetary or credits event a ledger record
// describes. Direction is implied by the kind, amounts are always
// non-negative.
type RecordKind string

const (
	KindSale           RecordKind = "SALE"
	KindWithdrawal     RecordKind = "WITHDRAWAL"
	KindRefund         RecordKind = "REFUND"
	KindAdjustment     RecordKind = "ADJUSTMENT"
	KindCreditPurchase RecordKind = "CREDIT_PURCHASE"
	KindCreditUsage    RecordKind = "CREDIT_USAGE"
)

// RecordStatus is the lifecycle state of a ledger record.
type RecordStatus string

const (
	StatusPending    RecordStatus = "PENDING"
	StatusApproved   RecordStatus = "APPROVED"
	StatusRejected   RecordStatus = "REJECTED"
	StatusProcessing RecordStatus = "PROCESSING"
	StatusCompleted  RecordStatus = "COMPLETED"
)

// LedgerRecord is an immutable, append-only entry. Once a cash-moving record
// reaches COMPLETED it is never edited; corrections are new REFUND or
// ADJUSTMENT records.
type LedgerRecord struct {
	ID             uuid.UUID    `json:"id"`
	IdempotencyKey string       `json:"idempotency_key"`
	AccountID      uuid.UUID    `json:"account_id"`
	Kind           RecordKind   `json:"kind"`
	Status         RecordStatus `json:"status"`
	Amount         int64        `json:"amount"`  // minor currency units, >= 0
	Credits        int64        `json:"credits"` // credit count for credit kinds
	DestinationID  *uuid.UUID   `json:"destination_id,omitempty"`
	OrderRef       *string      `json:"order_ref,omitempty"`
	Purpose        *string      `json:"purpose,omitempty"` // credit usage purpose
	Notes          *string      `json:"notes,omitempty"`   // admin decision notes
	ProcessedBy    *string      `json:"processed_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
}

// initialStatuses is the admission table: the statuses a record of a given
// kind may be appended with.
var initialStatuses = map[RecordKind][]RecordStatus{
	KindSale:           {StatusCompleted},
	KindRefund:         {StatusCompleted},
	KindAdjustment:     {StatusCompleted},
	KindWithdrawal:     {StatusPending},
	KindCreditPurchase: {StatusPending, StatusCompleted},
	KindCreditUsage:    {StatusCompleted},
}

// transitions is the per-kind state machine for records that are appended in
// a non-terminal status.
var transitions = map[RecordKind]map[RecordStatus][]RecordStatus{
	KindWithdrawal: {
		StatusPending:    {StatusApproved, StatusRejected},
		StatusApproved:   {StatusProcessing, StatusCompleted},
		StatusProcessing: {StatusCompleted},
	},
	KindCreditPurchase: {
		StatusPending: {StatusCompleted, StatusRejected},
	},
}

// ValidInitialStatus reports whether a record of the given kind may be
// appended with the given status.
func ValidInitialStatus(kind RecordKind, status RecordStatus) bool {
	for _, s := range initialStatuses[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransition reports whether a record of the given kind may move from one
// status to another.
func CanTransition(kind RecordKind, from, to RecordStatus) bool {
	for _, s := range transitions[kind][from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsInFlight reports whether the status counts toward the single in-flight
// withdrawal rule and the pending-withdrawals hold.
func (s RecordStatus) IsInFlight() bool {
	return s == StatusPending || s == StatusApproved || s == StatusProcessing
}

// IsTerminal reports whether the record can no longer change.
func (s RecordStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// IsCashMoving reports whether the kind moves wallet balance (as opposed to
// the cash-neutral credits usage).
func (k RecordKind) IsCashMoving() bool {
	return k != KindCreditUsage
}

// BuildSettlementKey constructs the idempotency key for a gateway settlement,
// scoped by account so order references from different stores cannot collide.
func BuildSettlementKey(accountID uuid.UUID, orderRef string) string {
	return accountID.String() + ":settle:" + orderRef
}

// BuildRefundKey constructs the idempotency key for a gateway refund, kept
// distinct from the sale key of the same order reference.
func BuildRefundKey(accountID uuid.UUID, orderRef string) string {
	return accountID.String() + ":refund:" + orderRef
}
