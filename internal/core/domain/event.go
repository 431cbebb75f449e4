package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a wallet lifecycle event emitted to the external
// notification service.
type EventType string

const (
	EventWithdrawalRequested EventType = "WITHDRAWAL_REQUESTED"
	EventWithdrawalApproved  EventType = "WITHDRAWAL_APPROVED"
	EventWithdrawalRejected  EventType = "WITHDRAWAL_REJECTED"
	EventWithdrawalCompleted EventType = "WITHDRAWAL_COMPLETED"
	EventCreditsPurchased    EventType = "CREDITS_PURCHASED"
	EventPurchaseExpired     EventType = "CREDIT_PURCHASE_EXPIRED"
	EventPayoutUnlocked      EventType = "PAYOUT_DESTINATION_UNLOCKED"
)

// WalletEvent is the payload delivered to the notification service.
// Delivery and formatting are the collaborator's concern.
type WalletEvent struct {
	AccountID  uuid.UUID `json:"account_id"`
	EventType  EventType `json:"event_type"`
	RecordID   uuid.UUID `json:"record_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
