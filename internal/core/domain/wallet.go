package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus flags an account wallet. Wallets are never deleted, only
// status-flagged.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"
	WalletStatusSuspended WalletStatus = "SUSPENDED"
	WalletStatusFrozen    WalletStatus = "FROZEN"
	WalletStatusClosed    WalletStatus = "CLOSED"
)

// WalletAggregate is the materialized snapshot derived by folding the ledger
// for one account. It is a cache: it can be recomputed from ledger records at
// any time and is never hand-edited. Version guards concurrent refreshes.
type WalletAggregate struct {
	AccountID              uuid.UUID    `json:"account_id"`
	Version                int64        `json:"-"`
	Status                 WalletStatus `json:"status"`
	AvailableBalance       int64        `json:"available_balance"`
	PendingWithdrawals     int64        `json:"pending_withdrawals"`
	InFlightWithdrawals    int          `json:"in_flight_withdrawals"`
	CreditsBalance         int64        `json:"credits_balance"`
	LifetimeEarnings       int64        `json:"lifetime_earnings"`
	LifetimeWithdrawals    int64        `json:"lifetime_withdrawals"`
	MonthlyRevenue         int64        `json:"monthly_revenue"`
	MonthlyWithdrawalCount int          `json:"monthly_withdrawal_count"`
	MonthlyLimit           int          `json:"monthly_limit"`
	ProjectedAt            time.Time    `json:"projected_at"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// CanTransact reports whether mutating operations are allowed on the wallet.
func (w *WalletAggregate) CanTransact() bool {
	return w.Status == WalletStatusActive
}

// MonthlyResetAt returns when the monthly withdrawal counter resets.
func MonthlyResetAt(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
