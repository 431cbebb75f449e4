package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidInitialStatus(t *testing.T) {
	tests := []struct {
		kind   RecordKind
		status RecordStatus
		valid  bool
	}{
		{KindSale, StatusCompleted, true},
		{KindSale, StatusPending, false},
		{KindRefund, StatusCompleted, true},
		{KindAdjustment, StatusCompleted, true},
		{KindWithdrawal, StatusPending, true},
		{KindWithdrawal, StatusCompleted, false},
		{KindWithdrawal, StatusApproved, false},
		{KindCreditPurchase, StatusPending, true},
		{KindCreditPurchase, StatusCompleted, true},
		{KindCreditPurchase, StatusApproved, false},
		{KindCreditUsage, StatusCompleted, true},
		{KindCreditUsage, StatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidInitialStatus(tt.kind, tt.status),
			"%s/%s", tt.kind, tt.status)
	}
}

func TestCanTransition_Withdrawal(t *testing.T) {
	assert.True(t, CanTransition(KindWithdrawal, StatusPending, StatusApproved))
	assert.True(t, CanTransition(KindWithdrawal, StatusPending, StatusRejected))
	assert.True(t, CanTransition(KindWithdrawal, StatusApproved, StatusProcessing))
	assert.True(t, CanTransition(KindWithdrawal, StatusApproved, StatusCompleted))
	assert.True(t, CanTransition(KindWithdrawal, StatusProcessing, StatusCompleted))

	// Terminal states never transition.
	assert.False(t, CanTransition(KindWithdrawal, StatusCompleted, StatusPending))
	assert.False(t, CanTransition(KindWithdrawal, StatusRejected, StatusApproved))
	// Pending cannot jump straight to completed.
	assert.False(t, CanTransition(KindWithdrawal, StatusPending, StatusCompleted))
	assert.False(t, CanTransition(KindWithdrawal, StatusPending, StatusProcessing))
}

func TestCanTransition_CreditPurchase(t *testing.T) {
	assert.True(t, CanTransition(KindCreditPurchase, StatusPending, StatusCompleted))
	assert.True(t, CanTransition(KindCreditPurchase, StatusPending, StatusRejected))
	assert.False(t, CanTransition(KindCreditPurchase, StatusPending, StatusApproved))
	assert.False(t, CanTransition(KindCreditPurchase, StatusCompleted, StatusRejected))
}

func TestCanTransition_ImmutableKinds(t *testing.T) {
	// Sales, refunds and adjustments are appended completed and never move.
	for _, kind := range []RecordKind{KindSale, KindRefund, KindAdjustment, KindCreditUsage} {
		assert.False(t, CanTransition(kind, StatusCompleted, StatusRejected), string(kind))
		assert.False(t, CanTransition(kind, StatusPending, StatusCompleted), string(kind))
	}
}

func TestRecordStatus_IsInFlight(t *testing.T) {
	assert.True(t, StatusPending.IsInFlight())
	assert.True(t, StatusApproved.IsInFlight())
	assert.True(t, StatusProcessing.IsInFlight())
	assert.False(t, StatusCompleted.IsInFlight())
	assert.False(t, StatusRejected.IsInFlight())
}

func TestRecordStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestBuildSettlementKey(t *testing.T) {
	accountID := uuid.New()
	key := BuildSettlementKey(accountID, "ORDER-42")
	assert.Equal(t, accountID.String()+":settle:ORDER-42", key)
}

func TestWalletAggregate_CanTransact(t *testing.T) {
	w := &WalletAggregate{Status: WalletStatusActive}
	assert.True(t, w.CanTransact())

	for _, s := range []WalletStatus{WalletStatusSuspended, WalletStatusFrozen, WalletStatusClosed} {
		w.Status = s
		assert.False(t, w.CanTransact(), string(s))
	}
}

func TestMonthlyResetAt(t *testing.T) {
	now := time.Date(2026, 8, 29, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), MonthlyResetAt(now))

	// December rolls into January of the next year.
	dec := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), MonthlyResetAt(dec))
}

func TestPackageByID(t *testing.T) {
	p, ok := PackageByID("starter")
	assert.True(t, ok)
	assert.Equal(t, int64(50), p.Credits)
	assert.Equal(t, int64(50000), p.Price)

	_, ok = PackageByID("nonexistent")
	assert.False(t, ok)
}

func TestCapabilities(t *testing.T) {
	seller := SellerCapabilities()
	assert.True(t, HasCapability(seller, CapWalletWithdraw))
	assert.False(t, HasCapability(seller, CapAdminWithdrawals))

	admin := AdminCapabilities()
	assert.True(t, HasCapability(admin, CapAdminWithdrawals))
	assert.False(t, HasCapability(admin, CapWalletWithdraw))

	parsed := ParseCapabilities([]string{"wallet:read", "bogus"})
	assert.True(t, HasCapability(parsed, CapWalletRead))
	assert.False(t, HasCapability(parsed, CapAdminPayouts))
}
