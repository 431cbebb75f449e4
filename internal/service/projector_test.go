package service

import (
	"context"
	"testing"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports/mocks"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var foldNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func foldBase(accountID uuid.UUID) *domain.WalletAggregate {
	return &domain.WalletAggregate{
		AccountID:    accountID,
		Version:      3,
		Status:       domain.WalletStatusActive,
		MonthlyLimit: 2,
		CreatedAt:    foldNow.AddDate(0, -6, 0),
	}
}

func rec(accountID uuid.UUID, kind domain.RecordKind, status domain.RecordStatus, amount int64, createdAt time.Time) domain.LedgerRecord {
	return domain.LedgerRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Status:    status,
		Amount:    amount,
		CreatedAt: createdAt,
	}
}

func TestFold_EmptyLedger(t *testing.T) {
	accountID := uuid.New()
	w := Fold(foldBase(accountID), nil, foldNow, true)

	assert.Equal(t, accountID, w.AccountID)
	assert.Equal(t, int64(3), w.Version)
	assert.Zero(t, w.AvailableBalance)
	assert.Zero(t, w.PendingWithdrawals)
	assert.Zero(t, w.InFlightWithdrawals)
	assert.Zero(t, w.CreditsBalance)
	assert.Zero(t, w.LifetimeEarnings)
	assert.Zero(t, w.MonthlyWithdrawalCount)
	assert.Equal(t, 2, w.MonthlyLimit)
	assert.Equal(t, foldNow, w.ProjectedAt)
}

func TestFold_SalesAndRefunds(t *testing.T) {
	accountID := uuid.New()
	lastMonth := foldNow.AddDate(0, -1, 0)
	records := []domain.LedgerRecord{
		rec(accountID, domain.KindSale, domain.StatusCompleted, 100000, lastMonth),
		rec(accountID, domain.KindSale, domain.StatusCompleted, 50000, foldNow.AddDate(0, 0, -1)),
		rec(accountID, domain.KindRefund, domain.StatusCompleted, 20000, foldNow.AddDate(0, 0, -1)),
		rec(accountID, domain.KindAdjustment, domain.StatusCompleted, 5000, foldNow),
	}

	w := Fold(foldBase(accountID), records, foldNow, true)

	assert.Equal(t, int64(175000), w.AvailableBalance)
	assert.Equal(t, int64(150000), w.LifetimeEarnings, "refunds and adjustments are not earnings")
	assert.Equal(t, int64(50000), w.MonthlyRevenue, "only current-month sales count")
}

func TestFold_WithdrawalStates(t *testing.T) {
	accountID := uuid.New()
	thisMonth := foldNow.AddDate(0, 0, -2)
	records := []domain.LedgerRecord{
		rec(accountID, domain.KindSale, domain.StatusCompleted, 500000, thisMonth),
		rec(accountID, domain.KindWithdrawal, domain.StatusCompleted, 100000, foldNow.AddDate(0, -2, 0)),
		rec(accountID, domain.KindWithdrawal, domain.StatusRejected, 999999, thisMonth),
		rec(accountID, domain.KindWithdrawal, domain.StatusApproved, 50000, thisMonth),
	}

	w := Fold(foldBase(accountID), records, foldNow, true)

	// 500000 - 100000 completed - 50000 in flight; the rejected one released
	// its hold entirely.
	assert.Equal(t, int64(350000), w.AvailableBalance)
	assert.Equal(t, int64(50000), w.PendingWithdrawals)
	assert.Equal(t, 1, w.InFlightWithdrawals, "only the approved one is still in flight")
	assert.Equal(t, int64(100000), w.LifetimeWithdrawals)
	assert.Equal(t, 2, w.MonthlyWithdrawalCount, "rejected and approved both count this month")
}

func TestFold_MonthlyCount_CountRejectedOff(t *testing.T) {
	accountID := uuid.New()
	thisMonth := foldNow.AddDate(0, 0, -2)
	records := []domain.LedgerRecord{
		rec(accountID, domain.KindWithdrawal, domain.StatusRejected, 10000, thisMonth),
		rec(accountID, domain.KindWithdrawal, domain.StatusCompleted, 10000, thisMonth),
	}

	w := Fold(foldBase(accountID), records, foldNow, false)
	assert.Equal(t, 1, w.MonthlyWithdrawalCount, "rejected withdrawal releases its monthly slot")

	w = Fold(foldBase(accountID), records, foldNow, true)
	assert.Equal(t, 2, w.MonthlyWithdrawalCount)
}

func TestFold_MonthBoundary(t *testing.T) {
	accountID := uuid.New()
	// December: the month window must not leak into the previous year.
	now := time.Date(2025, 12, 3, 8, 0, 0, 0, time.UTC)
	records := []domain.LedgerRecord{
		rec(accountID, domain.KindSale, domain.StatusCompleted, 1000, time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC)),
		rec(accountID, domain.KindSale, domain.StatusCompleted, 2000, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)),
		rec(accountID, domain.KindWithdrawal, domain.StatusPending, 500, time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)),
	}

	w := Fold(foldBase(accountID), records, now, true)

	assert.Equal(t, int64(2000), w.MonthlyRevenue, "midnight on the 1st is in the new month")
	assert.Zero(t, w.MonthlyWithdrawalCount, "last month's withdrawal does not consume this month's allowance")
	assert.Equal(t, int64(500), w.PendingWithdrawals, "the hold itself has no month window")
}

func TestFold_CreditPurchaseHold(t *testing.T) {
	accountID := uuid.New()
	thisMonth := foldNow.AddDate(0, 0, -1)
	completed := rec(accountID, domain.KindCreditPurchase, domain.StatusCompleted, 50000, thisMonth)
	completed.Credits = 50
	pending := rec(accountID, domain.KindCreditPurchase, domain.StatusPending, 120000, thisMonth)
	pending.Credits = 150
	expired := rec(accountID, domain.KindCreditPurchase, domain.StatusRejected, 350000, thisMonth)
	expired.Credits = 500
	usage := rec(accountID, domain.KindCreditUsage, domain.StatusCompleted, 0, thisMonth)
	usage.Credits = 20

	records := []domain.LedgerRecord{
		rec(accountID, domain.KindSale, domain.StatusCompleted, 400000, thisMonth),
		completed, pending, expired, usage,
	}

	w := Fold(foldBase(accountID), records, foldNow, true)

	// 400000 - 50000 completed - 120000 held by the pending purchase; the
	// expired purchase released its hold.
	assert.Equal(t, int64(230000), w.AvailableBalance)
	assert.Equal(t, int64(30), w.CreditsBalance, "only completed purchases grant credits")
}

func TestFold_ClampsToZero(t *testing.T) {
	accountID := uuid.New()
	records := []domain.LedgerRecord{
		rec(accountID, domain.KindWithdrawal, domain.StatusCompleted, 100, foldNow),
	}
	usage := rec(accountID, domain.KindCreditUsage, domain.StatusCompleted, 0, foldNow)
	usage.Credits = 10
	records = append(records, usage)

	w := Fold(foldBase(accountID), records, foldNow, true)

	assert.Zero(t, w.AvailableBalance)
	assert.Zero(t, w.CreditsBalance)
}

func TestProjectorService_Project_WalletNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewProjectorService(ledgerRepo, walletRepo, true)

	accountID := uuid.New()
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(nil, nil)

	_, err := svc.Project(context.Background(), accountID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_007", appErr.Code)
}

func TestProjectorService_Project_FoldsLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewProjectorService(ledgerRepo, walletRepo, true)

	accountID := uuid.New()
	base := foldBase(accountID)
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(base, nil)
	ledgerRepo.EXPECT().ListByAccount(gomock.Any(), accountID).Return([]domain.LedgerRecord{
		rec(accountID, domain.KindSale, domain.StatusCompleted, 75000, time.Now().UTC()),
	}, nil)

	w, err := svc.Project(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), w.AvailableBalance)
	assert.Equal(t, int64(75000), w.LifetimeEarnings)
}
