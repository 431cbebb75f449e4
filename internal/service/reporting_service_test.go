package service

import (
	"context"
	"testing"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reportingTestDeps struct {
	svc        *ReportingServiceImpl
	ledgerRepo *mocks.MockLedgerRepository
	walletSvc  *mocks.MockWalletService
	projector  *mocks.MockProjectionService
	ctrl       *gomock.Controller
}

func setupReportingService(t *testing.T) *reportingTestDeps {
	ctrl := gomock.NewController(t)
	d := &reportingTestDeps{
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		walletSvc:  mocks.NewMockWalletService(ctrl),
		projector:  mocks.NewMockProjectionService(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewReportingService(d.ledgerRepo, d.walletSvc, d.projector, zerolog.Nop())
	return d
}

func TestReportingService_GetSummary(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.walletSvc.EXPECT().GetOrCreate(ctx, accountID).Return(&domain.WalletAggregate{AccountID: accountID}, nil)
	d.projector.EXPECT().Project(ctx, accountID).Return(&domain.WalletAggregate{
		AccountID:              accountID,
		Status:                 domain.WalletStatusActive,
		AvailableBalance:       350000,
		PendingWithdrawals:     50000,
		CreditsBalance:         30,
		LifetimeEarnings:       900000,
		LifetimeWithdrawals:    500000,
		MonthlyRevenue:         150000,
		MonthlyWithdrawalCount: 1,
		MonthlyLimit:           2,
	}, nil)

	summary, err := d.svc.GetSummary(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, accountID, summary.AccountID)
	assert.Equal(t, int64(350000), summary.AvailableBalance)
	assert.Equal(t, int64(50000), summary.PendingWithdrawals)
	assert.Equal(t, int64(30), summary.CreditsBalance)
	assert.Equal(t, 1, summary.MonthlyWithdrawals)
	assert.Equal(t, 2, summary.MonthlyLimit)
	assert.False(t, summary.MonthlyResetAt.IsZero())
	assert.Equal(t, 1, summary.MonthlyResetAt.Day(), "counter resets on the first of next month")
}

func TestReportingService_GetSummary_NewSellerSeesZeros(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	fresh := &domain.WalletAggregate{AccountID: accountID, Status: domain.WalletStatusActive, MonthlyLimit: 2}
	d.walletSvc.EXPECT().GetOrCreate(ctx, accountID).Return(fresh, nil)
	d.projector.EXPECT().Project(ctx, accountID).Return(fresh, nil)

	summary, err := d.svc.GetSummary(ctx, accountID)
	require.NoError(t, err)
	assert.Zero(t, summary.AvailableBalance)
	assert.Zero(t, summary.CreditsBalance)
	assert.Equal(t, domain.WalletStatusActive, summary.Status)
}

func TestReportingService_ListTransactions_ClampsPagination(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.ledgerRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.LedgerListParams) ([]domain.LedgerRecord, int64, error) {
			assert.Equal(t, 1, params.Page)
			assert.Equal(t, 20, params.PageSize)
			return []domain.LedgerRecord{}, 0, nil
		})

	_, _, err := d.svc.ListTransactions(ctx, ports.LedgerListParams{
		AccountID: accountID, Page: 0, PageSize: 1000,
	})
	require.NoError(t, err)
}

func TestReportingService_ListTransactions_PassesFilters(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	kind := domain.KindWithdrawal
	status := domain.StatusCompleted

	records := []domain.LedgerRecord{{ID: uuid.New(), Kind: kind, Status: status}}
	d.ledgerRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.LedgerListParams) ([]domain.LedgerRecord, int64, error) {
			assert.Equal(t, &kind, params.Kind)
			assert.Equal(t, &status, params.Status)
			return records, 1, nil
		})

	recs, total, err := d.svc.ListTransactions(ctx, ports.LedgerListParams{
		AccountID: accountID, Kind: &kind, Status: &status, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, recs, 1)
}
