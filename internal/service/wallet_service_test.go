package service

import (
	"context"
	"testing"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports/mocks"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWalletService_GetOrCreate_Existing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, 2, zerolog.Nop())

	accountID := uuid.New()
	existing := &domain.WalletAggregate{AccountID: accountID, Version: 7, Status: domain.WalletStatusActive}
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(existing, nil)

	w, err := svc.GetOrCreate(context.Background(), accountID)
	require.NoError(t, err)
	assert.Same(t, existing, w)
}

func TestWalletService_GetOrCreate_Provisions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, 2, zerolog.Nop())

	accountID := uuid.New()
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(nil, nil)
	walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.WalletAggregate) error {
			assert.Equal(t, accountID, w.AccountID)
			assert.Equal(t, int64(1), w.Version)
			assert.Equal(t, domain.WalletStatusActive, w.Status)
			assert.Equal(t, 2, w.MonthlyLimit)
			return nil
		})
	created := &domain.WalletAggregate{AccountID: accountID, Version: 1, Status: domain.WalletStatusActive, MonthlyLimit: 2}
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(created, nil)

	w, err := svc.GetOrCreate(context.Background(), accountID)
	require.NoError(t, err)
	assert.Same(t, created, w)
}

func TestWalletService_GetOrCreate_ConcurrentLoser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, 2, zerolog.Nop())

	accountID := uuid.New()
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(nil, nil)
	// The insert is silently absorbed by ON CONFLICT DO NOTHING; the re-read
	// returns the row the winner created.
	walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	winner := &domain.WalletAggregate{AccountID: accountID, Version: 4, Status: domain.WalletStatusActive}
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(winner, nil)

	w, err := svc.GetOrCreate(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), w.Version)
}

func TestWalletService_GetOrCreate_MissingAfterProvision(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, 2, zerolog.Nop())

	accountID := uuid.New()
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(nil, nil)
	walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	walletRepo.EXPECT().GetByAccountID(gomock.Any(), accountID).Return(nil, nil)

	_, err := svc.GetOrCreate(context.Background(), accountID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}
