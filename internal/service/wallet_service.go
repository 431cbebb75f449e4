package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	monthlyLimit int
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(walletRepo ports.WalletRepository, monthlyLimit int, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		monthlyLimit: monthlyLimit,
		log:          log,
	}
}

// GetOrCreate returns the wallet aggregate for an account, provisioning it on
// first access. Provisioning is insert-if-absent followed by a re-read, so
// concurrent first callers all converge on the single row that won the
// insert. An account's first settlement, first withdrawal attempt and first
// summary view may race here freely.
func (s *WalletServiceImpl) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error) {
	w, err := s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if w != nil {
		return w, nil
	}

	now := time.Now().UTC()
	fresh := &domain.WalletAggregate{
		AccountID:    accountID,
		Version:      1,
		Status:       domain.WalletStatusActive,
		MonthlyLimit: s.monthlyLimit,
		ProjectedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.walletRepo.Create(ctx, fresh); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}

	// Re-read: if a concurrent caller won the insert, return its row.
	w, err = s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("reread wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.InternalError(fmt.Errorf("wallet missing after provisioning: %s", accountID))
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Msg("wallet provisioned")

	return w, nil
}
