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

// ReportingServiceImpl implements ports.ReportingService: the read side of
// the wallet. Summaries are always served from a fresh fold, never from the
// persisted snapshot, so a stale projection can not mislead a seller.
type ReportingServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	walletSvc  ports.WalletService
	projector  ports.ProjectionService
	log        zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(
	ledgerRepo ports.LedgerRepository,
	walletSvc ports.WalletService,
	projector ports.ProjectionService,
	log zerolog.Logger,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		ledgerRepo: ledgerRepo,
		walletSvc:  walletSvc,
		projector:  projector,
		log:        log,
	}
}

// GetSummary returns the wallet summary, provisioning the wallet on first
// access so a brand-new seller sees zeros instead of an error.
func (s *ReportingServiceImpl) GetSummary(ctx context.Context, accountID uuid.UUID) (*ports.WalletSummary, error) {
	if _, err := s.walletSvc.GetOrCreate(ctx, accountID); err != nil {
		return nil, err
	}

	w, err := s.projector.Project(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &ports.WalletSummary{
		AccountID:           w.AccountID,
		Status:              w.Status,
		AvailableBalance:    w.AvailableBalance,
		PendingWithdrawals:  w.PendingWithdrawals,
		CreditsBalance:      w.CreditsBalance,
		LifetimeEarnings:    w.LifetimeEarnings,
		LifetimeWithdrawals: w.LifetimeWithdrawals,
		MonthlyRevenue:      w.MonthlyRevenue,
		MonthlyWithdrawals:  w.MonthlyWithdrawalCount,
		MonthlyLimit:        w.MonthlyLimit,
		MonthlyResetAt:      domain.MonthlyResetAt(time.Now()),
	}, nil
}

// ListTransactions returns a filtered, paginated ledger page.
func (s *ReportingServiceImpl) ListTransactions(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerRecord, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	recs, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return recs, total, nil
}
