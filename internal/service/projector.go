package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProjectorService implements ports.ProjectionService. The ledger is the
// source of truth; every balance the system reports is a fold over it. The
// fold is deterministic, so a projection can always be rebuilt from scratch.
type ProjectorService struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	// countRejected keeps rejected withdrawals in the monthly counter,
	// matching the historical soft-limit behavior.
	countRejected bool
}

// NewProjectorService creates a new ProjectorService.
func NewProjectorService(ledgerRepo ports.LedgerRepository, walletRepo ports.WalletRepository, countRejected bool) *ProjectorService {
	return &ProjectorService{
		ledgerRepo:    ledgerRepo,
		walletRepo:    walletRepo,
		countRejected: countRejected,
	}
}

// Project recomputes the wallet aggregate from the full ledger history
// outside any transaction (read path).
func (s *ProjectorService) Project(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error) {
	base, err := s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load wallet: %w", err))
	}
	if base == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	records, err := s.ledgerRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load ledger: %w", err))
	}

	return Fold(base, records, time.Now().UTC(), s.countRejected), nil
}

// ProjectTx recomputes the aggregate inside the caller's transaction, so a
// record appended earlier in the same transaction is part of the fold.
func (s *ProjectorService) ProjectTx(ctx context.Context, tx pgx.Tx, base *domain.WalletAggregate) (*domain.WalletAggregate, error) {
	records, err := s.ledgerRepo.ListByAccountTx(ctx, tx, base.AccountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load ledger in tx: %w", err))
	}
	return Fold(base, records, time.Now().UTC(), s.countRejected), nil
}

// Fold computes the wallet aggregate from a ledger history. It is a pure
// function of the base row's identity fields and the records.
//
// Balance rules:
//   - completed sales, refunds and adjustments credit the available balance
//   - withdrawals debit it while in flight and once completed; a rejected
//     withdrawal releases its hold entirely
//   - credit purchases debit cash while pending (funds held) and once
//     completed; only completed purchases grant credits
//   - credit usage burns credits and never touches cash
//
// Negative intermediate sums clamp to zero rather than going negative;
// admission checks prevent the ledger from reaching that state, so the clamp
// only matters for historic data imported from the previous system.
//
// countRejected keeps rejected withdrawals in the monthly counter.
func Fold(base *domain.WalletAggregate, records []domain.LedgerRecord, now time.Time, countRejected bool) *domain.WalletAggregate {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	w := &domain.WalletAggregate{
		AccountID:    base.AccountID,
		Version:      base.Version,
		Status:       base.Status,
		MonthlyLimit: base.MonthlyLimit,
		ProjectedAt:  now,
		CreatedAt:    base.CreatedAt,
		UpdatedAt:    base.UpdatedAt,
	}

	var credits, debits int64
	var creditsEarned, creditsUsed int64

	for _, rec := range records {
		switch rec.Kind {
		case domain.KindSale:
			if rec.Status == domain.StatusCompleted {
				credits += rec.Amount
				w.LifetimeEarnings += rec.Amount
				if !rec.CreatedAt.Before(monthStart) {
					w.MonthlyRevenue += rec.Amount
				}
			}
		case domain.KindRefund, domain.KindAdjustment:
			if rec.Status == domain.StatusCompleted {
				credits += rec.Amount
			}
		case domain.KindWithdrawal:
			if rec.Status.IsInFlight() {
				debits += rec.Amount
				w.PendingWithdrawals += rec.Amount
				w.InFlightWithdrawals++
			}
			if rec.Status == domain.StatusCompleted {
				debits += rec.Amount
				w.LifetimeWithdrawals += rec.Amount
			}
			if !rec.CreatedAt.Before(monthStart) &&
				(countRejected || rec.Status != domain.StatusRejected) {
				w.MonthlyWithdrawalCount++
			}
		case domain.KindCreditPurchase:
			// Pending purchases hold the price until confirmed or swept.
			if rec.Status.IsInFlight() || rec.Status == domain.StatusCompleted {
				debits += rec.Amount
			}
			if rec.Status == domain.StatusCompleted {
				creditsEarned += rec.Credits
			}
		case domain.KindCreditUsage:
			creditsUsed += rec.Credits
		}
	}

	w.AvailableBalance = credits - debits
	if w.AvailableBalance < 0 {
		w.AvailableBalance = 0
	}
	w.CreditsBalance = creditsEarned - creditsUsed
	if w.CreditsBalance < 0 {
		w.CreditsBalance = 0
	}
	return w
}
