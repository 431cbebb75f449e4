package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// CreditsServiceImpl implements ports.CreditsService. Credits are a non-cash
// sub-currency bought with wallet balance and burned on platform features;
// spending them never moves cash.
type CreditsServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	projector  ports.ProjectionService
	transactor ports.DBTransactor
	notifier   ports.NotificationService
	log        zerolog.Logger
}

// NewCreditsService creates a new CreditsServiceImpl.
func NewCreditsService(
	ledgerRepo ports.LedgerRepository,
	walletRepo ports.WalletRepository,
	projector ports.ProjectionService,
	transactor ports.DBTransactor,
	notifier ports.NotificationService,
	log zerolog.Logger,
) *CreditsServiceImpl {
	return &CreditsServiceImpl{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		projector:  projector,
		transactor: transactor,
		notifier:   notifier,
		log:        log,
	}
}

// Purchase buys a credits package with available balance. A deferred purchase
// is appended pending: the price is held against the balance until the
// gateway confirms (or the sweep expires it). Validation runs against a fresh
// projection inside the wallet critical section.
func (s *CreditsServiceImpl) Purchase(ctx context.Context, req ports.PurchaseCreditsRequest) (*domain.LedgerRecord, error) {
	credits, price := req.Credits, req.Price
	if req.PackageID != "" {
		pkg, ok := domain.PackageByID(req.PackageID)
		if !ok {
			return nil, apperror.ErrNotFound("credits package")
		}
		credits, price = pkg.Credits, pkg.Price
	}
	if credits <= 0 || price <= 0 {
		return nil, apperror.Validation("credits and price must be positive")
	}

	status := domain.StatusCompleted
	if req.Deferred {
		status = domain.StatusPending
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByAccountIDForUpdate(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.CanTransact() {
		return nil, apperror.ErrWalletNotTransactable(string(wallet.Status))
	}

	projected, err := s.projector.ProjectTx(ctx, dbTx, wallet)
	if err != nil {
		return nil, err
	}
	if projected.AvailableBalance < price {
		return nil, apperror.ErrInsufficientBalance(projected.AvailableBalance)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rec := &domain.LedgerRecord{
		ID:             id,
		IdempotencyKey: "cp:" + id.String(),
		AccountID:      req.AccountID,
		Kind:           domain.KindCreditPurchase,
		Status:         status,
		Amount:         price,
		Credits:        credits,
		CreatedAt:      now,
	}
	if status == domain.StatusCompleted {
		rec.ProcessedAt = &now
	}

	if !domain.ValidInitialStatus(rec.Kind, rec.Status) {
		return nil, apperror.ErrInvalidKind()
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, rec); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append credit purchase: %w", err))
	}
	if err := s.reproject(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	if status == domain.StatusCompleted {
		s.notifier.Emit(ctx, domain.WalletEvent{
			AccountID:  req.AccountID,
			EventType:  domain.EventCreditsPurchased,
			RecordID:   rec.ID,
			OccurredAt: now,
		})
	}

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("credits", credits).
		Int64("price", price).
		Bool("deferred", req.Deferred).
		Msg("credits purchase appended")

	return rec, nil
}

// Use burns credits on a platform feature. Cash-neutral: the available
// balance is untouched.
func (s *CreditsServiceImpl) Use(ctx context.Context, req ports.UseCreditsRequest) (*domain.LedgerRecord, error) {
	if req.Credits <= 0 {
		return nil, apperror.Validation("credits must be positive")
	}
	if req.Purpose == "" {
		return nil, apperror.Validation("purpose is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByAccountIDForUpdate(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.CanTransact() {
		return nil, apperror.ErrWalletNotTransactable(string(wallet.Status))
	}

	projected, err := s.projector.ProjectTx(ctx, dbTx, wallet)
	if err != nil {
		return nil, err
	}
	if projected.CreditsBalance < req.Credits {
		return nil, apperror.ErrInsufficientCredits(projected.CreditsBalance)
	}

	now := time.Now().UTC()
	id := uuid.New()
	purpose := req.Purpose
	rec := &domain.LedgerRecord{
		ID:             id,
		IdempotencyKey: "cu:" + id.String(),
		AccountID:      req.AccountID,
		Kind:           domain.KindCreditUsage,
		Status:         domain.StatusCompleted,
		Credits:        req.Credits,
		Purpose:        &purpose,
		CreatedAt:      now,
		ProcessedAt:    &now,
	}

	if !domain.ValidInitialStatus(rec.Kind, rec.Status) {
		return nil, apperror.ErrInvalidKind()
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, rec); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append credit usage: %w", err))
	}
	if err := s.reproject(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("credits", req.Credits).
		Str("purpose", req.Purpose).
		Msg("credits used")

	return rec, nil
}

// ConfirmPurchase completes a deferred purchase once the gateway confirms
// the upgrade flow; only then are the credits granted.
func (s *CreditsServiceImpl) ConfirmPurchase(ctx context.Context, recordID uuid.UUID, actor string) (*domain.LedgerRecord, error) {
	rec, err := s.ledgerRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get record: %w", err))
	}
	if rec == nil || rec.Kind != domain.KindCreditPurchase {
		return nil, apperror.ErrNotFound("credit purchase")
	}
	if !domain.CanTransition(rec.Kind, rec.Status, domain.StatusCompleted) {
		return nil, apperror.ErrInvalidTransition(string(rec.Status), string(domain.StatusCompleted))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByAccountIDForUpdate(ctx, dbTx, rec.AccountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	// Re-read under the lock: the sweep may have expired the purchase
	// between the pre-check and lock acquisition.
	current, err := s.ledgerRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("reread record: %w", err))
	}
	if current == nil {
		return nil, apperror.ErrNotFound("credit purchase")
	}
	if !domain.CanTransition(current.Kind, current.Status, domain.StatusCompleted) {
		return nil, apperror.ErrInvalidTransition(string(current.Status), string(domain.StatusCompleted))
	}
	rec = current

	var actorPtr *string
	if actor != "" {
		actorPtr = &actor
	}
	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, recordID, domain.StatusCompleted, actorPtr, nil); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update status: %w", err))
	}
	if err := s.reproject(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	rec.Status = domain.StatusCompleted

	s.notifier.Emit(ctx, domain.WalletEvent{
		AccountID:  rec.AccountID,
		EventType:  domain.EventCreditsPurchased,
		RecordID:   rec.ID,
		OccurredAt: time.Now().UTC(),
	})

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("actor", actor).
		Msg("deferred credit purchase confirmed")

	return rec, nil
}

// reproject folds the ledger inside the transaction and persists the result.
func (s *CreditsServiceImpl) reproject(ctx context.Context, dbTx pgx.Tx, wallet *domain.WalletAggregate) error {
	projected, err := s.projector.ProjectTx(ctx, dbTx, wallet)
	if err != nil {
		return err
	}
	if err := s.walletRepo.UpdateProjection(ctx, dbTx, projected); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return apperror.ErrConcurrencyConflict()
		}
		return apperror.ErrDatabaseError(fmt.Errorf("update projection: %w", err))
	}
	return nil
}
