package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-wallet-engine/config"
	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService: the
// pending -> {approved -> processing -> completed, rejected} state machine.
type WithdrawalServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	payoutRepo ports.PayoutRepository
	projector  ports.ProjectionService
	transactor ports.DBTransactor
	notifier   ports.NotificationService
	cfg        config.WithdrawalConfig
	log        zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	ledgerRepo ports.LedgerRepository,
	walletRepo ports.WalletRepository,
	payoutRepo ports.PayoutRepository,
	projector ports.ProjectionService,
	transactor ports.DBTransactor,
	notifier ports.NotificationService,
	cfg config.WithdrawalConfig,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		payoutRepo: payoutRepo,
		projector:  projector,
		transactor: transactor,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
	}
}

// Request validates and appends a pending withdrawal. All checks run against
// a fresh projection inside the wallet's critical section, so two concurrent
// requests cannot both observe sufficient balance, and the single in-flight
// rule cannot be raced past.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.LedgerRecord, error) {
	if req.Amount < s.cfg.MinAmount || req.Amount > s.cfg.MaxAmount {
		return nil, apperror.Validation(fmt.Sprintf(
			"withdrawal amount must be between %d and %d", s.cfg.MinAmount, s.cfg.MaxAmount))
	}

	var rec *domain.LedgerRecord
	err := s.withRetry(ctx, func() error {
		var err error
		rec, err = s.requestOnce(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, domain.WalletEvent{
		AccountID:  req.AccountID,
		EventType:  domain.EventWithdrawalRequested,
		RecordID:   rec.ID,
		OccurredAt: rec.CreatedAt,
	})

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("amount", req.Amount).
		Msg("withdrawal requested")

	return rec, nil
}

func (s *WithdrawalServiceImpl) requestOnce(ctx context.Context, req ports.WithdrawalRequest) (*domain.LedgerRecord, error) {
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

	dest, err := s.payoutRepo.GetByAccountID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payout destination: %w", err))
	}
	if !dest.IsActive() || dest.ID != req.DestinationID {
		return nil, apperror.ErrNotFound("payout destination")
	}

	projected, err := s.projector.ProjectTx(ctx, dbTx, wallet)
	if err != nil {
		return nil, err
	}

	// One withdrawal in flight per account. The fold counts records, so the
	// rule holds regardless of the configured minimum amount.
	if projected.InFlightWithdrawals > 0 {
		return nil, apperror.ErrDuplicateInFlightWithdrawal()
	}
	if projected.MonthlyWithdrawalCount >= projected.MonthlyLimit {
		return nil, apperror.ErrMonthlyLimitExceeded(domain.MonthlyResetAt(time.Now()))
	}
	if projected.AvailableBalance < req.Amount {
		return nil, apperror.ErrInsufficientBalance(projected.AvailableBalance)
	}

	now := time.Now().UTC()
	id := uuid.New()
	destID := req.DestinationID
	rec := &domain.LedgerRecord{
		ID:             id,
		IdempotencyKey: "wd:" + id.String(),
		AccountID:      req.AccountID,
		Kind:           domain.KindWithdrawal,
		Status:         domain.StatusPending,
		Amount:         req.Amount,
		DestinationID:  &destID,
		CreatedAt:      now,
	}

	if !domain.ValidInitialStatus(rec.Kind, rec.Status) {
		return nil, apperror.ErrInvalidKind()
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, rec); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append withdrawal: %w", err))
	}

	if err := s.reproject(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}
	return rec, nil
}

// Process applies an admin decision to a pending withdrawal.
func (s *WithdrawalServiceImpl) Process(ctx context.Context, req ports.ProcessWithdrawalRequest) (*domain.LedgerRecord, error) {
	target := domain.StatusApproved
	event := domain.EventWithdrawalApproved
	if req.Decision == ports.DecisionReject {
		target = domain.StatusRejected
		event = domain.EventWithdrawalRejected
	} else if req.Decision != ports.DecisionApprove {
		return nil, apperror.Validation("decision must be approve or reject")
	}

	rec, err := s.transition(ctx, req.RecordID, target, req.Actor, req.Notes)
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, domain.WalletEvent{
		AccountID:  rec.AccountID,
		EventType:  event,
		RecordID:   rec.ID,
		OccurredAt: time.Now().UTC(),
	})

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("decision", string(req.Decision)).
		Str("actor", req.Actor).
		Msg("withdrawal processed")

	return rec, nil
}

// Complete moves an approved or processing withdrawal to completed, once the
// funds have actually left through the banking rail.
func (s *WithdrawalServiceImpl) Complete(ctx context.Context, recordID uuid.UUID, actor string) (*domain.LedgerRecord, error) {
	rec, err := s.transition(ctx, recordID, domain.StatusCompleted, actor, "")
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, domain.WalletEvent{
		AccountID:  rec.AccountID,
		EventType:  domain.EventWithdrawalCompleted,
		RecordID:   rec.ID,
		OccurredAt: time.Now().UTC(),
	})

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("actor", actor).
		Msg("withdrawal completed")

	return rec, nil
}

// transition moves a withdrawal record to a new status under the wallet's
// critical section and persists the refreshed projection.
func (s *WithdrawalServiceImpl) transition(ctx context.Context, recordID uuid.UUID, to domain.RecordStatus, actor, notes string) (*domain.LedgerRecord, error) {
	rec, err := s.ledgerRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get record: %w", err))
	}
	if rec == nil || rec.Kind != domain.KindWithdrawal {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	if !domain.CanTransition(rec.Kind, rec.Status, to) {
		return nil, apperror.ErrInvalidTransition(string(rec.Status), string(to))
	}

	err = s.withRetry(ctx, func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		wallet, err := s.walletRepo.GetByAccountIDForUpdate(ctx, dbTx, rec.AccountID)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}

		// Re-read under the lock: the record may have been transitioned
		// by a concurrent admin action.
		current, err := s.ledgerRepo.GetByID(ctx, recordID)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("reread record: %w", err))
		}
		if current == nil {
			return apperror.ErrNotFound("withdrawal")
		}
		if !domain.CanTransition(current.Kind, current.Status, to) {
			return apperror.ErrInvalidTransition(string(current.Status), string(to))
		}

		var actorPtr, notesPtr *string
		if actor != "" {
			actorPtr = &actor
		}
		if notes != "" {
			notesPtr = &notes
		}
		if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, recordID, to, actorPtr, notesPtr); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update status: %w", err))
		}

		if err := s.reproject(ctx, dbTx, wallet); err != nil {
			return err
		}
		if err := dbTx.Commit(ctx); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
		}

		rec = current
		rec.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// reproject folds the ledger inside the transaction and persists the result.
func (s *WithdrawalServiceImpl) reproject(ctx context.Context, dbTx pgx.Tx, wallet *domain.WalletAggregate) error {
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

// withRetry runs fn, retrying a bounded number of times on concurrency
// conflicts before surfacing the conflict to the caller.
func (s *WithdrawalServiceImpl) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	attempts := s.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var appErr *apperror.AppError
		if !errors.As(lastErr, &appErr) || appErr.Code != apperror.CodeConcurrencyConflict {
			return lastErr
		}
		s.log.Warn().Int("attempt", i+1).Msg("concurrency conflict, retrying")
	}
	return lastErr
}
