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

// PayoutServiceImpl implements ports.PayoutService under the lock invariant:
// every successful save locks the destination, and only an audited admin
// unlock can clear the lock.
type PayoutServiceImpl struct {
	payoutRepo ports.PayoutRepository
	encSvc     ports.EncryptionService
	notifier   ports.NotificationService
	log        zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	payoutRepo ports.PayoutRepository,
	encSvc ports.EncryptionService,
	notifier ports.NotificationService,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		payoutRepo: payoutRepo,
		encSvc:     encSvc,
		notifier:   notifier,
		log:        log,
	}
}

// Get returns the account's payout destination.
func (s *PayoutServiceImpl) Get(ctx context.Context, accountID uuid.UUID) (*domain.PayoutDestination, error) {
	dest, err := s.payoutRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payout destination: %w", err))
	}
	if dest == nil {
		return nil, apperror.ErrNotFound("payout destination")
	}
	return dest, nil
}

// Upsert creates or replaces the destination. Allowed only when none exists
// yet or the existing one is unlocked; the save itself re-locks it, so every
// change of bank details forces a fresh admin review before the next change.
func (s *PayoutServiceImpl) Upsert(ctx context.Context, req ports.UpsertPayoutRequest) (*domain.PayoutDestination, error) {
	if req.BankName == "" || req.AccountHolder == "" || len(req.AccountNumber) < 4 {
		return nil, apperror.Validation("bank_name, account_holder and account_number are required")
	}

	existing, err := s.payoutRepo.GetByAccountID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payout destination: %w", err))
	}
	if existing != nil && existing.IsLocked {
		return nil, apperror.ErrLockedResource("Payout destination")
	}

	enc, err := s.encSvc.Encrypt(req.AccountNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt account number: %w", err))
	}

	now := time.Now().UTC()
	actor := req.Actor
	lockReason := "automatic lock after destination change"
	action := domain.PayoutActionCreated

	dest := existing
	if dest == nil {
		dest = &domain.PayoutDestination{
			ID:        uuid.New(),
			AccountID: req.AccountID,
			CreatedAt: now,
		}
	} else {
		action = domain.PayoutActionUpdated
	}

	dest.BankName = req.BankName
	dest.AccountHolder = req.AccountHolder
	dest.AccountNumberEnc = enc
	dest.AccountNumberLast4 = req.AccountNumber[len(req.AccountNumber)-4:]
	dest.IsLocked = true
	dest.LockReason = &lockReason
	dest.LockedAt = &now
	dest.LockedBy = &actor
	dest.UpdatedAt = now

	if action == domain.PayoutActionCreated {
		err = s.payoutRepo.Create(ctx, dest)
	} else {
		err = s.payoutRepo.Update(ctx, dest)
	}
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("save payout destination: %w", err))
	}

	details := fmt.Sprintf("%s ****%s", dest.BankName, dest.AccountNumberLast4)
	s.appendModification(ctx, dest, action, actor, &details)

	s.log.Info().
		Str("destination_id", dest.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("action", string(action)).
		Msg("payout destination saved and locked")

	return dest, nil
}

// AdminUnlock clears the lock. This is the only path that does.
func (s *PayoutServiceImpl) AdminUnlock(ctx context.Context, accountID uuid.UUID, actor string, reason string) (*domain.PayoutDestination, error) {
	dest, err := s.payoutRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payout destination: %w", err))
	}
	if dest == nil {
		return nil, apperror.ErrNotFound("payout destination")
	}

	dest.IsLocked = false
	dest.LockReason = nil
	dest.LockedAt = nil
	dest.LockedBy = nil
	dest.UpdatedAt = time.Now().UTC()

	if err := s.payoutRepo.Update(ctx, dest); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("unlock payout destination: %w", err))
	}

	var details *string
	if reason != "" {
		details = &reason
	}
	s.appendModification(ctx, dest, domain.PayoutActionUnlocked, actor, details)

	s.notifier.Emit(ctx, domain.WalletEvent{
		AccountID:  accountID,
		EventType:  domain.EventPayoutUnlocked,
		RecordID:   dest.ID,
		OccurredAt: time.Now().UTC(),
	})

	s.log.Info().
		Str("destination_id", dest.ID.String()).
		Str("account_id", accountID.String()).
		Str("actor", actor).
		Msg("payout destination unlocked")

	return dest, nil
}

// appendModification records an audit entry; failures are logged, they never
// undo the destination change itself.
func (s *PayoutServiceImpl) appendModification(ctx context.Context, dest *domain.PayoutDestination, action domain.PayoutAction, actor string, details *string) {
	mod := &domain.PayoutModification{
		ID:            uuid.New(),
		DestinationID: dest.ID,
		AccountID:     dest.AccountID,
		Action:        action,
		Actor:         actor,
		Details:       details,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.payoutRepo.AppendModification(ctx, mod); err != nil {
		s.log.Error().Err(err).
			Str("destination_id", dest.ID.String()).
			Str("action", string(action)).
			Msg("failed to append payout modification entry")
	}
}
