package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const settlementCacheTTL = 24 * time.Hour

// SettlementServiceImpl implements ports.SettlementService. Settlements come
// from the payment gateway collaborator; replays of the same order reference
// must return the original record, never a second one.
type SettlementServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	walletSvc  ports.WalletService
	projector  ports.ProjectionService
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	ledgerRepo ports.LedgerRepository,
	walletRepo ports.WalletRepository,
	walletSvc ports.WalletService,
	projector ports.ProjectionService,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		walletSvc:  walletSvc,
		projector:  projector,
		idempCache: idempCache,
		transactor: transactor,
		log:        log,
	}
}

// RecordSettlement appends a completed sale or refund record. The append is
// idempotent on (account, order reference): a replay returns the already
// recorded entry with no new ledger row.
func (s *SettlementServiceImpl) RecordSettlement(ctx context.Context, req ports.SettlementRequest) (*domain.LedgerRecord, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if req.Kind != domain.KindSale && req.Kind != domain.KindRefund {
		return nil, apperror.ErrInvalidKind()
	}
	if req.OrderRef == "" {
		return nil, apperror.Validation("order_ref is required")
	}

	var idempKey string
	if req.Kind == domain.KindRefund {
		idempKey = domain.BuildRefundKey(req.AccountID, req.OrderRef)
	} else {
		idempKey = domain.BuildSettlementKey(req.AccountID, req.OrderRef)
	}

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return s.unmarshalCachedRecord(cached)
	}

	// Layer 2: DB idempotency check
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, idempKey)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	// Auto-provision the wallet so the first sale of a brand-new account
	// does not require an out-of-band setup step.
	if _, err := s.walletSvc.GetOrCreate(ctx, req.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	orderRef := req.OrderRef
	rec := &domain.LedgerRecord{
		ID:             uuid.New(),
		IdempotencyKey: idempKey,
		AccountID:      req.AccountID,
		Kind:           req.Kind,
		Status:         domain.StatusCompleted,
		Amount:         req.Amount,
		OrderRef:       &orderRef,
		CreatedAt:      now,
		ProcessedAt:    &now,
	}

	if err := s.appendAndReproject(ctx, rec); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == apperror.CodeDuplicateIdempotencyKey {
			// Lost the race to a concurrent replay: return the winner.
			winner, werr := s.ledgerRepo.GetByIdempotencyKey(ctx, idempKey)
			if werr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	// Post-process: cache in Redis (best-effort)
	if respJSON, merr := json.Marshal(rec); merr == nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, settlementCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache settlement in redis")
		}
	}

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("kind", string(req.Kind)).
		Int64("amount", req.Amount).
		Msg("settlement recorded")

	return rec, nil
}

// RecordAdjustment appends an administrative correction. Adjustments are
// additive ledger entries; history is never mutated to fix a mistake.
func (s *SettlementServiceImpl) RecordAdjustment(ctx context.Context, req ports.AdjustmentRequest) (*domain.LedgerRecord, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if req.Reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	if _, err := s.walletSvc.GetOrCreate(ctx, req.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reason := req.Reason
	actor := req.Actor
	id := uuid.New()
	rec := &domain.LedgerRecord{
		ID:             id,
		IdempotencyKey: "adj:" + id.String(),
		AccountID:      req.AccountID,
		Kind:           domain.KindAdjustment,
		Status:         domain.StatusCompleted,
		Amount:         req.Amount,
		Notes:          &reason,
		ProcessedBy:    &actor,
		CreatedAt:      now,
		ProcessedAt:    &now,
	}

	if err := s.appendAndReproject(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("record_id", rec.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("actor", req.Actor).
		Int64("amount", req.Amount).
		Msg("adjustment recorded")

	return rec, nil
}

// appendAndReproject locks the wallet row, appends the record and persists a
// fresh projection, all in one transaction.
func (s *SettlementServiceImpl) appendAndReproject(ctx context.Context, rec *domain.LedgerRecord) error {
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

	if !domain.ValidInitialStatus(rec.Kind, rec.Status) {
		return apperror.ErrInvalidKind()
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return apperror.ErrDuplicateIdempotencyKey()
		}
		return apperror.ErrDatabaseError(fmt.Errorf("append record: %w", err))
	}

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

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// unmarshalCachedRecord deserializes a cached ledger record.
func (s *SettlementServiceImpl) unmarshalCachedRecord(data []byte) (*domain.LedgerRecord, error) {
	rec := &domain.LedgerRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached record: %w", err))
	}
	return rec, nil
}
