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

	"github.com/rs/zerolog"
)

// Sweeper periodically expires credit purchases abandoned mid-flow. A
// pending purchase holds its price against the balance; without the sweep an
// abandoned upgrade attempt would pin the seller's funds forever.
type Sweeper struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	projector  ports.ProjectionService
	transactor ports.DBTransactor
	notifier   ports.NotificationService
	cfg        config.SweepConfig
	log        zerolog.Logger
	stop       chan struct{}
	done       chan struct{}
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	ledgerRepo ports.LedgerRepository,
	walletRepo ports.WalletRepository,
	projector ports.ProjectionService,
	transactor ports.DBTransactor,
	notifier ports.NotificationService,
	cfg config.SweepConfig,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		projector:  projector,
		transactor: transactor,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine. No-op when disabled.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		close(s.done)
		s.log.Info().Msg("sweeper disabled")
		return
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.log.Info().
			Dur("interval", s.cfg.Interval).
			Dur("pending_purchase_ttl", s.cfg.PendingPurchaseTTL).
			Msg("sweeper started")

		for {
			select {
			case <-ticker.C:
				s.SweepOnce(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for it.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
	s.log.Info().Msg("sweeper stopped")
}

// SweepOnce expires every pending credit purchase older than the TTL.
// Exported so an operator endpoint or test can trigger a pass directly.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.PendingPurchaseTTL)
	stale, err := s.ledgerRepo.ListStale(ctx, domain.KindCreditPurchase, domain.StatusPending, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: failed to list stale purchases")
		return
	}
	if len(stale) == 0 {
		return
	}

	expired := 0
	for _, rec := range stale {
		ok, err := s.expire(ctx, rec)
		if err != nil {
			s.log.Error().Err(err).
				Str("record_id", rec.ID.String()).
				Msg("sweep: failed to expire purchase")
			continue
		}
		if !ok {
			continue
		}
		expired++

		s.notifier.Emit(ctx, domain.WalletEvent{
			AccountID:  rec.AccountID,
			EventType:  domain.EventPurchaseExpired,
			RecordID:   rec.ID,
			OccurredAt: time.Now().UTC(),
		})
	}

	s.log.Info().
		Int("stale", len(stale)).
		Int("expired", expired).
		Msg("sweep pass finished")
}

// expire rejects one stale pending purchase under the wallet lock, releasing
// the held funds through the refreshed projection.
func (s *Sweeper) expire(ctx context.Context, rec domain.LedgerRecord) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByAccountIDForUpdate(ctx, dbTx, rec.AccountID)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return false, apperror.ErrNotFound("wallet")
	}

	// Re-check under the lock: the gateway may have confirmed in between.
	current, err := s.ledgerRepo.GetByID(ctx, rec.ID)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("reread record: %w", err))
	}
	if current == nil || current.Status != domain.StatusPending {
		return false, nil
	}

	actor := "sweeper"
	notes := "expired by periodic sweep"
	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, rec.ID, domain.StatusRejected, &actor, &notes); err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("update status: %w", err))
	}

	projected, err := s.projector.ProjectTx(ctx, dbTx, wallet)
	if err != nil {
		return false, err
	}
	if err := s.walletRepo.UpdateProjection(ctx, dbTx, projected); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return false, apperror.ErrConcurrencyConflict()
		}
		return false, apperror.ErrDatabaseError(fmt.Errorf("update projection: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("commit: %w", err))
	}
	return true, nil
}
