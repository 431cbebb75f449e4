package ports

import (
	"context"
	"time"

	"marketplace-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// LedgerRepository defines persistence for the append-only ledger.
// Append is the only write primitive for new records; completed cash-moving
// records are never updated. Methods accepting pgx.Tx run inside the
// per-account critical section.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, rec *domain.LedgerRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerRecord, error)
	// ListByAccount returns every record for the account, oldest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerRecord, error)
	// ListByAccountTx is the read-your-writes variant used when reprojecting
	// inside the transaction that just appended.
	ListByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]domain.LedgerRecord, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerRecord, int64, error)
	// UpdateStatus moves a non-terminal record through the workflow state
	// machine, stamping actor and processing time.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.RecordStatus, actor *string, notes *string) error
	// ListStale returns records of the given kind stuck in the given status
	// since before olderThan. Used by the sweep.
	ListStale(ctx context.Context, kind domain.RecordKind, status domain.RecordStatus, olderThan time.Time) ([]domain.LedgerRecord, error)
}

// LedgerListParams holds filter + pagination for listing ledger records.
type LedgerListParams struct {
	AccountID uuid.UUID
	Kind      *domain.RecordKind
	Status    *domain.RecordStatus
	From      *int64 // Unix timestamp
	To        *int64 // Unix timestamp
	Page      int
	PageSize  int
}

// WalletRepository defines persistence for the materialized wallet aggregate.
type WalletRepository interface {
	// Create inserts the aggregate if absent. Concurrent first-access callers
	// race on a unique constraint; losers see no error and re-read.
	Create(ctx context.Context, w *domain.WalletAggregate) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error)
	// GetByAccountIDForUpdate takes the per-account row lock that serializes
	// validate-then-append. MUST be called within a transaction.
	GetByAccountIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.WalletAggregate, error)
	// UpdateProjection writes a refreshed snapshot guarded by the optimistic
	// version: it fails with domain.ErrVersionConflict if the stored version
	// no longer matches w.Version, and bumps w.Version on success.
	UpdateProjection(ctx context.Context, tx pgx.Tx, w *domain.WalletAggregate) error
}

// PayoutRepository defines persistence for payout destinations and their
// append-only modification history.
type PayoutRepository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.PayoutDestination, error)
	Create(ctx context.Context, d *domain.PayoutDestination) error
	Update(ctx context.Context, d *domain.PayoutDestination) error
	AppendModification(ctx context.Context, m *domain.PayoutModification) error
	ListModifications(ctx context.Context, destinationID uuid.UUID) ([]domain.PayoutModification, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
