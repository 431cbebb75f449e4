package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, account_id, bank_name, account_holder, account_number_enc, account_number_last4,
	is_locked, lock_reason, locked_at, locked_by, created_at, updated_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// GetByAccountID fetches the payout destination for an account. Each account
// has at most one destination.
func (r *PayoutRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.PayoutDestination, error) {
	query := fmt.Sprintf(`SELECT %s FROM payout_destinations WHERE account_id = $1`, payoutColumns)

	d := &domain.PayoutDestination{}
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&d.ID, &d.AccountID, &d.BankName, &d.AccountHolder, &d.AccountNumberEnc,
		&d.AccountNumberLast4, &d.IsLocked, &d.LockReason, &d.LockedAt, &d.LockedBy,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout destination: %w", err)
	}
	return d, nil
}

// Create inserts a new payout destination.
func (r *PayoutRepo) Create(ctx context.Context, d *domain.PayoutDestination) error {
	query := `INSERT INTO payout_destinations (id, account_id, bank_name, account_holder, account_number_enc,
		account_number_last4, is_locked, lock_reason, locked_at, locked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.AccountID, d.BankName, d.AccountHolder, d.AccountNumberEnc,
		d.AccountNumberLast4, d.IsLocked, d.LockReason, d.LockedAt, d.LockedBy,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout destination: %w", err)
	}
	return nil
}

// Update rewrites the destination details and lock state.
func (r *PayoutRepo) Update(ctx context.Context, d *domain.PayoutDestination) error {
	query := `UPDATE payout_destinations SET bank_name = $1, account_holder = $2, account_number_enc = $3,
		account_number_last4 = $4, is_locked = $5, lock_reason = $6, locked_at = $7, locked_by = $8, updated_at = NOW()
		WHERE id = $9`

	tag, err := r.pool.Exec(ctx, query,
		d.BankName, d.AccountHolder, d.AccountNumberEnc, d.AccountNumberLast4,
		d.IsLocked, d.LockReason, d.LockedAt, d.LockedBy, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout destination: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout destination not found: %s", d.ID)
	}
	return nil
}

// AppendModification records an entry in the destination's modification history.
func (r *PayoutRepo) AppendModification(ctx context.Context, mod *domain.PayoutModification) error {
	query := `INSERT INTO payout_modifications (id, destination_id, account_id, action, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		mod.ID, mod.DestinationID, mod.AccountID, mod.Action, mod.Actor, mod.Details, mod.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout modification: %w", err)
	}
	return nil
}

// ListModifications fetches the modification history for a destination, newest first.
func (r *PayoutRepo) ListModifications(ctx context.Context, destinationID uuid.UUID) ([]domain.PayoutModification, error) {
	query := `SELECT id, destination_id, account_id, action, actor, details, created_at
		FROM payout_modifications WHERE destination_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, destinationID)
	if err != nil {
		return nil, fmt.Errorf("list payout modifications: %w", err)
	}
	defer rows.Close()

	var mods []domain.PayoutModification
	for rows.Next() {
		m := domain.PayoutModification{}
		err := rows.Scan(&m.ID, &m.DestinationID, &m.AccountID, &m.Action, &m.Actor, &m.Details, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan payout modification row: %w", err)
		}
		mods = append(mods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout modification rows: %w", err)
	}
	return mods, nil
}
