package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `account_id, version, status, available_balance, pending_withdrawals, in_flight_withdrawals,
	credits_balance, lifetime_earnings, lifetime_withdrawals, monthly_revenue, monthly_withdrawal_count, monthly_limit,
	projected_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts the wallet aggregate if absent. ON CONFLICT DO NOTHING makes
// concurrent first-access callers converge on a single row; losers simply
// re-read.
func (r *WalletRepo) Create(ctx context.Context, w *domain.WalletAggregate) error {
	query := `INSERT INTO wallets (account_id, version, status, available_balance, pending_withdrawals, in_flight_withdrawals,
		credits_balance, lifetime_earnings, lifetime_withdrawals, monthly_revenue, monthly_withdrawal_count, monthly_limit,
		projected_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (account_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		w.AccountID, w.Version, w.Status, w.AvailableBalance, w.PendingWithdrawals,
		w.InFlightWithdrawals, w.CreditsBalance, w.LifetimeEarnings, w.LifetimeWithdrawals,
		w.MonthlyRevenue, w.MonthlyWithdrawalCount, w.MonthlyLimit, w.ProjectedAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByAccountID fetches a wallet aggregate by account ID (non-locking read).
func (r *WalletRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE account_id = $1`, walletColumns)

	w, err := r.scanWallet(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by account id: %w", err)
	}
	return w, nil
}

// GetByAccountIDForUpdate fetches a wallet aggregate with pessimistic locking.
// This MUST be called within a transaction; it serializes all mutating wallet
// operations for the account.
func (r *WalletRepo) GetByAccountIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.WalletAggregate, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE account_id = $1 FOR UPDATE`, walletColumns)

	w, err := r.scanWallet(tx.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateProjection persists a freshly folded snapshot within a transaction,
// guarded by the version the caller read. A zero-row update means another
// writer got there first; the caller sees domain.ErrVersionConflict and
// retries. On success the aggregate's version is bumped in place.
func (r *WalletRepo) UpdateProjection(ctx context.Context, tx pgx.Tx, w *domain.WalletAggregate) error {
	query := `UPDATE wallets SET version = version + 1, status = $1, available_balance = $2, pending_withdrawals = $3,
		in_flight_withdrawals = $4, credits_balance = $5, lifetime_earnings = $6, lifetime_withdrawals = $7,
		monthly_revenue = $8, monthly_withdrawal_count = $9, projected_at = $10, updated_at = NOW()
		WHERE account_id = $11 AND version = $12`

	tag, err := tx.Exec(ctx, query,
		w.Status, w.AvailableBalance, w.PendingWithdrawals, w.InFlightWithdrawals,
		w.CreditsBalance, w.LifetimeEarnings, w.LifetimeWithdrawals, w.MonthlyRevenue,
		w.MonthlyWithdrawalCount, w.ProjectedAt, w.AccountID, w.Version,
	)
	if err != nil {
		return fmt.Errorf("update wallet projection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	w.Version++
	return nil
}

// scanWallet is a helper to scan a single row into a WalletAggregate.
func (r *WalletRepo) scanWallet(row pgx.Row) (*domain.WalletAggregate, error) {
	w := &domain.WalletAggregate{}
	err := row.Scan(
		&w.AccountID, &w.Version, &w.Status, &w.AvailableBalance, &w.PendingWithdrawals,
		&w.InFlightWithdrawals, &w.CreditsBalance, &w.LifetimeEarnings, &w.LifetimeWithdrawals,
		&w.MonthlyRevenue, &w.MonthlyWithdrawalCount, &w.MonthlyLimit, &w.ProjectedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
