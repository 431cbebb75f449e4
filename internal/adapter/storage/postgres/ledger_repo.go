package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const ledgerColumns = `id, idempotency_key, account_id, kind, status, amount, credits,
	destination_id, order_ref, purpose, notes, processed_by, created_at, processed_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts a new ledger record within a database transaction. A unique
// violation on idempotency_key surfaces as domain.ErrDuplicateKey.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, rec *domain.LedgerRecord) error {
	query := `INSERT INTO ledger_records (id, idempotency_key, account_id, kind, status, amount, credits,
		destination_id, order_ref, purpose, notes, processed_by, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.IdempotencyKey, rec.AccountID, rec.Kind, rec.Status,
		rec.Amount, rec.Credits, rec.DestinationID, rec.OrderRef,
		rec.Purpose, rec.Notes, rec.ProcessedBy, rec.CreatedAt, rec.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger record: %w", err)
	}
	return nil
}

// GetByID fetches a ledger record by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_records WHERE id = $1`, ledgerColumns)
	return r.scanRecord(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches a ledger record by its idempotency key.
func (r *LedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_records WHERE idempotency_key = $1`, ledgerColumns)
	return r.scanRecord(r.pool.QueryRow(ctx, query, key))
}

// ListByAccount fetches every ledger record for an account, oldest first.
// The projector folds records in append order.
func (r *LedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_records WHERE account_id = $1 ORDER BY created_at ASC, id ASC`, ledgerColumns)

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	return r.collectRecords(rows)
}

// ListByAccountTx is ListByAccount inside the caller's transaction, so records
// appended in the same transaction are visible to the projection fold.
func (r *LedgerRepo) ListByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]domain.LedgerRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_records WHERE account_id = $1 ORDER BY created_at ASC, id ASC`, ledgerColumns)

	rows, err := tx.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger records in tx: %w", err)
	}
	return r.collectRecords(rows)
}

// List fetches ledger records with filtering and pagination, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
	args = append(args, params.AccountID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_records %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger records: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_records %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger records: %w", err)
	}
	recs, err := r.collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// UpdateStatus records a state transition on an existing ledger record within
// a database transaction. The record payload itself is immutable; only the
// lifecycle columns change.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.RecordStatus, actor, notes *string) error {
	now := time.Now()
	query := `UPDATE ledger_records SET status = $1, processed_by = $2, notes = COALESCE($3, notes), processed_at = $4 WHERE id = $5`

	tag, err := tx.Exec(ctx, query, status, actor, notes, now, id)
	if err != nil {
		return fmt.Errorf("update ledger record status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger record not found: %s", id)
	}
	return nil
}

// ListStale fetches records of a kind stuck in a status since before the
// cutoff. The sweeper uses this to expire abandoned pending purchases.
func (r *LedgerRepo) ListStale(ctx context.Context, kind domain.RecordKind, status domain.RecordStatus, olderThan time.Time) ([]domain.LedgerRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_records WHERE kind = $1 AND status = $2 AND created_at < $3 ORDER BY created_at ASC`, ledgerColumns)

	rows, err := r.pool.Query(ctx, query, kind, status, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stale ledger records: %w", err)
	}
	return r.collectRecords(rows)
}

func (r *LedgerRepo) collectRecords(rows pgx.Rows) ([]domain.LedgerRecord, error) {
	defer rows.Close()

	var recs []domain.LedgerRecord
	for rows.Next() {
		rec := domain.LedgerRecord{}
		err := rows.Scan(
			&rec.ID, &rec.IdempotencyKey, &rec.AccountID, &rec.Kind, &rec.Status,
			&rec.Amount, &rec.Credits, &rec.DestinationID, &rec.OrderRef,
			&rec.Purpose, &rec.Notes, &rec.ProcessedBy, &rec.CreatedAt, &rec.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger record row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger record rows: %w", err)
	}
	return recs, nil
}

// scanRecord is a helper to scan a single row into a LedgerRecord.
func (r *LedgerRepo) scanRecord(row pgx.Row) (*domain.LedgerRecord, error) {
	rec := &domain.LedgerRecord{}
	err := row.Scan(
		&rec.ID, &rec.IdempotencyKey, &rec.AccountID, &rec.Kind, &rec.Status,
		&rec.Amount, &rec.Credits, &rec.DestinationID, &rec.OrderRef,
		&rec.Purpose, &rec.Notes, &rec.ProcessedBy, &rec.CreatedAt, &rec.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger record: %w", err)
	}
	return rec, nil
}
