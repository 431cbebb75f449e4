package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.LedgerRecord
	byKey   map[string]uuid.UUID
	order   []uuid.UUID // append order
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{
		records: make(map[uuid.UUID]*domain.LedgerRecord),
		byKey:   make(map[string]uuid.UUID),
	}
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, rec *domain.LedgerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[rec.IdempotencyKey]; exists {
		return domain.ErrDuplicateKey
	}
	cp := *rec
	r.records[rec.ID] = &cp
	r.byKey[rec.IdempotencyKey] = rec.ID
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *inMemoryLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *inMemoryLedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *r.records[id]
	return &cp, nil
}

func (r *inMemoryLedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerRecord
	for _, id := range r.order {
		rec := r.records[id]
		if rec.AccountID == accountID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *inMemoryLedgerRepo) ListByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]domain.LedgerRecord, error) {
	return r.ListByAccount(ctx, accountID)
}

func (r *inMemoryLedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerRecord
	for _, id := range r.order {
		rec := r.records[id]
		if rec.AccountID != params.AccountID {
			continue
		}
		if params.Kind != nil && rec.Kind != *params.Kind {
			continue
		}
		if params.Status != nil && rec.Status != *params.Status {
			continue
		}
		if params.From != nil && rec.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && rec.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *rec)
	}
	// Newest first, like the SQL repo.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerRecord{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryLedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.RecordStatus, actor *string, notes *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("record not found")
	}
	rec.Status = status
	rec.ProcessedBy = actor
	if notes != nil {
		rec.Notes = notes
	}
	now := time.Now().UTC()
	rec.ProcessedAt = &now
	return nil
}

func (r *inMemoryLedgerRepo) ListStale(ctx context.Context, kind domain.RecordKind, status domain.RecordStatus, olderThan time.Time) ([]domain.LedgerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerRecord
	for _, id := range r.order {
		rec := r.records[id]
		if rec.Kind == kind && rec.Status == status && rec.CreatedAt.Before(olderThan) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// --- In-Memory Wallet Repo ---

// inMemoryWalletRepo mimics the row-lock semantics of SELECT ... FOR UPDATE:
// GetByAccountIDForUpdate acquires a per-account mutex that is held until the
// transaction commits or rolls back.
type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.WalletAggregate
	locks   map[uuid.UUID]*sync.Mutex
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets: make(map[uuid.UUID]*domain.WalletAggregate),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *inMemoryWalletRepo) accountLock(accountID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[accountID] = l
	}
	return l
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.WalletAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[w.AccountID]; exists {
		// Unique constraint: first writer wins, losers re-read.
		return nil
	}
	cp := *w
	r.wallets[w.AccountID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[accountID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByAccountIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.WalletAggregate, error) {
	l := r.accountLock(accountID)
	l.Lock()
	if mt, ok := tx.(*memTx); ok {
		mt.onClose(l.Unlock)
	} else {
		l.Unlock()
	}
	return r.GetByAccountID(ctx, accountID)
}

func (r *inMemoryWalletRepo) UpdateProjection(ctx context.Context, tx pgx.Tx, w *domain.WalletAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.wallets[w.AccountID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	if cur.Version != w.Version {
		return domain.ErrVersionConflict
	}
	w.Version++
	cp := *w
	r.wallets[w.AccountID] = &cp
	return nil
}

// --- In-Memory Payout Repo ---

type inMemoryPayoutRepo struct {
	mu            sync.RWMutex
	destinations  map[uuid.UUID]*domain.PayoutDestination // keyed by account id
	modifications []domain.PayoutModification
}

func newInMemoryPayoutRepo() *inMemoryPayoutRepo {
	return &inMemoryPayoutRepo{destinations: make(map[uuid.UUID]*domain.PayoutDestination)}
}

func (r *inMemoryPayoutRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.PayoutDestination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.destinations[accountID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryPayoutRepo) Create(ctx context.Context, d *domain.PayoutDestination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.destinations[d.AccountID] = &cp
	return nil
}

func (r *inMemoryPayoutRepo) Update(ctx context.Context, d *domain.PayoutDestination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.destinations[d.AccountID]; !ok {
		return fmt.Errorf("destination not found")
	}
	cp := *d
	r.destinations[d.AccountID] = &cp
	return nil
}

func (r *inMemoryPayoutRepo) AppendModification(ctx context.Context, m *domain.PayoutModification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifications = append(r.modifications, *m)
	return nil
}

func (r *inMemoryPayoutRepo) ListModifications(ctx context.Context, destinationID uuid.UUID) ([]domain.PayoutModification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PayoutModification
	for _, m := range r.modifications {
		if m.DestinationID == destinationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- In-Memory Transactor ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

// memTx is an in-memory pgx.Tx that releases registered locks exactly once,
// on commit or rollback.
type memTx struct {
	mu      sync.Mutex
	closers []func()
	done    bool
}

func (t *memTx) onClose(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closers = append(t.closers, f)
}

func (t *memTx) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	for _, f := range t.closers {
		f()
	}
	t.closers = nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.close(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.close(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }
