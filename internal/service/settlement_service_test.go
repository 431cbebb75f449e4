package service

import (
	"context"
	"encoding/json"
	"testing"

	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/internal/core/ports/mocks"
	"marketplace-wallet-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type settlementTestDeps struct {
	svc        *SettlementServiceImpl
	ledgerRepo *mocks.MockLedgerRepository
	walletRepo *mocks.MockWalletRepository
	walletSvc  *mocks.MockWalletService
	projector  *mocks.MockProjectionService
	idempCache *mocks.MockIdempotencyCache
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		walletSvc:  mocks.NewMockWalletService(ctrl),
		projector:  mocks.NewMockProjectionService(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewSettlementService(
		d.ledgerRepo, d.walletRepo, d.walletSvc, d.projector,
		d.idempCache, d.transactor, zerolog.Nop(),
	)
	return d
}

func TestSettlementService_RecordSettlement_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}
	wallet := &domain.WalletAggregate{AccountID: accountID, Version: 1, Status: domain.WalletStatusActive}

	req := ports.SettlementRequest{
		AccountID: accountID,
		OrderRef:  "ORDER-001",
		Kind:      domain.KindSale,
		Amount:    150000,
	}
	idempKey := domain.BuildSettlementKey(accountID, "ORDER-001")

	// Redis cache miss
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	// DB idempotency miss
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, idempKey).Return(nil, nil)
	// Auto-provision
	d.walletSvc.EXPECT().GetOrCreate(ctx, accountID).Return(wallet, nil)
	// Append and reproject under the wallet lock
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByAccountIDForUpdate(ctx, tx, accountID).Return(wallet, nil)
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.LedgerRecord) error {
			assert.Equal(t, idempKey, rec.IdempotencyKey)
			assert.Equal(t, domain.KindSale, rec.Kind)
			assert.Equal(t, domain.StatusCompleted, rec.Status)
			assert.Equal(t, int64(150000), rec.Amount)
			require.NotNil(t, rec.OrderRef)
			assert.Equal(t, "ORDER-001", *rec.OrderRef)
			return nil
		})
	projected := &domain.WalletAggregate{AccountID: accountID, Version: 1, AvailableBalance: 150000}
	d.projector.EXPECT().ProjectTx(ctx, tx, wallet).Return(projected, nil)
	d.walletRepo.EXPECT().UpdateProjection(ctx, tx, projected).Return(nil)
	// Cache in Redis
	d.idempCache.EXPECT().Set(ctx, idempKey, gomock.Any(), settlementCacheTTL).Return(nil)

	rec, err := d.svc.RecordSettlement(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.KindSale, rec.Kind)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
}

func TestSettlementService_RecordSettlement_Validation(t *testing.T) {
	tests := []struct {
		name     string
		req      ports.SettlementRequest
		wantCode string
	}{
		{
			name:     "zero amount",
			req:      ports.SettlementRequest{AccountID: uuid.New(), OrderRef: "O1", Kind: domain.KindSale, Amount: 0},
			wantCode: "WAL_001",
		},
		{
			name:     "negative amount",
			req:      ports.SettlementRequest{AccountID: uuid.New(), OrderRef: "O1", Kind: domain.KindSale, Amount: -5},
			wantCode: "WAL_001",
		},
		{
			name:     "withdrawal kind not allowed",
			req:      ports.SettlementRequest{AccountID: uuid.New(), OrderRef: "O1", Kind: domain.KindWithdrawal, Amount: 100},
			wantCode: "WAL_009",
		},
		{
			name:     "missing order ref",
			req:      ports.SettlementRequest{AccountID: uuid.New(), Kind: domain.KindSale, Amount: 100},
			wantCode: "WAL_001",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupSettlementService(t)
			defer d.ctrl.Finish()

			_, err := d.svc.RecordSettlement(context.Background(), tt.req)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestSettlementService_RecordSettlement_CacheHit(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildSettlementKey(accountID, "ORDER-001")

	cached := &domain.LedgerRecord{ID: uuid.New(), IdempotencyKey: idempKey, Kind: domain.KindSale, Amount: 150000}
	cachedJSON, err := json.Marshal(cached)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(cachedJSON, nil)

	rec, err := d.svc.RecordSettlement(ctx, ports.SettlementRequest{
		AccountID: accountID, OrderRef: "ORDER-001", Kind: domain.KindSale, Amount: 150000,
	})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, rec.ID, "replay returns the original record, no new append")
}

func TestSettlementService_RecordSettlement_DBReplay(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildSettlementKey(accountID, "ORDER-001")
	existing := &domain.LedgerRecord{ID: uuid.New(), IdempotencyKey: idempKey}

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, idempKey).Return(existing, nil)

	rec, err := d.svc.RecordSettlement(ctx, ports.SettlementRequest{
		AccountID: accountID, OrderRef: "ORDER-001", Kind: domain.KindSale, Amount: 150000,
	})
	require.NoError(t, err)
	assert.Same(t, existing, rec)
}

func TestSettlementService_RecordSettlement_RefundKeyDistinctFromSale(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	// The refund of ORDER-001 must not collide with the sale's key.
	refundKey := domain.BuildRefundKey(accountID, "ORDER-001")
	existing := &domain.LedgerRecord{ID: uuid.New(), IdempotencyKey: refundKey, Kind: domain.KindRefund}

	d.idempCache.EXPECT().Get(ctx, refundKey).Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, refundKey).Return(existing, nil)

	rec, err := d.svc.RecordSettlement(ctx, ports.SettlementRequest{
		AccountID: accountID, OrderRef: "ORDER-001", Kind: domain.KindRefund, Amount: 20000,
	})
	require.NoError(t, err)
	assert.Same(t, existing, rec)
}

func TestSettlementService_RecordSettlement_ConcurrentReplayReturnsWinner(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}
	wallet := &domain.WalletAggregate{AccountID: accountID, Version: 1, Status: domain.WalletStatusActive}
	idempKey := domain.BuildSettlementKey(accountID, "ORDER-001")

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	// Both replays pass the pre-check, one wins the unique index.
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, idempKey).Return(nil, nil)
	d.walletSvc.EXPECT().GetOrCreate(ctx, accountID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByAccountIDForUpdate(ctx, tx, accountID).Return(wallet, nil)
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(domain.ErrDuplicateKey)
	winner := &domain.LedgerRecord{ID: uuid.New(), IdempotencyKey: idempKey}
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, idempKey).Return(winner, nil)

	rec, err := d.svc.RecordSettlement(ctx, ports.SettlementRequest{
		AccountID: accountID, OrderRef: "ORDER-001", Kind: domain.KindSale, Amount: 150000,
	})
	require.NoError(t, err)
	assert.Same(t, winner, rec)
}

func TestSettlementService_RecordSettlement_VersionConflict(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}
	wallet := &domain.WalletAggregate{AccountID: accountID, Version: 1, Status: domain.WalletStatusActive}
	idempKey := domain.BuildSettlementKey(accountID, "ORDER-001")

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, idempKey).Return(nil, nil)
	d.walletSvc.EXPECT().GetOrCreate(ctx, accountID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByAccountIDForUpdate(ctx, tx, accountID).Return(wallet, nil)
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.projector.EXPECT().ProjectTx(ctx, tx, wallet).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateProjection(ctx, tx, wallet).Return(domain.ErrVersionConflict)

	_, err := d.svc.RecordSettlement(ctx, ports.SettlementRequest{
		AccountID: accountID, OrderRef: "ORDER-001", Kind: domain.KindSale, Amount: 150000,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_010", appErr.Code)
}

func TestSettlementService_RecordAdjustment_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}
	wallet := &domain.WalletAggregate{AccountID: accountID, Version: 1, Status: domain.WalletStatusActive}

	d.walletSvc.EXPECT().GetOrCreate(ctx, accountID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByAccountIDForUpdate(ctx, tx, accountID).Return(wallet, nil)
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.LedgerRecord) error {
			assert.Equal(t, domain.KindAdjustment, rec.Kind)
			assert.Equal(t, domain.StatusCompleted, rec.Status)
			require.NotNil(t, rec.Notes)
			assert.Equal(t, "chargeback compensation", *rec.Notes)
			require.NotNil(t, rec.ProcessedBy)
			assert.Equal(t, "ops@example.com", *rec.ProcessedBy)
			return nil
		})
	d.projector.EXPECT().ProjectTx(ctx, tx, wallet).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateProjection(ctx, tx, wallet).Return(nil)

	rec, err := d.svc.RecordAdjustment(ctx, ports.AdjustmentRequest{
		AccountID: accountID,
		Amount:    30000,
		Reason:    "chargeback compensation",
		Actor:     "ops@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), rec.Amount)
}

func TestSettlementService_AppendRefusesInadmissibleStatus(t *testing.T) {
	// A pending sale must never reach the ledger: the admission table is
	// checked right before the append, inside the wallet lock.
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}
	wallet := &domain.WalletAggregate{AccountID: accountID, Version: 1, Status: domain.WalletStatusActive}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByAccountIDForUpdate(ctx, tx, accountID).Return(wallet, nil)
	// No Append expectation: the guard must reject before the repository.

	err := d.svc.appendAndReproject(ctx, &domain.LedgerRecord{
		ID:             uuid.New(),
		IdempotencyKey: "bad:" + uuid.NewString(),
		AccountID:      accountID,
		Kind:           domain.KindSale,
		Status:         domain.StatusPending,
		Amount:         100,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_009", appErr.Code)
}

func TestSettlementService_RecordAdjustment_RequiresReason(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.RecordAdjustment(context.Background(), ports.AdjustmentRequest{
		AccountID: uuid.New(), Amount: 30000, Actor: "ops",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_001", appErr.Code)
}
