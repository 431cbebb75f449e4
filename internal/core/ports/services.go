package ports

import (
	"context"
	"time"

	"marketplace-wallet-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// --- Crypto & Token Ports ---

// EncryptionService handles AES-256-GCM encryption/decryption. Payout account
// numbers are stored encrypted.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification for the
// settlement webhook and outbound notifications.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles Argon2id hashing; used for the admin service token.
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations. Claims carry an explicit
// capability list checked at the workflow boundary.
type TokenService interface {
	Generate(accountID uuid.UUID, capabilities []domain.Capability) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID    uuid.UUID
	Capabilities []domain.Capability
}

// IdempotencyCache is the Redis-layer settlement replay check (fast path);
// the ledger's unique idempotency key remains the hard guarantee.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// ProjectionService folds the ledger into a wallet aggregate snapshot.
type ProjectionService interface {
	// Project recomputes the aggregate from the ledger outside any
	// transaction (read path).
	Project(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error)
	// ProjectTx recomputes inside the caller's transaction so records
	// appended in the same transaction are visible (read-your-writes).
	ProjectTx(ctx context.Context, tx pgx.Tx, base *domain.WalletAggregate) (*domain.WalletAggregate, error)
}

// WalletService provisions wallet aggregates.
type WalletService interface {
	// GetOrCreate is idempotent and safe under concurrent first access:
	// exactly one aggregate row exists afterwards.
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*domain.WalletAggregate, error)
}

// SettlementService records confirmed order/booking settlements.
type SettlementService interface {
	RecordSettlement(ctx context.Context, req SettlementRequest) (*domain.LedgerRecord, error)
	// RecordAdjustment appends an administrative correction record.
	RecordAdjustment(ctx context.Context, req AdjustmentRequest) (*domain.LedgerRecord, error)
}

// SettlementRequest holds validated input for a settlement append.
type SettlementRequest struct {
	AccountID uuid.UUID
	OrderRef  string
	Kind      domain.RecordKind // SALE or REFUND
	Amount    int64
}

// AdjustmentRequest holds validated input for an admin adjustment.
type AdjustmentRequest struct {
	AccountID uuid.UUID
	Amount    int64
	Reason    string
	Actor     string
}

// WithdrawalService drives the withdrawal state machine.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (*domain.LedgerRecord, error)
	Process(ctx context.Context, req ProcessWithdrawalRequest) (*domain.LedgerRecord, error)
	// Complete moves an approved/processing withdrawal to completed once
	// funds have actually left (an external concern).
	Complete(ctx context.Context, recordID uuid.UUID, actor string) (*domain.LedgerRecord, error)
}

// WithdrawalRequest holds validated input for a payout request.
type WithdrawalRequest struct {
	AccountID     uuid.UUID
	Amount        int64
	DestinationID uuid.UUID
}

// Decision is an admin verdict on a pending withdrawal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ProcessWithdrawalRequest holds an admin decision on a pending withdrawal.
type ProcessWithdrawalRequest struct {
	RecordID uuid.UUID
	Decision Decision
	Notes    string
	Actor    string
}

// CreditsService manages the non-cash credits sub-currency.
type CreditsService interface {
	Purchase(ctx context.Context, req PurchaseCreditsRequest) (*domain.LedgerRecord, error)
	Use(ctx context.Context, req UseCreditsRequest) (*domain.LedgerRecord, error)
	// ConfirmPurchase completes a deferred (pending) purchase once the
	// gateway confirms the upgrade flow.
	ConfirmPurchase(ctx context.Context, recordID uuid.UUID, actor string) (*domain.LedgerRecord, error)
}

// PurchaseCreditsRequest holds validated input for a credits purchase.
// Deferred purchases are appended pending, hold the price against the
// balance, and complete on gateway confirmation (or are swept).
type PurchaseCreditsRequest struct {
	AccountID uuid.UUID
	PackageID string
	Credits   int64
	Price     int64
	Deferred  bool
}

// UseCreditsRequest holds validated input for spending credits.
type UseCreditsRequest struct {
	AccountID uuid.UUID
	Credits   int64
	Purpose   string
}

// PayoutService manages payout destinations under the lock invariant.
type PayoutService interface {
	Get(ctx context.Context, accountID uuid.UUID) (*domain.PayoutDestination, error)
	Upsert(ctx context.Context, req UpsertPayoutRequest) (*domain.PayoutDestination, error)
	AdminUnlock(ctx context.Context, accountID uuid.UUID, actor string, reason string) (*domain.PayoutDestination, error)
}

// UpsertPayoutRequest holds validated payout destination details.
type UpsertPayoutRequest struct {
	AccountID     uuid.UUID
	Actor         string
	BankName      string
	AccountHolder string
	AccountNumber string
}

// ReportingService serves the read side of the wallet.
type ReportingService interface {
	GetSummary(ctx context.Context, accountID uuid.UUID) (*WalletSummary, error)
	ListTransactions(ctx context.Context, params LedgerListParams) ([]domain.LedgerRecord, int64, error)
}

// WalletSummary is the stable read contract exposed to collaborators.
type WalletSummary struct {
	AccountID           uuid.UUID           `json:"account_id"`
	Status              domain.WalletStatus `json:"status"`
	AvailableBalance    int64               `json:"available_balance"`
	PendingWithdrawals  int64               `json:"pending_withdrawals"`
	CreditsBalance      int64               `json:"credits_balance"`
	LifetimeEarnings    int64               `json:"lifetime_earnings"`
	LifetimeWithdrawals int64               `json:"lifetime_withdrawals"`
	MonthlyRevenue      int64               `json:"monthly_revenue"`
	MonthlyWithdrawals  int                 `json:"monthly_withdrawals"`
	MonthlyLimit        int                 `json:"monthly_limit"`
	MonthlyResetAt      time.Time           `json:"monthly_reset_at"`
}

// NotificationService emits wallet events to the external notification
// collaborator. Delivery is fire-and-forget: failures are logged and
// swallowed, never rolling back a committed ledger record.
type NotificationService interface {
	Emit(ctx context.Context, event domain.WalletEvent)
}
