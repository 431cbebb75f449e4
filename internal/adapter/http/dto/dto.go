package dto

// SettlementRequest is the body the payment gateway posts when an order or
// booking settles (or is refunded).
type SettlementRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	OrderRef  string `json:"order_ref" binding:"required,max=100,safe_id"`
	Kind      string `json:"kind" binding:"required,oneof=SALE REFUND"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

// WithdrawalRequest is the body for requesting a payout.
type WithdrawalRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	DestinationID string `json:"destination_id" binding:"required,uuid"`
}

// ProcessWithdrawalRequest is the admin decision body.
type ProcessWithdrawalRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Notes    string `json:"notes" binding:"max=500"`
}

// PurchaseCreditsRequest buys a credits package. Either a catalog package id
// or an explicit credits/price pair.
type PurchaseCreditsRequest struct {
	PackageID string `json:"package_id" binding:"omitempty,max=50,safe_id"`
	Credits   int64  `json:"credits" binding:"omitempty,gt=0"`
	Price     int64  `json:"price" binding:"omitempty,gt=0"`
	Deferred  bool   `json:"deferred"`
}

// UseCreditsRequest spends credits on a platform feature.
type UseCreditsRequest struct {
	Credits int64  `json:"credits" binding:"required,gt=0"`
	Purpose string `json:"purpose" binding:"required,max=100"`
}

// UpsertPayoutRequest creates or replaces the payout destination.
type UpsertPayoutRequest struct {
	BankName      string `json:"bank_name" binding:"required,min=2,max=100"`
	AccountHolder string `json:"account_holder" binding:"required,min=2,max=100"`
	AccountNumber string `json:"account_number" binding:"required,min=4,max=32,numeric"`
}

// UnlockPayoutRequest is the admin unlock body.
type UnlockPayoutRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// AdjustmentRequest appends an administrative balance correction.
type AdjustmentRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required,max=500"`
}

// LedgerRecordResponse is the wire form of a ledger record.
type LedgerRecordResponse struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	Amount        int64   `json:"amount"`
	Credits       int64   `json:"credits,omitempty"`
	OrderRef      *string `json:"order_ref,omitempty"`
	Purpose       *string `json:"purpose,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	DestinationID *string `json:"destination_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	ProcessedAt   *string `json:"processed_at,omitempty"`
}

// TransactionListResponse wraps a paginated ledger page.
type TransactionListResponse struct {
	Items      []LedgerRecordResponse `json:"items"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

// PayoutDestinationResponse never carries the raw account number.
type PayoutDestinationResponse struct {
	ID                 string  `json:"id"`
	BankName           string  `json:"bank_name"`
	AccountHolder      string  `json:"account_holder"`
	AccountNumberLast4 string  `json:"account_number_last4"`
	IsLocked           bool    `json:"is_locked"`
	LockReason         *string `json:"lock_reason,omitempty"`
	UpdatedAt          string  `json:"updated_at"`
}

// CreditPackageResponse is one catalog entry.
type CreditPackageResponse struct {
	ID      string `json:"id"`
	Credits int64  `json:"credits"`
	Price   int64  `json:"price"`
}
