package dto

import (
	"time"

	"marketplace-wallet-engine/internal/core/domain"
)

// NewLedgerRecordResponse maps a domain record to its wire form.
func NewLedgerRecordResponse(rec *domain.LedgerRecord) LedgerRecordResponse {
	out := LedgerRecordResponse{
		ID:        rec.ID.String(),
		Kind:      string(rec.Kind),
		Status:    string(rec.Status),
		Amount:    rec.Amount,
		Credits:   rec.Credits,
		OrderRef:  rec.OrderRef,
		Purpose:   rec.Purpose,
		Notes:     rec.Notes,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.DestinationID != nil {
		id := rec.DestinationID.String()
		out.DestinationID = &id
	}
	if rec.ProcessedAt != nil {
		ts := rec.ProcessedAt.UTC().Format(time.RFC3339)
		out.ProcessedAt = &ts
	}
	return out
}

// NewTransactionListResponse maps a ledger page.
func NewTransactionListResponse(items []domain.LedgerRecord, total int64, page, pageSize int) TransactionListResponse {
	out := TransactionListResponse{
		Items:    make([]LedgerRecordResponse, 0, len(items)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i := range items {
		out.Items = append(out.Items, NewLedgerRecordResponse(&items[i]))
	}
	if pageSize > 0 {
		out.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return out
}

// NewPayoutDestinationResponse maps a destination, exposing only the last
// four digits of the account number.
func NewPayoutDestinationResponse(d *domain.PayoutDestination) PayoutDestinationResponse {
	return PayoutDestinationResponse{
		ID:                 d.ID.String(),
		BankName:           d.BankName,
		AccountHolder:      d.AccountHolder,
		AccountNumberLast4: d.AccountNumberLast4,
		IsLocked:           d.IsLocked,
		LockReason:         d.LockReason,
		UpdatedAt:          d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
