package handler

import (
	"strconv"

	"marketplace-wallet-engine/internal/adapter/http/dto"
	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"
	"marketplace-wallet-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles the seller-facing wallet endpoints.
type WalletHandler struct {
	reportingSvc  ports.ReportingService
	withdrawalSvc ports.WithdrawalService
	creditsSvc    ports.CreditsService
	payoutSvc     ports.PayoutService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(
	reportingSvc ports.ReportingService,
	withdrawalSvc ports.WithdrawalService,
	creditsSvc ports.CreditsService,
	payoutSvc ports.PayoutService,
) *WalletHandler {
	return &WalletHandler{
		reportingSvc:  reportingSvc,
		withdrawalSvc: withdrawalSvc,
		creditsSvc:    creditsSvc,
		payoutSvc:     payoutSvc,
	}
}

// GetSummary handles GET /api/v1/wallet.
func (h *WalletHandler) GetSummary(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	summary, err := h.reportingSvc.GetSummary(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, summary)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
// Filters: kind, status, from, to (Unix seconds); pagination: page, page_size.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params := ports.LedgerListParams{AccountID: accountID}
	if v := c.Query("kind"); v != "" {
		kind := domain.RecordKind(v)
		params.Kind = &kind
	}
	if v := c.Query("status"); v != "" {
		status := domain.RecordStatus(v)
		params.Status = &status
	}
	if v := c.Query("from"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.Error(c, apperror.Validation("invalid from timestamp"))
			return
		}
		params.From = &ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.Error(c, apperror.Validation("invalid to timestamp"))
			return
		}
		params.To = &ts
	}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionListResponse(items, total, params.Page, params.PageSize))
}

// RequestWithdrawal handles POST /api/v1/wallet/withdrawals.
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	destinationID, err := uuid.Parse(req.DestinationID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid destination_id"))
		return
	}

	rec, err := h.withdrawalSvc.Request(c.Request.Context(), ports.WithdrawalRequest{
		AccountID:     accountID,
		Amount:        req.Amount,
		DestinationID: destinationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewLedgerRecordResponse(rec))
}

// PurchaseCredits handles POST /api/v1/wallet/credits/purchase.
func (h *WalletHandler) PurchaseCredits(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PurchaseCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.creditsSvc.Purchase(c.Request.Context(), ports.PurchaseCreditsRequest{
		AccountID: accountID,
		PackageID: req.PackageID,
		Credits:   req.Credits,
		Price:     req.Price,
		Deferred:  req.Deferred,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewLedgerRecordResponse(rec))
}

// UseCredits handles POST /api/v1/wallet/credits/use.
func (h *WalletHandler) UseCredits(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.UseCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.creditsSvc.Use(c.Request.Context(), ports.UseCreditsRequest{
		AccountID: accountID,
		Credits:   req.Credits,
		Purpose:   req.Purpose,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewLedgerRecordResponse(rec))
}

// ListCreditPackages handles GET /api/v1/wallet/credits/packages.
func (h *WalletHandler) ListCreditPackages(c *gin.Context) {
	packages := domain.Packages()
	out := make([]dto.CreditPackageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, dto.CreditPackageResponse{ID: p.ID, Credits: p.Credits, Price: p.Price})
	}
	response.OK(c, out)
}

// GetPayoutDestination handles GET /api/v1/wallet/payout-destination.
func (h *WalletHandler) GetPayoutDestination(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	dest, err := h.payoutSvc.Get(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutDestinationResponse(dest))
}

// UpsertPayoutDestination handles PUT /api/v1/wallet/payout-destination.
func (h *WalletHandler) UpsertPayoutDestination(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.UpsertPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	dest, err := h.payoutSvc.Upsert(c.Request.Context(), ports.UpsertPayoutRequest{
		AccountID:     accountID,
		Actor:         actorFrom(c),
		BankName:      req.BankName,
		AccountHolder: req.AccountHolder,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutDestinationResponse(dest))
}
