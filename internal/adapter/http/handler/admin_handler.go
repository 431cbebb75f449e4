package handler

import (
	"marketplace-wallet-engine/internal/adapter/http/dto"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"
	"marketplace-wallet-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the back-office withdrawal and payout endpoints.
type AdminHandler struct {
	withdrawalSvc ports.WithdrawalService
	payoutSvc     ports.PayoutService
	settlementSvc ports.SettlementService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	withdrawalSvc ports.WithdrawalService,
	payoutSvc ports.PayoutService,
	settlementSvc ports.SettlementService,
) *AdminHandler {
	return &AdminHandler{
		withdrawalSvc: withdrawalSvc,
		payoutSvc:     payoutSvc,
		settlementSvc: settlementSvc,
	}
}

// ProcessWithdrawal handles POST /api/v1/admin/withdrawals/:id/process.
func (h *AdminHandler) ProcessWithdrawal(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal id"))
		return
	}

	var req dto.ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.withdrawalSvc.Process(c.Request.Context(), ports.ProcessWithdrawalRequest{
		RecordID: recordID,
		Decision: ports.Decision(req.Decision),
		Notes:    req.Notes,
		Actor:    actorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewLedgerRecordResponse(rec))
}

// CompleteWithdrawal handles POST /api/v1/admin/withdrawals/:id/complete.
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal id"))
		return
	}

	rec, err := h.withdrawalSvc.Complete(c.Request.Context(), recordID, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewLedgerRecordResponse(rec))
}

// UnlockPayoutDestination handles POST /api/v1/admin/accounts/:id/payout-destination/unlock.
func (h *AdminHandler) UnlockPayoutDestination(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	var req dto.UnlockPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	dest, err := h.payoutSvc.AdminUnlock(c.Request.Context(), accountID, actorFrom(c), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutDestinationResponse(dest))
}

// RecordAdjustment handles POST /api/v1/admin/accounts/:id/adjustments.
func (h *AdminHandler) RecordAdjustment(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.settlementSvc.RecordAdjustment(c.Request.Context(), ports.AdjustmentRequest{
		AccountID: accountID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Actor:     actorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewLedgerRecordResponse(rec))
}
