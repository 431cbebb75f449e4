package handler

import (
	"marketplace-wallet-engine/internal/adapter/http/dto"
	"marketplace-wallet-engine/internal/adapter/http/middleware"
	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"
	"marketplace-wallet-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles the gateway-facing settlement endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
	creditsSvc    ports.CreditsService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService, creditsSvc ports.CreditsService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc, creditsSvc: creditsSvc}
}

// RecordSettlement handles POST /api/v1/settlements.
func (h *SettlementHandler) RecordSettlement(c *gin.Context) {
	var req dto.SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid account_id"))
		return
	}

	kind := domain.KindSale
	if req.Kind == "REFUND" {
		kind = domain.KindRefund
	}

	rec, err := h.settlementSvc.RecordSettlement(c.Request.Context(), ports.SettlementRequest{
		AccountID: accountID,
		OrderRef:  req.OrderRef,
		Kind:      kind,
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewLedgerRecordResponse(rec))
}

// ConfirmCreditPurchase handles POST /api/v1/settlements/credit-purchases/:id/confirm.
// The gateway calls it when a deferred package purchase clears.
func (h *SettlementHandler) ConfirmCreditPurchase(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid record id"))
		return
	}

	rec, err := h.creditsSvc.ConfirmPurchase(c.Request.Context(), recordID, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewLedgerRecordResponse(rec))
}

// actorFrom returns the authenticated actor label set by the auth middleware.
func actorFrom(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxActor); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

// accountFrom returns the authenticated account id set by JWTAuth.
func accountFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
