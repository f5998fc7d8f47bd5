package handler

import (
	"retailer-portal/internal/adapter/http/dto"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"
	"retailer-portal/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettlementHandler handles gateway callback and reconciliation
// endpoints. The callback never trusts the payload beyond the order id;
// the service re-checks the gateway's authoritative status.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Callback handles GET /api/v1/payments/callback, the redirect target
// the gateway sends the retailer back to after payment.
func (h *SettlementHandler) Callback(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		response.Error(c, apperror.Validation("order_id is required"))
		return
	}
	h.reconcile(c, orderID)
}

// Reconcile handles POST /api/v1/admin/reconcile/:order_id, the manual
// re-drive for orders whose callback was lost.
func (h *SettlementHandler) Reconcile(c *gin.Context) {
	h.reconcile(c, c.Param("order_id"))
}

func (h *SettlementHandler) reconcile(c *gin.Context, orderID string) {
	result, err := h.settlementSvc.Reconcile(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.ReconcileResponse{
		OrderID:       orderID,
		GatewayStatus: result.GatewayStatus,
		Applied:       result.Applied,
	}
	if result.Submission != nil {
		sub := toSubmissionResponse(result.Submission)
		resp.Submission = &sub
	}
	response.OK(c, resp)
}
