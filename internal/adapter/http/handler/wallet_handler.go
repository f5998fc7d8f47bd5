package handler

import (
	"fmt"

	"retailer-portal/internal/adapter/http/dto"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"
	"retailer-portal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	ledgerSvc     ports.LedgerService
	settlementSvc ports.SettlementService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, settlementSvc ports.SettlementService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc, settlementSvc: settlementSvc}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.ledgerSvc.GetOrCreateWallet(c.Request.Context(), retailerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{Balance: wallet.Balance})
}

// TopUp handles POST /api/v1/wallet/topup.
func (h *WalletHandler) TopUp(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.settlementSvc.InitiateTopUp(c.Request.Context(), retailerID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TopUpResponse{
		OrderID:    result.OrderID,
		PaymentURL: result.PaymentURL,
	})
}

// AdminCredit handles POST /api/v1/admin/wallets/:retailer_id/credit,
// the manual adjustment path.
func (h *WalletHandler) AdminCredit(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	retailerID, err := uuid.Parse(c.Param("retailer_id"))
	if err != nil {
		response.Error(c, apperror.Validation("retailer_id must be a valid UUID"))
		return
	}

	var req dto.ManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	creditReq := ports.CreditRequest{
		RetailerID: retailerID,
		Amount:     req.Amount,
		Reason:     fmt.Sprintf("Manual credit by administrator %s: %s", adminID, req.Reason),
	}
	if req.Reference != "" {
		creditReq.CorrelationKey = "adm:" + req.Reference
		creditReq.ExternalOrderID = &req.Reference
	}

	txn, err := h.ledgerSvc.ManualCredit(c.Request.Context(), creditReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	page, pageSize := parsePagination(c)

	txns, total, err := h.ledgerSvc.ListTransactions(c.Request.Context(), retailerID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}
	response.OK(c, dto.Paginated[dto.TransactionResponse]{
		Items: items, Total: total, Page: page, PageSize: pageSize,
	})
}
