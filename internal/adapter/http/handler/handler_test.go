package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"retailer-portal/internal/adapter/http/dto"
	"retailer-portal/internal/adapter/http/middleware"
	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"
	"retailer-portal/internal/core/ports/mocks"
	"retailer-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authedContext(t *testing.T, w *httptest.ResponseRecorder, retailerID uuid.UUID, role string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxRetailerID, retailerID)
	c.Set(middleware.CtxRole, role)
	return c
}

// --- Submission Handler Tests ---

func TestPurchase_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSub := mocks.NewMockSubmissionService(ctrl)
	h := NewSubmissionHandler(mockSub)

	retailerID := uuid.New()
	optionID := uuid.New()
	sub := &domain.Submission{
		ID:            uuid.New(),
		RetailerID:    retailerID,
		ServiceID:     uuid.New(),
		SubServiceID:  uuid.New(),
		OptionID:      optionID,
		FormData:      map[string]string{"applicant_name": "A. Kumar"},
		Amount:        25000,
		PaymentMethod: domain.PaymentMethodWallet,
		PaymentStatus: domain.PaymentStatusPaid,
		Status:        domain.StatusPaid,
	}
	mockSub.EXPECT().Purchase(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
			assert.Equal(t, retailerID, req.RetailerID)
			assert.Equal(t, optionID, req.OptionID)
			assert.Equal(t, domain.PaymentMethodWallet, req.PaymentMethod)
			return &ports.PurchaseResult{Submission: sub}, nil
		})

	body, _ := json.Marshal(dto.PurchaseRequest{
		OptionID:      optionID.String(),
		FormData:      map[string]string{"applicant_name": "A. Kumar"},
		PaymentMethod: "wallet",
	})

	w := httptest.NewRecorder()
	c := authedContext(t, w, retailerID, middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Purchase(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	submission := data["submission"].(map[string]interface{})
	assert.Equal(t, sub.ID.String(), submission["id"])
	assert.Equal(t, "paid", submission["status"])
}

func TestPurchase_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewSubmissionHandler(mocks.NewMockSubmissionService(ctrl))

	// Missing payment_method => binding error
	w := httptest.NewRecorder()
	c := authedContext(t, w, uuid.New(), middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader([]byte(`{}`)))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Purchase(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchase_InsufficientFundsMapsTo402(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSub := mocks.NewMockSubmissionService(ctrl)
	h := NewSubmissionHandler(mockSub)

	mockSub.EXPECT().Purchase(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientFunds())

	body, _ := json.Marshal(dto.PurchaseRequest{
		OptionID:      uuid.NewString(),
		FormData:      map[string]string{},
		PaymentMethod: "wallet",
	})

	w := httptest.NewRecorder()
	c := authedContext(t, w, uuid.New(), middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Purchase(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LED_001", resp["error_code"])
}

func TestGetSubmission_OwnershipHidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSub := mocks.NewMockSubmissionService(ctrl)
	h := NewSubmissionHandler(mockSub)

	other := &domain.Submission{ID: uuid.New(), RetailerID: uuid.New()}
	mockSub.EXPECT().GetSubmission(gomock.Any(), other.ID).Return(other, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, uuid.New(), middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+other.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: other.ID.String()}}

	h.Get(c)

	// Another retailer's submission reads as not found.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUpdateStatus_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSub := mocks.NewMockSubmissionService(ctrl)
	h := NewSubmissionHandler(mockSub)

	adminID := uuid.New()
	sub := &domain.Submission{ID: uuid.New(), RetailerID: uuid.New(), Status: domain.StatusCompleted}
	mockSub.EXPECT().AdminUpdateStatus(gomock.Any(), sub.ID, domain.StatusCompleted, "Verified", adminID).
		Return(sub, nil)

	body, _ := json.Marshal(dto.AdminStatusRequest{Status: "completed", Remarks: "Verified"})

	w := httptest.NewRecorder()
	c := authedContext(t, w, adminID, middleware.RoleAdmin)
	c.Request = httptest.NewRequest(http.MethodPut, "/api/v1/admin/submissions/"+sub.ID.String()+"/status", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: sub.ID.String()}}

	h.AdminUpdateStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Wallet Handler Tests ---

func TestGetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger, mocks.NewMockSettlementService(ctrl))

	retailerID := uuid.New()
	wallet := domain.NewWallet(retailerID)
	wallet.Balance = 73000
	mockLedger.EXPECT().GetOrCreateWallet(gomock.Any(), retailerID).Return(wallet, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, retailerID, middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)

	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(73000), data["balance"])
}

func TestTopUp_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewWalletHandler(mocks.NewMockLedgerService(ctrl), mockSettlement)

	retailerID := uuid.New()
	mockSettlement.EXPECT().InitiateTopUp(gomock.Any(), retailerID, int64(50000)).
		Return(&ports.TopUpResult{OrderID: "WALLET_x_1", PaymentURL: "https://pay.example.com/p/t"}, nil)

	body, _ := json.Marshal(dto.TopUpRequest{Amount: 50000})

	w := httptest.NewRecorder()
	c := authedContext(t, w, retailerID, middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.TopUp(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "https://pay.example.com/p/t", data["payment_url"])
}

func TestTopUp_RejectsNonPositiveAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockLedgerService(ctrl), mocks.NewMockSettlementService(ctrl))

	body, _ := json.Marshal(map[string]int64{"amount": -5})

	w := httptest.NewRecorder()
	c := authedContext(t, w, uuid.New(), middleware.RoleRetailer)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.TopUp(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminCredit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger, mocks.NewMockSettlementService(ctrl))

	adminID := uuid.New()
	retailerID := uuid.New()
	mockLedger.EXPECT().ManualCredit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.CreditRequest) (*domain.Transaction, error) {
			assert.Equal(t, retailerID, req.RetailerID)
			assert.Equal(t, int64(30000), req.Amount)
			assert.Equal(t, "adm:TICKET-77", req.CorrelationKey)
			return &domain.Transaction{
				ID:             uuid.New(),
				Type:           domain.TransactionTypeCredit,
				Amount:         30000,
				UpdatedBalance: 30000,
			}, nil
		})

	body, _ := json.Marshal(dto.ManualCreditRequest{Amount: 30000, Reason: "Goodwill", Reference: "TICKET-77"})

	w := httptest.NewRecorder()
	c := authedContext(t, w, adminID, middleware.RoleAdmin)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/admin/wallets/"+retailerID.String()+"/credit", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "retailer_id", Value: retailerID.String()}}

	h.AdminCredit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(30000), resp["data"].(map[string]interface{})["updated_balance"])
}

// --- Settlement Handler Tests ---

func TestCallback_Reconciles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(mockSettlement)

	retailerID := uuid.New()
	orderID := domain.NewTopUpOrderRef(retailerID).String()
	mockSettlement.EXPECT().Reconcile(gomock.Any(), orderID).
		Return(&ports.ReconcileResult{GatewayStatus: "Success", Applied: true}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, nil)

	h.Callback(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["applied"])
	assert.Equal(t, "Success", data["gateway_status"])
}

func TestCallback_MissingOrderID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewSettlementHandler(mocks.NewMockSettlementService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback", nil)

	h.Callback(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_UnresolvableOrderMapsTo422(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(mockSettlement)

	mockSettlement.EXPECT().Reconcile(gomock.Any(), "garbage").
		Return(nil, apperror.ErrUnresolvableOrderReference(assert.AnError))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback?order_id=garbage", nil)

	h.Callback(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "GW_003", resp["error_code"])
}
