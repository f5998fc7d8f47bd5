package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retailer-portal/config"
	httpHandler "retailer-portal/internal/adapter/http/handler"
	redisStorage "retailer-portal/internal/adapter/storage/redis"
	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"
	"retailer-portal/internal/service"
	"retailer-portal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret = "test-jwt-secret-key-32bytes!!"
	testJWTIssuer = "test-issuer"
)

// testApp builds the full application stack against in-memory storage:
// real HTTP layer, middleware, handlers and services, with miniredis
// behind the settlement cache and a fake payment gateway.

type testApp struct {
	server  *httptest.Server
	redis   *miniredis.Miniredis
	gateway *fakeGateway
	wallets *inMemoryWalletRepo
	txns    *inMemoryTransactionRepo
	subs    *inMemorySubmissionRepo
	catalog *inMemoryCatalogRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	settlementCache := redisStorage.NewSettlementCache(rdb)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	wallets := newInMemoryWalletRepo()
	txns := newInMemoryTransactionRepo()
	subs := newInMemorySubmissionRepo()
	catalog := newInMemoryCatalogRepo()
	transactor := newInMemoryTransactor()
	gw := newFakeGateway()

	log := logger.New("debug", false)
	ledgerSvc := service.NewLedgerService(wallets, txns, transactor, log)
	submissionSvc := service.NewSubmissionService(subs, catalog, ledgerSvc, gw, transactor, "https://portal.test/payments/callback", log)
	settlementSvc := service.NewSettlementService(ledgerSvc, subs, gw, transactor, settlementCache, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		SubmissionSvc:  submissionSvc,
		SettlementSvc:  settlementSvc,
		HealthCheckers: []ports.HealthChecker{redisHealth},
		JWT:            config.JWTConfig{Secret: testJWTSecret, Issuer: testJWTIssuer},
		Logger:         log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:  server,
		redis:   mr,
		gateway: gw,
		wallets: wallets,
		txns:    txns,
		subs:    subs,
		catalog: catalog,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// addOption seeds a purchasable catalog option and returns its id.
func (a *testApp) addOption(price int64) uuid.UUID {
	o := &domain.ServiceOption{
		ID:            uuid.New(),
		ServiceID:     uuid.New(),
		SubServiceID:  uuid.New(),
		Name:          "PAN card application",
		RetailerPrice: price,
		IsActive:      true,
	}
	a.catalog.add(o)
	return o.ID
}

// token mints a bearer token the way the portal's identity service does.
func (a *testApp) token(t *testing.T, subjectID uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subjectID.String(),
		"iss":  testJWTIssuer,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// do sends a request and decodes the response envelope.
func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok, "envelope has no data object: %v", envelope)
	return d
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_AuthRequired(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, envelope := app.do(t, http.MethodGet, "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTH_001", envelope["error_code"])

	// Retailer token on an admin route
	retailerToken := app.token(t, uuid.New(), "retailer")
	code, envelope = app.do(t, http.MethodPut, "/api/v1/admin/submissions/"+uuid.NewString()+"/status", retailerToken,
		map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "AUTH_002", envelope["error_code"])
}

func TestIntegration_TopUpAndWalletPurchase(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")
	optionID := app.addOption(25000)

	// Fresh wallet starts empty
	code, envelope := app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, envelope)["balance"])

	// Start a top-up at the gateway
	code, envelope = app.do(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]int64{"amount": 100000})
	require.Equal(t, http.StatusCreated, code)
	orderID := data(t, envelope)["order_id"].(string)
	require.NotEmpty(t, orderID)
	assert.NotEmpty(t, data(t, envelope)["payment_url"])

	// Retailer pays on the provider's site, then lands on the callback
	app.gateway.markPaid(orderID)
	code, envelope = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(t, envelope)["applied"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100000), data(t, envelope)["balance"])

	// Purchase paid straight from the wallet
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "A. Kumar"},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	sub := data(t, envelope)["submission"].(map[string]interface{})
	assert.Equal(t, "paid", sub["status"])
	assert.Equal(t, "paid", sub["payment_status"])
	assert.Equal(t, float64(25000), sub["amount"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(75000), data(t, envelope)["balance"])

	// Ledger shows both movements, newest first
	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, code)
	d := data(t, envelope)
	assert.Equal(t, float64(2), d["total"])
	items := d["items"].([]interface{})
	require.Len(t, items, 2)
	newest := items[0].(map[string]interface{})
	assert.Equal(t, "DEBIT", newest["type"])
	assert.Equal(t, float64(25000), newest["amount"])
}

func TestIntegration_InsufficientFundsThenRetry(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")
	optionID := app.addOption(40000)

	// Purchase against an empty wallet: the submission is preserved in
	// payment-failed, not discarded.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "B. Singh"},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	sub := data(t, envelope)["submission"].(map[string]interface{})
	assert.Equal(t, "payment-failed", sub["status"])
	assert.Equal(t, "failed", sub["payment_status"])
	submissionID := sub["id"].(string)

	// Fund the wallet
	code, envelope = app.do(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]int64{"amount": 40000})
	require.Equal(t, http.StatusCreated, code)
	orderID := data(t, envelope)["order_id"].(string)
	app.gateway.markPaid(orderID)
	code, _ = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)

	// Retry succeeds with the frozen amount
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/retry-payment", token,
		map[string]string{"payment_method": "wallet"})
	require.Equal(t, http.StatusOK, code)
	sub = data(t, envelope)["submission"].(map[string]interface{})
	assert.Equal(t, "paid", sub["status"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, envelope)["balance"])

	// A second retry on the now-paid submission is rejected
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/retry-payment", token,
		map[string]string{"payment_method": "wallet"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SUB_002", envelope["error_code"])
}

func TestIntegration_RetrySwitchesPaymentMethod(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")
	optionID := app.addOption(40000)

	// Wallet purchase against an empty wallet fails and is preserved.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "E. Nair"},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	sub := data(t, envelope)["submission"].(map[string]interface{})
	assert.Equal(t, "wallet", sub["payment_method"])
	submissionID := sub["id"].(string)

	// Retry online instead of funding the wallet.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/retry-payment", token,
		map[string]string{"payment_method": "online"})
	require.Equal(t, http.StatusOK, code)
	d := data(t, envelope)
	assert.NotEmpty(t, d["payment_url"])
	orderID := d["submission"].(map[string]interface{})["payment_order_id"].(string)

	// The stored record now says online, not just the response.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/submissions/"+submissionID, token, nil)
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, "online", d["payment_method"])
	assert.Equal(t, "payment-pending", d["status"])

	// Settlement completes the switched payment.
	app.gateway.markPaid(orderID)
	code, _ = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, envelope = app.do(t, http.MethodGet, "/api/v1/submissions/"+submissionID, token, nil)
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, "online", d["payment_method"])
	assert.Equal(t, "paid", d["status"])
}

func TestIntegration_RetryRefusedAfterTerminalState(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")
	adminToken := app.token(t, uuid.New(), "admin")
	optionID := app.addOption(15000)

	// Unpaid submission, preserved in payment-failed.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "F. Khan"},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	submissionID := data(t, envelope)["submission"].(map[string]interface{})["id"].(string)

	// Administrator closes it out of band.
	code, _ = app.do(t, http.MethodPut, "/api/v1/admin/submissions/"+submissionID+"/status", adminToken,
		map[string]string{"status": "completed", "remarks": "Resolved manually"})
	require.Equal(t, http.StatusOK, code)

	// The closed submission cannot be dragged back through a payment.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/retry-payment", token,
		map[string]string{"payment_method": "wallet"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SUB_002", envelope["error_code"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/submissions/"+submissionID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", data(t, envelope)["status"])
}

func TestIntegration_OnlinePurchaseDuplicateSettlement(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")
	optionID := app.addOption(60000)

	code, envelope := app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "C. Devi"},
		"payment_method": "online",
	})
	require.Equal(t, http.StatusCreated, code)
	d := data(t, envelope)
	assert.NotEmpty(t, d["payment_url"])
	sub := d["submission"].(map[string]interface{})
	assert.Equal(t, "payment-pending", sub["status"])
	orderID := sub["payment_order_id"].(string)
	require.NotEmpty(t, orderID)
	submissionID := sub["id"].(string)

	app.gateway.markPaid(orderID)

	// First delivery settles: gateway credit plus the paired purchase
	// debit net the wallet to zero.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, true, d["applied"])
	sub = d["submission"].(map[string]interface{})
	assert.Equal(t, "paid", sub["status"])

	// Duplicate delivery changes nothing and is answered from the cache
	code, envelope = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, data(t, envelope)["applied"])
	assert.Equal(t, 1, app.gateway.statusCallCount())

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, envelope)["balance"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), data(t, envelope)["total"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/submissions/"+submissionID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", data(t, envelope)["status"])
}

func TestIntegration_ReviewWorkflow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	adminID := uuid.New()
	retailerToken := app.token(t, retailerID, "retailer")
	adminToken := app.token(t, adminID, "admin")
	optionID := app.addOption(10000)

	// Fund and purchase
	code, envelope := app.do(t, http.MethodPost, "/api/v1/wallet/topup", retailerToken, map[string]int64{"amount": 10000})
	require.Equal(t, http.StatusCreated, code)
	orderID := data(t, envelope)["order_id"].(string)
	app.gateway.markPaid(orderID)
	code, _ = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions", retailerToken, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "D. Rao"},
		"documents":      []string{"s3://docs/aadhaar.pdf"},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	submissionID := data(t, envelope)["submission"].(map[string]interface{})["id"].(string)

	// Admin takes it under review and asks for a better scan
	code, envelope = app.do(t, http.MethodPut, "/api/v1/admin/submissions/"+submissionID+"/status", adminToken,
		map[string]string{"status": "under-review", "remarks": "Document illegible, please re-upload"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "under-review", data(t, envelope)["status"])

	// Retailer re-uploads
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/documents", retailerToken,
		map[string][]string{"documents": {"s3://docs/aadhaar-v2.pdf"}})
	require.Equal(t, http.StatusOK, code)
	d := data(t, envelope)
	assert.Equal(t, "documents-re-uploaded", d["status"])
	assert.Len(t, d["documents"], 2)

	// Admin completes
	code, envelope = app.do(t, http.MethodPut, "/api/v1/admin/submissions/"+submissionID+"/status", adminToken,
		map[string]string{"status": "completed", "remarks": "Approved"})
	require.Equal(t, http.StatusOK, code)
	d = data(t, envelope)
	assert.Equal(t, "completed", d["status"])
	assert.Equal(t, "Approved", d["admin_remarks"])

	// History recorded every step
	code, envelope = app.do(t, http.MethodGet, "/api/v1/submissions/"+submissionID, retailerToken, nil)
	require.Equal(t, http.StatusOK, code)
	history := data(t, envelope)["status_history"].([]interface{})
	assert.GreaterOrEqual(t, len(history), 5)

	// Re-upload after a terminal state is refused
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/documents", retailerToken,
		map[string][]string{"documents": {"s3://docs/late.pdf"}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SUB_002", envelope["error_code"])
}

func TestIntegration_SubmissionOwnership(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	owner := uuid.New()
	ownerToken := app.token(t, owner, "retailer")
	strangerToken := app.token(t, uuid.New(), "retailer")
	optionID := app.addOption(5000)

	code, envelope := app.do(t, http.MethodPost, "/api/v1/submissions", ownerToken, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	submissionID := data(t, envelope)["submission"].(map[string]interface{})["id"].(string)

	// Another retailer cannot see or probe it
	code, envelope = app.do(t, http.MethodGet, "/api/v1/submissions/"+submissionID, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "SUB_003", envelope["error_code"])

	code, _ = app.do(t, http.MethodGet, "/api/v1/submissions", strangerToken, nil)
	require.Equal(t, http.StatusOK, code)
}

func TestIntegration_AdminManualCredit(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	retailerToken := app.token(t, retailerID, "retailer")
	adminToken := app.token(t, uuid.New(), "admin")

	// Adjustment with a reference: double submission applies once
	body := map[string]any{"amount": 30000, "reason": "Goodwill for outage", "reference": "TICKET-77"}
	code, envelope := app.do(t, http.MethodPost, "/api/v1/admin/wallets/"+retailerID.String()+"/credit", adminToken, body)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(30000), data(t, envelope)["updated_balance"])

	code, _ = app.do(t, http.MethodPost, "/api/v1/admin/wallets/"+retailerID.String()+"/credit", adminToken, body)
	require.Equal(t, http.StatusCreated, code)

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", retailerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(30000), data(t, envelope)["balance"])

	// Retailers cannot reach the adjustment endpoint
	code, envelope = app.do(t, http.MethodPost, "/api/v1/admin/wallets/"+retailerID.String()+"/credit", retailerToken, body)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "AUTH_002", envelope["error_code"])
}
