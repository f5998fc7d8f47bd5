package integration

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWalletPurchases fires 100 concurrent purchases against
// one wallet funded with exactly enough for all of them. The pessimistic
// wallet lock must serialize the debits: every purchase succeeds, the
// final balance is exactly zero and the balance never goes negative.
func TestConcurrentWalletPurchases(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")

	const (
		workers = 100
		price   = int64(100000)
	)
	optionID := app.addOption(price)

	// Fund the wallet with workers * price through the gateway
	code, envelope := app.do(t, http.MethodPost, "/api/v1/wallet/topup", token,
		map[string]int64{"amount": workers * price})
	require.Equal(t, http.StatusCreated, code)
	orderID := data(t, envelope)["order_id"].(string)
	app.gateway.markPaid(orderID)
	code, _ = app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code)

	var paid, failed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			code, envelope := app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
				"option_id":      optionID.String(),
				"form_data":      map[string]string{"applicant_name": "Load Test"},
				"payment_method": "wallet",
			})
			if code != http.StatusCreated {
				failed.Add(1)
				return
			}
			sub := data(t, envelope)["submission"].(map[string]interface{})
			switch sub["status"] {
			case "paid":
				paid.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly enough funds for all: every debit lands
	assert.Equal(t, int64(workers), paid.Load())
	assert.Equal(t, int64(0), failed.Load())

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, envelope)["balance"])

	// 1 top-up credit + workers debits
	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(workers+1), data(t, envelope)["total"])

	// The well is dry: one more purchase is preserved as payment-failed
	code, envelope = app.do(t, http.MethodPost, "/api/v1/submissions", token, map[string]any{
		"option_id":      optionID.String(),
		"form_data":      map[string]string{"applicant_name": "One Too Many"},
		"payment_method": "wallet",
	})
	require.Equal(t, http.StatusCreated, code)
	sub := data(t, envelope)["submission"].(map[string]interface{})
	assert.Equal(t, "payment-failed", sub["status"])
}

// TestConcurrentDuplicateSettlements delivers the same successful order
// to the reconciler from many goroutines at once. Exactly one delivery
// may move money.
func TestConcurrentDuplicateSettlements(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	token := app.token(t, retailerID, "retailer")

	code, envelope := app.do(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]int64{"amount": 50000})
	require.Equal(t, http.StatusCreated, code)
	orderID := data(t, envelope)["order_id"].(string)
	app.gateway.markPaid(orderID)

	const deliveries = 20
	var applied atomic.Int64
	var wg sync.WaitGroup
	wg.Add(deliveries)
	for i := 0; i < deliveries; i++ {
		go func() {
			defer wg.Done()
			code, envelope := app.do(t, http.MethodGet, "/api/v1/payments/callback?order_id="+orderID, "", nil)
			if code != http.StatusOK {
				return
			}
			if data(t, envelope)["applied"] == true {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), applied.Load())

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(50000), data(t, envelope)["balance"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(t, envelope)["total"])
}
