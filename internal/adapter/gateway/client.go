package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"retailer-portal/config"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"

	"github.com/rs/zerolog"
)

// Client talks to the external payment provider over HTTPS. All calls
// carry the merchant token in the request body, per the provider's API.
// Transport failures and non-2xx responses map to GW_001; a well-formed
// rejection (status=false) maps to GW_002 with the provider's message
// kept verbatim for support follow-up.
type Client struct {
	baseURL     string
	token       string
	redirectURL string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		token:       cfg.Token,
		redirectURL: cfg.RedirectURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

type createOrderRequest struct {
	Token        string       `json:"token"`
	OrderID      string       `json:"order_id"`
	Amount       int64        `json:"amount"`
	CustomerInfo customerInfo `json:"customer_info"`
	RedirectURL  string       `json:"redirect_url"`
}

type customerInfo struct {
	CustomerID string `json:"customer_id"`
}

type createOrderResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Results struct {
		PaymentURL string `json:"payment_url"`
	} `json:"results"`
}

type checkStatusRequest struct {
	Token   string `json:"token"`
	OrderID string `json:"order_id"`
}

type checkStatusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Results struct {
		Status    string `json:"status"`
		OrderID   string `json:"order_id"`
		TxnAmount int64  `json:"txn_amount"`
	} `json:"results"`
}

// CreateOrder registers a payment order with the provider and returns
// the URL the retailer completes payment at.
func (c *Client) CreateOrder(ctx context.Context, req ports.GatewayOrderRequest) (*ports.GatewayOrderResponse, error) {
	redirectURL := req.RedirectURL
	if redirectURL == "" {
		redirectURL = c.redirectURL
	}
	body := createOrderRequest{
		Token:        c.token,
		OrderID:      req.OrderID,
		Amount:       req.Amount,
		CustomerInfo: customerInfo{CustomerID: req.CustomerID},
		RedirectURL:  redirectURL,
	}

	var resp createOrderResponse
	if err := c.post(ctx, "/api/create-order", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		c.log.Error().
			Str("order_id", req.OrderID).
			Str("provider_message", resp.Message).
			Msg("gateway rejected order creation")
		return nil, apperror.ErrGatewayRejected(resp.Message)
	}

	return &ports.GatewayOrderResponse{
		OrderID:    req.OrderID,
		PaymentURL: resp.Results.PaymentURL,
	}, nil
}

// CheckOrderStatus fetches the provider's authoritative status for an
// order. This is the source of truth during reconciliation; callback
// payloads are never trusted on their own.
func (c *Client) CheckOrderStatus(ctx context.Context, orderID string) (*ports.GatewayStatusResponse, error) {
	body := checkStatusRequest{Token: c.token, OrderID: orderID}

	var resp checkStatusResponse
	if err := c.post(ctx, "/api/check-order-status", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		c.log.Error().
			Str("order_id", orderID).
			Str("provider_message", resp.Message).
			Msg("gateway rejected status check")
		return nil, apperror.ErrGatewayRejected(resp.Message)
	}

	return &ports.GatewayStatusResponse{
		Status:    resp.Results.Status,
		OrderID:   resp.Results.OrderID,
		TxnAmount: resp.Results.TxnAmount,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal gateway request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build gateway request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("gateway unreachable")
		return apperror.ErrGatewayUnavailable(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return apperror.ErrGatewayUnavailable(fmt.Errorf("read gateway response: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.log.Error().
			Int("status_code", httpResp.StatusCode).
			Str("path", path).
			Str("raw_response", string(raw)).
			Msg("gateway returned error status")
		return apperror.ErrGatewayUnavailable(fmt.Errorf("gateway returned HTTP %d", httpResp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Error().
			Str("path", path).
			Str("raw_response", string(raw)).
			Msg("gateway returned malformed response")
		return apperror.ErrGatewayUnavailable(fmt.Errorf("decode gateway response: %w", err))
	}
	return nil
}
