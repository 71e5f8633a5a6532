package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"saas-billing/internal/config"
	"saas-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*Client)(nil)

// Client implements the PaymentGateway port with direct HTTP calls against
// the processor's order API.
type Client struct {
	name       string
	merchantID string
	baseURL    string
	httpc      *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	name := cfg.Name
	if name == "" {
		name = "payflow"
	}
	return &Client{
		name:       name,
		merchantID: cfg.MerchantID,
		baseURL:    cfg.BaseURL,
		httpc:      &http.Client{},
	}
}

func (c *Client) Name() string { return c.name }

// createOrderResponse represents the response from the order creation API.
type createOrderResponse struct {
	Data struct {
		Code          int    `json:"code"`
		Message       string `json:"message"`
		SessionHandle string `json:"session_handle"`
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

// orderStatusResponse represents the response from the order status API.
type orderStatusResponse struct {
	Data struct {
		Code          int    `json:"code"`
		Status        string `json:"status"`
		Amount        int64  `json:"amount"`
		TransactionID string `json:"transaction_id"`
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

// CreateOrder implements adapter.PaymentGateway.CreateOrder.
func (c *Client) CreateOrder(ctx context.Context, req adapter.OrderRequest) (string, error) {
	body := map[string]interface{}{
		"merchant_id": c.merchantID,
		"order_id":    req.OrderID,
		"amount":      req.Amount,
		"currency":    req.Currency,
		"customer":    req.CustomerEmail,
		"description": req.Description,
	}

	var resp createOrderResponse
	if err := c.post(ctx, "/orders/create.json", body, &resp); err != nil {
		return "", err
	}
	if resp.Data.Code != 100 {
		return "", fmt.Errorf("gateway error: code %d, message: %s", resp.Data.Code, resp.Data.Message)
	}
	if len(resp.Errors) > 0 {
		errorBytes, _ := json.Marshal(resp.Errors)
		return "", fmt.Errorf("gateway errors: %s", string(errorBytes))
	}
	return resp.Data.SessionHandle, nil
}

// GetOrderStatus implements adapter.PaymentGateway.GetOrderStatus.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (adapter.OrderStatus, error) {
	body := map[string]interface{}{
		"merchant_id": c.merchantID,
		"order_id":    orderID,
	}

	var resp orderStatusResponse
	if err := c.post(ctx, "/orders/status.json", body, &resp); err != nil {
		return adapter.OrderStatus{}, err
	}
	if resp.Data.Code != 100 {
		return adapter.OrderStatus{}, fmt.Errorf("gateway error: code %d", resp.Data.Code)
	}
	if len(resp.Errors) > 0 {
		errorBytes, _ := json.Marshal(resp.Errors)
		return adapter.OrderStatus{}, fmt.Errorf("gateway errors: %s", string(errorBytes))
	}
	return adapter.OrderStatus{
		Status: resp.Data.Status,
		Amount: resp.Data.Amount,
		TxnID:  resp.Data.TransactionID,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}
