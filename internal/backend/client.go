// Package backend is the HTTP gateway the client core uses to reach the
// commerce backend. Every call takes the session token explicitly; the
// core never reads credentials from ambient state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cafe-ordering/internal/models"
)

// Client calls the customer API with a bearer session token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchCart returns the server's current cart entries for the session user.
func (c *Client) FetchCart(ctx context.Context, token string) ([]models.CartEntry, error) {
	var resp models.CartResponse
	if err := c.do(ctx, http.MethodGet, "/customer/cart/", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UpdateQuantity sets the quantity of one cart entry on the server.
func (c *Client) UpdateQuantity(ctx context.Context, token, entryID string, quantity int) error {
	body := models.UpdateQuantityRequest{Quantity: quantity}
	return c.do(ctx, http.MethodPut, "/customer/update/"+entryID, token, body, nil)
}

// RemoveEntry deletes one cart entry on the server.
func (c *Client) RemoveEntry(ctx context.Context, token, entryID string) error {
	return c.do(ctx, http.MethodDelete, "/customer/remove/"+entryID, token, nil, nil)
}

// ClearCart deletes all cart entries on the server.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/customer/clear", token, nil, nil)
}

// CreatePaymentIntent asks the backend for a payment authorization handle
// scoped to the given amount in minor units.
func (c *Client) CreatePaymentIntent(ctx context.Context, token string, amount models.Cents) (string, error) {
	req := models.CreatePaymentIntentRequest{Amount: amount}
	var resp models.CreatePaymentIntentResponse
	if err := c.do(ctx, http.MethodPost, "/customer/create-payment-intent", token, req, &resp); err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("backend returned empty client secret")
	}
	return resp.ClientSecret, nil
}

// CreateOrder records a paid order.
func (c *Client) CreateOrder(ctx context.Context, token string, req *models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/customer/orders", token, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns all orders for the session user, newest first.
func (c *Client) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, "/customer/orders", token, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns a single order with its item breakdown.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, "/customer/orders/"+orderID, token, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// errorEnvelope matches the backend's JSON error responses.
type errorEnvelope struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope errorEnvelope
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, envelope.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
