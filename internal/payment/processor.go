package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cafe-ordering/internal/config"
	"cafe-ordering/internal/models"
)

// ProcessorClient talks to the external payment processor over HTTP. The
// backend uses it to create intents; the client core uses it to confirm
// them. It holds no payment state of its own.
type ProcessorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewProcessorClient creates a processor client from configuration.
func NewProcessorClient(cfg config.ProcessorConfig) *ProcessorClient {
	return &ProcessorClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type createIntentRequest struct {
	Amount models.Cents `json:"amount"`
}

type createIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// CreateIntent registers a new payment intent for the given amount and
// returns its client secret. Called by the backend, never the client core.
func (p *ProcessorClient) CreateIntent(ctx context.Context, amount models.Cents) (string, error) {
	var resp createIntentResponse
	err := p.post(ctx, "/v1/payment_intents", createIntentRequest{Amount: amount}, &resp)
	if err != nil {
		return "", fmt.Errorf("processor intent creation: %w", err)
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("processor returned empty client secret")
	}
	return resp.ClientSecret, nil
}

type confirmRequest struct {
	ClientSecret  string               `json:"client_secret"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

type confirmResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	PaymentIntent *struct {
		Status string `json:"status"`
	} `json:"payment_intent,omitempty"`
}

// ConfirmCardPayment submits the card details against an intent and
// returns the processor's resulting status string.
func (p *ProcessorClient) ConfirmCardPayment(ctx context.Context, clientSecret string, method models.PaymentMethod) (string, error) {
	var resp confirmResponse
	err := p.post(ctx, "/v1/payment_intents/confirm", confirmRequest{
		ClientSecret:  clientSecret,
		PaymentMethod: method,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("processor confirmation: %w", err)
	}

	if resp.Error != nil {
		return "", &PaymentError{Err: fmt.Errorf("%s", resp.Error.Message)}
	}
	if resp.PaymentIntent == nil {
		return "", fmt.Errorf("processor returned neither error nor payment intent")
	}
	return resp.PaymentIntent.Status, nil
}

func (p *ProcessorClient) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
