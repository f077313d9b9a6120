package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/telemetry"
)

type FlutterwaveClient struct {
	config     *Config
	httpClient *http.Client
}

func NewFlutterwaveClient(cfg *Config) *FlutterwaveClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.flutterwave.com"
	}
	return &FlutterwaveClient{
		config:     cfg,
		httpClient: telemetry.NewHTTPClient(cfg.Timeout),
	}
}

func (c *FlutterwaveClient) Name() string { return GatewayFlutterwave }

type flutterwaveCustomer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber"`
}

type flutterwaveCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type flutterwaveInitRequest struct {
	TxRef          string                    `json:"tx_ref"`
	Amount         int64                     `json:"amount"`
	Currency       string                    `json:"currency"`
	RedirectURL    string                    `json:"redirect_url,omitempty"`
	Customer       flutterwaveCustomer       `json:"customer"`
	Customizations flutterwaveCustomizations `json:"customizations"`
	Meta           map[string]string         `json:"meta,omitempty"`
}

type flutterwaveResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flutterwaveTransaction struct {
	Status    string  `json:"status"`
	TxRef     string  `json:"tx_ref"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

func (c *FlutterwaveClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	payload := flutterwaveInitRequest{
		TxRef:       req.Reference,
		Amount:      req.Amount,
		Currency:    "NGN",
		RedirectURL: c.config.CallbackURL,
		Customer:    flutterwaveCustomer{Email: req.Email, PhoneNumber: req.Phone},
		Customizations: flutterwaveCustomizations{
			Title:       "Wallet Funding",
			Description: "Fund WhatsApp wallet",
		},
		Meta: req.Metadata,
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := c.do(ctx, http.MethodPost, "/v3/payments", payload, &data); err != nil {
		return nil, err
	}
	return &InitiateResult{Reference: req.Reference, Link: data.Link}, nil
}

// Verify looks the payment up by tx_ref.
func (c *FlutterwaveClient) Verify(ctx context.Context, reference string) (*Verification, error) {
	var data flutterwaveTransaction
	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	if data.Status != "successful" {
		return nil, ErrNotPaid
	}

	v := &Verification{Reference: data.TxRef, Amount: int64(data.Amount)}
	if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
		v.PaidAt = t
	}
	return v, nil
}

func (c *FlutterwaveClient) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call flutterwave: %w", err)
	}
	defer resp.Body.Close()

	var result flutterwaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Status != "success" {
		return fmt.Errorf("flutterwave error (status %d): %s", resp.StatusCode, result.Message)
	}

	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
