package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/telemetry"
)

type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

type PaystackClient struct {
	config     *Config
	httpClient *http.Client
}

func NewPaystackClient(cfg *Config) *PaystackClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	return &PaystackClient{
		config:     cfg,
		httpClient: telemetry.NewHTTPClient(cfg.Timeout),
	}
}

func (c *PaystackClient) Name() string { return GatewayPaystack }

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at"`
}

// Initiate opens a checkout. Paystack amounts are in kobo.
func (c *PaystackClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	meta := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.Phone != "" {
		meta["phone"] = req.Phone
	}

	payload := paystackInitRequest{
		Email:       req.Email,
		Amount:      req.Amount * 100,
		Reference:   req.Reference,
		CallbackURL: c.config.CallbackURL,
		Metadata:    meta,
	}

	var data paystackInitData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}

	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &InitiateResult{Reference: ref, Link: data.AuthorizationURL}, nil
}

func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Verification, error) {
	var data paystackVerifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}
	if data.Status != "success" {
		return nil, ErrNotPaid
	}

	v := &Verification{Reference: data.Reference, Amount: data.Amount / 100}
	if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
		v.PaidAt = t
	}
	return v, nil
}

func (c *PaystackClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call paystack: %w", err)
	}
	defer resp.Body.Close()

	var result paystackResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !result.Status {
		return fmt.Errorf("paystack error (status %d): %s", resp.StatusCode, result.Message)
	}

	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
