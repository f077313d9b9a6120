package vtu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/chatcommerce/pkg/telemetry"
)

const (
	NetworkMTN     = "mtn"
	NetworkGlo     = "glo"
	NetworkAirtel  = "airtel"
	Network9mobile = "9mobile"

	codeSuccess = "000"
)

// Networks in menu order.
var Networks = []string{NetworkMTN, NetworkGlo, NetworkAirtel, Network9mobile}

type AirtimeRequest struct {
	Network string
	Phone   string
	Amount  int64
}

type DataRequest struct {
	Network  string
	Phone    string
	PlanCode string
	Amount   int64
}

type Receipt struct {
	Provider      string
	Reference     string
	TransactionID string
}

type Config struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
}

// Client talks to the VTPass bill-payment API.
type Client struct {
	config     *Config
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg *Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sandbox.vtpass.com/api"
	}
	return &Client{
		config:     cfg,
		httpClient: telemetry.NewHTTPClient(cfg.Timeout),
		now:        time.Now,
	}
}

// ServiceID maps a network to its VTPass service identifier.
func ServiceID(network string, data bool) string {
	id := strings.ToLower(network)
	if id == Network9mobile {
		id = "etisalat"
	}
	if data {
		id += "-data"
	}
	return id
}

type payRequest struct {
	RequestID     string `json:"request_id"`
	ServiceID     string `json:"serviceID"`
	Amount        int64  `json:"amount"`
	Phone         string `json:"phone"`
	BillersCode   string `json:"billersCode,omitempty"`
	VariationCode string `json:"variation_code,omitempty"`
}

type payResponse struct {
	Code                string `json:"code"`
	ResponseDescription string `json:"response_description"`
	RequestID           string `json:"requestId"`
	Content             struct {
		Transactions struct {
			TransactionID string `json:"transactionId"`
			Status        string `json:"status"`
		} `json:"transactions"`
	} `json:"content"`
}

func (c *Client) PurchaseAirtime(ctx context.Context, req AirtimeRequest) (*Receipt, error) {
	return c.pay(ctx, payRequest{
		ServiceID: ServiceID(req.Network, false),
		Amount:    req.Amount,
		Phone:     req.Phone,
	})
}

func (c *Client) PurchaseData(ctx context.Context, req DataRequest) (*Receipt, error) {
	return c.pay(ctx, payRequest{
		ServiceID:     ServiceID(req.Network, true),
		Amount:        req.Amount,
		Phone:         req.Phone,
		BillersCode:   req.Phone,
		VariationCode: req.PlanCode,
	})
}

// RequestID builds a VTPass request_id: a Lagos-time YYYYMMDDHHmm prefix
// followed by a unique suffix.
func (c *Client) RequestID() string {
	loc, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		loc = time.FixedZone("WAT", 3600)
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return c.now().In(loc).Format("200601021504") + suffix
}

func (c *Client) pay(ctx context.Context, body payRequest) (*Receipt, error) {
	body.RequestID = c.RequestID()

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/pay", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.config.APIKey)
	req.Header.Set("secret-key", c.config.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call vtpass: %w", err)
	}
	defer resp.Body.Close()

	var result payResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Code != codeSuccess {
		msg := result.ResponseDescription
		if msg == "" {
			msg = "purchase failed"
		}
		return nil, fmt.Errorf("vtpass error %s: %s", result.Code, msg)
	}

	ref := result.RequestID
	if ref == "" {
		ref = body.RequestID
	}
	return &Receipt{
		Provider:      "vtpass",
		Reference:     ref,
		TransactionID: result.Content.Transactions.TransactionID,
	}, nil
}

// MockClient succeeds unless Err is set. Delay simulates a slow provider and
// honours ctx cancellation.
type MockClient struct {
	mu       sync.Mutex
	airtime  []AirtimeRequest
	data     []DataRequest
	Err      error
	Delay    time.Duration
	sequence int
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) PurchaseAirtime(ctx context.Context, req AirtimeRequest) (*Receipt, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.airtime = append(m.airtime, req)
	return m.receipt()
}

func (m *MockClient) PurchaseData(ctx context.Context, req DataRequest) (*Receipt, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, req)
	return m.receipt()
}

func (m *MockClient) AirtimeCalls() []AirtimeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AirtimeRequest(nil), m.airtime...)
}

func (m *MockClient) DataCalls() []DataRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DataRequest(nil), m.data...)
}

func (m *MockClient) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockClient) receipt() (*Receipt, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.sequence++
	return &Receipt{Provider: "mock", Reference: fmt.Sprintf("MOCK-%06d", m.sequence)}, nil
}
