package giftcard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/chatcommerce/pkg/telemetry"
)

const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

type Submission struct {
	Reference string   `json:"reference"`
	CardType  string   `json:"cardType"`
	CardValue int64    `json:"cardValue"`
	CardCode  string   `json:"cardCode,omitempty"`
	Images    []string `json:"images"`
}

// Result is the verifier's verdict: completed means the card was accepted
// immediately, pending means it awaits manual review.
type Result struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Message   string `json:"message,omitempty"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{
		config:     cfg,
		httpClient: telemetry.NewHTTPClient(cfg.Timeout),
	}
}

func (c *Client) Submit(ctx context.Context, sub Submission) (*Result, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit gift card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("gift card provider returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Status == "" {
		result.Status = StatusPending
	}
	if result.Status != StatusPending && result.Status != StatusCompleted {
		return nil, fmt.Errorf("gift card provider returned unknown status %q", result.Status)
	}
	return &result, nil
}

// MockClient returns Outcome for every submission, except that cards with
// a face value at or below AutoApproveMax are completed immediately.
type MockClient struct {
	mu             sync.Mutex
	submissions    []Submission
	Outcome        string
	AutoApproveMax int64
	Err            error
}

func NewMockClient(autoApproveMax int64) *MockClient {
	return &MockClient{Outcome: StatusPending, AutoApproveMax: autoApproveMax}
}

func (m *MockClient) Submit(_ context.Context, sub Submission) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	m.submissions = append(m.submissions, sub)

	status := m.Outcome
	if m.AutoApproveMax > 0 && sub.CardValue <= m.AutoApproveMax {
		status = StatusCompleted
	}
	return &Result{Status: status, Reference: "GC-" + uuid.NewString()[:8]}, nil
}

func (m *MockClient) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Submission(nil), m.submissions...)
}
