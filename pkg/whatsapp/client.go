package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/msisdn"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
)

// =============================================================================
// Meta WhatsApp Cloud API
// =============================================================================

type MetaConfig struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

type MetaClient struct {
	config     *MetaConfig
	httpClient *http.Client
}

func NewMetaClient(cfg *MetaConfig) *MetaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v18.0"
	}
	return &MetaClient{
		config:     cfg,
		httpClient: telemetry.NewHTTPClient(cfg.Timeout),
	}
}

// Send delivers a text message and returns the provider message ID.
func (c *MetaClient) Send(ctx context.Context, to, text string) (string, error) {
	body, err := json.Marshal(SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msisdn.International(to),
		Type:             "text",
		Text:             TextContent{Body: text},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.config.BaseURL, c.config.APIVersion, c.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	var result SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error != nil {
			return "", fmt.Errorf("whatsapp API error %d: %s", result.Error.Code, result.Error.Message)
		}
		return "", fmt.Errorf("whatsapp API returned status %d", resp.StatusCode)
	}
	if len(result.Messages) == 0 {
		return "", fmt.Errorf("whatsapp API returned no message id")
	}

	return result.Messages[0].ID, nil
}

// =============================================================================
// Twilio WhatsApp
// =============================================================================

type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

type TwilioClient struct {
	config     *TwilioConfig
	httpClient *http.Client
}

func NewTwilioClient(cfg *TwilioConfig) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &TwilioClient{
		config:     cfg,
		httpClient: telemetry.NewHTTPClient(cfg.Timeout),
	}
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *TwilioClient) Send(ctx context.Context, to, text string) (string, error) {
	data := url.Values{}
	data.Set("From", withPrefix(c.config.From))
	data.Set("To", withPrefix("+"+msisdn.International(to)))
	data.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.config.BaseURL, c.config.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	var result twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twilio API error %d: %s", result.Code, result.Message)
	}

	return result.SID, nil
}

func withPrefix(n string) string {
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + n
}

// =============================================================================
// Mock
// =============================================================================

type MockMessage struct {
	To   string
	Text string
}

// MockClient records outbound messages. Set Err to simulate transport
// failures.
type MockClient struct {
	mu   sync.Mutex
	sent []MockMessage
	Err  error
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Send(_ context.Context, to, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}
	c.sent = append(c.sent, MockMessage{To: to, Text: text})
	return fmt.Sprintf("mock-%d", len(c.sent)), nil
}

func (c *MockClient) Sent() []MockMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MockMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// Last returns the most recent message to recipient, or "" if none.
func (c *MockClient) Last(to string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].To == to {
			return c.sent[i].Text
		}
	}
	return ""
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
