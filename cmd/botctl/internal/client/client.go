package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client talks to the bot service admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// APIError is the error body of the service's response envelope.
type APIError struct {
	Status  int      `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", e.Status)
	}
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return msg
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// New uses the api_url configured through viper.
func New() *Client {
	return NewWithURL(viper.GetString("api_url"))
}

func NewWithURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 || env.Error != nil {
		if env.Error == nil {
			env.Error = &APIError{}
		}
		env.Error.Status = resp.StatusCode
		return env.Error
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// IsCode reports whether err is an API error carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Auth

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

func (c *Client) Login(username, password string) (*Token, error) {
	var resp Token
	err := c.do(http.MethodPost, "/admin/login", LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	return &resp, err
}

// Transactions

type Transaction struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference"`
	Phone     string  `json:"phone"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Amount    int64   `json:"amount"`
	Details   Details `json:"details"`
	Payment   Payment `json:"payment"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Details struct {
	CardType    string   `json:"card_type,omitempty"`
	CardValue   int64    `json:"card_value,omitempty"`
	CardCode    string   `json:"card_code,omitempty"`
	Images      []string `json:"images,omitempty"`
	Description string   `json:"description,omitempty"`
	ReviewNotes string   `json:"review_notes,omitempty"`
	ReviewedBy  string   `json:"reviewed_by,omitempty"`
}

type Payment struct {
	Gateway          string     `json:"gateway,omitempty"`
	Reference        string     `json:"reference,omitempty"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

func (c *Client) Pending(txType string) ([]Transaction, error) {
	var resp []Transaction
	path := "/admin/transactions/pending"
	if txType != "" {
		path += "?type=" + url.QueryEscape(txType)
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp, err
}

type ApproveRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (c *Client) Approve(id, notes string) (*Transaction, error) {
	var resp Transaction
	err := c.do(http.MethodPost, "/admin/giftcards/"+url.PathEscape(id)+"/approve", ApproveRequest{Notes: notes}, &resp)
	return &resp, err
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (c *Client) Reject(id, reason string) (*Transaction, error) {
	var resp Transaction
	err := c.do(http.MethodPost, "/admin/giftcards/"+url.PathEscape(id)+"/reject", RejectRequest{Reason: reason}, &resp)
	return &resp, err
}

func (c *Client) VerifyPayment(reference string) (*Transaction, error) {
	var resp Transaction
	err := c.do(http.MethodPost, "/admin/payments/"+url.PathEscape(reference)+"/verify", nil, &resp)
	return &resp, err
}

type ConfirmTransferRequest struct {
	Amount        int64  `json:"amount,omitempty"`
	BankReference string `json:"bank_reference,omitempty"`
}

// ConfirmTransfer settles a bank-transfer funding. amount is what arrived;
// zero skips the amount check.
func (c *Client) ConfirmTransfer(reference string, amount int64, bankReference string) (*Transaction, error) {
	var resp Transaction
	body := ConfirmTransferRequest{Amount: amount, BankReference: bankReference}
	err := c.do(http.MethodPost, "/admin/payments/"+url.PathEscape(reference)+"/confirm", body, &resp)
	return &resp, err
}

// Wallets and users

type CreditRequest struct {
	Phone  string `json:"phone"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (c *Client) Credit(phone string, amount int64, reason string) (*Transaction, error) {
	var resp Transaction
	err := c.do(http.MethodPost, "/admin/wallets/credit", CreditRequest{
		Phone:  phone,
		Amount: amount,
		Reason: reason,
	}, &resp)
	return &resp, err
}

type User struct {
	ID                string    `json:"id"`
	Phone             string    `json:"phone"`
	Name              string    `json:"name"`
	Balance           int64     `json:"balance"`
	TotalTransactions int64     `json:"total_transactions"`
	TotalSpent        int64     `json:"total_spent"`
	TotalEarned       int64     `json:"total_earned"`
	Status            string    `json:"status"`
	LastActiveAt      time.Time `json:"last_active_at"`
}

func (c *Client) GetUser(phone string) (*User, error) {
	var resp User
	err := c.do(http.MethodGet, "/admin/users/"+url.PathEscape(phone), nil, &resp)
	return &resp, err
}

func (c *Client) InvalidateCatalog() error {
	return c.do(http.MethodPost, "/admin/catalog/invalidate", nil, nil)
}
