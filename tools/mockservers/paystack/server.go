package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"

	"github.com/Rohianon/chatcommerce/pkg/crypto"
	"github.com/Rohianon/chatcommerce/pkg/logger"
)

// =============================================================================
// Paystack Mock Server
// =============================================================================
// Simulates the parts of the Paystack API the bot uses for wallet funding:
// - POST /transaction/initialize
// - GET  /transaction/verify/:reference
// - signed charge.success webhooks sent to WebhookURL
//
// Test control endpoints:
// - POST /admin/charge/:reference?success=true  settle a checkout
// - GET  /admin/transactions                    list checkouts
// - POST /admin/reset                           forget everything
// =============================================================================

type Config struct {
	SecretKey  string
	WebhookURL string
	// AutoPay settles every checkout shortly after it is opened.
	AutoPay      bool
	AutoPayDelay time.Duration
}

type Transaction struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	Email     string    `json:"email"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"` // pending, success, failed
	PaidAt    time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Server struct {
	config Config

	mu           sync.RWMutex
	transactions map[string]*Transaction
	nextID       atomic.Int64

	webhooks chan Transaction
}

func NewServer(cfg Config) *Server {
	if cfg.AutoPayDelay == 0 {
		cfg.AutoPayDelay = 2 * time.Second
	}
	return &Server{
		config:       cfg,
		transactions: make(map[string]*Transaction),
		webhooks:     make(chan Transaction, 100),
	}
}

func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{AppName: "Paystack Mock Server"})
	app.Use(fiberlogger.New())

	api := app.Group("/transaction", s.requireSecret)
	api.Post("/initialize", s.initialize)
	api.Get("/verify/:reference", s.verify)

	app.Post("/admin/charge/:reference", s.charge)
	app.Get("/admin/transactions", s.list)
	app.Post("/admin/reset", s.reset)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": "paystack-mock"})
	})
	return app
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": false, "message": msg})
}

func ok(c *fiber.Ctx, msg string, data any) error {
	return c.JSON(fiber.Map{"status": true, "message": msg, "data": data})
}

func (s *Server) requireSecret(c *fiber.Ctx) error {
	token, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !found || token != s.config.SecretKey {
		return fail(c, fiber.StatusUnauthorized, "Invalid key")
	}
	return c.Next()
}

// =============================================================================
// Transactions
// =============================================================================

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

func (s *Server) initialize(c *fiber.Ctx) error {
	var req initializeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Amount <= 0 {
		return fail(c, fiber.StatusBadRequest, "Invalid Amount Sent")
	}
	if req.Email == "" {
		return fail(c, fiber.StatusBadRequest, "Invalid Email Address Passed")
	}
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	}

	s.mu.Lock()
	if _, exists := s.transactions[req.Reference]; exists {
		s.mu.Unlock()
		return fail(c, fiber.StatusBadRequest, "Duplicate Transaction Reference")
	}
	tx := &Transaction{
		ID:        s.nextID.Add(1),
		Reference: req.Reference,
		Email:     req.Email,
		Amount:    req.Amount,
		Status:    "pending",
		CreatedAt: time.Now(),
	}
	s.transactions[req.Reference] = tx
	s.mu.Unlock()

	if s.config.AutoPay {
		go func() {
			time.Sleep(s.config.AutoPayDelay)
			s.settle(req.Reference, true)
		}()
	}

	accessCode := strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
	return ok(c, "Authorization URL created", fiber.Map{
		"authorization_url": "https://checkout.paystack.com/" + accessCode,
		"access_code":       accessCode,
		"reference":         req.Reference,
	})
}

func (s *Server) verify(c *fiber.Ctx) error {
	s.mu.RLock()
	tx, exists := s.transactions[c.Params("reference")]
	var snapshot Transaction
	if exists {
		snapshot = *tx
	}
	s.mu.RUnlock()

	if !exists {
		return fail(c, fiber.StatusBadRequest, "Transaction reference not found")
	}

	data := fiber.Map{
		"id":        snapshot.ID,
		"status":    snapshot.Status,
		"reference": snapshot.Reference,
		"amount":    snapshot.Amount,
	}
	if snapshot.Status == "pending" {
		data["status"] = "abandoned"
	}
	if !snapshot.PaidAt.IsZero() {
		data["paid_at"] = snapshot.PaidAt.Format(time.RFC3339)
	}
	return ok(c, "Verification successful", data)
}

// settle marks a pending checkout and queues its webhook. It reports false
// when the reference is unknown or already settled.
func (s *Server) settle(reference string, success bool) bool {
	s.mu.Lock()
	tx, exists := s.transactions[reference]
	if !exists || tx.Status != "pending" {
		s.mu.Unlock()
		return false
	}
	if success {
		tx.Status = "success"
		tx.PaidAt = time.Now().UTC().Truncate(time.Second)
	} else {
		tx.Status = "failed"
	}
	snapshot := *tx
	s.mu.Unlock()

	if success {
		s.webhooks <- snapshot
	}
	return true
}

// =============================================================================
// Webhooks
// =============================================================================

func (s *Server) webhookBody(tx Transaction) []byte {
	body, _ := json.Marshal(fiber.Map{
		"event": "charge.success",
		"data": fiber.Map{
			"id":        tx.ID,
			"reference": tx.Reference,
			"status":    tx.Status,
			"amount":    tx.Amount,
			"paid_at":   tx.PaidAt.Format(time.RFC3339),
			"customer":  fiber.Map{"email": tx.Email},
		},
	})
	return body
}

func (s *Server) processWebhooks() {
	client := &http.Client{Timeout: 10 * time.Second}

	for tx := range s.webhooks {
		if s.config.WebhookURL == "" {
			continue
		}
		if err := s.send(client, tx); err != nil {
			logger.Error().Err(err).Str("reference", tx.Reference).Msg("Failed to deliver webhook")
		}
	}
}

func (s *Server) send(client *http.Client, tx Transaction) error {
	body := s.webhookBody(tx)
	req, err := http.NewRequest(http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Paystack-Signature", crypto.SignSHA512(s.config.SecretKey, body))

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	logger.Info().
		Str("reference", tx.Reference).
		Int("status", resp.StatusCode).
		Msg("Delivered charge.success webhook")
	return nil
}

// =============================================================================
// Admin Endpoints
// =============================================================================

func (s *Server) charge(c *fiber.Ctx) error {
	success := c.Query("success", "true") == "true"
	if !s.settle(c.Params("reference"), success) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no pending transaction with that reference"})
	}
	return c.JSON(fiber.Map{"status": "settled", "success": success})
}

func (s *Server) list(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		txs = append(txs, *tx)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

func (s *Server) reset(c *fiber.Ctx) error {
	s.mu.Lock()
	s.transactions = make(map[string]*Transaction)
	s.mu.Unlock()

	return c.JSON(fiber.Map{"status": "reset complete"})
}
