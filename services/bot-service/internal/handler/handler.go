package handler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Rohianon/chatcommerce/pkg/auth"
	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/middleware"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/dispatcher"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/review"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type Dispatcher interface {
	HandleMessage(ctx context.Context, in dispatcher.Inbound) error
}

// Reviewer is satisfied by *review.Service.
type Reviewer interface {
	Pending(ctx context.Context, txType string) ([]types.Transaction, error)
	ApproveGiftCard(ctx context.Context, id, reviewer, notes string) (types.Transaction, error)
	RejectGiftCard(ctx context.Context, id, reviewer, reason string) (types.Transaction, error)
	CompleteFunding(ctx context.Context, c review.FundingConfirmation) (types.Transaction, error)
	VerifyFunding(ctx context.Context, reference string) (types.Transaction, error)
	ConfirmTransfer(ctx context.Context, reference string, amount int64, bankReference, by string) (types.Transaction, error)
	CreditWallet(ctx context.Context, phone string, amount int64, reason, by string) (types.Transaction, error)
}

type Users interface {
	GetByPhone(ctx context.Context, phone string) (*types.User, error)
}

type Catalog interface {
	Invalidate()
}

// Tokens is satisfied by *auth.JWTManager.
type Tokens interface {
	middleware.TokenValidator
	Issue(username, role string) (*auth.Token, error)
}

type Config struct {
	// Meta webhook verification.
	VerifyToken string
	AppSecret   string

	// PaystackSecret signs Paystack webhooks. Paystack webhooks are refused
	// while it is empty.
	PaystackSecret string

	AdminUsername     string
	AdminPasswordHash string
}

type Handler struct {
	dispatcher Dispatcher
	reviewer   Reviewer
	users      Users
	catalog    Catalog
	tokens     Tokens
	config     Config
	validate   *validator.Validate
}

func New(d Dispatcher, reviewer Reviewer, users Users, catalog Catalog, tokens Tokens, cfg Config) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		dispatcher: d,
		reviewer:   reviewer,
		users:      users,
		catalog:    catalog,
		tokens:     tokens,
		config:     cfg,
		validate:   v,
	}
}

// Routes mounts the webhook and admin endpoints on app.
func (h *Handler) Routes(app *fiber.App) {
	webhooks := app.Group("/webhook")
	webhooks.Get("/whatsapp", h.VerifyWebhook)
	webhooks.Post("/whatsapp", h.IncomingMessage)
	webhooks.Post("/whatsapp/status", h.MessageStatus)
	webhooks.Post("/paystack", h.PaystackWebhook)

	// Login must be registered ahead of the authenticated group.
	app.Post("/admin/login", h.Login)

	staff := middleware.Auth(h.tokens, auth.RoleAdmin, auth.RoleReviewer)
	adminOnly := middleware.Auth(h.tokens, auth.RoleAdmin)

	admin := app.Group("/admin")
	admin.Get("/transactions/pending", staff, h.PendingTransactions)
	admin.Post("/giftcards/:id/approve", staff, h.ApproveGiftCard)
	admin.Post("/giftcards/:id/reject", staff, h.RejectGiftCard)
	admin.Post("/payments/:reference/verify", staff, h.VerifyPayment)
	admin.Post("/payments/:reference/confirm", adminOnly, h.ConfirmTransfer)
	admin.Post("/wallets/credit", adminOnly, h.CreditWallet)
	admin.Post("/catalog/invalidate", adminOnly, h.InvalidateCatalog)
	admin.Get("/users/:phone", staff, h.GetUser)
}

// parse decodes the request body into dst and validates it.
func (h *Handler) parse(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.ErrValidation.WithDetails("Invalid request body")
	}
	return h.check(dst)
}

func (h *Handler) check(dst any) error {
	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ErrValidation.WithError(err)
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			details = append(details, fe.Field()+" is required")
		default:
			details = append(details, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return apperrors.ErrValidation.WithDetails(details)
}
