package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Rohianon/chatcommerce/pkg/crypto"
	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/whatsapp"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/dispatcher"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/review"
)

const twimlEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// VerifyWebhook answers Meta's subscription handshake.
func (h *Handler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.config.VerifyToken == "" || token != h.config.VerifyToken {
		logger.Warn().Str("mode", mode).Msg("Webhook verification failed")
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}

	logger.Info().Msg("Webhook verified")
	return c.Status(fiber.StatusOK).SendString(challenge)
}

// IncomingMessage accepts Meta JSON deliveries and Twilio form callbacks.
// Messages are handled before responding; dispatch errors are logged and
// still acknowledged so the provider does not redeliver.
func (h *Handler) IncomingMessage(c *fiber.Ctx) error {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationForm) {
		return h.twilioMessage(c)
	}

	if !whatsapp.VerifySignature(h.config.AppSecret, c.Body(), c.Get("X-Hub-Signature-256")) {
		logger.Warn().Str("ip", c.IP()).Msg("Rejected webhook with bad signature")
		return apperrors.ErrInvalidSignature
	}

	var payload whatsapp.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid webhook payload")
	}

	for _, in := range whatsapp.ParseMeta(&payload) {
		h.deliver(c, in)
	}
	return c.Status(fiber.StatusOK).SendString("EVENT_RECEIVED")
}

func (h *Handler) twilioMessage(c *fiber.Ctx) error {
	form, err := url.ParseQuery(string(c.Body()))
	if err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid form body")
	}

	if in, ok := whatsapp.ParseTwilio(form); ok {
		h.deliver(c, in)
	} else {
		logger.Warn().Msg("Twilio callback without sender")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextXMLCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(twimlEmpty)
}

func (h *Handler) deliver(c *fiber.Ctx, in whatsapp.Inbound) {
	err := h.dispatcher.HandleMessage(c.UserContext(), dispatcher.Inbound{
		MessageID: in.MessageID,
		Phone:     in.From,
		Name:      in.Name,
		Text:      in.Text,
		MediaID:   in.MediaID,
	})
	if err != nil {
		log := logger.WithContext(c.UserContext())
		log.Error().
			Err(err).
			Str("phone", logger.MaskPhone(in.From)).
			Str("message_id", in.MessageID).
			Msg("Failed to handle message")
	}
}

// MessageStatus acknowledges delivery receipts.
func (h *Handler) MessageStatus(c *fiber.Ctx) error {
	logger.Debug().Int("bytes", len(c.Body())).Msg("Message status received")
	return c.SendStatus(fiber.StatusOK)
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// PaystackWebhook settles wallet funding on charge.success. Unknown
// references and amount mismatches are acknowledged so Paystack stops
// retrying; storage failures are not.
func (h *Handler) PaystackWebhook(c *fiber.Ctx) error {
	if h.config.PaystackSecret == "" {
		return apperrors.ErrInvalidSignature.WithDetails("Paystack webhooks are not configured")
	}
	sig := c.Get("X-Paystack-Signature")
	if sig == "" || !crypto.VerifySignature(crypto.SignSHA512(h.config.PaystackSecret, c.Body()), sig) {
		logger.Warn().Str("ip", c.IP()).Msg("Rejected Paystack webhook with bad signature")
		return apperrors.ErrInvalidSignature
	}

	var event paystackEvent
	if err := c.BodyParser(&event); err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid webhook payload")
	}
	if event.Event != "charge.success" {
		logger.Info().Str("event", event.Event).Msg("Ignoring Paystack event")
		return c.SendStatus(fiber.StatusOK)
	}

	confirmation := review.FundingConfirmation{
		Reference: event.Data.Reference,
		Amount:    event.Data.Amount / 100,
		Gateway:   payment.GatewayPaystack,
	}
	if event.Data.ID != 0 {
		confirmation.GatewayReference = strconv.FormatInt(event.Data.ID, 10)
	}
	if t, err := time.Parse(time.RFC3339, event.Data.PaidAt); err == nil {
		confirmation.PaidAt = t
	}

	_, err := h.reviewer.CompleteFunding(c.UserContext(), confirmation)
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrTransactionNotFound), apperrors.Is(err, apperrors.ErrPaymentFailed), apperrors.Is(err, apperrors.ErrValidation):
		logger.Warn().Err(err).Str("reference", confirmation.Reference).Msg("Paystack charge not applied")
	default:
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
