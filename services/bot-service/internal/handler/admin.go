package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Rohianon/chatcommerce/pkg/auth"
	"github.com/Rohianon/chatcommerce/pkg/crypto"
	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/middleware"
	"github.com/Rohianon/chatcommerce/pkg/msisdn"
	"github.com/Rohianon/chatcommerce/pkg/response"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ApproveRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ConfirmTransferRequest struct {
	Amount        int64  `json:"amount" validate:"gte=0"`
	BankReference string `json:"bank_reference" validate:"max=100"`
}

type CreditRequest struct {
	Phone  string `json:"phone" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=200"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	if h.config.AdminPasswordHash == "" || req.Username != h.config.AdminUsername ||
		!crypto.CheckPassword(req.Password, h.config.AdminPasswordHash) {
		logger.Warn().Str("username", req.Username).Str("ip", c.IP()).Msg("Admin login failed")
		return apperrors.ErrInvalidCredentials
	}

	token, err := h.tokens.Issue(req.Username, auth.RoleAdmin)
	if err != nil {
		return err
	}

	logger.Info().Str("username", req.Username).Msg("Admin logged in")
	return response.Success(c, token)
}

func (h *Handler) PendingTransactions(c *fiber.Ctx) error {
	txType := c.Query("type", types.TxTypeGiftCardSale)
	if txType != types.TxTypeGiftCardSale && txType != types.TxTypeWalletFunding {
		return apperrors.ErrValidation.WithDetails("type must be giftcard_sale or wallet_funding")
	}

	txs, err := h.reviewer.Pending(c.UserContext(), txType)
	if err != nil {
		return err
	}
	if txs == nil {
		txs = []types.Transaction{}
	}
	return response.Success(c, txs)
}

func (h *Handler) ApproveGiftCard(c *fiber.Ctx) error {
	var req ApproveRequest
	if len(c.Body()) > 0 {
		if err := h.parse(c, &req); err != nil {
			return err
		}
	}

	reviewer := middleware.GetUsername(c)
	tx, err := h.reviewer.ApproveGiftCard(c.UserContext(), c.Params("id"), reviewer, req.Notes)
	if err != nil {
		return err
	}

	logger.Info().Str("transaction_id", tx.ID).Str("reviewer", reviewer).Msg("Gift card approved")
	return response.Success(c, tx)
}

func (h *Handler) RejectGiftCard(c *fiber.Ctx) error {
	var req RejectRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	reviewer := middleware.GetUsername(c)
	tx, err := h.reviewer.RejectGiftCard(c.UserContext(), c.Params("id"), reviewer, req.Reason)
	if err != nil {
		return err
	}

	logger.Info().Str("transaction_id", tx.ID).Str("reviewer", reviewer).Msg("Gift card rejected")
	return response.Success(c, tx)
}

func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	tx, err := h.reviewer.VerifyFunding(c.UserContext(), c.Params("reference"))
	if err != nil {
		return err
	}
	return response.Success(c, tx)
}

func (h *Handler) ConfirmTransfer(c *fiber.Ctx) error {
	var req ConfirmTransferRequest
	if len(c.Body()) > 0 {
		if err := h.parse(c, &req); err != nil {
			return err
		}
	}

	by := middleware.GetUsername(c)
	tx, err := h.reviewer.ConfirmTransfer(c.UserContext(), c.Params("reference"), req.Amount, req.BankReference, by)
	if err != nil {
		return err
	}

	logger.Info().Str("reference", tx.Reference).Int64("amount", tx.Amount).Str("by", by).Msg("Bank transfer confirmed")
	return response.Success(c, tx)
}

func (h *Handler) CreditWallet(c *fiber.Ctx) error {
	var req CreditRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	phone, ok := msisdn.Normalize(req.Phone)
	if !ok {
		return apperrors.ErrInvalidPhone
	}

	by := middleware.GetUsername(c)
	tx, err := h.reviewer.CreditWallet(c.UserContext(), phone, req.Amount, req.Reason, by)
	if err != nil {
		return err
	}

	logger.Info().
		Str("phone", logger.MaskPhone(phone)).
		Int64("amount", req.Amount).
		Str("by", by).
		Msg("Wallet credited by admin")
	return response.Created(c, tx)
}

func (h *Handler) InvalidateCatalog(c *fiber.Ctx) error {
	h.catalog.Invalidate()
	logger.Info().Str("by", middleware.GetUsername(c)).Msg("Catalog cache invalidated")
	return response.Success(c, fiber.Map{"invalidated": true})
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	phone, ok := msisdn.Normalize(c.Params("phone"))
	if !ok {
		return apperrors.ErrInvalidPhone
	}

	user, err := h.users.GetByPhone(c.UserContext(), phone)
	if err != nil {
		return err
	}
	return response.Success(c, user)
}
