package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/wallet"
)

const (
	ErrCodeRejected       = "REJECTED_BY_ADMIN"
	ErrCodeAmountMismatch = "AMOUNT_MISMATCH"
	ErrCodeCredit         = "CREDIT_FAILED"
)

type Notifier interface {
	Send(ctx context.Context, to, text string) (string, error)
}

type Users interface {
	GetByPhone(ctx context.Context, phone string) (*types.User, error)
}

type Config struct {
	CurrencySymbol string
}

// Service settles transactions that complete outside a conversation:
// gift cards after manual review and wallet funding after payment.
type Service struct {
	ledger    ledger.Store
	wallet    wallet.Wallet
	users     Users
	notifier  Notifier
	publisher events.Publisher
	gateways  map[string]payment.Gateway
	config    Config
	now       func() time.Time
}

func NewService(store ledger.Store, w wallet.Wallet, users Users, notifier Notifier, publisher events.Publisher, cfg Config) *Service {
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₦"
	}
	return &Service{
		ledger:    store,
		wallet:    w,
		users:     users,
		notifier:  notifier,
		publisher: publisher,
		gateways:  make(map[string]payment.Gateway),
		config:    cfg,
		now:       time.Now,
	}
}

// WithGateways registers the gateways VerifyFunding may query, keyed by
// Name.
func (s *Service) WithGateways(gateways ...payment.Gateway) *Service {
	for _, g := range gateways {
		s.gateways[g.Name()] = g
	}
	return s
}

// Pending lists unsettled transactions of txType, newest first.
func (s *Service) Pending(ctx context.Context, txType string) ([]types.Transaction, error) {
	txs, err := s.ledger.FindPendingOfType(ctx, txType)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	return txs, nil
}

func (s *Service) reviewable(ctx context.Context, id string) (types.Transaction, error) {
	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return tx, err
	}
	if tx.Type != types.TxTypeGiftCardSale {
		return tx, apperrors.ErrNotGiftCard
	}
	if ledger.IsTerminal(tx.Status) {
		return tx, apperrors.ErrAlreadyProcessed.WithDetails("transaction is " + tx.Status)
	}
	return tx, nil
}

// claimed maps a lost status race to ErrAlreadyProcessed.
func claimed(err error) error {
	if apperrors.Is(err, apperrors.ErrInvalidTransition) {
		return apperrors.ErrAlreadyProcessed
	}
	return err
}

// ApproveGiftCard completes a card under review and credits its payout. The
// review is claimed before the credit. A credit that fails leaves the card
// failed with CREDIT_FAILED for reconciliation, never completed unpaid.
func (s *Service) ApproveGiftCard(ctx context.Context, id, reviewer, notes string) (types.Transaction, error) {
	tx, err := s.reviewable(ctx, id)
	if err != nil {
		return tx, err
	}

	claimedTx, err := s.ledger.Update(ctx, id, ledger.Patch{
		Review:      &ledger.Review{By: reviewer, Notes: notes, At: s.now()},
		ClaimReview: true,
	})
	if err != nil {
		return tx, claimed(err)
	}
	log := logger.WithPhone(ctx, claimedTx.Phone)

	balance, err := s.wallet.Credit(ctx, claimedTx.UserID, claimedTx.Amount)
	if err != nil {
		log.Error().Err(err).Str("reference", claimedTx.Reference).Int64("amount", claimedTx.Amount).Msg("Approved gift card could not be credited")
		failed, uerr := s.ledger.Update(ctx, id, ledger.Patch{
			Status: types.TxStatusFailed,
			Error:  &types.TransactionError{Code: ErrCodeCredit, Message: err.Error()},
		})
		if uerr != nil {
			log.Error().Err(uerr).Str("reference", claimedTx.Reference).Msg("Failed to mark gift card failed")
			failed = claimedTx
		} else {
			metrics.RecordTransaction(failed.Type, failed.Status, failed.Amount)
			events.Emit(ctx, s.publisher, events.TopicTransactionFailed, events.EventTypeTransactionFailed,
				ledger.EventSource, ledger.TransactionPayload(failed, false))
		}
		return failed, fmt.Errorf("failed to credit gift card payout: %w", err)
	}

	done, err := s.ledger.Update(ctx, id, ledger.Patch{Status: types.TxStatusCompleted})
	if err != nil {
		log.Error().Err(err).Str("reference", claimedTx.Reference).Msg("Failed to mark gift card completed")
		done = claimedTx
		done.Status = types.TxStatusCompleted
	}
	if err := s.wallet.RecordEarning(ctx, done.UserID, done.Amount); err != nil {
		log.Warn().Err(err).Msg("Failed to record earning")
	}

	metrics.RecordTransaction(done.Type, done.Status, done.Amount)
	events.Emit(ctx, s.publisher, events.TopicGiftCardReviewed, events.EventTypeGiftCardApproved,
		ledger.EventSource, ledger.GiftCardPayload(done))
	events.Emit(ctx, s.publisher, events.TopicTransactionCompleted, events.EventTypeTransactionCompleted,
		ledger.EventSource, ledger.TransactionPayload(done, false))

	s.notify(ctx, done.Phone, fmt.Sprintf("✅ *Gift Card Approved!*\n\n%s has been credited to your wallet.\n\nRef: %s\nNew Balance: %s",
		s.money(done.Amount), done.Reference, s.money(balance)))

	log.Info().Str("reference", done.Reference).Str("reviewer", reviewer).Msg("Gift card approved")
	return done, nil
}

// RejectGiftCard fails a card under review. The wallet is untouched.
func (s *Service) RejectGiftCard(ctx context.Context, id, reviewer, reason string) (types.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return types.Transaction{}, apperrors.ErrValidation.WithDetails("reason is required")
	}
	tx, err := s.reviewable(ctx, id)
	if err != nil {
		return tx, err
	}

	// Same claim as approval, so a card is never both credited and rejected.
	failed, err := s.ledger.Update(ctx, id, ledger.Patch{
		Status:      types.TxStatusFailed,
		Error:       &types.TransactionError{Code: ErrCodeRejected, Message: reason},
		Review:      &ledger.Review{By: reviewer, Notes: reason, At: s.now()},
		ClaimReview: true,
	})
	if err != nil {
		return tx, claimed(err)
	}

	metrics.RecordTransaction(failed.Type, failed.Status, failed.Amount)
	events.Emit(ctx, s.publisher, events.TopicGiftCardReviewed, events.EventTypeGiftCardRejected,
		ledger.EventSource, ledger.GiftCardPayload(failed))

	s.notify(ctx, failed.Phone, fmt.Sprintf("❌ *Gift Card Rejected*\n\nRef: %s\nReason: %s\n\nReply *menu* to continue.",
		failed.Reference, reason))

	log := logger.WithPhone(ctx, failed.Phone)
	log.Info().Str("reference", failed.Reference).Str("reviewer", reviewer).Msg("Gift card rejected")
	return failed, nil
}

// FundingConfirmation reports money received for a funding reference.
// Amount is in whole naira; zero skips the amount check.
type FundingConfirmation struct {
	Reference        string
	Amount           int64
	Gateway          string
	GatewayReference string
	PaidAt           time.Time
}

// CompleteFunding credits a pending funding transaction exactly once. It is
// the single completion path for gateway webhooks, broker events and admin
// credits. Replays of settled references return the transaction unchanged.
func (s *Service) CompleteFunding(ctx context.Context, c FundingConfirmation) (types.Transaction, error) {
	tx, err := s.ledger.FindByReference(ctx, c.Reference)
	if err != nil {
		return tx, err
	}
	if tx.Type != types.TxTypeWalletFunding {
		return tx, apperrors.ErrValidation.WithDetails("reference is not a wallet funding")
	}
	log := logger.WithPhone(ctx, tx.Phone)

	if tx.Status != types.TxStatusPending {
		log.Info().Str("reference", tx.Reference).Str("status", tx.Status).Msg("Ignoring confirmation for settled funding")
		return tx, nil
	}

	// Claim before anything else so concurrent confirmations settle once.
	if _, err := s.ledger.Update(ctx, tx.ID, ledger.Patch{Status: types.TxStatusProcessing}); err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidTransition) {
			return s.ledger.Get(ctx, tx.ID)
		}
		return tx, err
	}

	if c.Amount > 0 && c.Amount != tx.Amount {
		msg := fmt.Sprintf("paid %d, expected %d", c.Amount, tx.Amount)
		failed, err := s.ledger.Update(ctx, tx.ID, ledger.Patch{
			Status:           types.TxStatusFailed,
			Error:            &types.TransactionError{Code: ErrCodeAmountMismatch, Message: msg},
			GatewayReference: c.GatewayReference,
		})
		if err != nil {
			return tx, err
		}
		metrics.RecordTransaction(failed.Type, failed.Status, failed.Amount)
		events.Emit(ctx, s.publisher, events.TopicTransactionFailed, events.EventTypeTransactionFailed,
			ledger.EventSource, ledger.TransactionPayload(failed, false))
		log.Warn().Str("reference", tx.Reference).Str("detail", msg).Msg("Funding amount mismatch")
		return failed, apperrors.ErrPaymentFailed.WithDetails(msg)
	}

	balance, err := s.wallet.Credit(ctx, tx.UserID, tx.Amount)
	if err != nil {
		log.Error().Err(err).Str("reference", tx.Reference).Int64("amount", tx.Amount).Msg("Funding could not be credited")
		if _, uerr := s.ledger.Update(ctx, tx.ID, ledger.Patch{
			Status: types.TxStatusFailed,
			Error:  &types.TransactionError{Code: ErrCodeCredit, Message: err.Error()},
		}); uerr != nil {
			log.Error().Err(uerr).Str("reference", tx.Reference).Msg("Failed to mark funding failed")
		}
		return tx, fmt.Errorf("failed to credit funding: %w", err)
	}

	paidAt := c.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	done, err := s.ledger.Update(ctx, tx.ID, ledger.Patch{
		Status:           types.TxStatusCompleted,
		GatewayReference: c.GatewayReference,
		PaidAt:           &paidAt,
	})
	if err != nil {
		log.Error().Err(err).Str("reference", tx.Reference).Msg("Failed to mark funding completed")
		done = tx
		done.Status = types.TxStatusCompleted
	}
	if err := s.wallet.RecordFunding(ctx, tx.UserID); err != nil {
		log.Warn().Err(err).Msg("Failed to record funding")
	}

	metrics.RecordTransaction(done.Type, types.TxStatusCompleted, done.Amount)
	events.Emit(ctx, s.publisher, events.TopicTransactionCompleted, events.EventTypeTransactionCompleted,
		ledger.EventSource, ledger.TransactionPayload(done, false))

	s.notify(ctx, done.Phone, fmt.Sprintf("✅ *Wallet Funded!*\n\n%s has been added to your wallet.\n\nRef: %s\nNew Balance: %s",
		s.money(done.Amount), done.Reference, s.money(balance)))

	log.Info().Str("reference", done.Reference).Int64("amount", done.Amount).Msg("Funding completed")
	return done, nil
}

// VerifyFunding asks the issuing gateway whether a pending funding was paid
// and settles it if so.
func (s *Service) VerifyFunding(ctx context.Context, reference string) (types.Transaction, error) {
	tx, err := s.ledger.FindByReference(ctx, reference)
	if err != nil {
		return tx, err
	}
	if tx.Type != types.TxTypeWalletFunding {
		return tx, apperrors.ErrValidation.WithDetails("reference is not a wallet funding")
	}
	if tx.Status != types.TxStatusPending {
		return tx, nil
	}
	if tx.Payment.Method == types.PaymentMethodBankTransfer {
		return tx, apperrors.ErrValidation.WithDetails("bank transfers are confirmed by staff, not verified with a gateway")
	}
	gateway, ok := s.gateways[tx.Payment.Gateway]
	if !ok {
		return tx, apperrors.ErrValidation.WithDetails("no gateway to verify " + tx.Payment.Gateway + " payments")
	}

	ref := tx.Payment.Reference
	if ref == "" {
		ref = tx.Reference
	}
	spanCtx, span := telemetry.StartProviderSpan(ctx, gateway.Name(), "verify")
	start := time.Now()
	v, err := gateway.Verify(spanCtx, ref)
	metrics.RecordProviderCall(gateway.Name(), "verify", err, time.Since(start))
	telemetry.EndSpan(span, err)
	if errors.Is(err, payment.ErrNotPaid) {
		return tx, apperrors.ErrPaymentFailed.WithDetails("payment has not been completed")
	}
	if err != nil {
		return tx, apperrors.ErrServiceUnavailable.WithError(err)
	}

	return s.CompleteFunding(ctx, FundingConfirmation{
		Reference: tx.Reference,
		Amount:    v.Amount,
		Gateway:   gateway.Name(),
		PaidAt:    v.PaidAt,
	})
}

// ConfirmTransfer settles a bank-transfer funding once staff have seen the
// money arrive. amount is what was received; zero skips the amount check.
func (s *Service) ConfirmTransfer(ctx context.Context, reference string, amount int64, bankReference, by string) (types.Transaction, error) {
	tx, err := s.ledger.FindByReference(ctx, reference)
	if err != nil {
		return tx, err
	}
	if tx.Type != types.TxTypeWalletFunding || tx.Payment.Method != types.PaymentMethodBankTransfer {
		return tx, apperrors.ErrValidation.WithDetails("reference is not a bank transfer funding")
	}
	if tx.Status != types.TxStatusPending {
		return tx, apperrors.ErrAlreadyProcessed.WithDetails("transaction is " + tx.Status)
	}

	done, err := s.CompleteFunding(ctx, FundingConfirmation{
		Reference:        tx.Reference,
		Amount:           amount,
		Gateway:          types.PaymentMethodBankTransfer,
		GatewayReference: bankReference,
	})
	if err != nil {
		return done, err
	}

	annotated, err := s.ledger.Update(ctx, done.ID, ledger.Patch{
		Review: &ledger.Review{By: by, Notes: "bank transfer confirmed", At: s.now()},
	})
	if err != nil {
		log := logger.WithPhone(ctx, done.Phone)
		log.Warn().Err(err).Str("reference", done.Reference).Msg("Failed to record transfer confirmation")
		return done, nil
	}
	return annotated, nil
}

// CreditWallet is a staff credit. It records a funding transaction and
// settles it through CompleteFunding.
func (s *Service) CreditWallet(ctx context.Context, phone string, amount int64, reason, by string) (types.Transaction, error) {
	if amount <= 0 {
		return types.Transaction{}, apperrors.ErrInvalidAmount
	}
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return types.Transaction{}, err
	}

	description := "Admin credit by " + by
	if reason != "" {
		description += ": " + reason
	}
	tx, err := s.ledger.Create(ctx, types.Transaction{
		UserID:  user.ID,
		Phone:   user.Phone,
		Type:    types.TxTypeWalletFunding,
		Status:  types.TxStatusPending,
		Amount:  amount,
		Details: types.TransactionDetails{Description: description},
		Payment: types.PaymentInfo{Method: types.PaymentMethodAdmin, Gateway: types.PaymentMethodAdmin},
	})
	if err != nil {
		return tx, fmt.Errorf("failed to create admin credit: %w", err)
	}

	return s.CompleteFunding(ctx, FundingConfirmation{
		Reference: tx.Reference,
		Amount:    amount,
		Gateway:   types.PaymentMethodAdmin,
	})
}

// HandlePaymentConfirmed consumes payment confirmations from the broker.
func (s *Service) HandlePaymentConfirmed(ctx context.Context, event *events.Event) error {
	var p events.PaymentPayload
	if err := event.Decode(&p); err != nil {
		return err
	}
	c := FundingConfirmation{
		Reference:        p.Reference,
		Amount:           p.Amount,
		Gateway:          p.Gateway,
		GatewayReference: p.GatewayReference,
	}
	if p.PaidAt != nil {
		c.PaidAt = *p.PaidAt
	}
	_, err := s.CompleteFunding(ctx, c)
	if apperrors.Is(err, apperrors.ErrTransactionNotFound) || apperrors.Is(err, apperrors.ErrPaymentFailed) {
		logger.Warn().Err(err).Str("reference", p.Reference).Msg("Dropping payment confirmation")
		return nil
	}
	return err
}

func (s *Service) notify(ctx context.Context, phone, text string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Send(ctx, phone, text); err != nil {
		metrics.RecordOutboundMessage("error")
		logger.Warn().Err(err).Str("phone", logger.MaskPhone(phone)).Msg("Failed to notify user")
		return
	}
	metrics.RecordOutboundMessage("sent")
}

func (s *Service) money(n int64) string {
	return types.FormatAmount(s.config.CurrencySymbol, n)
}
