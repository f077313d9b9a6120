package flow

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const (
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeProvider          = "PROVIDER_ERROR"
	ErrCodeDebit             = "DEBIT_FAILED"
)

const providerVTU = "vtpass"

// purchase is a wallet-paid order fulfilled by the VTU provider.
type purchase struct {
	txType    string
	amount    int64
	details   types.TransactionDetails
	operation string
	fulfill   func(ctx context.Context) (*vtu.Receipt, error)
	summary   string
}

// settle runs debit, fulfill and settle for a confirmed purchase. The session
// is reset before any money moves so a replayed confirm lands on the main
// menu. Provider failures are compensated with an exact refund.
func (d *Deps) settle(ctx context.Context, req Request, p purchase) (Result, error) {
	sess, err := d.Sessions.Reset(ctx, req.Session)
	if err != nil {
		return Result{}, err
	}
	log := logger.WithPhone(ctx, req.User.Phone)

	tx, err := d.Ledger.Create(ctx, types.Transaction{
		UserID:  req.User.ID,
		Phone:   req.User.Phone,
		Type:    p.txType,
		Amount:  p.amount,
		Details: p.details,
		Payment: types.PaymentInfo{Method: types.PaymentMethodWallet},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create %s transaction: %w", p.txType, err)
	}

	// Compensation must survive a cancelled request context.
	bg := context.WithoutCancel(ctx)

	balance, err := d.Wallet.Debit(ctx, req.User.ID, p.amount)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInsufficientFunds) {
			d.fail(bg, tx, ErrCodeInsufficientFunds, "insufficient wallet balance", false)
			current, berr := d.Wallet.Balance(bg, req.User.ID)
			if berr != nil {
				current = req.User.Balance
			}
			return reply(sess, insufficientText(d, current, p.amount)), nil
		}
		d.fail(bg, tx, ErrCodeDebit, err.Error(), false)
		return Result{}, fmt.Errorf("failed to debit wallet: %w", err)
	}

	receipt, err := d.callProvider(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("reference", tx.Reference).Str("type", p.txType).Msg("Fulfillment failed, refunding")

		refunded := true
		if _, rerr := d.Wallet.Credit(bg, req.User.ID, p.amount); rerr != nil {
			refunded = false
			log.Error().Err(rerr).Str("reference", tx.Reference).Int64("amount", p.amount).Msg("Refund failed")
		} else {
			metrics.RecordRefund(p.txType)
		}
		d.fail(bg, tx, ErrCodeProvider, err.Error(), refunded)

		if !refunded {
			return reply(sess, fmt.Sprintf("❌ *Transaction Failed*\n\nWe could not complete your purchase. Our team has been notified and will reverse the debit of %s.\n\nRef: %s\n\n%s",
				d.money(p.amount), tx.Reference, genericBack)), nil
		}
		return reply(sess, fmt.Sprintf("❌ *Transaction Failed*\n\n%s\n\n%s has been refunded to your wallet.\n\nRef: %s\n\n%s",
			p.summary, d.money(p.amount), tx.Reference, genericBack)), nil
	}

	done, err := d.Ledger.Update(bg, tx.ID, ledger.Patch{
		Status:            types.TxStatusCompleted,
		Provider:          receipt.Provider,
		ProviderReference: receipt.Reference,
	})
	if err != nil {
		log.Error().Err(err).Str("reference", tx.Reference).Msg("Failed to mark transaction completed")
		done = tx
		done.Status = types.TxStatusCompleted
	}
	if err := d.Wallet.RecordSpend(bg, req.User.ID, p.amount); err != nil {
		log.Warn().Err(err).Msg("Failed to record spend")
	}
	metrics.RecordTransaction(p.txType, types.TxStatusCompleted, p.amount)
	events.Emit(bg, d.Publisher, events.TopicTransactionCompleted, events.EventTypeTransactionCompleted,
		ledger.EventSource, ledger.TransactionPayload(done, false))

	log.Info().Str("reference", tx.Reference).Str("type", p.txType).Int64("amount", p.amount).Msg("Purchase completed")

	return reply(sess, fmt.Sprintf("✅ *Transaction Successful!*\n\n%s\n\nRef: %s\nNew Balance: %s\n\nThank you for using %s! 🎉",
		p.summary, tx.Reference, d.money(balance), d.Settings.BotName)), nil
}

// callProvider bounds the fulfillment call. A timeout counts as a failure.
func (d *Deps) callProvider(ctx context.Context, p purchase) (*vtu.Receipt, error) {
	pctx, cancel := context.WithTimeout(ctx, d.providerTimeout())
	defer cancel()

	pctx, span := telemetry.StartProviderSpan(pctx, providerVTU, p.operation)
	start := time.Now()
	receipt, err := p.fulfill(pctx)
	if err == nil && receipt == nil {
		err = apperrors.ErrProviderFailed.WithDetails("empty receipt")
	}
	telemetry.EndSpan(span, err)
	metrics.RecordProviderCall(providerVTU, p.operation, err, time.Since(start))
	return receipt, err
}

func (d *Deps) fail(ctx context.Context, tx types.Transaction, code, message string, refunded bool) {
	failed, err := d.Ledger.Update(ctx, tx.ID, ledger.Patch{
		Status: types.TxStatusFailed,
		Error:  &types.TransactionError{Code: code, Message: message},
	})
	if err != nil {
		logger.Error().Err(err).Str("reference", tx.Reference).Str("code", code).Msg("Failed to mark transaction failed")
		return
	}
	metrics.RecordTransaction(tx.Type, types.TxStatusFailed, tx.Amount)
	events.Emit(ctx, d.Publisher, events.TopicTransactionFailed, events.EventTypeTransactionFailed,
		ledger.EventSource, ledger.TransactionPayload(failed, refunded))
}

// confirm routes a confirm-step answer.
func (d *Deps) confirm(ctx context.Context, req Request, run func() (Result, error)) (Result, error) {
	switch {
	case isConfirm(req.Input):
		return run()
	case isCancel(req.Input):
		return toMenu(ctx, d, req, "❌ Transaction cancelled.")
	default:
		return reply(req.Session, confirmRetry), nil
	}
}
