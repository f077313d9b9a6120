package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/pkg/msisdn"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

// checkoutEmailDomain completes the placeholder email gateways require.
const checkoutEmailDomain = "wa.chatcommerce.ng"

type Wallet struct {
	deps *Deps
}

func NewWallet(d *Deps) *Wallet {
	return &Wallet{deps: d}
}

func (w *Wallet) Start(ctx context.Context, req Request) (Result, error) {
	balance, err := w.deps.Wallet.Balance(ctx, req.User.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read balance: %w", err)
	}
	sess, err := w.deps.Sessions.Transition(ctx, req.Session, types.FlowWalletFunding, types.StateWalletMenu, nil)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, w.menu(balance)), nil
}

func (w *Wallet) menu(balance int64) string {
	var b strings.Builder
	b.WriteString("💰 *My Wallet*\n\n")
	fmt.Fprintf(&b, "Balance: *%s*\n\n", w.deps.money(balance))
	b.WriteString("1. Fund Wallet\n")
	b.WriteString("2. Withdraw\n")
	b.WriteString("3. Transfer\n")
	b.WriteString("4. Wallet History\n")
	b.WriteString("0. Back to Main Menu")
	return b.String()
}

func (w *Wallet) Handle(ctx context.Context, req Request) (Result, error) {
	if isBack(req.Input) {
		return toMenu(ctx, w.deps, req)
	}

	switch req.Session.State {
	case types.StateWalletMenu:
		return w.handleMenu(ctx, req)
	case types.StateWalletFundAmount:
		return w.handleAmount(ctx, req)
	case types.StateWalletFundMethod:
		return w.handleMethod(ctx, req)
	default:
		return toMenu(ctx, w.deps, req)
	}
}

func (w *Wallet) handleMenu(ctx context.Context, req Request) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(req.Input)) {
	case "1", "fund":
		sess, err := w.deps.Sessions.Transition(ctx, req.Session, types.FlowWalletFunding, types.StateWalletFundAmount, nil)
		if err != nil {
			return Result{}, err
		}
		return reply(sess, fmt.Sprintf("💵 Enter amount to fund (%s - %s):",
			w.deps.money(w.deps.Settings.Limits.WalletMinFunding), w.deps.money(w.deps.Settings.Limits.WalletMaxFunding))), nil
	case "2", "withdraw":
		return reply(req.Session, "🚧 Withdrawals are coming soon!\n\nReply 0 to go back."), nil
	case "3", "transfer":
		return reply(req.Session, "🚧 Transfers are coming soon!\n\nReply 0 to go back."), nil
	case "4", "history":
		txs, err := w.deps.Ledger.FindByUser(ctx, req.User.ID, historyLimit)
		if err != nil {
			return Result{}, fmt.Errorf("failed to load history: %w", err)
		}
		return reply(req.Session, historyText(w.deps, txs)), nil
	default:
		balance, err := w.deps.Wallet.Balance(ctx, req.User.ID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read balance: %w", err)
		}
		return reply(req.Session, "❌ Invalid option.\n\n"+w.menu(balance)), nil
	}
}

const methodMenu = "💳 *Select Payment Method:*\n\n1. Paystack (Card/Bank)\n2. Flutterwave\n3. Bank Transfer\n0. Back to Main Menu"

func (w *Wallet) handleAmount(ctx context.Context, req Request) (Result, error) {
	limits := w.deps.Settings.Limits
	amount, ok := parseAmount(req.Input, w.deps.Settings.CurrencySymbol)
	if !ok || amount < limits.WalletMinFunding || amount > limits.WalletMaxFunding {
		return reply(req.Session, fmt.Sprintf("❌ Invalid amount. Enter a whole number between %s and %s.",
			w.deps.money(limits.WalletMinFunding), w.deps.money(limits.WalletMaxFunding))), nil
	}

	sess, err := w.deps.Sessions.Transition(ctx, req.Session, types.FlowWalletFunding, types.StateWalletFundMethod,
		map[string]string{keyAmount: strconv.FormatInt(amount, 10)})
	if err != nil {
		return Result{}, err
	}
	return reply(sess, fmt.Sprintf("💰 Amount: *%s*\n\n%s", w.deps.money(amount), methodMenu)), nil
}

func (w *Wallet) handleMethod(ctx context.Context, req Request) (Result, error) {
	amount, err := strconv.ParseInt(req.Session.Get(keyAmount), 10, 64)
	if err != nil || amount <= 0 {
		return toMenu(ctx, w.deps, req, "❌ Your session was incomplete. Please start again.")
	}

	switch strings.ToLower(strings.TrimSpace(req.Input)) {
	case "1", "paystack":
		return w.checkout(ctx, req, w.deps.Paystack, amount)
	case "2", "flutterwave":
		return w.checkout(ctx, req, w.deps.Flutterwave, amount)
	case "3", "bank", "transfer":
		return w.bankTransfer(ctx, req, amount)
	default:
		return reply(req.Session, "❌ Invalid option.\n\n"+methodMenu), nil
	}
}

// checkout opens a hosted payment page and records a pending funding
// transaction under the same reference. No transaction is recorded when the
// gateway refuses.
func (w *Wallet) checkout(ctx context.Context, req Request, gw PaymentGateway, amount int64) (Result, error) {
	if gw == nil {
		return reply(req.Session, "😔 That payment method is unavailable right now. Please pick another.\n\n"+methodMenu), nil
	}
	log := logger.WithPhone(ctx, req.User.Phone)

	reference, err := ledger.NewReference(types.TxTypeWalletFunding, w.deps.now())
	if err != nil {
		return Result{}, err
	}

	gctx, cancel := context.WithTimeout(ctx, w.deps.providerTimeout())
	gctx, span := telemetry.StartProviderSpan(gctx, gw.Name(), "initiate")
	start := time.Now()
	result, err := gw.Initiate(gctx, payment.InitiateRequest{
		Amount:    amount,
		Email:     msisdn.International(req.User.Phone) + "@" + checkoutEmailDomain,
		Phone:     req.User.Phone,
		Reference: reference,
		Metadata:  map[string]string{"user_id": req.User.ID, "phone": req.User.Phone},
	})
	telemetry.EndSpan(span, err)
	cancel()
	metrics.RecordProviderCall(gw.Name(), "initiate", err, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Str("gateway", gw.Name()).Str("reference", reference).Msg("Payment initiation failed")
		return finish(ctx, w.deps, req, "😔 We could not start your payment right now. Please try again later.\n\n"+genericBack)
	}

	tx, err := w.deps.Ledger.Create(ctx, types.Transaction{
		Reference: reference,
		UserID:    req.User.ID,
		Phone:     req.User.Phone,
		Type:      types.TxTypeWalletFunding,
		Status:    types.TxStatusPending,
		Amount:    amount,
		Details:   types.TransactionDetails{Description: "Wallet funding via " + gw.Name()},
		Payment: types.PaymentInfo{
			Method:    types.PaymentMethodCard,
			Gateway:   gw.Name(),
			Reference: result.Reference,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create funding transaction: %w", err)
	}

	metrics.RecordTransaction(types.TxTypeWalletFunding, types.TxStatusPending, amount)
	events.Emit(context.WithoutCancel(ctx), w.deps.Publisher, events.TopicPaymentInitiated, events.EventTypePaymentInitiated,
		ledger.EventSource, events.PaymentPayload{
			Reference: tx.Reference,
			Gateway:   gw.Name(),
			Amount:    amount,
			Phone:     req.User.Phone,
		})

	return finish(ctx, w.deps, req, fmt.Sprintf("💳 *Fund Wallet*\n\nAmount: %s\nRef: %s\n\nComplete your payment here:\n%s\n\nYour wallet is credited automatically once payment is confirmed.",
		w.deps.money(amount), tx.Reference, result.Link))
}

func (w *Wallet) bankTransfer(ctx context.Context, req Request, amount int64) (Result, error) {
	bank := w.deps.Settings.Bank
	if bank.AccountNumber == "" {
		return reply(req.Session, "😔 Bank transfer is unavailable right now. Please pick another method.\n\n"+methodMenu), nil
	}

	tx, err := w.deps.Ledger.Create(ctx, types.Transaction{
		UserID:  req.User.ID,
		Phone:   req.User.Phone,
		Type:    types.TxTypeWalletFunding,
		Status:  types.TxStatusPending,
		Amount:  amount,
		Details: types.TransactionDetails{Description: "Wallet funding via bank transfer"},
		Payment: types.PaymentInfo{Method: types.PaymentMethodBankTransfer},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create funding transaction: %w", err)
	}
	metrics.RecordTransaction(types.TxTypeWalletFunding, types.TxStatusPending, amount)

	var b strings.Builder
	b.WriteString("🏦 *Bank Transfer*\n\n")
	fmt.Fprintf(&b, "Transfer *%s* to:\n\n", w.deps.money(amount))
	fmt.Fprintf(&b, "Bank: %s\n", bank.Name)
	fmt.Fprintf(&b, "Account Number: %s\n", bank.AccountNumber)
	fmt.Fprintf(&b, "Account Name: %s\n\n", bank.AccountName)
	fmt.Fprintf(&b, "Use *%s* as the transfer narration.\n\n", tx.Reference)
	b.WriteString("Your wallet is credited once the transfer is confirmed.")
	return finish(ctx, w.deps, req, b.String())
}
