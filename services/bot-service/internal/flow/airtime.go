package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Rohianon/chatcommerce/pkg/msisdn"
	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const (
	keyNetwork  = "network"
	keyPhone    = "phone"
	keyAmount   = "amount"
	keyPlanCode = "plan_code"
	keyPlanName = "plan_name"
	keyVariant  = "variant"
	keyPrice    = "price"
)

const phonePrompt = "📞 Enter the phone number to recharge (e.g. 08012345678).\n\nReply *me* to use your own number or 0 to go back."

type Airtime struct {
	deps *Deps
}

func NewAirtime(d *Deps) *Airtime {
	return &Airtime{deps: d}
}

func (a *Airtime) Start(ctx context.Context, req Request) (Result, error) {
	sess, err := a.deps.Sessions.Transition(ctx, req.Session, types.FlowAirtime, types.StateAirtimeNetwork, nil)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, networkMenuText("📱 *Buy Airtime*")), nil
}

func (a *Airtime) Handle(ctx context.Context, req Request) (Result, error) {
	if isBack(req.Input) {
		return toMenu(ctx, a.deps, req)
	}

	switch req.Session.State {
	case types.StateAirtimeNetwork:
		return a.handleNetwork(ctx, req)
	case types.StateAirtimePhone:
		return a.handlePhone(ctx, req)
	case types.StateAirtimeAmount:
		return a.handleAmount(ctx, req)
	case types.StateAirtimeConfirm:
		return a.deps.confirm(ctx, req, func() (Result, error) { return a.purchase(ctx, req) })
	default:
		return toMenu(ctx, a.deps, req)
	}
}

func (a *Airtime) handleNetwork(ctx context.Context, req Request) (Result, error) {
	n, ok := parseNetwork(req.Input)
	if !ok {
		return reply(req.Session, "❌ Invalid network. "+networkMenuText("📱 *Buy Airtime*")), nil
	}
	sess, err := a.deps.Sessions.Transition(ctx, req.Session, types.FlowAirtime, types.StateAirtimePhone,
		map[string]string{keyNetwork: n.Code})
	if err != nil {
		return Result{}, err
	}
	return reply(sess, fmt.Sprintf("✅ Network: *%s*\n\n%s", n.Name, phonePrompt)), nil
}

func (a *Airtime) handlePhone(ctx context.Context, req Request) (Result, error) {
	phone, ok := recipient(req)
	if !ok {
		return reply(req.Session, "❌ Invalid phone number.\n\n"+phonePrompt), nil
	}
	sess, err := a.deps.Sessions.Transition(ctx, req.Session, types.FlowAirtime, types.StateAirtimeAmount,
		map[string]string{keyPhone: phone})
	if err != nil {
		return Result{}, err
	}
	return reply(sess, fmt.Sprintf("📞 Recipient: *%s*\n\n💵 Enter amount (%s - %s):",
		phone, a.deps.money(a.deps.Settings.Limits.AirtimeMin), a.deps.money(a.deps.Settings.Limits.AirtimeMax))), nil
}

func (a *Airtime) handleAmount(ctx context.Context, req Request) (Result, error) {
	limits := a.deps.Settings.Limits
	amount, ok := parseAmount(req.Input, a.deps.Settings.CurrencySymbol)
	if !ok || amount < limits.AirtimeMin || amount > limits.AirtimeMax {
		return reply(req.Session, fmt.Sprintf("❌ Invalid amount. Enter a whole number between %s and %s.",
			a.deps.money(limits.AirtimeMin), a.deps.money(limits.AirtimeMax))), nil
	}

	balance, err := a.deps.Wallet.Balance(ctx, req.User.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read balance: %w", err)
	}
	if balance < amount {
		return reply(req.Session, fmt.Sprintf("❌ Insufficient balance!\n\nYour balance: %s\nRequired: %s\n\nEnter a smaller amount, or reply 0 to go back and fund your wallet.",
			a.deps.money(balance), a.deps.money(amount))), nil
	}

	sess, err := a.deps.Sessions.Transition(ctx, req.Session, types.FlowAirtime, types.StateAirtimeConfirm,
		map[string]string{keyAmount: strconv.FormatInt(amount, 10)})
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	b.WriteString("📋 *Confirm Airtime Purchase*\n\n")
	fmt.Fprintf(&b, "Network: %s\n", networkName(sess.Get(keyNetwork)))
	fmt.Fprintf(&b, "Phone: %s\n", sess.Get(keyPhone))
	fmt.Fprintf(&b, "Amount: %s\n\n", a.deps.money(amount))
	b.WriteString(confirmPrompt("Confirm"))
	return reply(sess, b.String()), nil
}

func (a *Airtime) purchase(ctx context.Context, req Request) (Result, error) {
	network := req.Session.Get(keyNetwork)
	phone := req.Session.Get(keyPhone)
	amount, err := strconv.ParseInt(req.Session.Get(keyAmount), 10, 64)
	if err != nil || amount <= 0 || network == "" || phone == "" {
		return toMenu(ctx, a.deps, req, "❌ Your session was incomplete. Please start again.")
	}

	return a.deps.settle(ctx, req, purchase{
		txType:    types.TxTypeAirtime,
		amount:    amount,
		details:   types.TransactionDetails{Recipient: phone, Network: network},
		operation: "airtime",
		fulfill: func(ctx context.Context) (*vtu.Receipt, error) {
			return a.deps.Fulfillment.PurchaseAirtime(ctx, vtu.AirtimeRequest{Network: network, Phone: phone, Amount: amount})
		},
		summary: fmt.Sprintf("%s %s airtime for %s", a.deps.money(amount), networkName(network), phone),
	})
}

// recipient reads a phone number from the input; "me" is the caller.
func recipient(req Request) (string, bool) {
	in := strings.Join(strings.Fields(req.Input), "")
	if strings.EqualFold(in, "me") {
		return msisdn.Normalize(req.User.Phone)
	}
	return msisdn.Normalize(in)
}
