package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type Data struct {
	deps *Deps
}

func NewData(d *Deps) *Data {
	return &Data{deps: d}
}

func (f *Data) Start(ctx context.Context, req Request) (Result, error) {
	sess, err := f.deps.Sessions.Transition(ctx, req.Session, types.FlowData, types.StateDataNetwork, nil)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, networkMenuText("🌐 *Buy Data*")), nil
}

func (f *Data) Handle(ctx context.Context, req Request) (Result, error) {
	if isBack(req.Input) {
		return toMenu(ctx, f.deps, req)
	}

	switch req.Session.State {
	case types.StateDataNetwork:
		return f.handleNetwork(ctx, req)
	case types.StateDataPlan:
		return f.handlePlan(ctx, req)
	case types.StateDataPhone:
		return f.handlePhone(ctx, req)
	case types.StateDataConfirm:
		return f.deps.confirm(ctx, req, func() (Result, error) { return f.purchase(ctx, req) })
	default:
		return toMenu(ctx, f.deps, req)
	}
}

// plans returns the enabled plans for network within the configured price
// limits, in display order.
func (f *Data) plans(ctx context.Context, network string) ([]types.DataPlan, error) {
	all, err := f.deps.Catalog.DataPlans(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("failed to load data plans: %w", err)
	}
	limits := f.deps.Settings.Limits
	out := make([]types.DataPlan, 0, len(all))
	for _, p := range all {
		if !p.Enabled {
			continue
		}
		if limits.DataMin > 0 && p.Price < limits.DataMin {
			continue
		}
		if limits.DataMax > 0 && p.Price > limits.DataMax {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *Data) planMenu(network string, plans []types.DataPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌐 *%s Data Plans*\n\n", networkName(network))
	for i, p := range plans {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, p.Name, f.deps.money(p.Price))
	}
	fmt.Fprintf(&b, "0. Back to Main Menu\n\nReply with a number (1-%d).", len(plans))
	return b.String()
}

// variant is the provider's code for plan, falling back to the catalog code.
func variant(plan types.DataPlan) string {
	if plan.ProviderCode != "" {
		return plan.ProviderCode
	}
	return plan.Code
}

func (f *Data) handleNetwork(ctx context.Context, req Request) (Result, error) {
	n, ok := parseNetwork(req.Input)
	if !ok {
		return reply(req.Session, "❌ Invalid network. "+networkMenuText("🌐 *Buy Data*")), nil
	}
	plans, err := f.plans(ctx, n.Code)
	if err != nil {
		return Result{}, err
	}
	if len(plans) == 0 {
		return reply(req.Session, fmt.Sprintf("😔 No %s data plans are available right now. Please choose another network or reply 0 to go back.", n.Name)), nil
	}
	sess, err := f.deps.Sessions.Transition(ctx, req.Session, types.FlowData, types.StateDataPlan,
		map[string]string{keyNetwork: n.Code})
	if err != nil {
		return Result{}, err
	}
	return reply(sess, f.planMenu(n.Code, plans)), nil
}

func (f *Data) handlePlan(ctx context.Context, req Request) (Result, error) {
	network := req.Session.Get(keyNetwork)
	plans, err := f.plans(ctx, network)
	if err != nil {
		return Result{}, err
	}
	i, ok := parseChoice(req.Input, len(plans))
	if !ok {
		return reply(req.Session, "❌ Invalid plan.\n\n"+f.planMenu(network, plans)), nil
	}
	plan := plans[i-1]

	sess, err := f.deps.Sessions.Transition(ctx, req.Session, types.FlowData, types.StateDataPhone, map[string]string{
		keyPlanCode: plan.Code,
		keyPlanName: plan.Name,
		keyVariant:  variant(plan),
		keyPrice:    strconv.FormatInt(plan.Price, 10),
	})
	if err != nil {
		return Result{}, err
	}
	return reply(sess, fmt.Sprintf("✅ Plan: *%s* (%s)\n\n%s", plan.Name, f.deps.money(plan.Price), phonePrompt)), nil
}

func (f *Data) handlePhone(ctx context.Context, req Request) (Result, error) {
	phone, ok := recipient(req)
	if !ok {
		return reply(req.Session, "❌ Invalid phone number.\n\n"+phonePrompt), nil
	}

	price, err := strconv.ParseInt(req.Session.Get(keyPrice), 10, 64)
	if err != nil || price <= 0 {
		return toMenu(ctx, f.deps, req, "❌ Your session was incomplete. Please start again.")
	}
	balance, err := f.deps.Wallet.Balance(ctx, req.User.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read balance: %w", err)
	}
	if balance < price {
		return reply(req.Session, fmt.Sprintf("❌ Insufficient balance!\n\nYour balance: %s\nRequired: %s\n\nReply 0 to go back and fund your wallet.",
			f.deps.money(balance), f.deps.money(price))), nil
	}

	sess, err := f.deps.Sessions.Transition(ctx, req.Session, types.FlowData, types.StateDataConfirm,
		map[string]string{keyPhone: phone})
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	b.WriteString("📋 *Confirm Data Purchase*\n\n")
	fmt.Fprintf(&b, "Network: %s\n", networkName(sess.Get(keyNetwork)))
	fmt.Fprintf(&b, "Plan: %s\n", sess.Get(keyPlanName))
	fmt.Fprintf(&b, "Phone: %s\n", phone)
	fmt.Fprintf(&b, "Amount: %s\n\n", f.deps.money(price))
	b.WriteString(confirmPrompt("Confirm"))
	return reply(sess, b.String()), nil
}

func (f *Data) purchase(ctx context.Context, req Request) (Result, error) {
	network := req.Session.Get(keyNetwork)
	phone := req.Session.Get(keyPhone)
	planCode := req.Session.Get(keyPlanCode)
	planName := req.Session.Get(keyPlanName)
	price, err := strconv.ParseInt(req.Session.Get(keyPrice), 10, 64)
	if err != nil || price <= 0 || network == "" || phone == "" || planCode == "" || req.Session.Get(keyVariant) == "" {
		return toMenu(ctx, f.deps, req, "❌ Your session was incomplete. Please start again.")
	}

	return f.deps.settle(ctx, req, purchase{
		txType: types.TxTypeData,
		amount: price,
		details: types.TransactionDetails{
			Recipient: phone,
			Network:   network,
			PlanCode:  planCode,
			PlanName:  planName,
		},
		operation: "data",
		fulfill: func(ctx context.Context) (*vtu.Receipt, error) {
			return f.deps.Fulfillment.PurchaseData(ctx, vtu.DataRequest{
				Network:  network,
				Phone:    phone,
				PlanCode: req.Session.Get(keyVariant),
				Amount:   price,
			})
		},
		summary: fmt.Sprintf("%s %s for %s", networkName(network), planName, phone),
	})
}
