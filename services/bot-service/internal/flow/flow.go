package flow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/config"
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/giftcard"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/wallet"
)

// Request is one inbound message against the caller's current session.
type Request struct {
	User    types.User
	Session types.Session
	Input   string
	MediaID string
	// Fresh is set when the session was just created.
	Fresh bool
}

// Result is the handler's decision: the session to continue with and the
// texts to send back, in order.
type Result struct {
	Session types.Session
	Replies []string
}

type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// Flow is a Handler that can also be entered from the main menu.
type Flow interface {
	Handler
	Start(ctx context.Context, req Request) (Result, error)
}

type Sessions interface {
	Transition(ctx context.Context, sess types.Session, flow, state string, patch map[string]string) (types.Session, error)
	Reset(ctx context.Context, sess types.Session) (types.Session, error)
}

type Fulfillment interface {
	PurchaseAirtime(ctx context.Context, req vtu.AirtimeRequest) (*vtu.Receipt, error)
	PurchaseData(ctx context.Context, req vtu.DataRequest) (*vtu.Receipt, error)
}

type GiftCardVerifier interface {
	Submit(ctx context.Context, sub giftcard.Submission) (*giftcard.Result, error)
}

type PaymentGateway interface {
	Name() string
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error)
}

type Catalog interface {
	GiftCardProducts(ctx context.Context) ([]types.GiftCardProduct, error)
	DataPlans(ctx context.Context, network string) ([]types.DataPlan, error)
}

type Settings struct {
	BotName         string
	CurrencySymbol  string
	SupportContact  string
	Limits          config.LimitsConfig
	Bank            config.BankConfig
	ProviderTimeout time.Duration
}

// Deps are shared by every flow.
type Deps struct {
	Sessions    Sessions
	Wallet      wallet.Wallet
	Ledger      ledger.Store
	Catalog     Catalog
	Fulfillment Fulfillment
	GiftCards   GiftCardVerifier
	Paystack    PaymentGateway
	Flutterwave PaymentGateway
	Publisher   events.Publisher
	Settings    Settings
	Now         func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) providerTimeout() time.Duration {
	if d.Settings.ProviderTimeout > 0 {
		return d.Settings.ProviderTimeout
	}
	return 30 * time.Second
}

// reply keeps the session and answers with texts.
func reply(sess types.Session, texts ...string) Result {
	return Result{Session: sess, Replies: texts}
}

// toMenu resets the session and answers with texts followed by the main
// menu.
func toMenu(ctx context.Context, d *Deps, req Request, texts ...string) (Result, error) {
	sess, err := d.Sessions.Reset(ctx, req.Session)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, append(texts, mainMenuText(d, req.User, false))...), nil
}

// finish resets the session and answers with texts only.
func finish(ctx context.Context, d *Deps, req Request, texts ...string) (Result, error) {
	sess, err := d.Sessions.Reset(ctx, req.Session)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, texts...), nil
}

func isBack(input string) bool {
	return strings.TrimSpace(input) == "0"
}

func isConfirm(input string) bool {
	in := strings.ToLower(strings.TrimSpace(input))
	return in == "1" || in == "confirm"
}

func isCancel(input string) bool {
	in := strings.ToLower(strings.TrimSpace(input))
	return in == "2" || in == "cancel"
}

// parseAmount accepts whole numbers with optional thousands separators and
// currency symbol.
func parseAmount(input string, symbol string) (int64, bool) {
	s := strings.TrimSpace(input)
	if symbol != "" {
		s = strings.TrimPrefix(s, symbol)
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseChoice returns a 1-based menu index within [1, n].
func parseChoice(input string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i, true
}

type network struct {
	Code string
	Name string
}

var networks = []network{
	{vtu.NetworkMTN, "MTN"},
	{vtu.NetworkGlo, "Glo"},
	{vtu.NetworkAirtel, "Airtel"},
	{vtu.Network9mobile, "9mobile"},
}

// parseNetwork accepts a menu index or a network name.
func parseNetwork(input string) (network, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if i, ok := parseChoice(in, len(networks)); ok {
		return networks[i-1], true
	}
	for _, n := range networks {
		if in == n.Code {
			return n, true
		}
	}
	return network{}, false
}

func networkName(code string) string {
	for _, n := range networks {
		if n.Code == code {
			return n.Name
		}
	}
	return strings.ToUpper(code)
}
