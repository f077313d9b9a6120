package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/config"
	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/giftcard"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/pkg/whatsapp"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/catalog"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/flow"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/repository"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/session"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/wallet"
)

const testPhone = "08012345678"

type fixture struct {
	dispatcher *Dispatcher
	users      *repository.MemoryUserRepository
	sessions   *session.Manager
	ledger     *ledger.MemoryStore
	vtu        *vtu.MockClient
	messenger  *whatsapp.MockClient
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		users:     repository.NewMemoryUserRepository(),
		sessions:  session.NewManager(session.NewMemoryStore(), session.Config{Timeout: 5 * time.Minute, LockTimeout: time.Second}),
		ledger:    ledger.NewMemoryStore(),
		vtu:       vtu.NewMockClient(),
		messenger: whatsapp.NewMockClient(),
	}
	deps := &flow.Deps{
		Sessions:    f.sessions,
		Wallet:      wallet.NewMemoryWallet(f.users),
		Ledger:      f.ledger,
		Catalog:     catalog.New(repository.NewMemoryCatalogRepository(repository.DefaultGiftCardProducts(), repository.DefaultDataPlans())),
		Fulfillment: f.vtu,
		GiftCards:   giftcard.NewMockClient(0),
		Paystack:    payment.NewMockGateway(payment.GatewayPaystack),
		Flutterwave: payment.NewMockGateway(payment.GatewayFlutterwave),
		Publisher:   events.NewMemoryPublisher(),
		Settings: flow.Settings{
			BotName:        "ChatCommerce",
			CurrencySymbol: "₦",
			Limits: config.LimitsConfig{
				AirtimeMin:       50,
				AirtimeMax:       10000,
				DataMin:          50,
				DataMax:          50000,
				GiftCardMinValue: 10,
				GiftCardMaxValue: 2000,
				WalletMinFunding: 100,
				WalletMaxFunding: 500000,
			},
		},
	}
	menu, flows := flow.Routes(deps)
	f.dispatcher = New(f.users, f.sessions, f.messenger, menu, flows, cfg)
	return f
}

func (f *fixture) send(t *testing.T, text string) string {
	t.Helper()
	if err := f.dispatcher.HandleMessage(context.Background(), Inbound{Phone: "2348012345678", Name: "Ada", Text: text}); err != nil {
		t.Fatalf("HandleMessage(%q) error = %v", text, err)
	}
	return f.messenger.Last(testPhone)
}

func (f *fixture) session(t *testing.T) *types.Session {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return sess
}

func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	u, err := f.users.GetByPhone(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("GetByPhone() error = %v", err)
	}
	if _, err := f.users.Mutate(u.ID, func(u *types.User) error {
		u.Balance = amount
		return nil
	}); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
}

func TestHandleMessage_FirstContactGreets(t *testing.T) {
	f := newFixture(t, Config{})

	reply := f.send(t, "hi")

	if !strings.Contains(reply, "Welcome to *ChatCommerce*") {
		t.Errorf("reply = %q, want greeting", reply)
	}
	u, err := f.users.GetByPhone(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Name != "Ada" || u.Status != types.UserStatusActive {
		t.Errorf("user = %+v", u)
	}
	sess := f.session(t)
	if sess == nil || sess.State != types.StateMainMenu {
		t.Fatalf("session = %+v, want persisted main menu", sess)
	}

	reply = f.send(t, "hi")
	if strings.Contains(reply, "Welcome") {
		t.Error("returning caller should not be greeted again")
	}
}

func TestHandleMessage_PhoneFormsShareOneUser(t *testing.T) {
	f := newFixture(t, Config{})

	for _, phone := range []string{"08012345678", "2348012345678", "+2348012345678"} {
		if err := f.dispatcher.HandleMessage(context.Background(), Inbound{Phone: phone, Text: "hi"}); err != nil {
			t.Fatalf("HandleMessage(%s) error = %v", phone, err)
		}
	}

	for _, m := range f.messenger.Sent() {
		if m.To != testPhone {
			t.Errorf("reply sent to %s, want %s", m.To, testPhone)
		}
	}
	if _, err := f.users.GetByPhone(context.Background(), testPhone); err != nil {
		t.Errorf("GetByPhone() error = %v", err)
	}
}

func TestHandleMessage_InvalidPhone(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.dispatcher.HandleMessage(context.Background(), Inbound{Phone: "12345", Text: "hi"})
	if !apperrors.Is(err, apperrors.ErrInvalidPhone) {
		t.Errorf("error = %v, want ErrInvalidPhone", err)
	}
	if len(f.messenger.Sent()) != 0 {
		t.Error("nothing should be sent to an invalid number")
	}
}

func TestHandleMessage_GlobalCommandsReset(t *testing.T) {
	for _, cmd := range []string{"cancel", "EXIT", " stop ", "Back", "menu"} {
		t.Run(cmd, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.send(t, "hi")
			f.send(t, "1")
			f.send(t, "1")
			if sess := f.session(t); sess.State != types.StateAirtimePhone {
				t.Fatalf("state = %s, want %s", sess.State, types.StateAirtimePhone)
			}

			reply := f.send(t, cmd)

			if !strings.Contains(reply, "Main Menu") {
				t.Errorf("reply = %q, want main menu", reply)
			}
			sess := f.session(t)
			if sess.State != types.StateMainMenu || sess.Flow != types.FlowNone || len(sess.Data) != 0 {
				t.Errorf("session = %+v, want reset", sess)
			}
		})
	}
}

func TestHandleMessage_AirtimeScenario(t *testing.T) {
	f := newFixture(t, Config{})
	f.send(t, "hi")
	f.fund(t, 5000)

	f.send(t, "1")
	f.send(t, "3")
	f.send(t, "0803 123 4567")
	f.send(t, "500")
	reply := f.send(t, "1")

	if !strings.Contains(reply, "Transaction Successful") {
		t.Errorf("reply = %q", reply)
	}
	calls := f.vtu.AirtimeCalls()
	if len(calls) != 1 || calls[0].Network != vtu.NetworkAirtel || calls[0].Phone != "08031234567" {
		t.Errorf("calls = %+v", calls)
	}
	u, _ := f.users.GetByPhone(context.Background(), testPhone)
	if u.Balance != 4500 {
		t.Errorf("balance = %d, want 4500", u.Balance)
	}
}

func TestHandleMessage_InactiveUserRefused(t *testing.T) {
	for _, status := range []string{types.UserStatusSuspended, types.UserStatusBlocked} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(t, Config{SupportContact: "help@example.com"})
			f.send(t, "hi")
			u, _ := f.users.GetByPhone(context.Background(), testPhone)
			if err := f.users.SetStatus(context.Background(), u.ID, status); err != nil {
				t.Fatalf("SetStatus() error = %v", err)
			}

			reply := f.send(t, "1")

			if !strings.Contains(reply, "restricted") || !strings.Contains(reply, "help@example.com") {
				t.Errorf("reply = %q", reply)
			}
			if sess := f.session(t); sess.State != types.StateMainMenu {
				t.Errorf("state = %s, inactive users must not be routed", sess.State)
			}
		})
	}
}

func TestHandleMessage_Maintenance(t *testing.T) {
	f := newFixture(t, Config{MaintenanceMode: true})

	reply := f.send(t, "1")

	if !strings.Contains(reply, "maintenance") {
		t.Errorf("reply = %q", reply)
	}
	if sess := f.session(t); sess != nil {
		t.Errorf("session = %+v, want none", sess)
	}
}

func TestHandleMessage_UnknownStateResets(t *testing.T) {
	f := newFixture(t, Config{})
	f.send(t, "hi")

	sess := f.session(t)
	broken := *sess
	broken.Flow = "bill_payment"
	broken.State = "bill_provider"
	if _, err := f.sessions.Save(context.Background(), broken); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reply := f.send(t, "1")

	if !strings.Contains(reply, "Main Menu") {
		t.Errorf("reply = %q, want main menu", reply)
	}
	if got := f.session(t); got.State != types.StateMainMenu || got.Flow != types.FlowNone {
		t.Errorf("session = %+v, want reset", got)
	}
}

func TestHandleMessage_HandlerErrorApologises(t *testing.T) {
	f := newFixture(t, Config{})
	f.send(t, "hi")
	f.send(t, "5")
	f.send(t, "1")

	// Handler errors surface as the generic apology and leave the session
	// where it was.
	failing := &failingHandler{err: errors.New("boom")}
	f.dispatcher.flows[types.FlowWalletFunding] = failing

	reply := f.send(t, "1000")

	if reply != apologyText {
		t.Errorf("reply = %q, want apology", reply)
	}
	if sess := f.session(t); sess.State != types.StateWalletFundAmount {
		t.Errorf("state = %s, session must be left untouched", sess.State)
	}
	if failing.calls != 1 {
		t.Errorf("handler calls = %d, want 1", failing.calls)
	}
}

type failingHandler struct {
	err   error
	calls int
}

func (h *failingHandler) Handle(context.Context, flow.Request) (flow.Result, error) {
	h.calls++
	return flow.Result{}, h.err
}

func TestHandleMessage_SendFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.messenger.Err = errors.New("transport down")

	if err := f.dispatcher.HandleMessage(context.Background(), Inbound{Phone: testPhone, Text: "hi"}); err == nil {
		t.Error("HandleMessage() should surface send failures")
	}
}

func TestHandleMessage_SerializesPerPhone(t *testing.T) {
	f := newFixture(t, Config{})
	f.send(t, "hi")
	f.fund(t, 1000)
	f.send(t, "1")
	f.send(t, "1")
	f.send(t, testPhone)
	f.send(t, "1000")

	// Two confirmations race; only one may reach the provider.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.dispatcher.HandleMessage(context.Background(), Inbound{Phone: testPhone, Text: "1"})
		}()
	}
	wg.Wait()

	if got := len(f.vtu.AirtimeCalls()); got != 1 {
		t.Errorf("airtime calls = %d, want 1", got)
	}
	u, _ := f.users.GetByPhone(context.Background(), testPhone)
	if u.Balance != 0 {
		t.Errorf("balance = %d, want 0", u.Balance)
	}
}

func TestHandleMessage_LockedSessionApologises(t *testing.T) {
	f := newFixture(t, Config{})
	f.send(t, "hi")

	unlock, err := f.sessions.Lock(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = f.dispatcher.HandleMessage(ctx, Inbound{Phone: testPhone, Text: "1"})
	if !apperrors.Is(err, apperrors.ErrSessionLocked) {
		t.Fatalf("HandleMessage() error = %v, want ErrSessionLocked", err)
	}
	if got := f.messenger.Last(testPhone); got != apologyText {
		t.Errorf("reply = %q, want apology", got)
	}
	if sess := f.session(t); sess.State != types.StateMainMenu {
		t.Errorf("state = %s, locked message must not be handled", sess.State)
	}
}
