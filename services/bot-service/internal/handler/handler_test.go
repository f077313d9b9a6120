package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Rohianon/chatcommerce/pkg/auth"
	"github.com/Rohianon/chatcommerce/pkg/config"
	"github.com/Rohianon/chatcommerce/pkg/crypto"
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/giftcard"
	"github.com/Rohianon/chatcommerce/pkg/middleware"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/response"
	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/pkg/whatsapp"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/catalog"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/dispatcher"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/flow"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/repository"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/review"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/session"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/wallet"
)

const (
	testPhone      = "08012345678"
	testWaID       = "2348012345678"
	verifyToken    = "verify-me"
	appSecret      = "meta-app-secret"
	paystackSecret = "sk_test_paystack"
	adminPassword  = "correct horse"
)

type testEnv struct {
	app       *fiber.App
	users     *repository.MemoryUserRepository
	ledger    *ledger.MemoryStore
	messenger *whatsapp.MockClient
	gateway   *payment.MockGateway
	tokens    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := crypto.HashPassword(adminPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	e := &testEnv{
		users:     repository.NewMemoryUserRepository(),
		ledger:    ledger.NewMemoryStore(),
		messenger: whatsapp.NewMockClient(),
		gateway:   payment.NewMockGateway(payment.GatewayPaystack),
		tokens:    auth.NewJWTManager(&auth.Config{Secret: "test-secret", TokenTTL: time.Hour}),
	}
	sessions := session.NewManager(session.NewMemoryStore(), session.Config{Timeout: 5 * time.Minute, LockTimeout: time.Second})
	wal := wallet.NewMemoryWallet(e.users)
	cat := catalog.New(repository.NewMemoryCatalogRepository(repository.DefaultGiftCardProducts(), repository.DefaultDataPlans()))
	publisher := events.NewMemoryPublisher()

	deps := &flow.Deps{
		Sessions:    sessions,
		Wallet:      wal,
		Ledger:      e.ledger,
		Catalog:     cat,
		Fulfillment: vtu.NewMockClient(),
		GiftCards:   giftcard.NewMockClient(0),
		Paystack:    e.gateway,
		Flutterwave: payment.NewMockGateway(payment.GatewayFlutterwave),
		Publisher:   publisher,
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
			Bank: config.BankConfig{Name: "Test Bank", AccountNumber: "0123456789", AccountName: "ChatCommerce Ltd"},
		},
	}
	menu, flows := flow.Routes(deps)
	d := dispatcher.New(e.users, sessions, e.messenger, menu, flows, dispatcher.Config{})
	svc := review.NewService(e.ledger, wal, e.users, e.messenger, publisher, review.Config{}).WithGateways(e.gateway)

	h := New(d, svc, e.users, cat, e.tokens, Config{
		VerifyToken:       verifyToken,
		AppSecret:         appSecret,
		PaystackSecret:    paystackSecret,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
	})

	e.app = fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler})
	e.app.Use(middleware.RequestID())
	h.Routes(e.app)
	return e
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func (e *testEnv) jsonRequest(method, path string, body any, token string) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	tok, err := e.tokens.Issue("alice", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok.AccessToken
}

func (e *testEnv) user(t *testing.T) *types.User {
	t.Helper()
	u, err := e.users.GetOrCreate(context.Background(), testPhone, "Ada")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	return u
}

func (e *testEnv) transaction(t *testing.T, tx types.Transaction) types.Transaction {
	t.Helper()
	u := e.user(t)
	tx.UserID = u.ID
	tx.Phone = u.Phone
	created, err := e.ledger.Create(context.Background(), tx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return created
}

func decodeEnvelope(t *testing.T, body []byte) response.Response {
	t.Helper()
	var r response.Response
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	return r
}

func metaPayload(text string) []byte {
	payload := whatsapp.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []whatsapp.Entry{{
			ID: "entry-1",
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.ChangeValue{
					MessagingProduct: "whatsapp",
					Contacts:         []whatsapp.Contact{{WaID: testWaID, Profile: whatsapp.ContactProfile{Name: "Ada"}}},
					Messages: []whatsapp.Message{{
						From: testWaID,
						ID:   "wamid.1",
						Type: "text",
						Text: &whatsapp.TextContent{Body: text},
					}},
				},
			}},
		}},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestVerifyWebhook(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", 200, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", 403, "Forbidden"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", 403, "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, httptest.NewRequest("GET", "/webhook/whatsapp?"+tt.query, nil))
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestIncomingMessage_Meta(t *testing.T) {
	e := newTestEnv(t)
	body := metaPayload("hi")

	req := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256="+crypto.SignSHA256(appSecret, body))

	status, _ := e.do(t, req)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if reply := e.messenger.Last(testPhone); !strings.Contains(reply, "Welcome") {
		t.Errorf("reply = %q, want greeting", reply)
	}
}

func TestIncomingMessage_BadSignature(t *testing.T) {
	e := newTestEnv(t)

	for _, sig := range []string{"", "sha256=deadbeef", crypto.SignSHA256(appSecret, metaPayload("hi"))} {
		req := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(metaPayload("hi")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Hub-Signature-256", sig)

		if status, _ := e.do(t, req); status != 401 {
			t.Errorf("signature %q: status = %d, want 401", sig, status)
		}
	}
	if len(e.messenger.Sent()) != 0 {
		t.Error("unsigned deliveries must not be dispatched")
	}
}

func TestIncomingMessage_Twilio(t *testing.T) {
	e := newTestEnv(t)
	form := url.Values{
		"From":        {"whatsapp:+" + testWaID},
		"Body":        {"hello"},
		"ProfileName": {"Ada"},
		"MessageSid":  {"SM123"},
	}

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body := e.do(t, req)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if !strings.Contains(string(body), "<Response>") {
		t.Errorf("body = %q, want TwiML", body)
	}
	if reply := e.messenger.Last(testPhone); !strings.Contains(reply, "Main Menu") {
		t.Errorf("reply = %q, want main menu", reply)
	}
}

func TestMessageStatus(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest("POST", "/webhook/whatsapp/status", strings.NewReader(`{"statuses":[]}`))
	req.Header.Set("Content-Type", "application/json")

	if status, _ := e.do(t, req); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
}

func paystackRequest(body []byte, secret string) *http.Request {
	req := httptest.NewRequest("POST", "/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Paystack-Signature", crypto.SignSHA512(secret, body))
	}
	return req
}

func TestPaystackWebhook(t *testing.T) {
	e := newTestEnv(t)
	tx := e.transaction(t, types.Transaction{
		Type:    types.TxTypeWalletFunding,
		Amount:  5000,
		Payment: types.PaymentInfo{Method: types.PaymentMethodCard, Gateway: payment.GatewayPaystack, Reference: "PSK-1"},
	})
	body := []byte(`{"event":"charge.success","data":{"id":99,"reference":"PSK-1","status":"success","amount":500000,"paid_at":"2026-10-19T10:00:00Z"}}`)

	status, _ := e.do(t, paystackRequest(body, paystackSecret))
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}

	got, _ := e.ledger.Get(context.Background(), tx.ID)
	if got.Status != types.TxStatusCompleted || got.Payment.GatewayReference != "99" {
		t.Errorf("transaction = %+v", got)
	}
	if u := e.user(t); u.Balance != 5000 {
		t.Errorf("balance = %d, want 5000", u.Balance)
	}

	// Paystack retries deliveries; a replay must not credit twice.
	if status, _ := e.do(t, paystackRequest(body, paystackSecret)); status != 200 {
		t.Errorf("replay status = %d, want 200", status)
	}
	if u := e.user(t); u.Balance != 5000 {
		t.Errorf("balance after replay = %d, want 5000", u.Balance)
	}
}

func TestPaystackWebhook_Rejected(t *testing.T) {
	e := newTestEnv(t)
	body := []byte(`{"event":"charge.success","data":{"reference":"PSK-1","amount":500000}}`)

	if status, _ := e.do(t, paystackRequest(body, "")); status != 401 {
		t.Errorf("unsigned status = %d, want 401", status)
	}
	if status, _ := e.do(t, paystackRequest(body, "wrong-secret")); status != 401 {
		t.Errorf("bad signature status = %d, want 401", status)
	}
}

func TestPaystackWebhook_Acknowledged(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"other event", `{"event":"transfer.success","data":{"reference":"PSK-1","amount":500000}}`},
		{"unknown reference", `{"event":"charge.success","data":{"reference":"missing","amount":500000}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.transaction(t, types.Transaction{
				Type:    types.TxTypeWalletFunding,
				Amount:  5000,
				Payment: types.PaymentInfo{Method: types.PaymentMethodCard, Gateway: payment.GatewayPaystack, Reference: "PSK-1"},
			})

			if status, _ := e.do(t, paystackRequest([]byte(tt.body), paystackSecret)); status != 200 {
				t.Errorf("status = %d, want 200", status)
			}
			if u := e.user(t); u.Balance != 0 {
				t.Errorf("balance = %d, want 0", u.Balance)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{"valid", LoginRequest{Username: "admin", Password: adminPassword}, 200},
		{"wrong password", LoginRequest{Username: "admin", Password: "nope"}, 401},
		{"wrong user", LoginRequest{Username: "root", Password: adminPassword}, 401},
		{"missing password", LoginRequest{Username: "admin"}, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, e.jsonRequest("POST", "/admin/login", tt.body, ""))
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
			if tt.wantStatus != 200 {
				return
			}

			var env struct {
				Data auth.Token `json:"data"`
			}
			if err := json.Unmarshal(body, &env); err != nil {
				t.Fatal(err)
			}
			claims, err := e.tokens.Validate(env.Data.AccessToken)
			if err != nil {
				t.Fatalf("issued token invalid: %v", err)
			}
			if claims.Username != "admin" || claims.Role != auth.RoleAdmin {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestAdmin_RequiresToken(t *testing.T) {
	e := newTestEnv(t)

	routes := []struct{ method, path string }{
		{"GET", "/admin/transactions/pending"},
		{"POST", "/admin/giftcards/abc/approve"},
		{"POST", "/admin/giftcards/abc/reject"},
		{"POST", "/admin/wallets/credit"},
		{"POST", "/admin/catalog/invalidate"},
		{"GET", "/admin/users/08012345678"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			if status, _ := e.do(t, e.jsonRequest(r.method, r.path, nil, "")); status != 401 {
				t.Errorf("status = %d, want 401", status)
			}
			if status, _ := e.do(t, e.jsonRequest(r.method, r.path, nil, "not-a-jwt")); status != 401 {
				t.Errorf("bad token status = %d, want 401", status)
			}
		})
	}
}

func TestAdmin_ReviewerCannotCredit(t *testing.T) {
	e := newTestEnv(t)
	tok, _ := e.tokens.Issue("bob", auth.RoleReviewer)

	req := e.jsonRequest("POST", "/admin/wallets/credit", CreditRequest{Phone: testPhone, Amount: 100}, tok.AccessToken)
	if status, _ := e.do(t, req); status != 403 {
		t.Errorf("status = %d, want 403", status)
	}
}

func TestPendingTransactions(t *testing.T) {
	e := newTestEnv(t)
	e.transaction(t, types.Transaction{Type: types.TxTypeGiftCardSale, Amount: 35000})
	token := e.token(t)

	status, body := e.do(t, e.jsonRequest("GET", "/admin/transactions/pending", nil, token))
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	var env struct {
		Data []types.Transaction `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatal(err)
	}
	if len(env.Data) != 1 || env.Data[0].Amount != 35000 {
		t.Errorf("pending = %+v", env.Data)
	}

	if status, _ := e.do(t, e.jsonRequest("GET", "/admin/transactions/pending?type=airtime", nil, token)); status != 400 {
		t.Errorf("bad type status = %d, want 400", status)
	}
}

func TestApproveGiftCard(t *testing.T) {
	e := newTestEnv(t)
	tx := e.transaction(t, types.Transaction{Type: types.TxTypeGiftCardSale, Amount: 35000})
	token := e.token(t)
	path := "/admin/giftcards/" + tx.ID + "/approve"

	status, body := e.do(t, e.jsonRequest("POST", path, ApproveRequest{Notes: "valid code"}, token))
	if status != 200 {
		t.Fatalf("status = %d, want 200 (%s)", status, body)
	}
	got, _ := e.ledger.Get(context.Background(), tx.ID)
	if got.Status != types.TxStatusCompleted || got.Details.ReviewedBy != "alice" {
		t.Errorf("transaction = %+v", got)
	}
	if u := e.user(t); u.Balance != 35000 {
		t.Errorf("balance = %d, want 35000", u.Balance)
	}

	status, body = e.do(t, e.jsonRequest("POST", path, nil, token))
	if status != 409 {
		t.Errorf("second approval status = %d, want 409", status)
	}
	if env := decodeEnvelope(t, body); env.Error == nil || env.Error.Code != "ALREADY_PROCESSED" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestApproveGiftCard_NotGiftCard(t *testing.T) {
	e := newTestEnv(t)
	tx := e.transaction(t, types.Transaction{Type: types.TxTypeAirtime, Amount: 100})

	status, body := e.do(t, e.jsonRequest("POST", "/admin/giftcards/"+tx.ID+"/approve", nil, e.token(t)))
	if status != 400 {
		t.Errorf("status = %d, want 400", status)
	}
	if env := decodeEnvelope(t, body); env.Error == nil || env.Error.Code != "NOT_GIFTCARD" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestRejectGiftCard(t *testing.T) {
	e := newTestEnv(t)
	tx := e.transaction(t, types.Transaction{Type: types.TxTypeGiftCardSale, Amount: 35000})
	token := e.token(t)
	path := "/admin/giftcards/" + tx.ID + "/reject"

	status, body := e.do(t, e.jsonRequest("POST", path, RejectRequest{}, token))
	if status != 400 {
		t.Fatalf("missing reason status = %d, want 400", status)
	}
	if env := decodeEnvelope(t, body); env.Error == nil || len(env.Error.Details) == 0 || env.Error.Details[0] != "reason is required" {
		t.Errorf("error = %+v", env.Error)
	}

	if status, _ := e.do(t, e.jsonRequest("POST", path, RejectRequest{Reason: "code already used"}, token)); status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	got, _ := e.ledger.Get(context.Background(), tx.ID)
	if got.Status != types.TxStatusFailed || got.Error == nil || got.Error.Code != review.ErrCodeRejected {
		t.Errorf("transaction = %+v", got)
	}
	if u := e.user(t); u.Balance != 0 {
		t.Errorf("balance = %d, want 0", u.Balance)
	}
}

func TestCreditWallet(t *testing.T) {
	e := newTestEnv(t)
	e.user(t)
	token := e.token(t)

	tests := []struct {
		name       string
		body       CreditRequest
		wantStatus int
	}{
		{"valid", CreditRequest{Phone: "+2348012345678", Amount: 1000, Reason: "goodwill"}, 201},
		{"zero amount", CreditRequest{Phone: testPhone}, 400},
		{"bad phone", CreditRequest{Phone: "12345", Amount: 1000}, 400},
		{"unknown user", CreditRequest{Phone: "08099999999", Amount: 1000}, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, e.jsonRequest("POST", "/admin/wallets/credit", tt.body, token))
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
		})
	}

	if u := e.user(t); u.Balance != 1000 {
		t.Errorf("balance = %d, want 1000", u.Balance)
	}
}

func TestVerifyPayment(t *testing.T) {
	e := newTestEnv(t)
	tx := e.transaction(t, types.Transaction{
		Type:    types.TxTypeWalletFunding,
		Amount:  2000,
		Payment: types.PaymentInfo{Method: types.PaymentMethodCard, Gateway: payment.GatewayPaystack, Reference: "PSK-2"},
	})
	token := e.token(t)
	path := "/admin/payments/" + tx.Reference + "/verify"

	if status, _ := e.do(t, e.jsonRequest("POST", path, nil, token)); status != 502 {
		t.Errorf("unpaid status = %d, want 502", status)
	}
	if u := e.user(t); u.Balance != 0 {
		t.Fatalf("balance = %d before payment", u.Balance)
	}

	e.gateway.MarkPaid("PSK-2", 2000)
	if status, body := e.do(t, e.jsonRequest("POST", path, nil, token)); status != 200 {
		t.Fatalf("status = %d, want 200 (%s)", status, body)
	}
	if u := e.user(t); u.Balance != 2000 {
		t.Errorf("balance = %d, want 2000", u.Balance)
	}
}

func (e *testEnv) chat(t *testing.T, texts ...string) {
	t.Helper()
	for _, text := range texts {
		body := metaPayload(text)
		req := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Hub-Signature-256", "sha256="+crypto.SignSHA256(appSecret, body))
		if status, _ := e.do(t, req); status != 200 {
			t.Fatalf("message %q status = %d, want 200", text, status)
		}
	}
}

func TestConfirmTransfer_BankTransferFunding(t *testing.T) {
	e := newTestEnv(t)
	e.chat(t, "hi", "5", "1", "20000", "3")

	pending, err := e.ledger.FindPendingOfType(context.Background(), types.TxTypeWalletFunding)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending fundings = %v, %v", pending, err)
	}
	ref := pending[0].Reference
	if !strings.Contains(e.messenger.Last(testPhone), ref) {
		t.Fatalf("transfer instructions missing reference %s", ref)
	}
	token := e.token(t)

	// Gateway verification cannot settle a bank transfer.
	if status, _ := e.do(t, e.jsonRequest("POST", "/admin/payments/"+ref+"/verify", nil, token)); status != 400 {
		t.Errorf("verify status = %d, want 400", status)
	}

	reviewerTok, _ := e.tokens.Issue("bob", auth.RoleReviewer)
	path := "/admin/payments/" + ref + "/confirm"
	if status, _ := e.do(t, e.jsonRequest("POST", path, ConfirmTransferRequest{Amount: 20000}, reviewerTok.AccessToken)); status != 403 {
		t.Errorf("reviewer status = %d, want 403", status)
	}

	status, body := e.do(t, e.jsonRequest("POST", path, ConfirmTransferRequest{Amount: 20000, BankReference: "NIP-778"}, token))
	if status != 200 {
		t.Fatalf("confirm status = %d, want 200 (%s)", status, body)
	}
	env := decodeEnvelope(t, body)
	data, _ := json.Marshal(env.Data)
	var tx types.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if tx.Status != types.TxStatusCompleted || tx.Payment.GatewayReference != "NIP-778" || tx.Details.ReviewedBy != "alice" {
		t.Errorf("transaction = %+v", tx)
	}
	if u := e.user(t); u.Balance != 20000 {
		t.Errorf("balance = %d, want 20000", u.Balance)
	}
	if reply := e.messenger.Last(testPhone); !strings.Contains(reply, "Wallet Funded") {
		t.Errorf("reply = %q, want funding notice", reply)
	}
	if left, _ := e.ledger.FindPendingOfType(context.Background(), types.TxTypeWalletFunding); len(left) != 0 {
		t.Errorf("pending fundings after confirm = %d, want 0", len(left))
	}

	status, body = e.do(t, e.jsonRequest("POST", path, nil, token))
	if status != 409 {
		t.Errorf("repeat status = %d, want 409", status)
	}
	if u := e.user(t); u.Balance != 20000 {
		t.Errorf("balance after repeat = %d, want 20000", u.Balance)
	}
}

func TestConfirmTransfer_Errors(t *testing.T) {
	e := newTestEnv(t)
	card := e.transaction(t, types.Transaction{
		Type:    types.TxTypeWalletFunding,
		Amount:  2000,
		Payment: types.PaymentInfo{Method: types.PaymentMethodCard, Gateway: payment.GatewayPaystack, Reference: "PSK-9"},
	})
	transfer := e.transaction(t, types.Transaction{
		Type:    types.TxTypeWalletFunding,
		Amount:  5000,
		Payment: types.PaymentInfo{Method: types.PaymentMethodBankTransfer},
	})
	token := e.token(t)

	tests := []struct {
		name       string
		reference  string
		body       any
		wantStatus int
	}{
		{"unknown reference", "FND-NOPE", nil, 404},
		{"card funding", card.Reference, nil, 400},
		{"negative amount", transfer.Reference, ConfirmTransferRequest{Amount: -1}, 400},
		{"short payment", transfer.Reference, ConfirmTransferRequest{Amount: 4000}, 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, e.jsonRequest("POST", "/admin/payments/"+tt.reference+"/confirm", tt.body, token))
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
		})
	}
	if u := e.user(t); u.Balance != 0 {
		t.Errorf("balance = %d, want 0", u.Balance)
	}
}

func TestInvalidateCatalog(t *testing.T) {
	e := newTestEnv(t)

	if status, _ := e.do(t, e.jsonRequest("POST", "/admin/catalog/invalidate", nil, e.token(t))); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
}

func TestGetUser(t *testing.T) {
	e := newTestEnv(t)
	e.user(t)
	token := e.token(t)

	status, body := e.do(t, e.jsonRequest("GET", "/admin/users/2348012345678", nil, token))
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	var env struct {
		Data types.User `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Phone != testPhone || env.Data.Name != "Ada" {
		t.Errorf("user = %+v", env.Data)
	}

	if status, _ := e.do(t, e.jsonRequest("GET", "/admin/users/08099999999", nil, token)); status != 404 {
		t.Errorf("unknown user status = %d, want 404", status)
	}
	if status, _ := e.do(t, e.jsonRequest("GET", "/admin/users/abc", nil, token)); status != 400 {
		t.Errorf("bad phone status = %d, want 400", status)
	}
}
