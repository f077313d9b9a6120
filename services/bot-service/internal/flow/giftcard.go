package flow

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/giftcard"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const (
	keyCardType  = "card_type"
	keyCardName  = "card_name"
	keyCardValue = "card_value"
	keyPayout    = "payout"
	keyImages    = "images"
	keyCardCode  = "card_code"
)

const (
	ErrCodeVerification = "VERIFICATION_ERROR"
	ErrCodeCredit       = "CREDIT_FAILED"
)

const providerGiftCard = "giftcard"

type GiftCard struct {
	deps *Deps
}

func NewGiftCard(d *Deps) *GiftCard {
	return &GiftCard{deps: d}
}

func (g *GiftCard) Start(ctx context.Context, req Request) (Result, error) {
	products, err := g.products(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(products) == 0 {
		return reply(req.Session, "😔 Gift card sales are unavailable right now. Please try again later.\n\n"+genericBack), nil
	}
	sess, err := g.deps.Sessions.Transition(ctx, req.Session, types.FlowGiftCardSale, types.StateGiftCardType, nil)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, g.typeMenu(products)), nil
}

func (g *GiftCard) Handle(ctx context.Context, req Request) (Result, error) {
	if isBack(req.Input) && req.MediaID == "" {
		return toMenu(ctx, g.deps, req)
	}

	switch req.Session.State {
	case types.StateGiftCardType:
		return g.handleType(ctx, req)
	case types.StateGiftCardValue:
		return g.handleValue(ctx, req)
	case types.StateGiftCardImages:
		return g.handleImages(ctx, req)
	case types.StateGiftCardCode:
		return g.handleCode(ctx, req)
	case types.StateGiftCardConfirm:
		return g.deps.confirm(ctx, req, func() (Result, error) { return g.submit(ctx, req) })
	default:
		return toMenu(ctx, g.deps, req)
	}
}

// products returns the enabled products in display order.
func (g *GiftCard) products(ctx context.Context) ([]types.GiftCardProduct, error) {
	all, err := g.deps.Catalog.GiftCardProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gift card products: %w", err)
	}
	out := make([]types.GiftCardProduct, 0, len(all))
	for _, p := range all {
		if p.Enabled {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b types.GiftCardProduct) int { return a.DisplayOrder - b.DisplayOrder })
	return out, nil
}

func (g *GiftCard) product(ctx context.Context, code string) (types.GiftCardProduct, bool, error) {
	products, err := g.products(ctx)
	if err != nil {
		return types.GiftCardProduct{}, false, err
	}
	for _, p := range products {
		if p.Code == code {
			return p, true, nil
		}
	}
	return types.GiftCardProduct{}, false, nil
}

func (g *GiftCard) typeMenu(products []types.GiftCardProduct) string {
	var b strings.Builder
	b.WriteString("🎁 *Sell Gift Card*\n\nSelect card type:\n\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
	}
	fmt.Fprintf(&b, "0. Back to Main Menu\n\nReply with a number (1-%d).", len(products))
	return b.String()
}

func (g *GiftCard) handleType(ctx context.Context, req Request) (Result, error) {
	products, err := g.products(ctx)
	if err != nil {
		return Result{}, err
	}
	i, ok := parseChoice(req.Input, len(products))
	if !ok {
		return reply(req.Session, "❌ Invalid card type.\n\n"+g.typeMenu(products)), nil
	}
	p := products[i-1]

	sess, err := g.deps.Sessions.Transition(ctx, req.Session, types.FlowGiftCardSale, types.StateGiftCardValue,
		map[string]string{keyCardType: p.Code, keyCardName: p.Name})
	if err != nil {
		return Result{}, err
	}
	return reply(sess, fmt.Sprintf("✅ Card: *%s*\n\n💵 Enter the card value in USD ($%d - $%d):",
		p.Name, g.deps.Settings.Limits.GiftCardMinValue, g.deps.Settings.Limits.GiftCardMaxValue)), nil
}

func (g *GiftCard) handleValue(ctx context.Context, req Request) (Result, error) {
	limits := g.deps.Settings.Limits
	value, ok := parseAmount(req.Input, "$")
	if !ok || value < limits.GiftCardMinValue || value > limits.GiftCardMaxValue {
		return reply(req.Session, fmt.Sprintf("❌ Invalid card value. Enter a whole number of dollars between $%d and $%d.",
			limits.GiftCardMinValue, limits.GiftCardMaxValue)), nil
	}

	p, found, err := g.product(ctx, req.Session.Get(keyCardType))
	if err != nil {
		return Result{}, err
	}
	if !found {
		return toMenu(ctx, g.deps, req, "😔 That card is no longer available.")
	}
	payout, err := Payout(p, value)
	if err != nil {
		return Result{}, err
	}

	sess, err := g.deps.Sessions.Transition(ctx, req.Session, types.FlowGiftCardSale, types.StateGiftCardImages, map[string]string{
		keyCardValue: strconv.FormatInt(value, 10),
		keyPayout:    strconv.FormatInt(payout, 10),
		keyImages:    "",
	})
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 *$%d %s* pays *%s*\n\n", value, p.Name, g.deps.money(payout))
	b.WriteString(imagesPrompt(p))
	return reply(sess, b.String()), nil
}

func imagesPrompt(p types.GiftCardProduct) string {
	if minImages(p) == 0 {
		return fmt.Sprintf("📸 Send up to %d clear photo(s) of the card, or reply *DONE* to continue.", maxImages(p))
	}
	return fmt.Sprintf("📸 Send clear photo(s) of the card (at least %d, up to %d). Reply *DONE* when finished.", minImages(p), maxImages(p))
}

func minImages(p types.GiftCardProduct) int {
	if !p.RequiresImage {
		return 0
	}
	if p.MinImages < 1 {
		return 1
	}
	return p.MinImages
}

func maxImages(p types.GiftCardProduct) int {
	if p.MaxImages < 1 {
		return 5
	}
	return max(p.MaxImages, minImages(p))
}

func splitImages(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (g *GiftCard) handleImages(ctx context.Context, req Request) (Result, error) {
	p, found, err := g.product(ctx, req.Session.Get(keyCardType))
	if err != nil {
		return Result{}, err
	}
	if !found {
		return toMenu(ctx, g.deps, req, "😔 That card is no longer available.")
	}
	images := splitImages(req.Session.Get(keyImages))

	if req.MediaID != "" {
		if len(images) >= maxImages(p) {
			return reply(req.Session, fmt.Sprintf("⚠️ You have already sent %d image(s), the maximum. Reply *DONE* to continue.", len(images))), nil
		}
		images = append(images, req.MediaID)
		sess, err := g.deps.Sessions.Transition(ctx, req.Session, types.FlowGiftCardSale, types.StateGiftCardImages,
			map[string]string{keyImages: strings.Join(images, ",")})
		if err != nil {
			return Result{}, err
		}
		return reply(sess, fmt.Sprintf("✅ Image %d received. Send another or reply *DONE* to continue.", len(images))), nil
	}

	if !strings.EqualFold(strings.TrimSpace(req.Input), "done") {
		return reply(req.Session, imagesPrompt(p)), nil
	}
	if len(images) < minImages(p) {
		return reply(req.Session, fmt.Sprintf("❌ Please send at least %d image(s) of the card before replying DONE.", minImages(p))), nil
	}

	sess, err := g.deps.Sessions.Transition(ctx, req.Session, types.FlowGiftCardSale, types.StateGiftCardCode, nil)
	if err != nil {
		return Result{}, err
	}
	return reply(sess, codePrompt(p)), nil
}

func codePrompt(p types.GiftCardProduct) string {
	if p.RequiresCode {
		return "🔢 Enter the card code:"
	}
	return "🔢 Enter the card code, or reply *SKIP* if the photos show it:"
}

func (g *GiftCard) handleCode(ctx context.Context, req Request) (Result, error) {
	p, found, err := g.product(ctx, req.Session.Get(keyCardType))
	if err != nil {
		return Result{}, err
	}
	if !found {
		return toMenu(ctx, g.deps, req, "😔 That card is no longer available.")
	}

	code := strings.TrimSpace(req.Input)
	switch {
	case code == "":
		return reply(req.Session, codePrompt(p)), nil
	case strings.EqualFold(code, "skip"):
		if p.RequiresCode {
			return reply(req.Session, "❌ This card requires a code.\n\n"+codePrompt(p)), nil
		}
		code = ""
	}

	sess, err := g.deps.Sessions.Transition(ctx, req.Session, types.FlowGiftCardSale, types.StateGiftCardConfirm,
		map[string]string{keyCardCode: code})
	if err != nil {
		return Result{}, err
	}

	value, _ := strconv.ParseInt(sess.Get(keyCardValue), 10, 64)
	payout, _ := strconv.ParseInt(sess.Get(keyPayout), 10, 64)
	var b strings.Builder
	b.WriteString("📋 *Confirm Gift Card Sale*\n\n")
	fmt.Fprintf(&b, "Card: %s\n", sess.Get(keyCardName))
	fmt.Fprintf(&b, "Value: $%d\n", value)
	fmt.Fprintf(&b, "Images: %d\n", len(splitImages(sess.Get(keyImages))))
	if code != "" {
		fmt.Fprintf(&b, "Code: %s\n", maskCode(code))
	}
	fmt.Fprintf(&b, "You receive: %s\n\n", g.deps.money(payout))
	b.WriteString(confirmPrompt("Submit"))
	return reply(sess, b.String()), nil
}

func maskCode(code string) string {
	if len(code) <= 4 {
		return code
	}
	return strings.Repeat("*", len(code)-4) + code[len(code)-4:]
}

func (g *GiftCard) submit(ctx context.Context, req Request) (Result, error) {
	s := req.Session
	value, verr := strconv.ParseInt(s.Get(keyCardValue), 10, 64)
	payout, perr := strconv.ParseInt(s.Get(keyPayout), 10, 64)
	if verr != nil || perr != nil || payout <= 0 || s.Get(keyCardType) == "" {
		return toMenu(ctx, g.deps, req, "❌ Your session was incomplete. Please start again.")
	}

	sess, err := g.deps.Sessions.Reset(ctx, req.Session)
	if err != nil {
		return Result{}, err
	}
	log := logger.WithPhone(ctx, req.User.Phone)

	tx, err := g.deps.Ledger.Create(ctx, types.Transaction{
		UserID: req.User.ID,
		Phone:  req.User.Phone,
		Type:   types.TxTypeGiftCardSale,
		Amount: payout,
		Details: types.TransactionDetails{
			CardType:  s.Get(keyCardType),
			CardValue: value,
			CardCode:  s.Get(keyCardCode),
			Images:    splitImages(s.Get(keyImages)),
			Provider:  providerGiftCard,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create gift card transaction: %w", err)
	}
	bg := context.WithoutCancel(ctx)

	result, err := g.verify(ctx, giftcard.Submission{
		Reference: tx.Reference,
		CardType:  tx.Details.CardType,
		CardValue: value,
		CardCode:  tx.Details.CardCode,
		Images:    tx.Details.Images,
	})
	if err != nil {
		log.Warn().Err(err).Str("reference", tx.Reference).Msg("Gift card verification failed")
		g.deps.fail(bg, tx, ErrCodeVerification, err.Error(), false)
		return reply(sess, fmt.Sprintf("😔 We could not submit your card right now. Nothing was charged or credited.\n\nRef: %s\nPlease try again later. %s",
			tx.Reference, genericBack)), nil
	}

	if result.Status != giftcard.StatusCompleted {
		pending, err := g.deps.Ledger.Update(bg, tx.ID, ledger.Patch{
			Provider:          providerGiftCard,
			ProviderReference: result.Reference,
		})
		if err != nil {
			log.Error().Err(err).Str("reference", tx.Reference).Msg("Failed to record verifier reference")
			pending = tx
		}
		metrics.RecordTransaction(types.TxTypeGiftCardSale, types.TxStatusProcessing, payout)
		events.Emit(bg, g.deps.Publisher, events.TopicGiftCardSubmitted, events.EventTypeGiftCardSubmitted,
			ledger.EventSource, ledger.GiftCardPayload(pending))
		log.Info().Str("reference", tx.Reference).Msg("Gift card submitted for review")

		return reply(sess, fmt.Sprintf("⏳ *Card Under Review*\n\nYour $%d %s card has been submitted. You will receive %s once it is approved.\n\nRef: %s\n\nWe will message you here when review is complete.",
			value, s.Get(keyCardName), g.deps.money(payout), tx.Reference)), nil
	}

	balance, err := g.deps.Wallet.Credit(bg, req.User.ID, payout)
	if err != nil {
		g.deps.fail(bg, tx, ErrCodeCredit, err.Error(), false)
		return Result{Session: sess}, fmt.Errorf("failed to credit gift card payout: %w", err)
	}
	done, err := g.deps.Ledger.Update(bg, tx.ID, ledger.Patch{
		Status:            types.TxStatusCompleted,
		Provider:          providerGiftCard,
		ProviderReference: result.Reference,
	})
	if err != nil {
		log.Error().Err(err).Str("reference", tx.Reference).Msg("Failed to mark gift card completed")
		done = tx
		done.Status = types.TxStatusCompleted
	}
	if err := g.deps.Wallet.RecordEarning(bg, req.User.ID, payout); err != nil {
		log.Warn().Err(err).Msg("Failed to record earning")
	}
	metrics.RecordTransaction(types.TxTypeGiftCardSale, types.TxStatusCompleted, payout)
	events.Emit(bg, g.deps.Publisher, events.TopicTransactionCompleted, events.EventTypeTransactionCompleted,
		ledger.EventSource, ledger.TransactionPayload(done, false))

	return reply(sess, fmt.Sprintf("✅ *Card Approved!*\n\n%s has been credited to your wallet.\n\nRef: %s\nNew Balance: %s\n\nThank you for using %s! 🎉",
		g.deps.money(payout), tx.Reference, g.deps.money(balance), g.deps.Settings.BotName)), nil
}

func (g *GiftCard) verify(ctx context.Context, sub giftcard.Submission) (*giftcard.Result, error) {
	vctx, cancel := context.WithTimeout(ctx, g.deps.providerTimeout())
	defer cancel()

	vctx, span := telemetry.StartProviderSpan(vctx, providerGiftCard, "submit")
	start := time.Now()
	result, err := g.deps.GiftCards.Submit(vctx, sub)
	if err == nil && result == nil {
		err = fmt.Errorf("empty verification result")
	}
	telemetry.EndSpan(span, err)
	metrics.RecordProviderCall(providerGiftCard, "submit", err, time.Since(start))
	return result, err
}
