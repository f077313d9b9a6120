package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const historyLimit = 5

// Menu handles input while the session sits at the main menu.
type Menu struct {
	deps     *Deps
	airtime  Flow
	data     Flow
	giftcard Flow
	wallet   Flow
}

func NewMenu(d *Deps, airtime, data, giftcard, wallet Flow) *Menu {
	return &Menu{deps: d, airtime: airtime, data: data, giftcard: giftcard, wallet: wallet}
}

func (m *Menu) Handle(ctx context.Context, req Request) (Result, error) {
	in := strings.ToLower(strings.TrimSpace(req.Input))

	switch in {
	case "1", "airtime":
		return m.airtime.Start(ctx, req)
	case "2", "data":
		return m.data.Start(ctx, req)
	case "3", "bills":
		return reply(req.Session, "🚧 *Pay Bills* is coming soon!\n\n"+genericBack), nil
	case "4", "giftcard", "gift", "sell":
		return m.giftcard.Start(ctx, req)
	case "5", "wallet", "balance":
		return m.wallet.Start(ctx, req)
	case "6", "history":
		txs, err := m.deps.Ledger.FindByUser(ctx, req.User.ID, historyLimit)
		if err != nil {
			return Result{}, fmt.Errorf("failed to load history: %w", err)
		}
		return reply(req.Session, historyText(m.deps, txs)), nil
	case "7", "profile":
		return reply(req.Session, profileText(m.deps, req.User)), nil
	case "0", "help":
		return reply(req.Session, helpText(m.deps)), nil
	case "", "hi", "hello", "menu", "start":
		return m.Show(req), nil
	default:
		if req.Fresh {
			return m.Show(req), nil
		}
		return reply(req.Session, "❌ Invalid option. Please reply with a number from the menu.\n\n"+mainMenuText(m.deps, req.User, false)), nil
	}
}

// Show renders the main menu, greeting callers on a new session.
func (m *Menu) Show(req Request) Result {
	return reply(req.Session, mainMenuText(m.deps, req.User, req.Fresh))
}

// Routes builds the main menu and the flow handlers keyed by flow name.
func Routes(d *Deps) (*Menu, map[string]Handler) {
	airtime, data, giftcard, wallet := NewAirtime(d), NewData(d), NewGiftCard(d), NewWallet(d)
	menu := NewMenu(d, airtime, data, giftcard, wallet)
	return menu, map[string]Handler{
		types.FlowAirtime:       airtime,
		types.FlowData:          data,
		types.FlowGiftCardSale:  giftcard,
		types.FlowWalletFunding: wallet,
	}
}
