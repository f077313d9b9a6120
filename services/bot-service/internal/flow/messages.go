package flow

import (
	"fmt"
	"strings"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const genericBack = "Type *menu* to go back."

func money(symbol string, n int64) string {
	return types.FormatAmount(symbol, n)
}

func (d *Deps) money(n int64) string {
	return money(d.Settings.CurrencySymbol, n)
}

func mainMenuText(d *Deps, user types.User, greet bool) string {
	var b strings.Builder
	if greet {
		fmt.Fprintf(&b, "👋 Welcome to *%s*!\n", d.Settings.BotName)
		if user.Name != "" {
			fmt.Fprintf(&b, "Hello %s!\n", user.Name)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "💰 *Wallet Balance:* %s\n\n", d.money(user.Balance))
	b.WriteString("📋 *Main Menu:*\n\n")
	b.WriteString("1️⃣ Buy Airtime\n")
	b.WriteString("2️⃣ Buy Data\n")
	b.WriteString("3️⃣ Pay Bills\n")
	b.WriteString("4️⃣ Sell Gift Card\n")
	b.WriteString("5️⃣ Wallet\n")
	b.WriteString("6️⃣ Transaction History\n")
	b.WriteString("7️⃣ Profile\n")
	b.WriteString("0️⃣ Help\n\n")
	b.WriteString("Reply with a number (1-7) or type *help* for assistance.")
	return b.String()
}

func networkMenuText(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nSelect Network:\n\n", title)
	for i, n := range networks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, n.Name)
	}
	b.WriteString("0. Back to Main Menu\n\nReply with a number (1-4).")
	return b.String()
}

func confirmPrompt(action string) string {
	return fmt.Sprintf("Reply:\n1️⃣ %s\n2️⃣ Cancel", action)
}

const confirmRetry = "❌ Please reply with 1 to confirm or 2 to cancel."

func statusIcon(status string) string {
	switch status {
	case types.TxStatusCompleted:
		return "✅"
	case types.TxStatusFailed, types.TxStatusCancelled:
		return "❌"
	default:
		return "⏳"
	}
}

func historyText(d *Deps, txs []types.Transaction) string {
	if len(txs) == 0 {
		return "📋 *Transaction History*\n\nNo transactions yet.\n\n" + genericBack
	}

	var b strings.Builder
	b.WriteString("📋 *Recent Transactions*\n\n")
	for i, tx := range txs {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, statusIcon(tx.Status), strings.ToUpper(strings.ReplaceAll(tx.Type, "_", " ")))
		fmt.Fprintf(&b, "   Amount: %s\n", d.money(tx.Amount))
		fmt.Fprintf(&b, "   Ref: %s\n", tx.Reference)
		fmt.Fprintf(&b, "   Date: %s\n\n", tx.CreatedAt.Format("02 Jan 2006"))
	}
	b.WriteString(genericBack)
	return b.String()
}

func profileText(d *Deps, u types.User) string {
	name := u.Name
	if name == "" {
		name = "Not set"
	}
	var b strings.Builder
	b.WriteString("👤 *Your Profile*\n\n")
	fmt.Fprintf(&b, "📱 Phone: %s\n", u.Phone)
	fmt.Fprintf(&b, "👤 Name: %s\n", name)
	fmt.Fprintf(&b, "💰 Wallet: %s\n", d.money(u.Balance))
	fmt.Fprintf(&b, "📊 Total Transactions: %d\n", u.TotalTransactions)
	fmt.Fprintf(&b, "💸 Total Spent: %s\n", d.money(u.TotalSpent))
	fmt.Fprintf(&b, "💵 Total Earned: %s\n", d.money(u.TotalEarned))
	fmt.Fprintf(&b, "🎯 Status: %s\n", u.Status)
	fmt.Fprintf(&b, "📅 Member Since: %s\n\n", u.CreatedAt.Format("02 Jan 2006"))
	b.WriteString(genericBack)
	return b.String()
}

func helpText(d *Deps) string {
	var b strings.Builder
	b.WriteString("❓ *Help & Support*\n\n")
	b.WriteString("*How to use this bot:*\n")
	b.WriteString("- Reply with numbers from the menu\n")
	b.WriteString("- Type *menu* anytime to return to the main menu\n")
	b.WriteString("- Type *cancel* to stop any operation\n\n")
	b.WriteString("*Available Services:*\n")
	b.WriteString("✅ Buy Airtime\n✅ Buy Data Bundles\n✅ Sell Gift Cards\n✅ Wallet Funding\n\n")
	if d.Settings.SupportContact != "" {
		fmt.Fprintf(&b, "📞 Support: %s\n\n", d.Settings.SupportContact)
	}
	b.WriteString(genericBack)
	return b.String()
}

func insufficientText(d *Deps, balance, required int64) string {
	return fmt.Sprintf("❌ Insufficient balance!\n\nYour balance: %s\nRequired: %s\n\nPlease fund your wallet first.\n%s",
		d.money(balance), d.money(required), genericBack)
}
