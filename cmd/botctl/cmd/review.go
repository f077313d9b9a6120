package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/client"
	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/output"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Gift card review commands",
	Long:  "List pending transactions and approve or reject gift card trades.",
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending transactions",
	Long:  "List transactions awaiting action. Gift card trades are shown by default.",
	RunE:  runPending,
}

var approveCmd = &cobra.Command{
	Use:   "approve TRANSACTION_ID",
	Short: "Approve a gift card trade",
	Long:  "Approve a gift card trade and credit the seller's wallet with the quoted payout.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject TRANSACTION_ID",
	Short: "Reject a gift card trade",
	Long:  "Reject a gift card trade. The seller is told the reason on WhatsApp.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

var (
	typeFlag   string
	notesFlag  string
	reasonFlag string
)

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(pendingCmd)
	reviewCmd.AddCommand(approveCmd)
	reviewCmd.AddCommand(rejectCmd)

	pendingCmd.Flags().StringVarP(&typeFlag, "type", "t", "giftcard_sale", "transaction type: giftcard_sale, wallet_funding")
	approveCmd.Flags().StringVarP(&notesFlag, "notes", "n", "", "review notes")
	rejectCmd.Flags().StringVarP(&reasonFlag, "reason", "r", "", "reason shown to the seller")
}

func runPending(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	txs, err := c.Pending(typeFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(txs)
	}

	if len(txs) == 0 {
		output.Info("Nothing pending")
		return nil
	}

	output.Header(fmt.Sprintf("Pending %s (%d)", strings.ReplaceAll(typeFlag, "_", " "), len(txs)))
	fmt.Println()
	output.Table([]string{"ID", "Reference", "Phone", "Item", "Amount", "Status", "Created"}, pendingRows(txs))

	return nil
}

func pendingRows(txs []client.Transaction) [][]string {
	rows := make([][]string, len(txs))
	for i, tx := range txs {
		item := tx.Details.Description
		if tx.Details.CardType != "" {
			item = fmt.Sprintf("%s $%d (%d images)", tx.Details.CardType, tx.Details.CardValue, len(tx.Details.Images))
		}
		rows[i] = []string{
			tx.ID,
			tx.Reference,
			tx.Phone,
			item,
			output.FormatAmount(tx.Amount, currency()),
			output.FormatStatus(tx.Status),
			tx.CreatedAt.Local().Format("2006-01-02 15:04"),
		}
	}
	return rows
}

func runApprove(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	tx, err := c.Approve(args[0], notesFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(tx)
	}

	output.Success("Gift card approved")
	fmt.Println()
	printTransaction(tx)
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	reason := reasonFlag
	if reason == "" {
		reason = prompt("Reason")
	}

	tx, err := c.Reject(args[0], reason)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(tx)
	}

	output.Success("Gift card rejected")
	fmt.Println()
	printTransaction(tx)
	return nil
}

func printTransaction(tx *client.Transaction) {
	pairs := [][]string{
		{"ID", tx.ID},
		{"Reference", tx.Reference},
		{"Type", tx.Type},
		{"Status", output.FormatStatus(tx.Status)},
		{"Amount", output.Money(tx.Amount, currency())},
	}
	if tx.Details.ReviewedBy != "" {
		pairs = append(pairs, []string{"Reviewed by", tx.Details.ReviewedBy})
	}
	if tx.Details.ReviewNotes != "" {
		pairs = append(pairs, []string{"Notes", tx.Details.ReviewNotes})
	}
	if tx.Payment.GatewayReference != "" {
		pairs = append(pairs, []string{"Gateway ref", tx.Payment.GatewayReference})
	}
	if tx.Error != nil {
		pairs = append(pairs, []string{"Error", tx.Error.Code + ": " + tx.Error.Message})
	}
	output.KeyValue(pairs)
}
