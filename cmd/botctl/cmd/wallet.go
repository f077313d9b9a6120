package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/output"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet and payment commands",
	Long:  "Credit customer wallets, settle funding payments and look up customers.",
}

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Credit a customer's wallet",
	Long:  "Record a manual credit against a customer's wallet. Requires the admin role.",
	RunE:  runCredit,
}

var verifyPaymentCmd = &cobra.Command{
	Use:   "verify REFERENCE",
	Short: "Verify a wallet funding payment",
	Long:  "Ask the payment gateway whether a pending funding payment has been made and settle it if so.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifyPayment,
}

var confirmTransferCmd = &cobra.Command{
	Use:   "confirm REFERENCE",
	Short: "Confirm a received bank transfer",
	Long:  "Settle a pending bank-transfer funding once the money is in the account. Pass --amount to check the amount received.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfirmTransfer,
}

var userCmd = &cobra.Command{
	Use:   "user PHONE",
	Short: "Show a customer's wallet",
	Args:  cobra.ExactArgs(1),
	RunE:  runUser,
}

var (
	phoneFlag   string
	amountFlag  int64
	bankRefFlag string
)

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(creditCmd)
	walletCmd.AddCommand(verifyPaymentCmd)
	walletCmd.AddCommand(confirmTransferCmd)
	walletCmd.AddCommand(userCmd)

	creditCmd.Flags().StringVarP(&phoneFlag, "phone", "p", "", "customer phone number")
	creditCmd.Flags().Int64VarP(&amountFlag, "amount", "a", 0, "amount in naira")
	creditCmd.Flags().StringVarP(&reasonFlag, "reason", "r", "", "reason recorded on the transaction")

	confirmTransferCmd.Flags().Int64VarP(&amountFlag, "amount", "a", 0, "amount received in naira")
	confirmTransferCmd.Flags().StringVar(&bankRefFlag, "bank-ref", "", "bank transfer reference")
}

func runCredit(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	phone := phoneFlag
	if phone == "" {
		phone = prompt("Phone number")
	}

	amount := amountFlag
	if amount <= 0 {
		amount, err = strconv.ParseInt(prompt("Amount"), 10, 64)
		if err != nil || amount <= 0 {
			output.Error("Invalid amount")
			return nil
		}
	}

	tx, err := c.Credit(phone, amount, reasonFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(tx)
	}

	output.Success(fmt.Sprintf("Credited %s to %s", output.FormatAmount(amount, currency()), tx.Phone))
	fmt.Println()
	printTransaction(tx)
	return nil
}

func runVerifyPayment(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	output.Info("Checking with the payment gateway...")

	tx, err := c.VerifyPayment(args[0])
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(tx)
	}

	switch tx.Status {
	case "completed":
		output.Success("Payment settled")
	case "failed":
		output.Warning("Payment failed")
	default:
		output.Info("Payment status: " + tx.Status)
	}
	fmt.Println()
	printTransaction(tx)
	return nil
}

func runConfirmTransfer(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	tx, err := c.ConfirmTransfer(args[0], amountFlag, bankRefFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(tx)
	}

	output.Success(fmt.Sprintf("Transfer confirmed, %s credited to %s", output.FormatAmount(tx.Amount, currency()), tx.Phone))
	fmt.Println()
	printTransaction(tx)
	return nil
}

func runUser(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	user, err := c.GetUser(args[0])
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(user)
	}

	name := user.Name
	if name == "" {
		name = "-"
	}

	output.Header("Customer")
	fmt.Println()
	output.KeyValue([][]string{
		{"Phone", user.Phone},
		{"Name", name},
		{"Status", output.FormatStatus(user.Status)},
		{"Balance", output.Money(user.Balance, currency())},
		{"Transactions", strconv.FormatInt(user.TotalTransactions, 10)},
		{"Total spent", output.FormatAmount(user.TotalSpent, currency())},
		{"Total earned", output.FormatAmount(user.TotalEarned, currency())},
		{"Last active", user.LastActiveAt.Local().Format(time.RFC1123)},
	})
	return nil
}
