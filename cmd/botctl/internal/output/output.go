package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	MoneyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))
)

// Out receives everything except errors. Tests swap it for a buffer.
var Out io.Writer = os.Stdout

func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, string(data))
	return nil
}

func Table(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(Out)
	table.SetHeader(headers)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
	table.AppendBulk(rows)
	table.Render()
}

func KeyValue(pairs [][]string) {
	maxKeyLen := 0
	for _, pair := range pairs {
		if len(pair[0]) > maxKeyLen {
			maxKeyLen = len(pair[0])
		}
	}

	for _, pair := range pairs {
		key := MutedStyle.Render(fmt.Sprintf("%-*s", maxKeyLen, pair[0]))
		value := ValueStyle.Render(pair[1])
		fmt.Fprintf(Out, "%s  %s\n", key, value)
	}
}

func Success(msg string) {
	fmt.Fprintln(Out, SuccessStyle.Render("✓ ")+msg)
}

func Error(msg string) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ ")+msg)
}

func Warning(msg string) {
	fmt.Fprintln(Out, WarningStyle.Render("⚠ ")+msg)
}

func Info(msg string) {
	fmt.Fprintln(Out, MutedStyle.Render(msg))
}

func Header(msg string) {
	fmt.Fprintln(Out, HeaderStyle.Render(msg))
}

func Money(amount int64, symbol string) string {
	return MoneyStyle.Render(FormatAmount(amount, symbol))
}

// FormatAmount renders whole naira with thousands separators, e.g. ₦12,500.
func FormatAmount(amount int64, symbol string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	grouped := make([]byte, 0, len(digits)+len(digits)/3)
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, digits[i])
	}
	return sign + symbol + string(grouped)
}

func FormatStatus(status string) string {
	switch status {
	case "completed", "success", "active":
		return SuccessStyle.Render(status)
	case "pending", "processing":
		return WarningStyle.Render(status)
	case "failed", "cancelled", "rejected", "blocked":
		return ErrorStyle.Render(status)
	default:
		return status
	}
}
