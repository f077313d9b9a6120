package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "₦0"},
		{999, "₦999"},
		{1000, "₦1,000"},
		{35000, "₦35,000"},
		{1234567, "₦1,234,567"},
		{-2500, "-₦2,500"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatAmount(tt.amount, "₦"); got != tt.want {
				t.Errorf("FormatAmount(%d) = %q, want %q", tt.amount, got, tt.want)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	orig := Out
	Out = &buf
	t.Cleanup(func() { Out = orig })

	if err := JSON(map[string]int{"balance": 5000}); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"balance": 5000`) {
		t.Errorf("JSON() output = %q", buf.String())
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	orig := Out
	Out = &buf
	t.Cleanup(func() { Out = orig })

	Table([]string{"ID", "Status"}, [][]string{{"tx-1", "pending"}})
	out := buf.String()
	if !strings.Contains(out, "tx-1") || !strings.Contains(out, "STATUS") {
		t.Errorf("Table() output = %q", out)
	}
}
