package flow

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

var (
	defaultRate = decimal.RequireFromString("3.5")
	maxPayout   = decimal.NewFromInt(math.MaxInt64)
)

// Payout is the naira amount paid for a card of value USD. A fixed rate for
// the exact value wins; otherwise value is multiplied by the product's
// default rate and floored.
func Payout(product types.GiftCardProduct, value int64) (int64, error) {
	if value <= 0 {
		return 0, fmt.Errorf("invalid card value %d", value)
	}
	if amount, ok := product.Rates[value]; ok {
		return amount, nil
	}

	rate := defaultRate
	if product.DefaultRate != "" {
		r, err := decimal.NewFromString(product.DefaultRate)
		if err != nil {
			return 0, fmt.Errorf("failed to parse default rate for %s: %w", product.Code, err)
		}
		rate = r
	}
	if !rate.IsPositive() {
		return 0, fmt.Errorf("invalid default rate %s for %s", rate, product.Code)
	}
	payout := decimal.NewFromInt(value).Mul(rate).Floor()
	if payout.GreaterThan(maxPayout) {
		return 0, fmt.Errorf("payout for %d at %s is out of range", value, rate)
	}
	return payout.IntPart(), nil
}
