package repository

import (
	"fmt"
	"strings"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

func DefaultGiftCardProducts() []types.GiftCardProduct {
	product := func(order int, code, name string, r100, r200, r500 int64) types.GiftCardProduct {
		return types.GiftCardProduct{
			Code:          code,
			Name:          name,
			Rates:         map[int64]int64{100: r100, 200: r200, 500: r500},
			DefaultRate:   "3.5",
			RequiresImage: true,
			MinImages:     1,
			MaxImages:     5,
			Enabled:       true,
			DisplayOrder:  order,
		}
	}

	return []types.GiftCardProduct{
		product(1, "itunes", "iTunes/Apple", 35000, 70000, 175000),
		product(2, "amazon", "Amazon", 37000, 74000, 185000),
		product(3, "googleplay", "Google Play", 34000, 68000, 170000),
		product(4, "steam", "Steam", 36000, 72000, 180000),
	}
}

func DefaultDataPlans() []types.DataPlan {
	type row struct {
		size, validity string
		price          int64
	}

	table := []struct {
		network string
		rows    []row
	}{
		{"mtn", []row{
			{"500MB", "1 day", 150}, {"1GB", "1 day", 300}, {"2GB", "7 days", 500},
			{"3GB", "30 days", 1200}, {"5GB", "30 days", 1500}, {"10GB", "30 days", 2500},
		}},
		{"glo", []row{
			{"1GB", "5 days", 350}, {"2GB", "7 days", 500}, {"3.5GB", "14 days", 1000},
			{"5.8GB", "30 days", 1500}, {"10GB", "30 days", 2500},
		}},
		{"airtel", []row{
			{"750MB", "14 days", 500}, {"1.5GB", "30 days", 1000}, {"3GB", "30 days", 1500},
			{"6GB", "30 days", 2000}, {"10GB", "30 days", 2500},
		}},
		{"9mobile", []row{
			{"1GB", "1 day", 300}, {"1.5GB", "7 days", 1000}, {"4.5GB", "30 days", 2000},
			{"11GB", "30 days", 4000},
		}},
	}

	var plans []types.DataPlan
	for _, n := range table {
		for i, r := range n.rows {
			code := fmt.Sprintf("%s-%s-%s", n.network, strings.ToLower(r.size), strings.ReplaceAll(r.validity, " ", ""))
			plans = append(plans, types.DataPlan{
				Code:         code,
				Network:      n.network,
				Name:         r.size + " - " + r.validity,
				DataSize:     r.size,
				Validity:     r.validity,
				Price:        r.price,
				ProviderCode: code,
				Enabled:      true,
				DisplayOrder: i + 1,
			})
		}
	}
	return plans
}
