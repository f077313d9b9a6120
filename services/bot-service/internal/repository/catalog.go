package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type rateRow struct {
	Value int64 `json:"value"`
	Rate  int64 `json:"rate"`
}

type CatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GiftCardProducts(ctx context.Context) ([]types.GiftCardProduct, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, name, rates, default_rate::text, requires_image, requires_code,
		       min_images, max_images, enabled, display_order
		FROM giftcard_products
		WHERE enabled
		ORDER BY display_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get gift card products: %w", err)
	}
	defer rows.Close()

	var products []types.GiftCardProduct
	for rows.Next() {
		var (
			p        types.GiftCardProduct
			rawRates []byte
		)
		if err := rows.Scan(
			&p.Code, &p.Name, &rawRates, &p.DefaultRate, &p.RequiresImage, &p.RequiresCode,
			&p.MinImages, &p.MaxImages, &p.Enabled, &p.DisplayOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan gift card product: %w", err)
		}

		var rates []rateRow
		if err := json.Unmarshal(rawRates, &rates); err != nil {
			return nil, fmt.Errorf("failed to decode rates for %s: %w", p.Code, err)
		}
		p.Rates = make(map[int64]int64, len(rates))
		for _, rr := range rates {
			p.Rates[rr.Value] = rr.Rate
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *CatalogRepository) DataPlans(ctx context.Context, network string) ([]types.DataPlan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, network, name, data_size, validity, price, provider_code, enabled, display_order
		FROM data_plans
		WHERE network = $1 AND enabled
		ORDER BY display_order, price
	`, network)
	if err != nil {
		return nil, fmt.Errorf("failed to get data plans: %w", err)
	}
	defer rows.Close()

	var plans []types.DataPlan
	for rows.Next() {
		var p types.DataPlan
		if err := rows.Scan(
			&p.Code, &p.Network, &p.Name, &p.DataSize, &p.Validity,
			&p.Price, &p.ProviderCode, &p.Enabled, &p.DisplayOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan data plan: %w", err)
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}

// Seed inserts the default catalog, leaving existing rows untouched.
func (r *CatalogRepository) Seed(ctx context.Context) error {
	batch := &pgx.Batch{}

	for _, p := range DefaultGiftCardProducts() {
		rates := make([]rateRow, 0, len(p.Rates))
		for v, rate := range p.Rates {
			rates = append(rates, rateRow{Value: v, Rate: rate})
		}
		raw, err := json.Marshal(rates)
		if err != nil {
			return fmt.Errorf("failed to encode rates: %w", err)
		}
		batch.Queue(`
			INSERT INTO giftcard_products (code, name, rates, default_rate, requires_image, requires_code,
			                               min_images, max_images, enabled, display_order)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (code) DO NOTHING
		`, p.Code, p.Name, raw, p.DefaultRate, p.RequiresImage, p.RequiresCode,
			p.MinImages, p.MaxImages, p.Enabled, p.DisplayOrder)
	}

	for _, p := range DefaultDataPlans() {
		batch.Queue(`
			INSERT INTO data_plans (code, network, name, data_size, validity, price, provider_code, enabled, display_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (code) DO NOTHING
		`, p.Code, p.Network, p.Name, p.DataSize, p.Validity, p.Price, p.ProviderCode, p.Enabled, p.DisplayOrder)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	return nil
}
