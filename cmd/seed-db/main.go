// Command seed-db loads a development dataset: catalog products with
// variants, shipping options, a couple of coupons, and an admin API key.
// Re-running it is safe; rows are upserted by deterministic IDs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/storefront/internal/domain/auth"
	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/storage/postgres"
)

type variantJSON struct {
	UnitLabel string          `json:"unitLabel"`
	UnitValue string          `json:"unitValue"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

type productJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Variants    []variantJSON   `json:"variants"`
	Price       decimal.Decimal `json:"price"` // single-variant shorthand
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedShippingOptions(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping options")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

// seedID derives a stable UUID from a seed name, so re-runs update rows
// instead of duplicating them.
func seedID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("storefront-seed:"+name))
}

const upsertProductSQL = `INSERT INTO products (id, name, description, category, image_url, active)
	VALUES ($1, $2, $3, $4, $5, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description,
		category = EXCLUDED.category, image_url = EXCLUDED.image_url,
		active = TRUE, updated_at = now()`

const upsertVariantSQL = `INSERT INTO product_variants (id, product_id, unit_label, unit_value, price, stock, active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		unit_label = EXCLUDED.unit_label, unit_value = EXCLUDED.unit_value,
		price = EXCLUDED.price, stock = EXCLUDED.stock, active = TRUE`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		productID := seedID("product:" + p.Name)
		_, err := pool.Exec(ctx, upsertProductSQL,
			productID, p.Name, p.Description, p.Category, p.Image,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %q", p.Name)
		}

		variants := p.Variants
		if len(variants) == 0 {
			variants = []variantJSON{{UnitLabel: "each", Price: p.Price, Stock: 100}}
		}
		for _, v := range variants {
			variantID := seedID("variant:" + p.Name + ":" + v.UnitLabel + ":" + v.UnitValue)
			_, err := pool.Exec(ctx, upsertVariantSQL,
				variantID, productID, v.UnitLabel, v.UnitValue, v.Price, v.Stock,
			)
			if err != nil {
				return errors.Wrapf(err, "upsert variant %q of %q", v.UnitLabel, p.Name)
			}
		}

		slog.Info("upserted product", slog.String("name", p.Name), slog.Int("variants", len(variants)))
	}
	return nil
}

const upsertShippingSQL = `INSERT INTO shipping_options
	(id, name, description, price, currency, estimated_days, active, sort_order)
	VALUES ($1, $2, $3, $4, 'USD', $5, TRUE, $6)
	ON CONFLICT (id) DO UPDATE SET
		description = EXCLUDED.description, price = EXCLUDED.price,
		estimated_days = EXCLUDED.estimated_days, active = TRUE,
		sort_order = EXCLUDED.sort_order`

func seedShippingOptions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding shipping options")

	options := []struct {
		name, description, days string
		price                   string
		sortOrder               int
	}{
		{"Standard", "Delivered in 5-7 business days", "5-7", "5.99", 1},
		{"Express", "Delivered in 1-2 business days", "1-2", "14.99", 2},
		{"Pickup", "Collect from the store, free", "0", "0.00", 3},
	}
	for _, o := range options {
		price, err := decimal.NewFromString(o.price)
		if err != nil {
			return errors.Wrapf(err, "parse price for %q", o.name)
		}
		_, err = pool.Exec(ctx, upsertShippingSQL,
			seedID("shipping:"+o.name), o.name, o.description, price, o.days, o.sortOrder,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert shipping option %q", o.name)
		}
		slog.Info("upserted shipping option", slog.String("name", o.name))
	}
	return nil
}

const upsertCouponSQL = `INSERT INTO coupons
	(id, code, description, discount_type, discount_value,
	 min_order_amount, max_discount_amount, usage_limit, per_user_limit, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		description = EXCLUDED.description, discount_type = EXCLUDED.discount_type,
		discount_value = EXCLUDED.discount_value,
		min_order_amount = EXCLUDED.min_order_amount,
		max_discount_amount = EXCLUDED.max_discount_amount,
		usage_limit = EXCLUDED.usage_limit, per_user_limit = EXCLUDED.per_user_limit,
		active = TRUE, updated_at = now()`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	coupons := []struct {
		code, description string
		discountType      coupon.DiscountType
		value             string
		minOrder          string
		maxDiscount       string
		usageLimit        int
		perUserLimit      int
	}{
		{
			code: "SAVE20", description: "20% off, capped at $30",
			discountType: coupon.DiscountPercentage, value: "20",
			minOrder: "0", maxDiscount: "30.00",
		},
		{
			code: "WELCOME10", description: "$10 off your first order over $50",
			discountType: coupon.DiscountFixed, value: "10.00",
			minOrder: "50.00", maxDiscount: "0", perUserLimit: 1,
		},
		{
			code: "FLASH50", description: "50% off, first 100 orders only",
			discountType: coupon.DiscountPercentage, value: "50",
			minOrder: "0", maxDiscount: "0", usageLimit: 100,
		},
	}
	for _, c := range coupons {
		value, err := decimal.NewFromString(c.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for %q", c.code)
		}
		minOrder, err := decimal.NewFromString(c.minOrder)
		if err != nil {
			return errors.Wrapf(err, "parse min order for %q", c.code)
		}
		maxDiscount, err := decimal.NewFromString(c.maxDiscount)
		if err != nil {
			return errors.Wrapf(err, "parse max discount for %q", c.code)
		}
		_, err = pool.Exec(ctx, upsertCouponSQL,
			seedID("coupon:"+c.code), coupon.NormalizeCode(c.code), c.description,
			string(c.discountType), value, minOrder, maxDiscount,
			c.usageLimit, c.perUserLimit,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %q", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}
	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, active)
	VALUES ($1, $2, $3, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		key_hash = EXCLUDED.key_hash, name = EXCLUDED.name, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	keyHash := auth.HashKey(apiKey, pepper)
	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		seedID("apikey:default"), keyHash, "Default admin key",
	)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("name", "Default admin key"))
	return nil
}
