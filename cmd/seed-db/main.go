// Command seed-db creates the schema and loads the demo catalog, coupons and
// customer.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/db"
	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/repository"
)

var seedCoupons = []coupon.Rule{
	{
		Code:         "CHEESE50",
		DiscountType: coupon.DiscountFixed,
		Value:        decimal.NewFromInt(50),
		Description:  "50.00 off your cheese order",
	},
	{
		Code:         "RACLETTE10",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		MaxDiscount:  decimal.NewFromInt(200),
		Description:  "10% off, up to 200.00",
	},
	{
		Code:         "BIGWHEEL",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(20),
		MinCartTotal: decimal.NewFromInt(2000),
		Description:  "20% off orders of 2000.00 or more",
	},
	{
		Code:         "FIRSTBITE",
		DiscountType: coupon.DiscountFixed,
		Value:        decimal.NewFromInt(100),
		MaxUses:      100,
		Description:  "100.00 off for the first hundred orders",
	},
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		customerToken string
		tokenPepper   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (embedded catalog when empty)")
	flag.StringVar(&customerToken, "customer-token", "", "bearer token for the demo customer (or KART_SEED_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or KART_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if customerToken == "" {
		customerToken = os.Getenv("KART_SEED_TOKEN")
	}
	if customerToken == "" {
		slog.Error("customer token is required: set --customer-token or KART_SEED_TOKEN")
		os.Exit(1)
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("KART_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, customerToken, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, token, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	slog.Info("upserting coupons", slog.Int("count", len(seedCoupons)))
	if err := repository.NewCouponRepository(pool).Upsert(ctx, seedCoupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedCustomer(ctx, pool, token, pepper); err != nil {
		return errors.Wrap(err, "seed customer")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	data := db.Products
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))

		var err error
		data, err = os.ReadFile(productsFile)
		if err != nil {
			return errors.Wrap(err, "read products file")
		}
	}

	products, err := decodeCatalog(data)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	if err := repository.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return err
	}
	for _, p := range products {
		slog.Info("upserted product", slog.String("id", p.ID), slog.Int("stock", p.Stock))
	}
	return nil
}

func seedCustomer(ctx context.Context, pool *pgxpool.Pool, token, pepper string) error {
	slog.Info("seeding demo customer")

	c := auth.Customer{
		ID:        "demo",
		Name:      "Demo Customer",
		Email:     "demo@cheese.example",
		TokenHash: auth.HashToken([]byte(pepper), token),
	}
	addresses := []auth.Address{
		{ID: "home", CustomerID: c.ID, Label: "Home", Street: "12 Rue du Fromage", City: "Lyon", PostalCode: "69001", Country: "FR"},
		{ID: "office", CustomerID: c.ID, Label: "Office", Street: "3 Dairy Lane", City: "Bristol", PostalCode: "BS1 4DJ", Country: "GB"},
	}

	if err := repository.NewCustomerRepository(pool).UpsertCustomer(ctx, c, addresses); err != nil {
		return err
	}

	slog.Info("upserted customer", slog.String("id", c.ID), slog.Int("addresses", len(addresses)))
	return nil
}
