package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/product"
	"github.com/xenking/rental-ledger/internal/repository"
)

// catalog is the seed fixture: parties, their products and a few coupons.
type catalog struct {
	Parties  []party.Party     `json:"parties"`
	Products []product.Product `json:"products"`
	Coupons  []coupon.Rule     `json:"coupons"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to the seed catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key prefix; each party gets <prefix>-<party id> (or RENTAL_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or RENTAL_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("RENTAL_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or RENTAL_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("RENTAL_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

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

	db := repository.New(pool)
	return db.InTx(ctx, func(ctx context.Context) error {
		if err := seedParties(ctx, db, c.Parties, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed parties")
		}
		if err := seedProducts(ctx, db, c.Products); err != nil {
			return errors.Wrap(err, "seed products")
		}
		n, err := db.Coupons().Upsert(ctx, c.Coupons)
		if err != nil {
			return errors.Wrap(err, "seed coupons")
		}
		slog.Info("upserted coupons", slog.Int("count", n))
		return nil
	})
}

func seedParties(ctx context.Context, db *repository.DB, parties []party.Party, apiKey, pepper string) error {
	for _, p := range parties {
		if err := db.Parties().Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert party %s", p.ID)
		}

		key := apiKey + "-" + p.ID
		if err := db.APIKeys().Upsert(ctx, auth.APIKeyInfo{
			ID:      "seed-" + p.ID,
			KeyHash: auth.HashKey([]byte(pepper), key),
			Name:    "Seed key for " + p.Name,
			PartyID: p.ID,
			Role:    p.Role,
		}); err != nil {
			return errors.Wrapf(err, "upsert API key for %s", p.ID)
		}

		slog.Info("upserted party",
			slog.String("id", p.ID),
			slog.String("role", string(p.Role)),
			slog.String("api_key", key),
		)
	}
	return nil
}

func seedProducts(ctx context.Context, db *repository.DB, products []product.Product) error {
	for _, p := range products {
		if err := db.Products().Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}
