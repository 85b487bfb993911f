// Command seed-db loads the catalog seed file and provisions an admin
// session so the API is usable immediately after a fresh deploy.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/strhma/ukm-catalog/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status"`
	WeightGrams int             `json:"weightGrams"`
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, stock, status, weight_grams)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock,
	status = EXCLUDED.status,
	weight_grams = EXCLUDED.weight_grams,
	updated_at = now()
`

const upsertSessionSQL = `
INSERT INTO sessions (id, token_hash, user_id, is_admin, expires_at)
VALUES ($1, $2, $3, true, $4)
ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
`

func main() {
	var (
		databaseURL  string
		productsFile string
		adminToken   string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminToken, "admin-token", "", "admin session token to seed (or UKM_SEED_ADMIN_TOKEN env)")
	flag.StringVar(&pepper, "session-pepper", "", "HMAC pepper for session token hashing (or UKM_SESSION_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminToken == "" {
		adminToken = os.Getenv("UKM_SEED_ADMIN_TOKEN")
	}
	if adminToken == "" {
		slog.Error("admin token is required: set --admin-token or UKM_SEED_ADMIN_TOKEN")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("UKM_SESSION_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminToken, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminToken, pepper string) error {
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

	if err := seedAdminSession(ctx, pool, adminToken, pepper); err != nil {
		return errors.Wrap(err, "seed admin session")
	}

	return nil
}

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
		status := p.Status
		if status == "" {
			status = "active"
		}
		weight := p.WeightGrams
		if weight <= 0 {
			weight = 1000
		}
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.Stock, status, weight,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAdminSession(ctx context.Context, pool *pgxpool.Pool, token, pepper string) error {
	slog.Info("seeding admin session")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	tokenHash := hex.EncodeToString(mac.Sum(nil))

	expiresAt := time.Now().Add(365 * 24 * time.Hour)
	if _, err := pool.Exec(ctx, upsertSessionSQL,
		uuid.New().String(), tokenHash, "admin", expiresAt,
	); err != nil {
		return errors.Wrap(err, "upsert admin session")
	}

	slog.Info("seeded admin session", slog.Time("expires_at", expiresAt))

	return nil
}
