// Command catalog-ingest bulk-imports products from gzipped supplier feed
// files. Feeds routinely repeat SKUs within and across files; a bloom filter
// keeps the first occurrence and drops the rest without holding every SKU in
// memory. The small false-positive rate only skips an occasional row, and
// upserts make re-runs safe.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/strhma/ukm-catalog/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// productRow is one parsed feed line: sku,name,price,stock,weight_grams.
type productRow struct {
	SKU         string
	Name        string
	Price       decimal.Decimal
	Stock       int
	WeightGrams int
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, stock, status, weight_grams)
VALUES ($1, $2, $3, $4, 'active', $5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock,
	weight_grams = EXCLUDED.weight_grams,
	updated_at = now()
`

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz supplier feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz feeds found in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("ingesting feeds", slog.Int("files", len(files)))

	// The bloom filter and pool are shared across file workers; the mutex
	// covers the filter, which is not safe for concurrent mutation.
	var (
		mu   sync.Mutex
		seen = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(ingestFile(ctx, f, pool, &mu, seen))
	}
	return g.Wait()
}

func ingestFile(
	ctx context.Context,
	path string,
	pool *pgxpool.Pool,
	mu *sync.Mutex,
	seen *bloom.BloomFilter,
) func() error {
	return func() error {
		var total, imported, skipped uint64

		err := streamFeed(ctx, path, func(row productRow) error {
			total++
			if total%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("rows", total),
				)
			}

			mu.Lock()
			dup := seen.TestOrAddString(row.SKU)
			mu.Unlock()
			if dup {
				skipped++
				return nil
			}

			if _, err := pool.Exec(ctx, upsertProductSQL,
				row.SKU, row.Name, row.Price, row.Stock, row.WeightGrams,
			); err != nil {
				return errors.Wrapf(err, "upsert product %s", row.SKU)
			}
			imported++
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "ingest %s", path)
		}

		slog.Info("feed complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("rows", total),
			slog.Uint64("imported", imported),
			slog.Uint64("duplicates", skipped),
		)
		return nil
	}
}

// streamFeed opens a gzipped CSV feed and calls fn for each well-formed row.
// Malformed rows are logged and skipped so one bad line cannot abort a feed.
func streamFeed(ctx context.Context, path string, fn func(row productRow) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = 5
	r.ReuseRecord = true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			slog.Warn("skipping malformed row",
				slog.String("file", filepath.Base(path)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}

		row, err := parseRow(record)
		if err != nil {
			slog.Warn("skipping invalid row",
				slog.String("file", filepath.Base(path)),
				slog.String("sku", record[0]),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := fn(row); err != nil {
			return err
		}
	}
}

func parseRow(record []string) (productRow, error) {
	sku := record[0]
	if sku == "" {
		return productRow{}, errors.New("empty sku")
	}

	price, err := decimal.NewFromString(record[2])
	if err != nil || price.IsNegative() {
		return productRow{}, errors.Errorf("bad price %q", record[2])
	}

	stock, err := strconv.Atoi(record[3])
	if err != nil || stock < 0 {
		return productRow{}, errors.Errorf("bad stock %q", record[3])
	}

	weight, err := strconv.Atoi(record[4])
	if err != nil || weight <= 0 {
		return productRow{}, errors.Errorf("bad weight %q", record[4])
	}

	return productRow{
		SKU:         sku,
		Name:        record[1],
		Price:       price,
		Stock:       stock,
		WeightGrams: weight,
	}, nil
}
