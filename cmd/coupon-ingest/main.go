// Command coupon-ingest bulk-imports promo codes from gzipped CSV exports.
// Files are parsed concurrently; codes already seen in this run are dropped
// through a bloom filter, and surviving rows are inserted in batches with
// existing codes left untouched.
//
// Expected CSV columns:
//
//	code,description,discount_type,discount_value,min_order_amount,
//	max_discount_amount,usage_limit,per_user_limit,expires_at
//
// expires_at is RFC3339 or empty. A header row is detected and skipped.
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
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 1000
	progressEvery = 100_000
)

// row is one parsed promo code ready for insertion.
type row struct {
	code              string
	description       string
	discountType      string
	discountValue     decimal.Decimal
	minOrderAmount    decimal.Decimal
	maxDiscountAmount decimal.Decimal
	usageLimit        int
	perUserLimit      int
	expiresAt         *time.Time
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz promo exports")
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
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files found in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting promo exports", slog.Int("files", len(files)))

	rows := make(chan row, batchSize)

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(parseFile(ctx, f, rows))
	}

	done := make(chan error, 1)
	go func() {
		done <- writeRows(ctx, pool, rows)
	}()

	parseErr := g.Wait()
	close(rows)
	writeErr := <-done

	if parseErr != nil {
		return errors.Wrap(parseErr, "parse promo exports")
	}
	return writeErr
}

// parseFile streams one gzipped CSV export and sends parsed rows downstream.
func parseFile(ctx context.Context, path string, out chan<- row) func() error {
	return func() error {
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
		r.FieldsPerRecord = -1

		var count uint64
		for {
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}

			parsed, err := parseRecord(record)
			if err != nil {
				slog.Warn("skipping malformed row",
					slog.String("file", filepath.Base(path)),
					slog.String("error", err.Error()),
				)
				continue
			}
			if parsed == nil { // header
				continue
			}

			select {
			case out <- *parsed:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("rows", count),
				)
			}
		}

		slog.Info("parse complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("rows", count),
		)
		return nil
	}
}

// parseRecord converts one CSV record. It returns (nil, nil) for the header.
func parseRecord(record []string) (*row, error) {
	if len(record) < 4 {
		return nil, errors.Errorf("expected at least 4 columns, got %d", len(record))
	}
	if strings.EqualFold(record[0], "code") {
		return nil, nil
	}

	code := coupon.NormalizeCode(record[0])
	if code == "" {
		return nil, errors.New("empty code")
	}

	dt := record[2]
	if dt != string(coupon.DiscountPercentage) && dt != string(coupon.DiscountFixed) {
		return nil, errors.Errorf("unknown discount type %q", dt)
	}

	value, err := decimal.NewFromString(record[3])
	if err != nil {
		return nil, errors.Wrap(err, "parse discount_value")
	}

	r := row{
		code:              code,
		description:       record[1],
		discountType:      dt,
		discountValue:     value,
		minOrderAmount:    decimal.Zero,
		maxDiscountAmount: decimal.Zero,
	}

	if v := field(record, 4); v != "" {
		if r.minOrderAmount, err = decimal.NewFromString(v); err != nil {
			return nil, errors.Wrap(err, "parse min_order_amount")
		}
	}
	if v := field(record, 5); v != "" {
		if r.maxDiscountAmount, err = decimal.NewFromString(v); err != nil {
			return nil, errors.Wrap(err, "parse max_discount_amount")
		}
	}
	if v := field(record, 6); v != "" {
		if r.usageLimit, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrap(err, "parse usage_limit")
		}
	}
	if v := field(record, 7); v != "" {
		if r.perUserLimit, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrap(err, "parse per_user_limit")
		}
	}
	if v := field(record, 8); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.Wrap(err, "parse expires_at")
		}
		r.expiresAt = &t
	}

	return &r, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

const insertCouponSQL = `INSERT INTO coupons
	(id, code, description, discount_type, discount_value,
	 min_order_amount, max_discount_amount, usage_limit, per_user_limit,
	 expires_at, active)
	VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	ON CONFLICT ((UPPER(code))) DO NOTHING`

// writeRows drains the channel, dropping duplicate codes through a bloom
// filter and flushing batches to the database. The filter can only cause a
// code to be skipped, and the insert ignores conflicts, so a false positive
// or a re-run never corrupts existing rows.
func writeRows(ctx context.Context, pool *pgxpool.Pool, rows <-chan row) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	batch := &pgx.Batch{}
	var written, skipped uint64

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "send batch")
		}
		batch = &pgx.Batch{}
		return nil
	}

	for r := range rows {
		if seen.TestString(r.code) {
			skipped++
			continue
		}
		seen.AddString(r.code)

		batch.Queue(insertCouponSQL,
			r.code, r.description, r.discountType, r.discountValue,
			r.minOrderAmount, r.maxDiscountAmount, r.usageLimit, r.perUserLimit,
			r.expiresAt,
		)
		written++

		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
			if written%progressEvery < batchSize {
				slog.Info("write progress",
					slog.Uint64("written", written),
					slog.Uint64("skipped", skipped),
				)
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("write complete",
		slog.Uint64("written", written),
		slog.Uint64("skipped", skipped),
	)
	return nil
}
