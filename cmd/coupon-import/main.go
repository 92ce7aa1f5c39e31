// Command coupon-import loads partner coupon feeds into the coupons table.
//
// Each feed is a gzip file with one code per line. A code is issued when at
// least --quorum feeds list it. Feeds are scanned twice: the first pass
// builds one bloom filter per feed, the second keeps codes that the other
// filters also report.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/repository"
)

const batchSize = 500

func main() {
	var (
		pattern     string
		databaseURL string
		quorum      int
		dryRun      bool
		capacity    uint
	)

	flag.StringVar(&pattern, "feeds", "data/coupons-*.gz", "glob matching the gzip coupon feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&quorum, "quorum", 2, "number of feeds a code must appear in")
	flag.UintVar(&capacity, "feed-size", 50_000_000, "expected number of codes per feed")
	flag.BoolVar(&dryRun, "dry-run", false, "scan feeds without writing to the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, quorum, capacity, dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, quorum int, capacity uint, dryRun bool) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no feeds match %q", pattern)
	}
	if len(files) > 64 {
		return errors.Errorf("at most 64 feeds are supported, got %d", len(files))
	}
	if quorum < 1 || quorum > len(files) {
		return errors.Errorf("quorum %d out of range for %d feeds", quorum, len(files))
	}

	slog.Info("scanning feeds", slog.Int("feeds", len(files)), slog.Int("quorum", quorum))

	codes, err := findCodes(ctx, files, quorum, capacity)
	if err != nil {
		return err
	}

	slog.Info("codes accepted", slog.Int("count", len(codes)))

	if dryRun || len(codes) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeRules(ctx, repository.NewCouponRepository(pool), codes)
}

// writeRules upserts a rule for every code in batches.
func writeRules(ctx context.Context, repo coupon.Repository, codes []string) error {
	rules := make([]coupon.Rule, 0, batchSize)
	for i, code := range codes {
		rules = append(rules, ruleFor(code))
		if len(rules) < batchSize && i+1 < len(codes) {
			continue
		}
		if err := repo.Upsert(ctx, rules); err != nil {
			return errors.Wrapf(err, "upsert batch ending at %d", i+1)
		}
		slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		rules = rules[:0]
	}
	return nil
}
