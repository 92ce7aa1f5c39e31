package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cheese-kart/internal/domain/coupon"
)

const (
	filterFPR      = 0.001
	progressEvery  = 5_000_000
	minCodeLen     = 6
	maxCodeLen     = 12
)

// findCodes returns the normalized codes listed in at least quorum feeds,
// sorted. Filters are sized for capacity codes per feed.
func findCodes(ctx context.Context, files []string, quorum int, capacity uint) ([]string, error) {
	filters, err := buildFilters(ctx, files, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "build filters")
	}

	masks := make([]map[string]uint64, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			m, err := candidates(gctx, i, path, filters, quorum)
			if err != nil {
				return errors.Wrapf(err, "scan feed %s", path)
			}
			masks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return quorumCodes(masks, quorum), nil
}

func buildFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(capacity, filterFPR)
			n, err := scanFeed(ctx, path, func(code string) { f.AddString(code) })
			if err != nil {
				return errors.Wrapf(err, "filter feed %s", path)
			}
			slog.Info("feed indexed", slog.String("feed", path), slog.Uint64("codes", n))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// candidates marks codes in feed idx that enough other filters may contain.
// The mask of each code has bit idx set.
func candidates(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, quorum int) (map[string]uint64, error) {
	found := make(map[string]uint64)
	bit := uint64(1) << uint(idx)
	_, err := scanFeed(ctx, path, func(code string) {
		hits := 1
		for j, f := range filters {
			if j != idx && f.TestString(code) {
				hits++
			}
		}
		if hits >= quorum {
			found[code] |= bit
		}
	})
	return found, err
}

// quorumCodes merges per-feed masks and keeps codes seen in at least quorum
// feeds. Bloom false positives are dropped here since each mask bit comes
// from an exact read of that feed.
func quorumCodes(masks []map[string]uint64, quorum int) []string {
	merged := make(map[string]uint64)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}
	var codes []string
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= quorum {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// scanFeed calls fn with every well-formed normalized code in a gzip feed.
func scanFeed(ctx context.Context, path string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var n uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		code := coupon.NormalizeCode(scanner.Text())
		if !wellFormed(code) {
			continue
		}
		fn(code)
		n++
		if n%progressEvery == 0 {
			slog.Info("scan progress", slog.String("feed", path), slog.Uint64("codes", n))
		}
	}
	if err := scanner.Err(); err != nil {
		return n, errors.Wrap(err, "scan")
	}
	return n, nil
}

func wellFormed(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
