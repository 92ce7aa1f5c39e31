package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cheese-kart/internal/domain/coupon"
)

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFindCodes(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFeed(t, dir, "a.gz", "FONDUE123", "ONLYINA1", "wheel9000", "bad", "TASTE-77"),
		writeFeed(t, dir, "b.gz", "FONDUE123", "WHEEL9000", "ONLYINB1"),
		writeFeed(t, dir, "c.gz", " fondue123 ", "ONLYINC1", "TASTE777"),
	}

	codes, err := findCodes(context.Background(), files, 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"FONDUE123", "WHEEL9000"}, codes)

	codes, err = findCodes(context.Background(), files, 3, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"FONDUE123"}, codes)
}

func TestFindCodes_MissingFeed(t *testing.T) {
	_, err := findCodes(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")}, 1, 1000)
	require.Error(t, err)
}

func TestQuorumCodes(t *testing.T) {
	masks := []map[string]uint64{
		{"AAAAAA": 1, "BBBBBB": 1},
		{"AAAAAA": 2, "CCCCCC": 2},
		{"BBBBBB": 4},
	}
	assert.Equal(t, []string{"AAAAAA", "BBBBBB"}, quorumCodes(masks, 2))
	assert.Equal(t, []string{"AAAAAA", "BBBBBB", "CCCCCC"}, quorumCodes(masks, 1))
	assert.Empty(t, quorumCodes(masks, 3))
}

func TestWellFormed(t *testing.T) {
	assert.True(t, wellFormed("CHEESE50"))
	assert.False(t, wellFormed("SHORT"))
	assert.False(t, wellFormed("WAYTOOLONGCODE1"))
	assert.False(t, wellFormed("CHEESE-50"))
}

func TestRuleFor(t *testing.T) {
	r := ruleFor("WHEEL9000")
	assert.Equal(t, "WHEEL9000", r.Code)
	assert.True(t, decimal.NewFromInt(3000).Equal(r.MinCartTotal))

	r = ruleFor("RANDOM01")
	assert.Equal(t, "RANDOM01", r.Code)
	assert.Equal(t, coupon.DiscountPercentage, r.DiscountType)
	assert.Equal(t, "", defaultRule.Code)
}

type recordingRepo struct {
	batches [][]coupon.Rule
}

func (r *recordingRepo) FindByCode(context.Context, string) (*coupon.Rule, error) {
	return nil, coupon.ErrInvalidCoupon
}

func (r *recordingRepo) Upsert(_ context.Context, rules []coupon.Rule) error {
	r.batches = append(r.batches, append([]coupon.Rule(nil), rules...))
	return nil
}

func TestWriteRules_Batches(t *testing.T) {
	codes := make([]string, batchSize+3)
	for i := range codes {
		codes[i] = "CODE" + strings.Repeat("X", i%5)
	}
	repo := &recordingRepo{}

	require.NoError(t, writeRules(context.Background(), repo, codes))
	require.Len(t, repo.batches, 2)
	assert.Len(t, repo.batches[0], batchSize)
	assert.Len(t, repo.batches[1], 3)
}
