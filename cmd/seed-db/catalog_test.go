package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cheese-kart/db"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
)

func TestDecodeCatalog(t *testing.T) {
	products, err := decodeCatalog([]byte(`[
		{"id":"comte-18m","name":"Comté","price":"500.00","category":"Hard",
		 "image":{"thumbnail":"/t.jpg","mobile":"/m.jpg","tablet":"/tb.jpg","desktop":"/d.jpg"},
		 "discount_percentage":"15","stock":40,"unknown":[1,2]},
		{"id":"brie","name":"Brie","price":320,"category":"Soft","discount_percentage":null,"stock":0}
	]`))
	require.NoError(t, err)
	require.Len(t, products, 2)

	comte := products[0]
	assert.Equal(t, "comte-18m", comte.ID)
	assert.True(t, decimal.NewFromInt(500).Equal(comte.Price))
	require.NotNil(t, comte.DiscountPercentage)
	assert.True(t, decimal.NewFromInt(15).Equal(*comte.DiscountPercentage))
	assert.Equal(t, "/d.jpg", comte.Image.Desktop)
	assert.Equal(t, 40, comte.Stock)

	brie := products[1]
	assert.Nil(t, brie.DiscountPercentage)
	assert.True(t, decimal.NewFromInt(320).Equal(brie.Price))
}

func TestDecodeCatalog_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"not an array":   `{"id":"x"}`,
		"missing id":     `[{"name":"x","price":"1"}]`,
		"bad price":      `[{"id":"x","price":"cheap"}]`,
		"negative stock": `[{"id":"x","price":"1","stock":-1}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeCatalog([]byte(input))
			require.Error(t, err)
		})
	}
}

func TestDecodeCatalog_Embedded(t *testing.T) {
	products, err := decodeCatalog(db.Products)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	seen := make(map[string]bool)
	for _, p := range products {
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
		assert.True(t, p.Price.IsPositive(), p.ID)
	}
}

func TestSeedCoupons(t *testing.T) {
	codes := make(map[string]bool)
	for _, r := range seedCoupons {
		assert.Equal(t, r.Code, coupon.NormalizeCode(r.Code))
		assert.False(t, codes[r.Code])
		codes[r.Code] = true
	}
	assert.True(t, codes["CHEESE50"])
}
