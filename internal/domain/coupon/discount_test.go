package coupon

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		rule       *Rule
		total      string
		wantAmount string
		wantDesc   string
		wantErr    error
	}{
		{
			name:       "percentage of total",
			rule:       &Rule{Code: "PCT18", DiscountType: DiscountPercentage, Value: d("18"), Description: "18% off"},
			total:      "100",
			wantAmount: "18",
			wantDesc:   "18% off",
		},
		{
			name:       "percentage rounds to cents",
			rule:       &Rule{Code: "PCT", DiscountType: DiscountPercentage, Value: d("15")},
			total:      "33.33",
			wantAmount: "5",
			wantDesc:   "15% off your order",
		},
		{
			name:       "percentage capped by max discount",
			rule:       &Rule{Code: "CAP", DiscountType: DiscountPercentage, Value: d("50"), MaxDiscount: d("120")},
			total:      "1000",
			wantAmount: "120",
		},
		{
			name:       "fixed amount",
			rule:       &Rule{Code: "CHEESE50", DiscountType: DiscountFixed, Value: d("50")},
			total:      "950",
			wantAmount: "50",
			wantDesc:   "50.00 off your order",
		},
		{
			name:       "fixed capped at total",
			rule:       &Rule{Code: "FLAT", DiscountType: DiscountFixed, Value: d("500")},
			total:      "320",
			wantAmount: "320",
		},
		{
			name:       "percentage over a hundred capped at total",
			rule:       &Rule{Code: "HUGE", DiscountType: DiscountPercentage, Value: d("150")},
			total:      "80",
			wantAmount: "80",
		},
		{
			name:       "zero total gives zero",
			rule:       &Rule{Code: "Z", DiscountType: DiscountFixed, Value: d("10")},
			total:      "0",
			wantAmount: "0",
		},
		{
			name:       "minimum met exactly",
			rule:       &Rule{Code: "MIN", DiscountType: DiscountFixed, Value: d("100"), MinCartTotal: d("1000")},
			total:      "1000",
			wantAmount: "100",
		},
		{
			name:    "minimum not met",
			rule:    &Rule{Code: "MIN", DiscountType: DiscountFixed, Value: d("100"), MinCartTotal: d("1000")},
			total:   "999.99",
			wantErr: ErrInvalidCoupon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, d(tt.total))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, d(tt.wantAmount).Equal(got.Amount), "got %s", got.Amount)
			assert.Equal(t, tt.rule.Code, got.Code)
			if tt.wantDesc != "" {
				assert.Equal(t, tt.wantDesc, got.Description)
			}
		})
	}
}

func TestApply_MinimumNotMetMessage(t *testing.T) {
	_, err := Apply(&Rule{DiscountType: DiscountFixed, Value: d("1"), MinCartTotal: d("1500")}, d("10"))

	var mErr *MinimumNotMetError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "coupon requires a cart total of at least 1500.00", err.Error())
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := Apply(&Rule{DiscountType: "free_lowest", Value: d("1")}, d("10"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "CHEESE50", NormalizeCode("  cheese50\t"))
	assert.Equal(t, "", NormalizeCode("   "))
}
