package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount a rule grants on cartTotal. The amount is
// never more than cartTotal and is rounded to two places.
func Apply(rule *Rule, cartTotal decimal.Decimal) (Discount, error) {
	cartTotal = money.NonNegative(cartTotal)
	if rule.MinCartTotal.IsPositive() && cartTotal.LessThan(rule.MinCartTotal) {
		return Discount{}, &MinimumNotMetError{Minimum: rule.MinCartTotal}
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = cartTotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, rule.MaxDiscount)
		}
	case DiscountFixed:
		amount = rule.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	amount = money.Round(money.Clamp(amount, decimal.Zero, cartTotal))
	return Discount{
		Code:        rule.Code,
		Amount:      amount,
		Description: describe(rule),
	}, nil
}

func describe(rule *Rule) string {
	if rule.Description != "" {
		return rule.Description
	}
	switch rule.DiscountType {
	case DiscountPercentage:
		return rule.Value.String() + "% off your order"
	default:
		return money.Format(rule.Value) + " off your order"
	}
}
