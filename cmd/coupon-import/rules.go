package main

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/domain/coupon"
)

// prefixRules maps a code prefix to the discount partners agreed on.
var prefixRules = []struct {
	prefix string
	rule   coupon.Rule
}{
	{"FONDUE", coupon.Rule{
		DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(15),
		MaxDiscount: decimal.NewFromInt(300), Description: "Fondue night: 15% off",
	}},
	{"WHEEL", coupon.Rule{
		DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(25),
		MinCartTotal: decimal.NewFromInt(3000), Description: "Whole wheel: 25% off orders of 3000.00 or more",
	}},
	{"TASTE", coupon.Rule{
		DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(75), MaxUses: 1,
		Description: "Tasting box: 75.00 off",
	}},
}

var defaultRule = coupon.Rule{
	DiscountType: coupon.DiscountPercentage,
	Value:        decimal.NewFromInt(10),
	MaxDiscount:  decimal.NewFromInt(150),
	Description:  "Partner promo: 10% off",
}

func ruleFor(code string) coupon.Rule {
	r := defaultRule
	for _, p := range prefixRules {
		if strings.HasPrefix(code, p.prefix) {
			r = p.rule
			break
		}
	}
	r.Code = code
	return r
}
