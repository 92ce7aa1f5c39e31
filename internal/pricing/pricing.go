// Package pricing computes shipping, payment surcharges and the final payable
// amount of a cart. Rules.Compute is the only place a final total is derived;
// the storefront displays its result and the backend verifies submitted orders
// against it.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/money"
)

// PaymentMethod enumerates the supported ways to pay for an order.
type PaymentMethod string

const (
	// BankTransfer is paid up front by wire transfer.
	BankTransfer PaymentMethod = "bank_transfer"
	// CashOnDelivery is paid to the courier and carries a surcharge.
	CashOnDelivery PaymentMethod = "cash_on_delivery"
	// CreditCard is paid by card at checkout.
	CreditCard PaymentMethod = "credit_card"
)

// ErrUnknownPaymentMethod is returned by ParsePaymentMethod.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ParsePaymentMethod validates a wire value.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case BankTransfer, CashOnDelivery, CreditCard:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownPaymentMethod, "%q", s)
	}
}

// Rules holds the deployment-specific pricing constants.
type Rules struct {
	// FreeShippingThreshold is the post-coupon amount at or above which
	// shipping is free.
	FreeShippingThreshold decimal.Decimal
	// ShippingFee is charged below the threshold.
	ShippingFee decimal.Decimal
	// CashOnDeliverySurcharge is added when paying cash on delivery.
	CashOnDeliverySurcharge decimal.Decimal
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold:   decimal.NewFromInt(1500),
		ShippingFee:             decimal.NewFromInt(100),
		CashOnDeliverySurcharge: decimal.NewFromInt(30),
	}
}

// Shipping returns the shipping cost for the amount left after the coupon
// discount.
func (r Rules) Shipping(amountAfterDiscount decimal.Decimal) decimal.Decimal {
	if amountAfterDiscount.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	return r.ShippingFee
}

// Surcharge returns the fee attached to the payment method.
func (r Rules) Surcharge(m PaymentMethod) decimal.Decimal {
	if m == CashOnDelivery {
		return r.CashOnDeliverySurcharge
	}
	return decimal.Zero
}

// Input is everything the final total depends on.
type Input struct {
	Subtotal           decimal.Decimal
	DiscountedSubtotal decimal.Decimal
	Discount           decimal.Decimal
	Method             PaymentMethod
}

// Totals is the priced breakdown of a cart.
type Totals struct {
	Subtotal           decimal.Decimal
	DiscountedSubtotal decimal.Decimal
	// Discount is the coupon discount after clamping.
	Discount  decimal.Decimal
	Shipping  decimal.Decimal
	Surcharge decimal.Decimal
	Final     decimal.Decimal
}

// Compute prices the input:
//
//	final = discounted - discount + shipping(discounted - discount) + surcharge(method)
//
// The discount is clamped to [0, DiscountedSubtotal] so the result is never
// negative. All fields are rounded to two places.
func (r Rules) Compute(in Input) Totals {
	discounted := money.NonNegative(in.DiscountedSubtotal)
	discount := money.Clamp(in.Discount, decimal.Zero, discounted)

	afterDiscount := discounted.Sub(discount)
	shipping := r.Shipping(afterDiscount)
	surcharge := r.Surcharge(in.Method)

	return Totals{
		Subtotal:           money.Round(money.NonNegative(in.Subtotal)),
		DiscountedSubtotal: money.Round(discounted),
		Discount:           money.Round(discount),
		Shipping:           money.Round(shipping),
		Surcharge:          money.Round(surcharge),
		Final:              money.Round(afterDiscount.Add(shipping).Add(surcharge)),
	}
}

// Savings is how much the catalog discounts and the coupon take off the
// undiscounted subtotal.
func (t Totals) Savings() decimal.Decimal {
	return money.NonNegative(t.Subtotal.Sub(t.DiscountedSubtotal).Add(t.Discount))
}

// Equal reports whether two breakdowns agree on every field.
func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Equal(o.Subtotal) &&
		t.DiscountedSubtotal.Equal(o.DiscountedSubtotal) &&
		t.Discount.Equal(o.Discount) &&
		t.Shipping.Equal(o.Shipping) &&
		t.Surcharge.Equal(o.Surcharge) &&
		t.Final.Equal(o.Final)
}
