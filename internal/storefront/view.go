package storefront

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/money"
	"github.com/xenking/cheese-kart/internal/pricing"
)

// cartView is everything the cart page renders, read from one session.
type cartView struct {
	sessionID string
	items     []cart.LineItem
	coupon    checkout.CouponState
	method    pricing.PaymentMethod
	totals    pricing.Totals
	rules     pricing.Rules
}

func viewOf(s *checkout.Session) cartView {
	items := s.Cart().Items()
	coupon := s.Coupon()
	method := s.PaymentMethod()
	return cartView{
		sessionID: s.ID(),
		items:     items,
		coupon:    coupon,
		method:    method,
		totals:    s.Rules().Compute(checkout.TotalsInput(items, coupon, method)),
		rules:     s.Rules(),
	}
}

func (v cartView) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("session_id")
	e.Str(v.sessionID)

	e.FieldStart("items")
	e.ArrStart()
	count := 0
	for _, it := range v.items {
		writeLineItem(e, it)
		count += it.Quantity
	}
	e.ArrEnd()
	e.FieldStart("item_count")
	e.Int(count)

	e.FieldStart("coupon")
	writeCoupon(e, v.coupon)
	e.FieldStart("payment_method")
	e.Str(string(v.method))

	e.FieldStart("totals")
	writeTotals(e, v.totals)

	e.FieldStart("free_shipping_threshold")
	money.WriteFixed(e, v.rules.FreeShippingThreshold)
	e.FieldStart("free_shipping_remaining")
	remaining := v.rules.FreeShippingThreshold.Sub(v.totals.DiscountedSubtotal.Sub(v.totals.Discount))
	money.WriteFixed(e, money.NonNegative(remaining))
	e.ObjEnd()
}

func writeLineItem(e *jx.Encoder, it cart.LineItem) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(it.ProductID)
	e.FieldStart("name")
	e.Str(it.Name)
	if it.ImageRef != "" {
		e.FieldStart("image")
		e.Str(it.ImageRef)
	}
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("base_price")
	money.WriteFixed(e, it.BasePrice)
	e.FieldStart("unit_price")
	money.WriteFixed(e, it.EffectiveUnitPrice())
	if it.ActiveDiscount != nil {
		e.FieldStart("discount_percentage")
		money.WriteExact(e, it.ActiveDiscount.Percentage)
	}
	e.FieldStart("line_total")
	money.WriteFixed(e, it.LineTotal())
	e.ObjEnd()
}

func writeCoupon(e *jx.Encoder, c checkout.CouponState) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(string(c.Status))
	if c.Code != "" {
		e.FieldStart("code")
		e.Str(c.Code)
	}
	e.FieldStart("discount_amount")
	money.WriteFixed(e, c.Discount())
	if c.Message != "" {
		e.FieldStart("message")
		e.Str(c.Message)
	}
	e.ObjEnd()
}

func writeTotals(e *jx.Encoder, t pricing.Totals) {
	e.ObjStart()
	e.FieldStart("subtotal")
	money.WriteFixed(e, t.Subtotal)
	e.FieldStart("discounted_subtotal")
	money.WriteFixed(e, t.DiscountedSubtotal)
	e.FieldStart("discount")
	money.WriteFixed(e, t.Discount)
	e.FieldStart("shipping")
	money.WriteFixed(e, t.Shipping)
	e.FieldStart("surcharge")
	money.WriteFixed(e, t.Surcharge)
	e.FieldStart("final")
	money.WriteFixed(e, t.Final)
	e.FieldStart("savings")
	money.WriteFixed(e, t.Savings())
	e.ObjEnd()
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeCart(w http.ResponseWriter, status int, s *checkout.Session) {
	var e jx.Encoder
	viewOf(s).encode(&e)
	writeJSON(w, status, &e)
}
