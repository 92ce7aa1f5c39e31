package checkout

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
	"github.com/xenking/cheese-kart/internal/pricing"
)

// minPhoneDigits is the shortest phone number accepted for guest checkout.
const minPhoneDigits = 9

var (
	// ErrEmptyCart is returned when submitting an empty cart.
	ErrEmptyCart = &failure.ValidationError{Field: "items", Reason: "cart is empty"}
	// ErrNoDelivery is returned when no delivery target is chosen.
	ErrNoDelivery = &failure.ValidationError{Field: "delivery", Reason: "select a delivery address or fill in guest details"}
	// ErrNoPaymentMethod is returned when no payment method is chosen.
	ErrNoPaymentMethod = &failure.ValidationError{Field: "payment_method", Reason: "select a payment method"}
)

// Delivery is where an order goes: exactly one of AddressDelivery or
// GuestDelivery.
type Delivery interface {
	validate() error
	isDelivery()
}

// AddressDelivery ships to a stored address of the signed-in customer.
type AddressDelivery struct {
	AddressID string
}

func (AddressDelivery) isDelivery() {}

func (a AddressDelivery) validate() error {
	if strings.TrimSpace(a.AddressID) == "" {
		return &failure.ValidationError{Field: "address_id", Reason: "select a delivery address"}
	}
	return nil
}

// GuestDelivery ships to inline contact details of a guest.
type GuestDelivery struct {
	Guest GuestInfo
}

func (GuestDelivery) isDelivery() {}

func (g GuestDelivery) validate() error {
	return g.Guest.Validate()
}

// GuestInfo is the contact and address record of a guest checkout.
type GuestInfo struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Street     string
	City       string
	PostalCode string
	Country    string
	Note       string
}

// Validate checks required fields, the email format and the phone length.
// The first problem found is returned.
func (g GuestInfo) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", g.FirstName},
		{"last_name", g.LastName},
		{"email", g.Email},
		{"phone", g.Phone},
		{"street", g.Street},
		{"city", g.City},
		{"postal_code", g.PostalCode},
		{"country", g.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &failure.ValidationError{Field: r.field, Reason: "required"}
		}
	}
	if !validEmail(g.Email) {
		return &failure.ValidationError{Field: "email", Reason: "invalid email address"}
	}
	if countDigits(g.Phone) < minPhoneDigits {
		return &failure.ValidationError{Field: "phone", Reason: "phone number is too short"}
	}
	return nil
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return strings.Contains(s[at+1:], ".")
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// DraftItem is a line of the order payload. UnitPrice carries exactly two
// decimals.
type DraftItem struct {
	ProductID string
	Quantity  int
	UnitPrice string
}

// DraftTotals are the priced totals sent with the order, two decimals each.
type DraftTotals struct {
	Subtotal     string
	Discount     string
	ShippingCost string
	Surcharge    string
	FinalPrice   string
}

// OrderDraft is the payload for order creation.
type OrderDraft struct {
	Items         []DraftItem
	CouponCode    *string
	PaymentMethod pricing.PaymentMethod
	Totals        DraftTotals
	Delivery      Delivery
}

// AddressID returns the stored address reference, if any.
func (d *OrderDraft) AddressID() (string, bool) {
	a, ok := d.Delivery.(AddressDelivery)
	return a.AddressID, ok
}

// Guest returns the guest record, if any.
func (d *OrderDraft) Guest() (GuestInfo, bool) {
	g, ok := d.Delivery.(GuestDelivery)
	return g.Guest, ok
}

// Assemble builds the order payload from the current cart, coupon and
// payment choice. All checks happen locally; nothing is sent.
func Assemble(
	items []cart.LineItem,
	coupon CouponState,
	method pricing.PaymentMethod,
	rules pricing.Rules,
	delivery Delivery,
) (*OrderDraft, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if method == "" {
		return nil, ErrNoPaymentMethod
	}
	if _, err := pricing.ParsePaymentMethod(string(method)); err != nil {
		return nil, &failure.ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}
	if delivery == nil {
		return nil, ErrNoDelivery
	}
	if err := delivery.validate(); err != nil {
		return nil, err
	}

	draft := &OrderDraft{
		Items:         make([]DraftItem, len(items)),
		PaymentMethod: method,
		Delivery:      delivery,
	}
	for i, it := range items {
		draft.Items[i] = DraftItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: money.Format(it.EffectiveUnitPrice()),
		}
	}
	if coupon.Active() {
		code := coupon.Code
		draft.CouponCode = &code
	}

	totals := rules.Compute(TotalsInput(items, coupon, method))
	draft.Totals = DraftTotals{
		Subtotal:     money.Format(totals.Subtotal),
		Discount:     money.Format(totals.Discount),
		ShippingCost: money.Format(totals.Shipping),
		Surcharge:    money.Format(totals.Surcharge),
		FinalPrice:   money.Format(totals.Final),
	}
	return draft, nil
}

// TotalsInput derives the pricing input from items and coupon state.
func TotalsInput(items []cart.LineItem, coupon CouponState, method pricing.PaymentMethod) pricing.Input {
	in := pricing.Input{Method: method, Discount: coupon.Discount()}
	for _, it := range items {
		in.Subtotal = in.Subtotal.Add(it.BaseTotal())
		in.DiscountedSubtotal = in.DiscountedSubtotal.Add(it.LineTotal())
	}
	return in
}
