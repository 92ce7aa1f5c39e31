package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/domain/product"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
	"github.com/xenking/cheese-kart/internal/pricing"
)

// AddressBook resolves a customer's stored addresses.
type AddressBook interface {
	Address(ctx context.Context, c *auth.Customer, addressID string) (*auth.Address, error)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Draft *checkout.OrderDraft
	// Customer is the authenticated caller, nil for anonymous requests.
	Customer *auth.Customer
}

// Service encapsulates order placement business logic.
type Service struct {
	products  product.Repository
	coupons   coupon.Validator
	orders    Repository
	addresses AddressBook
	rules     pricing.Rules
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Validator,
	orders Repository,
	addresses AddressBook,
	rules pricing.Rules,
) *Service {
	return &Service{
		products:  products,
		coupons:   coupons,
		orders:    orders,
		addresses: addresses,
		rules:     rules,
		now:       time.Now,
	}
}

type line struct {
	item    checkout.DraftItem
	price   decimal.Decimal
	product product.Product
}

// PlaceOrder verifies a submitted draft against the catalog, reprices it and
// stores it. Every submitted total must match the server's computation.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	draft := req.Draft
	if draft == nil || len(draft.Items) == 0 {
		return nil, checkout.ErrEmptyCart
	}

	lines, err := parseItems(draft.Items)
	if err != nil {
		return nil, err
	}
	method, err := pricing.ParsePaymentMethod(string(draft.PaymentMethod))
	if err != nil {
		return nil, &failure.ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}

	o := &Order{
		ID:            uuid.New().String(),
		PaymentMethod: method,
		Status:        StatusConfirmed,
	}
	if err := s.resolveDelivery(ctx, draft.Delivery, req.Customer, o); err != nil {
		return nil, err
	}
	if err := s.loadProducts(ctx, lines); err != nil {
		return nil, err
	}

	in := pricing.Input{Method: method}
	for _, l := range lines {
		in.Subtotal = in.Subtotal.Add(money.Mul(l.product.Price, l.item.Quantity))
		in.DiscountedSubtotal = in.DiscountedSubtotal.Add(money.Mul(l.price, l.item.Quantity))
	}

	if draft.CouponCode != nil {
		d, err := s.coupons.Validate(ctx, *draft.CouponCode, money.Round(in.DiscountedSubtotal))
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		in.Discount, err = honoredDiscount(draft.Totals.Discount, d.Amount)
		if err != nil {
			return nil, err
		}
		o.CouponCode = d.Code
	}

	totals := s.rules.Compute(in)
	if err := compareTotals(draft.Totals, totals); err != nil {
		return nil, err
	}

	o.Totals = totals
	o.Items = make([]OrderItem, len(lines))
	for i, l := range lines {
		o.Items[i] = OrderItem{ProductID: l.item.ProductID, Quantity: l.item.Quantity, UnitPrice: l.price}
	}
	if customer := req.Customer; customer != nil {
		o.CustomerID = customer.ID
	}
	o.CreatedAt = s.now().UTC()

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

func parseItems(items []checkout.DraftItem) ([]line, error) {
	seen := make(map[string]struct{}, len(items))
	lines := make([]line, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, &failure.ValidationError{Field: "product_id", Reason: "required"}
		}
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		if _, dup := seen[it.ProductID]; dup {
			return nil, &failure.ValidationError{Field: "items", Reason: "duplicate product " + it.ProductID}
		}
		seen[it.ProductID] = struct{}{}

		price, err := money.Parse(it.UnitPrice)
		if err != nil {
			return nil, &failure.ValidationError{Field: "unit_price", Reason: "invalid amount for product " + it.ProductID}
		}
		lines[i] = line{item: it, price: price}
	}
	return lines, nil
}

func (s *Service) resolveDelivery(ctx context.Context, d checkout.Delivery, c *auth.Customer, o *Order) error {
	switch v := d.(type) {
	case checkout.AddressDelivery:
		if strings.TrimSpace(v.AddressID) == "" {
			return &failure.ValidationError{Field: "address_id", Reason: "select a delivery address"}
		}
		if c == nil {
			return auth.ErrUnauthorized
		}
		addr, err := s.addresses.Address(ctx, c, v.AddressID)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return ErrUnknownAddress
			}
			return errors.Wrap(err, "resolve address")
		}
		o.AddressID = addr.ID
	case checkout.GuestDelivery:
		if err := v.Guest.Validate(); err != nil {
			return err
		}
		g := v.Guest
		o.Guest = &g
	default:
		return checkout.ErrNoDelivery
	}
	return nil
}

// loadProducts fetches every product in one batch and checks prices and
// stock. Stock is checked again when the order is stored.
func (s *Service) loadProducts(ctx context.Context, lines []line) error {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	for i := range lines {
		l := &lines[i]
		p, ok := byID[l.item.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: l.item.ProductID}
		}
		if current := p.EffectivePrice(); !current.Equal(l.price) {
			return &PriceChangedError{
				ProductID: p.ID,
				Sent:      money.Format(l.price),
				Current:   money.Format(current),
			}
		}
		if !p.InStock(l.item.Quantity) {
			return &OutOfStockError{ProductID: p.ID, Available: p.Stock}
		}
		l.product = p
	}
	return nil
}

// honoredDiscount accepts the discount the customer was shown as long as it
// does not exceed what the coupon grants on the current cart. The storefront
// keeps the amount from when the coupon was applied.
func honoredDiscount(sent string, granted decimal.Decimal) (decimal.Decimal, error) {
	v, err := money.Parse(sent)
	if err != nil {
		return decimal.Zero, &failure.ValidationError{Field: "discount", Reason: "invalid amount"}
	}
	if v.GreaterThan(granted) {
		return decimal.Zero, &TotalsMismatchError{Field: "discount", Sent: sent, Computed: money.Format(granted)}
	}
	return v, nil
}

func compareTotals(sent checkout.DraftTotals, computed pricing.Totals) error {
	fields := []struct {
		name string
		sent string
		want decimal.Decimal
	}{
		{"subtotal", sent.Subtotal, computed.Subtotal},
		{"discount", sent.Discount, computed.Discount},
		{"shipping_cost", sent.ShippingCost, computed.Shipping},
		{"surcharge", sent.Surcharge, computed.Surcharge},
		{"final_price", sent.FinalPrice, computed.Final},
	}
	for _, f := range fields {
		v, err := money.Parse(f.sent)
		if err != nil {
			return &failure.ValidationError{Field: f.name, Reason: "invalid amount"}
		}
		if !v.Equal(f.want) {
			return &TotalsMismatchError{Field: f.name, Sent: f.sent, Computed: money.Format(f.want)}
		}
	}
	return nil
}
