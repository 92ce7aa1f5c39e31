package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/domain/product"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/pricing"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockCouponValidator struct {
	discount  *coupon.Discount
	err       error
	lastTotal decimal.Decimal
}

func (m *mockCouponValidator) Validate(_ context.Context, _ string, total decimal.Decimal) (*coupon.Discount, error) {
	m.lastTotal = total
	return m.discount, m.err
}

type mockOrderRepo struct {
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.lastOrder = o
	return m.err
}

type mockAddressBook map[string]string

func (m mockAddressBook) Address(_ context.Context, c *auth.Customer, id string) (*auth.Address, error) {
	if owner, ok := m[id]; ok && owner == c.ID {
		return &auth.Address{ID: id, CustomerID: c.ID}, nil
	}
	return nil, auth.ErrNotFound
}

// --- Helpers ---

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func pct(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

var (
	comte = product.Product{ID: "comte", Name: "Comté", Price: dec("500"), DiscountPercentage: pct("15"), Stock: 10}
	brie  = product.Product{ID: "brie", Name: "Brie", Price: dec("320"), Stock: 2}
)

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

// lineItem mirrors what the storefront captures when a product is added.
func lineItem(p product.Product, qty int) cart.LineItem {
	cp := cart.Product{ID: p.ID, Name: p.Name, BasePrice: p.Price, DiscountedPrice: p.DiscountedPrice()}
	if p.DiscountPercentage != nil {
		cp.ActiveDiscount = &cart.Discount{Percentage: *p.DiscountPercentage}
	}
	return cart.NewLineItem(cp, qty)
}

var guest = checkout.GuestInfo{
	FirstName:  "Ada",
	LastName:   "Lovelace",
	Email:      "ada@example.com",
	Phone:      "+44 20 7946 0958",
	Street:     "1 Dairy Lane",
	City:       "London",
	PostalCode: "N1 9GU",
	Country:    "GB",
}

func assemble(t *testing.T, items []cart.LineItem, c checkout.CouponState, m pricing.PaymentMethod, d checkout.Delivery) *checkout.OrderDraft {
	t.Helper()
	draft, err := checkout.Assemble(items, c, m, pricing.DefaultRules(), d)
	require.NoError(t, err)
	return draft
}

func applied(code, amount string) checkout.CouponState {
	return checkout.CouponState{Code: code, Status: checkout.CouponApplied, DiscountAmount: dec(amount)}
}

type fixture struct {
	products *mockProductRepo
	coupons  *mockCouponValidator
	orders   *mockOrderRepo
	svc      *Service
}

func newFixture(products ...product.Product) *fixture {
	f := &fixture{
		products: newProductRepo(products...),
		coupons:  &mockCouponValidator{},
		orders:   &mockOrderRepo{},
	}
	f.svc = NewService(f.products, f.coupons, f.orders, mockAddressBook{"addr-1": "c1"}, pricing.DefaultRules())
	f.svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return f
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: &checkout.OrderDraft{}})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, err = f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestPlaceOrder_GuestNoCoupon(t *testing.T) {
	f := newFixture(comte, brie)
	draft := assemble(t,
		[]cart.LineItem{lineItem(comte, 2), lineItem(brie, 1)},
		checkout.CouponState{Status: checkout.CouponIdle},
		pricing.CreditCard,
		checkout.GuestDelivery{Guest: guest},
	)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusConfirmed, o.Status)
	// 2 x 425 + 320 = 1170, below the free shipping threshold.
	assert.True(t, dec("1320").Equal(o.Totals.Subtotal))
	assert.True(t, dec("1170").Equal(o.Totals.DiscountedSubtotal))
	assert.True(t, dec("100").Equal(o.Totals.Shipping))
	assert.True(t, dec("1270").Equal(o.Totals.Final))
	require.NotNil(t, o.Guest)
	assert.Equal(t, "ada@example.com", o.Guest.Email)
	assert.Empty(t, o.CouponCode)
	assert.Same(t, o, f.orders.lastOrder)
	require.Len(t, o.Items, 2)
	assert.True(t, dec("425").Equal(o.Items[0].UnitPrice))
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	f := newFixture(comte)
	f.coupons.discount = &coupon.Discount{Code: "CHEESE50", Amount: dec("50")}
	draft := assemble(t,
		[]cart.LineItem{lineItem(comte, 4)},
		applied("CHEESE50", "50"),
		pricing.CashOnDelivery,
		checkout.GuestDelivery{Guest: guest},
	)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	require.NoError(t, err)
	// 1700 - 50 = 1650 keeps free shipping; cash on delivery adds 30.
	assert.True(t, dec("1700").Equal(f.coupons.lastTotal))
	assert.True(t, dec("50").Equal(o.Totals.Discount))
	assert.True(t, decimal.Zero.Equal(o.Totals.Shipping))
	assert.True(t, dec("30").Equal(o.Totals.Surcharge))
	assert.True(t, dec("1680").Equal(o.Totals.Final))
	assert.Equal(t, "CHEESE50", o.CouponCode)
}

func TestPlaceOrder_HonorsLowerShownDiscount(t *testing.T) {
	f := newFixture(comte)
	// The coupon now grants more than the customer was shown.
	f.coupons.discount = &coupon.Discount{Code: "PCT10", Amount: dec("170")}
	draft := assemble(t,
		[]cart.LineItem{lineItem(comte, 4)},
		applied("PCT10", "85"),
		pricing.BankTransfer,
		checkout.GuestDelivery{Guest: guest},
	)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	require.NoError(t, err)
	assert.True(t, dec("85").Equal(o.Totals.Discount))
	assert.True(t, dec("1615").Equal(o.Totals.Final))
}

func TestPlaceOrder_DiscountAboveGrant(t *testing.T) {
	f := newFixture(comte)
	f.coupons.discount = &coupon.Discount{Code: "PCT10", Amount: dec("42.50")}
	draft := assemble(t,
		[]cart.LineItem{lineItem(comte, 1)},
		applied("PCT10", "85"),
		pricing.BankTransfer,
		checkout.GuestDelivery{Guest: guest},
	)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	var mErr *TotalsMismatchError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "discount", mErr.Field)
	assert.Equal(t, "42.50", mErr.Computed)
	assert.Nil(t, f.orders.lastOrder)
}

func TestPlaceOrder_InvalidCoupon(t *testing.T) {
	f := newFixture(comte)
	f.coupons.err = coupon.ErrCouponExpired
	draft := assemble(t,
		[]cart.LineItem{lineItem(comte, 1)},
		applied("OLD", "10"),
		pricing.BankTransfer,
		checkout.GuestDelivery{Guest: guest},
	)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	require.ErrorIs(t, err, coupon.ErrCouponExpired)
}

func TestPlaceOrder_Validation(t *testing.T) {
	base := func() *checkout.OrderDraft {
		return &checkout.OrderDraft{
			Items:         []checkout.DraftItem{{ProductID: "comte", Quantity: 1, UnitPrice: "425.00"}},
			PaymentMethod: pricing.CreditCard,
			Totals: checkout.DraftTotals{
				Subtotal: "500.00", Discount: "0.00", ShippingCost: "100.00", Surcharge: "0.00", FinalPrice: "525.00",
			},
			Delivery: checkout.GuestDelivery{Guest: guest},
		}
	}

	tests := []struct {
		name     string
		mutate   func(d *checkout.OrderDraft)
		customer *auth.Customer
		check    func(t *testing.T, err error)
	}{
		{
			name: "valid",
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:   "zero quantity",
			mutate: func(d *checkout.OrderDraft) { d.Items[0].Quantity = 0 },
			check: func(t *testing.T, err error) {
				var e *InvalidQuantityError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "comte", e.ProductID)
			},
		},
		{
			name:   "duplicate product",
			mutate: func(d *checkout.OrderDraft) { d.Items = append(d.Items, d.Items[0]) },
			check: func(t *testing.T, err error) {
				assert.Equal(t, failure.Local, failure.Classify(err))
			},
		},
		{
			name:   "malformed unit price",
			mutate: func(d *checkout.OrderDraft) { d.Items[0].UnitPrice = "cheap" },
			check: func(t *testing.T, err error) {
				assert.Equal(t, failure.Local, failure.Classify(err))
			},
		},
		{
			name:   "unknown payment method",
			mutate: func(d *checkout.OrderDraft) { d.PaymentMethod = "barter" },
			check: func(t *testing.T, err error) {
				assert.Equal(t, failure.Local, failure.Classify(err))
			},
		},
		{
			name:   "no delivery",
			mutate: func(d *checkout.OrderDraft) { d.Delivery = nil },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, checkout.ErrNoDelivery)
			},
		},
		{
			name: "invalid guest",
			mutate: func(d *checkout.OrderDraft) {
				g := guest
				g.Email = "not-an-email"
				d.Delivery = checkout.GuestDelivery{Guest: g}
			},
			check: func(t *testing.T, err error) {
				var ve *failure.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "email", ve.Field)
			},
		},
		{
			name:   "address without customer",
			mutate: func(d *checkout.OrderDraft) { d.Delivery = checkout.AddressDelivery{AddressID: "addr-1"} },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, auth.ErrUnauthorized)
			},
		},
		{
			name:     "address of another customer",
			mutate:   func(d *checkout.OrderDraft) { d.Delivery = checkout.AddressDelivery{AddressID: "addr-1"} },
			customer: &auth.Customer{ID: "c2"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrUnknownAddress)
			},
		},
		{
			name:     "own address",
			mutate:   func(d *checkout.OrderDraft) { d.Delivery = checkout.AddressDelivery{AddressID: "addr-1"} },
			customer: &auth.Customer{ID: "c1"},
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:   "unknown product",
			mutate: func(d *checkout.OrderDraft) { d.Items[0].ProductID = "gouda" },
			check: func(t *testing.T, err error) {
				var e *ProductNotFoundError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "gouda", e.ProductID)
			},
		},
		{
			name:   "stale price",
			mutate: func(d *checkout.OrderDraft) { d.Items[0].UnitPrice = "500.00" },
			check: func(t *testing.T, err error) {
				var e *PriceChangedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "425.00", e.Current)
			},
		},
		{
			name:   "more than in stock",
			mutate: func(d *checkout.OrderDraft) { d.Items[0].Quantity = 11 },
			check: func(t *testing.T, err error) {
				var e *OutOfStockError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 10, e.Available)
			},
		},
		{
			name:   "final price tampered",
			mutate: func(d *checkout.OrderDraft) { d.Totals.FinalPrice = "1.00" },
			check: func(t *testing.T, err error) {
				var e *TotalsMismatchError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "final_price", e.Field)
				assert.Equal(t, "525.00", e.Computed)
			},
		},
		{
			name:   "shipping waived without reason",
			mutate: func(d *checkout.OrderDraft) { d.Totals.ShippingCost = "0.00" },
			check: func(t *testing.T, err error) {
				var e *TotalsMismatchError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "shipping_cost", e.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(comte, brie)
			d := base()
			if tt.mutate != nil {
				tt.mutate(d)
			}
			_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: d, Customer: tt.customer})
			tt.check(t, err)
		})
	}
}

func TestPlaceOrder_RecordsCustomer(t *testing.T) {
	f := newFixture(brie)
	draft := assemble(t,
		[]cart.LineItem{lineItem(brie, 1)},
		checkout.CouponState{Status: checkout.CouponIdle},
		pricing.BankTransfer,
		checkout.AddressDelivery{AddressID: "addr-1"},
	)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft, Customer: &auth.Customer{ID: "c1"}})

	require.NoError(t, err)
	assert.Equal(t, "c1", o.CustomerID)
	assert.Equal(t, "addr-1", o.AddressID)
	assert.Nil(t, o.Guest)
	assert.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), o.CreatedAt)
}

func TestPlaceOrder_ProductLookupError(t *testing.T) {
	f := newFixture(comte)
	f.products.getErr = errors.New("db down")
	draft := assemble(t, []cart.LineItem{lineItem(comte, 1)}, checkout.CouponState{}, pricing.CreditCard,
		checkout.GuestDelivery{Guest: guest})

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}

func TestPlaceOrder_OrderCreateError(t *testing.T) {
	f := newFixture(comte)
	f.orders.err = &OutOfStockError{ProductID: "comte", Available: 0}
	draft := assemble(t, []cart.LineItem{lineItem(comte, 1)}, checkout.CouponState{}, pricing.CreditCard,
		checkout.GuestDelivery{Guest: guest})

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Draft: draft})

	var e *OutOfStockError
	require.ErrorAs(t, err, &e)
	assert.Contains(t, err.Error(), "create order")
}
