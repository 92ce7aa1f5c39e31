package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/pricing"
)

// StatusConfirmed is the status of an accepted order.
const StatusConfirmed = "confirmed"

// Order is a placed order with its verified price breakdown.
type Order struct {
	ID            string
	CustomerID    string
	AddressID     string
	Guest         *checkout.GuestInfo
	Items         []OrderItem
	CouponCode    string
	PaymentMethod pricing.PaymentMethod
	Totals        pricing.Totals
	Status        string
	CreatedAt     time.Time
}

// OrderItem is a single line of an order at the price the customer paid.
type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Repository defines persistence operations for orders.
//
// Create stores the order, takes the items out of stock and redeems the
// coupon atomically. It returns *OutOfStockError or
// coupon.ErrCouponUsageLimitReached when another order got there first.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
