package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/money"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

var hundred = decimal.NewFromInt(100)

// Product is a cheese in the catalog.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    Image
	// DiscountPercentage is the active catalog discount, nil when none.
	DiscountPercentage *decimal.Decimal
	Stock              int
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// DiscountedPrice returns the price after the active discount, rounded to
// two places, or nil when the product is not discounted.
func (p Product) DiscountedPrice() *decimal.Decimal {
	if p.DiscountPercentage == nil || !p.DiscountPercentage.IsPositive() {
		return nil
	}
	factor := hundred.Sub(*p.DiscountPercentage).Div(hundred)
	v := money.Round(money.NonNegative(p.Price.Mul(factor)))
	return &v
}

// EffectivePrice is the unit price a customer pays.
func (p Product) EffectivePrice() decimal.Decimal {
	if dp := p.DiscountedPrice(); dp != nil {
		return *dp
	}
	return p.Price
}

// InStock reports whether qty units can be sold.
func (p Product) InStock(qty int) bool {
	return qty <= p.Stock
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
