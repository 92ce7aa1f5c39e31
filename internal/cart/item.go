// Package cart owns the storefront cart: line items captured from catalog
// snapshots, the ordered store that mutates them, and the snapshot codec used
// to persist a cart between visits.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/money"
)

// Discount is a catalog-level discount active on a product.
type Discount struct {
	Percentage decimal.Decimal
}

// Product is the catalog snapshot a line item is created from.
type Product struct {
	ID       string
	Name     string
	ImageRef string
	// BasePrice is the list price at the time the product was added.
	BasePrice       decimal.Decimal
	ActiveDiscount  *Discount
	DiscountedPrice *decimal.Decimal
}

// LineItem is one product entry in the cart. Pricing is captured at add time
// and never re-fetched, so the cart stays usable when the catalog is down.
type LineItem struct {
	ProductID       string
	Name            string
	ImageRef        string
	BasePrice       decimal.Decimal
	ActiveDiscount  *Discount
	DiscountedPrice *decimal.Decimal
	Quantity        int
}

// NewLineItem creates a line item from a product snapshot. Non-positive
// quantities become 1.
func NewLineItem(p Product, qty int) LineItem {
	item := LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		ImageRef:  p.ImageRef,
		BasePrice: p.BasePrice,
		Quantity:  clampQuantity(qty),
	}
	if p.ActiveDiscount != nil {
		ad := *p.ActiveDiscount
		item.ActiveDiscount = &ad
	}
	if p.DiscountedPrice != nil {
		dp := *p.DiscountedPrice
		item.DiscountedPrice = &dp
	}
	return item
}

// clone returns a copy that shares no pointers with li.
func (li LineItem) clone() LineItem {
	if li.ActiveDiscount != nil {
		ad := *li.ActiveDiscount
		li.ActiveDiscount = &ad
	}
	if li.DiscountedPrice != nil {
		dp := *li.DiscountedPrice
		li.DiscountedPrice = &dp
	}
	return li
}

// WithQuantity returns a copy of the item with the quantity clamped to at
// least 1.
func (li LineItem) WithQuantity(qty int) LineItem {
	li.Quantity = clampQuantity(qty)
	return li
}

// EffectiveUnitPrice is the discounted price when one is set, otherwise the
// base price.
func (li LineItem) EffectiveUnitPrice() decimal.Decimal {
	if li.DiscountedPrice != nil {
		return *li.DiscountedPrice
	}
	return li.BasePrice
}

// LineTotal is EffectiveUnitPrice * Quantity, unrounded.
func (li LineItem) LineTotal() decimal.Decimal {
	return money.Mul(li.EffectiveUnitPrice(), li.Quantity)
}

// BaseTotal is BasePrice * Quantity, unrounded.
func (li LineItem) BaseTotal() decimal.Decimal {
	return money.Mul(li.BasePrice, li.Quantity)
}

// Discounted reports whether a catalog discount applies to the item.
func (li LineItem) Discounted() bool {
	return li.DiscountedPrice != nil && li.DiscountedPrice.LessThan(li.BasePrice)
}

func clampQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}
