package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrUnknownAddress is returned when the delivery address does not belong to
// the customer.
var ErrUnknownAddress = errors.New("unknown delivery address")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PriceChangedError indicates the customer saw a different unit price than
// the catalog now has.
type PriceChangedError struct {
	ProductID string
	Sent      string
	Current   string
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("price of product %s changed from %s to %s", e.ProductID, e.Sent, e.Current)
}

// OutOfStockError indicates fewer units are available than ordered.
type OutOfStockError struct {
	ProductID string
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("only %d of product %s left in stock", e.Available, e.ProductID)
}

// TotalsMismatchError indicates a submitted total differs from the one the
// server computed.
type TotalsMismatchError struct {
	Field    string
	Sent     string
	Computed string
}

func (e *TotalsMismatchError) Error() string {
	return fmt.Sprintf("%s is %s, expected %s", e.Field, e.Sent, e.Computed)
}
