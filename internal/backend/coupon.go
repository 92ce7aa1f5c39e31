package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
)

// ApplyCoupon asks the backend what code takes off a cart worth cartTotal.
// Nothing is redeemed until an order carrying the code is created.
func (c *Client) ApplyCoupon(ctx context.Context, code string, cartTotal decimal.Decimal) (decimal.Decimal, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("cart_total")
	money.WriteFixed(&e, cartTotal)
	e.ObjEnd()

	data, err := c.do(ctx, "apply coupon", http.MethodPost, "/api/coupon/apply", e.Bytes())
	if err != nil {
		return decimal.Zero, err
	}

	var (
		amount decimal.Decimal
		found  bool
	)
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "discount_amount" {
			return d.Skip()
		}
		v, err := money.ReadDecimal(d)
		if err != nil {
			return errors.Wrap(err, key)
		}
		amount, found = v, true
		return nil
	})
	if err == nil && !found {
		err = errors.New("missing discount_amount")
	}
	if err != nil {
		return decimal.Zero, &failure.TransportError{Op: "apply coupon", Err: errors.Wrap(err, "decode response")}
	}
	return amount, nil
}
