package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/failure"
)

// CreateOrder submits an assembled order. Address deliveries need a customer
// token on ctx, see WithToken.
func (c *Client) CreateOrder(ctx context.Context, draft *checkout.OrderDraft) (*checkout.Confirmation, error) {
	data, err := c.do(ctx, "create order", http.MethodPost, "/api/order", checkout.EncodeDraft(draft))
	if err != nil {
		return nil, err
	}

	var conf checkout.Confirmation
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			conf.OrderID, err = d.Str()
		case "final_price":
			conf.FinalPrice, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err == nil && conf.OrderID == "" {
		err = errors.New("missing id")
	}
	if err != nil {
		return nil, &failure.TransportError{Op: "create order", Err: errors.Wrap(err, "decode response")}
	}
	return &conf, nil
}
