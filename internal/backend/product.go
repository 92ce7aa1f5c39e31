package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
)

// Product is a catalog entry as seen by the storefront.
type Product struct {
	cart.Product
	Category string
	Stock    int
}

// GetProduct fetches a product snapshot. Concurrent lookups of the same ID
// share one request.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	v, err, _ := c.products.Do(id, func() (any, error) {
		data, err := c.do(ctx, "get product", http.MethodGet, "/api/product/"+url.PathEscape(id), nil)
		if err != nil {
			return nil, err
		}
		p, err := decodeProduct(data)
		if err != nil {
			return nil, &failure.TransportError{Op: "get product", Err: err}
		}
		return p, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p := *v.(*Product)
	return &p, nil
}

func decodeProduct(data []byte) (*Product, error) {
	var p Product
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.BasePrice, err = money.ReadDecimal(d)
		case "discounted_price":
			p.DiscountedPrice, err = money.ReadOptionalDecimal(d)
		case "active_discount":
			p.ActiveDiscount, err = readActiveDiscount(d)
		case "image":
			p.ImageRef, err = readThumbnail(d)
		case "stock":
			p.Stock, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	if p.ID == "" {
		return nil, errors.New("decode product: missing id")
	}
	return &p, nil
}

func readActiveDiscount(d *jx.Decoder) (*cart.Discount, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var (
		disc  cart.Discount
		found bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "discount_percentage" {
			return d.Skip()
		}
		v, err := money.ReadDecimal(d)
		if err != nil {
			return err
		}
		disc.Percentage, found = v, true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &disc, nil
}

func readThumbnail(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	var thumb string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "thumbnail" {
			return d.Skip()
		}
		v, err := d.Str()
		thumb = v
		return err
	})
	return thumb, err
}
