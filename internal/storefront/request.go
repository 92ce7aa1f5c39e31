package storefront

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/checkout"
)

const maxRequestBody = 64 << 10

type addItemRequest struct {
	ProductID string
	Quantity  int
}

type checkoutRequest struct {
	AddressID string
	Guest     *checkout.GuestInfo
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return jx.DecodeBytes(data), nil
}

func decodeAddItem(d *jx.Decoder) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return req, err
	}
	if req.ProductID == "" {
		return req, errors.New("product_id is required")
	}
	return req, nil
}

// decodeField reads a single required field from an object body.
func decodeField[T any](d *jx.Decoder, name string, read func(*jx.Decoder) (T, error)) (T, error) {
	var (
		v     T
		found bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		var err error
		if v, err = read(d); err != nil {
			return errors.Wrap(err, key)
		}
		found = true
		return nil
	})
	if err == nil && !found {
		err = errors.Errorf("%s is required", name)
	}
	return v, err
}

func decodeCheckout(d *jx.Decoder) (checkoutRequest, error) {
	var req checkoutRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "address_id":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			req.AddressID = v
			return nil
		case "guest":
			if d.Next() == jx.Null {
				return d.Null()
			}
			g, err := checkout.ReadGuest(d)
			if err != nil {
				return err
			}
			req.Guest = &g
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, err
	}
	if req.AddressID != "" && req.Guest != nil {
		return req, errors.New("address_id and guest are mutually exclusive")
	}
	return req, nil
}
