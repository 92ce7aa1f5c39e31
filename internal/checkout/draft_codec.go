package checkout

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/pricing"
)

// EncodeDraft writes the order creation payload. Exactly one of address_id
// and guest is present.
func EncodeDraft(draft *OrderDraft) []byte {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range draft.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()

	if draft.CouponCode != nil {
		e.FieldStart("coupon_code")
		e.Str(*draft.CouponCode)
	}
	e.FieldStart("payment_method")
	e.Str(string(draft.PaymentMethod))

	e.FieldStart("totals")
	e.ObjStart()
	e.FieldStart("subtotal")
	e.Str(draft.Totals.Subtotal)
	e.FieldStart("discount")
	e.Str(draft.Totals.Discount)
	e.FieldStart("shipping_cost")
	e.Str(draft.Totals.ShippingCost)
	e.FieldStart("surcharge")
	e.Str(draft.Totals.Surcharge)
	e.FieldStart("final_price")
	e.Str(draft.Totals.FinalPrice)
	e.ObjEnd()

	switch v := draft.Delivery.(type) {
	case AddressDelivery:
		e.FieldStart("address_id")
		e.Str(v.AddressID)
	case GuestDelivery:
		e.FieldStart("guest")
		WriteGuest(&e, v.Guest)
	}

	e.ObjEnd()
	return e.Bytes()
}

// DecodeDraft parses an order creation payload. It checks shape only:
// business validation is left to the caller.
func DecodeDraft(data []byte) (*OrderDraft, error) {
	var (
		draft   OrderDraft
		address *string
		guest   *GuestInfo
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := readDraftItem(d)
				if err != nil {
					return err
				}
				draft.Items = append(draft.Items, it)
				return nil
			})
		case "coupon_code":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			draft.CouponCode = &v
		case "payment_method":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			draft.PaymentMethod = pricing.PaymentMethod(v)
		case "totals":
			t, err := readDraftTotals(d)
			if err != nil {
				return err
			}
			draft.Totals = t
		case "address_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			address = &v
		case "guest":
			if d.Next() == jx.Null {
				return d.Null()
			}
			g, err := ReadGuest(d)
			if err != nil {
				return err
			}
			guest = &g
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}

	switch {
	case address != nil && guest != nil:
		return nil, errors.New("decode order: address_id and guest are mutually exclusive")
	case address != nil:
		draft.Delivery = AddressDelivery{AddressID: *address}
	case guest != nil:
		draft.Delivery = GuestDelivery{Guest: *guest}
	}
	return &draft, nil
}

func readDraftItem(d *jx.Decoder) (DraftItem, error) {
	var it DraftItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			it.ProductID, err = d.Str()
		case "quantity":
			it.Quantity, err = d.Int()
		case "unit_price":
			it.UnitPrice, err = readAmount(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return DraftItem{}, errors.Wrap(err, "item")
	}
	return it, nil
}

func readDraftTotals(d *jx.Decoder) (DraftTotals, error) {
	var t DraftTotals
	fields := map[string]*string{
		"subtotal":      &t.Subtotal,
		"discount":      &t.Discount,
		"shipping_cost": &t.ShippingCost,
		"surcharge":     &t.Surcharge,
		"final_price":   &t.FinalPrice,
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		v, err := readAmount(d)
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return DraftTotals{}, errors.Wrap(err, "totals")
	}
	return t, nil
}

// readAmount accepts a money amount written either as a string or a number.
func readAmount(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}
