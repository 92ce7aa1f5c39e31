package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/money"
)

// snapshotVersion is bumped whenever the persisted layout changes.
const snapshotVersion = 1

// ErrSnapshotVersion is returned when decoding a snapshot written by an
// incompatible version.
var ErrSnapshotVersion = errors.New("unsupported cart snapshot version")

// EncodeItems serializes line items into the persisted snapshot form. Prices
// are written exactly, not rounded.
func EncodeItems(items []LineItem) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("version")
	e.Int(snapshotVersion)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range items {
		WriteItem(&e, it)
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

// WriteItem writes a single line item object.
func WriteItem(e *jx.Encoder, it LineItem) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(it.ProductID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("image_ref")
	e.Str(it.ImageRef)
	e.FieldStart("base_price")
	money.WriteExact(e, it.BasePrice)
	if it.ActiveDiscount != nil {
		e.FieldStart("active_discount")
		e.ObjStart()
		e.FieldStart("percentage")
		money.WriteExact(e, it.ActiveDiscount.Percentage)
		e.ObjEnd()
	}
	if it.DiscountedPrice != nil {
		e.FieldStart("discounted_price")
		money.WriteExact(e, *it.DiscountedPrice)
	}
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.ObjEnd()
}

// DecodeItems parses a snapshot produced by EncodeItems.
func DecodeItems(data []byte) ([]LineItem, error) {
	var (
		version int
		items   []LineItem
	)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			version = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := ReadItem(d)
				if err != nil {
					return err
				}
				items = append(items, it)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	if version != snapshotVersion {
		return nil, errors.Wrapf(ErrSnapshotVersion, "got %d", version)
	}
	return items, nil
}

// ReadItem reads a single line item object written by WriteItem.
func ReadItem(d *jx.Decoder) (LineItem, error) {
	var it LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			it.ProductID, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "image_ref":
			it.ImageRef, err = d.Str()
		case "base_price":
			it.BasePrice, err = money.ReadDecimal(d)
		case "active_discount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			ad := &Discount{}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				if key != "percentage" {
					return d.Skip()
				}
				var perr error
				ad.Percentage, perr = money.ReadDecimal(d)
				return perr
			})
			it.ActiveDiscount = ad
		case "discounted_price":
			it.DiscountedPrice, err = money.ReadOptionalDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return LineItem{}, err
	}
	if it.ProductID == "" {
		return LineItem{}, errors.New("line item without product_id")
	}
	it.Quantity = clampQuantity(it.Quantity)
	return it, nil
}
