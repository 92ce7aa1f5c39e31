package money

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// WriteExact writes d as a JSON string without rounding.
func WriteExact(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.String())
}

// WriteFixed writes d as a JSON string with exactly two decimal places.
func WriteFixed(e *jx.Encoder, d decimal.Decimal) {
	e.Str(Format(d))
}

// ReadDecimal reads a JSON string or number into a decimal.
func ReadDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse %q", s)
		}
		return v, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse %s", n)
		}
		return v, nil
	default:
		return decimal.Zero, errors.Errorf("expected decimal, got %s", tt)
	}
}

// ReadOptionalDecimal reads a decimal or JSON null.
func ReadOptionalDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := ReadDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
