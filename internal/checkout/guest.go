package checkout

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// WriteGuest encodes g as a JSON object. Empty note is omitted.
func WriteGuest(e *jx.Encoder, g GuestInfo) {
	e.ObjStart()
	e.FieldStart("first_name")
	e.Str(g.FirstName)
	e.FieldStart("last_name")
	e.Str(g.LastName)
	e.FieldStart("email")
	e.Str(g.Email)
	e.FieldStart("phone")
	e.Str(g.Phone)
	e.FieldStart("street")
	e.Str(g.Street)
	e.FieldStart("city")
	e.Str(g.City)
	e.FieldStart("postal_code")
	e.Str(g.PostalCode)
	e.FieldStart("country")
	e.Str(g.Country)
	if g.Note != "" {
		e.FieldStart("note")
		e.Str(g.Note)
	}
	e.ObjEnd()
}

// ReadGuest decodes a guest object written by WriteGuest. Unknown keys are
// skipped.
func ReadGuest(d *jx.Decoder) (GuestInfo, error) {
	var g GuestInfo
	fields := map[string]*string{
		"first_name":  &g.FirstName,
		"last_name":   &g.LastName,
		"email":       &g.Email,
		"phone":       &g.Phone,
		"street":      &g.Street,
		"city":        &g.City,
		"postal_code": &g.PostalCode,
		"country":     &g.Country,
		"note":        &g.Note,
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return GuestInfo{}, errors.Wrap(err, "read guest")
	}
	return g, nil
}

// EncodeGuest returns the JSON form of g.
func EncodeGuest(g GuestInfo) []byte {
	var e jx.Encoder
	WriteGuest(&e, g)
	return e.Bytes()
}

// DecodeGuest parses the JSON form of a guest record.
func DecodeGuest(data []byte) (GuestInfo, error) {
	return ReadGuest(jx.DecodeBytes(data))
}
