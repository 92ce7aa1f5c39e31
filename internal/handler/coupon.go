package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
)

type applyCouponRequest struct {
	Code      string
	CartTotal decimal.Decimal
}

func decodeApplyCoupon(data []byte) (applyCouponRequest, error) {
	var (
		req      applyCouponRequest
		hasTotal bool
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "cart_total":
			req.CartTotal, err = money.ReadDecimal(d)
			hasTotal = true
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	switch {
	case err != nil:
		return req, err
	case !hasTotal:
		return req, errors.New("cart_total is required")
	case req.CartTotal.IsNegative():
		return req, errors.New("cart_total must not be negative")
	}
	return req, nil
}

// applyCoupon previews what a code takes off a cart. Nothing is redeemed.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	req, err := decodeApplyCoupon(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}

	d, err := h.coupons.Validate(r.Context(), req.Code, req.CartTotal)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(d.Code)
	e.FieldStart("discount_amount")
	money.WriteFixed(&e, d.Amount)
	e.FieldStart("description")
	e.Str(d.Description)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
