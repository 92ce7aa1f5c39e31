package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/order"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
)

// placeOrder decodes the submitted draft, delegates to the order service and
// returns the stored order's identity and verified totals.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	draft, err := checkout.DecodeDraft(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}

	o, err := h.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		Draft:    draft,
		Customer: auth.CustomerFrom(ctx),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("final_price", money.Format(o.Totals.Final)),
		zap.Int("items", len(o.Items)),
		zap.Bool("guest", o.Guest != nil),
	)

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(o.Status)
	e.FieldStart("final_price")
	money.WriteFixed(e, o.Totals.Final)

	e.FieldStart("totals")
	e.ObjStart()
	e.FieldStart("subtotal")
	money.WriteFixed(e, o.Totals.Subtotal)
	e.FieldStart("discount")
	money.WriteFixed(e, o.Totals.Discount)
	e.FieldStart("shipping_cost")
	money.WriteFixed(e, o.Totals.Shipping)
	e.FieldStart("surcharge")
	money.WriteFixed(e, o.Totals.Surcharge)
	e.FieldStart("final_price")
	money.WriteFixed(e, o.Totals.Final)
	e.ObjEnd()

	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}
