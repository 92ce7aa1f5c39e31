// Package storefront serves the cart and checkout JSON API that the shop UI
// talks to. Each request is bound to one storefront session.
package storefront

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/backend"
	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/pricing"
	"github.com/xenking/cheese-kart/pkg/httpmiddleware"
)

// Catalog looks up product snapshots.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*backend.Product, error)
}

// Config configures a Handler.
type Config struct {
	Sessions Sessions
	Catalog  Catalog
	// CouponLimit guards the coupon endpoint, usually a rate limiter keyed
	// by SessionKey. Nil disables it.
	CouponLimit   httpmiddleware.Middleware
	MeterProvider metric.MeterProvider
	CookieMaxAge  time.Duration
	SecureCookie  bool
}

// Handler implements the storefront API.
type Handler struct {
	sessions     Sessions
	catalog      Catalog
	couponLimit  httpmiddleware.Middleware
	cookieMaxAge time.Duration
	secureCookie bool

	couponOutcomes metric.Int64Counter
	orderOutcomes  metric.Int64Counter
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	mp := cfg.MeterProvider
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("github.com/xenking/cheese-kart/internal/storefront")

	couponOutcomes, err := meter.Int64Counter("storefront.coupon.validations",
		metric.WithDescription("Coupon validations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "coupon counter")
	}
	orderOutcomes, err := meter.Int64Counter("storefront.orders",
		metric.WithDescription("Order submissions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order counter")
	}

	limit := cfg.CouponLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = 30 * 24 * time.Hour
	}

	return &Handler{
		sessions:       cfg.Sessions,
		catalog:        cfg.Catalog,
		couponLimit:    limit,
		cookieMaxAge:   cfg.CookieMaxAge,
		secureCookie:   cfg.SecureCookie,
		couponOutcomes: couponOutcomes,
		orderOutcomes:  orderOutcomes,
	}, nil
}

// Register mounts the API on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/items", h.addItem)
		r.Patch("/cart/items/{productId}", h.updateItem)
		r.Delete("/cart/items/{productId}", h.removeItem)
		r.With(h.couponLimit).Post("/cart/coupon", h.applyCoupon)
		r.Delete("/cart/coupon", h.removeCoupon)
		r.Delete("/cart/coupon/rejection", h.dismissCouponRejection)
		r.Put("/cart/payment-method", h.setPaymentMethod)

		r.Get("/checkout/guest", h.getGuest)
		r.Put("/checkout/guest", h.saveGuest)
		r.Post("/checkout", h.placeOrder)
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeCart(w, http.StatusOK, sessionFrom(r.Context()))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	s.Cart().Clear(r.Context())
	writeCart(w, http.StatusOK, s)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFrom(ctx)

	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	req, err := decodeAddItem(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}

	p, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeFailure(w, r, err, "the product could not be loaded right now")
		return
	}

	want := max(req.Quantity, 1)
	if it, ok := s.Cart().Item(p.ID); ok {
		want += it.Quantity
	}
	if want > p.Stock {
		writeError(w, http.StatusUnprocessableEntity, failure.CodeOutOfStock,
			fmt.Sprintf("only %d of %s left in stock", p.Stock, p.Name))
		return
	}

	s.Cart().Add(ctx, p.Product, req.Quantity)
	zctx.From(ctx).Debug("Item added", zap.String("product_id", p.ID), zap.Int("quantity", req.Quantity))
	writeCart(w, http.StatusOK, s)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	id := chi.URLParam(r, "productId")

	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	qty, err := decodeField(d, "quantity", (*jx.Decoder).Int)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	if _, ok := s.Cart().Item(id); !ok {
		writeError(w, http.StatusNotFound, codeItemNotInCart, "the product is not in your cart")
		return
	}

	s.Cart().UpdateQuantity(r.Context(), id, qty)
	writeCart(w, http.StatusOK, s)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	s.Cart().Remove(r.Context(), chi.URLParam(r, "productId"))
	writeCart(w, http.StatusOK, s)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFrom(ctx)

	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	code, err := decodeField(d, "code", (*jx.Decoder).Str)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}

	err = s.ApplyCoupon(ctx, code)
	h.couponOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", couponOutcome(err))))
	if err != nil {
		fallback := checkout.MessageCouponFailed
		if st := s.Coupon(); st.Message != "" {
			fallback = st.Message
		}
		writeFailure(w, r, err, fallback)
		return
	}
	writeCart(w, http.StatusOK, s)
}

func couponOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, checkout.ErrCouponSuperseded):
		return "superseded"
	default:
		return failure.Classify(err).String()
	}
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	s.RemoveCoupon()
	writeCart(w, http.StatusOK, s)
}

// dismissCouponRejection clears a rejection message. An applied coupon
// stays applied.
func (h *Handler) dismissCouponRejection(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	s.ResetCoupon()
	writeCart(w, http.StatusOK, s)
}

func (h *Handler) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())

	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	method, err := decodeField(d, "method", (*jx.Decoder).Str)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	if err := s.SetPaymentMethod(pricing.PaymentMethod(method)); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	writeCart(w, http.StatusOK, s)
}

func (h *Handler) getGuest(w http.ResponseWriter, r *http.Request) {
	g, ok, err := sessionFrom(r.Context()).Guest(r.Context())
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, codeNoGuest, "no guest details saved")
		return
	}
	var e jx.Encoder
	checkout.WriteGuest(&e, g)
	writeJSON(w, http.StatusOK, &e)
}

// saveGuest stores the guest form as typed so far; it is only validated on
// checkout.
func (h *Handler) saveGuest(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	g, err := checkout.ReadGuest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	if err := sessionFrom(r.Context()).SaveGuest(r.Context(), g); err != nil {
		writeFailure(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// placeOrder submits the cart. Without an address or inline guest details the
// saved guest form is used.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	// The backend may accept the order after the client gave up; the cart must
	// still be cleared then.
	ctx := context.WithoutCancel(r.Context())
	s := sessionFrom(ctx)

	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}
	req, err := decodeCheckout(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, err.Error())
		return
	}

	var delivery checkout.Delivery
	switch {
	case req.AddressID != "":
		delivery = checkout.AddressDelivery{AddressID: req.AddressID}
	case req.Guest != nil:
		delivery = checkout.GuestDelivery{Guest: *req.Guest}
	default:
		g, ok, err := s.Guest(ctx)
		if err != nil {
			writeFailure(w, r, err, "")
			return
		}
		if ok {
			delivery = checkout.GuestDelivery{Guest: g}
		}
	}

	conf, err := s.PlaceOrder(backend.WithToken(ctx, bearerToken(r)), delivery)
	h.orderOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", orderOutcome(err))))
	if err != nil {
		writeFailure(w, r, err, "your order could not be placed right now, please try again")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(conf.OrderID)
	e.FieldStart("final_price")
	e.Str(conf.FinalPrice)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func orderOutcome(err error) string {
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		return "duplicate"
	default:
		return failure.Classify(err).String()
	}
}
