// Package handler serves the catalog, coupon and order API consumed by the
// storefront.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/domain/order"
	"github.com/xenking/cheese-kart/internal/domain/product"
)

const maxRequestBody = 256 << 10

// OrderPlacer places verified orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
}

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Customer, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler implements the HTTP API, delegating business logic to the order
// service and the domain repositories.
type Handler struct {
	products     product.Repository
	coupons      coupon.Validator
	orders       OrderPlacer
	authn        Authenticator
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	coupons coupon.Validator,
	orders OrderPlacer,
	authn Authenticator,
) *Handler {
	return &Handler{
		products:     products,
		coupons:      coupons,
		orders:       orders,
		authn:        authn,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/product", h.listProducts)
		r.Get("/product/{productId}", h.getProduct)
		r.Post("/coupon/apply", h.applyCoupon)
		r.With(h.optionalAuth).Post("/order", h.placeOrder)
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
