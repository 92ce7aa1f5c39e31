package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/failure"
)

// optionalAuth authenticates a bearer token when one is sent. Requests without
// an Authorization header continue anonymously; a bad token is rejected.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, failure.CodeUnauthorized, "malformed authorization header")
			return
		}

		ctx := r.Context()
		c, err := h.authn.Authenticate(ctx, strings.TrimSpace(token))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				zctx.From(ctx).Error("Authenticate", zap.Error(err))
			}
			writeError(w, http.StatusUnauthorized, failure.CodeUnauthorized, "invalid token")
			return
		}

		ctx = zctx.With(auth.WithCustomer(ctx, c), zap.String("customer_id", c.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
