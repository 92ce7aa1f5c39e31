package storefront

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/checkout"
)

const (
	// HeaderSessionID carries the storefront session for API clients.
	HeaderSessionID = "X-Session-ID"
	// CookieSession carries the storefront session for browsers.
	CookieSession = "kart_session"

	maxSessionIDLen = 64
)

// Sessions resolves a storefront session by ID.
type Sessions interface {
	Get(ctx context.Context, id string) (*checkout.Session, error)
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *checkout.Session {
	s, _ := ctx.Value(sessionKey{}).(*checkout.Session)
	return s
}

// SessionKey returns the session ID of a request that went through the
// session middleware. Used to key per-session rate limits.
func SessionKey(r *http.Request) string {
	if s := sessionFrom(r.Context()); s != nil {
		return s.ID()
	}
	return ""
}

// requestSessionID reads the session ID from the header, then the cookie.
func requestSessionID(r *http.Request) (string, bool) {
	if id := r.Header.Get(HeaderSessionID); validSessionID(id) {
		return id, true
	}
	if c, err := r.Cookie(CookieSession); err == nil && validSessionID(c.Value) {
		return c.Value, true
	}
	return "", false
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	return strings.IndexFunc(id, func(c rune) bool {
		return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_')
	}) < 0
}

// withSession attaches the caller's session to the request, minting a new
// session ID when none was sent. The ID is echoed in a header and a cookie.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := requestSessionID(r)
		if !ok {
			id = uuid.NewString()
		}

		s, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			zctx.From(r.Context()).Error("Failed to load session", zap.String("session", id), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, codeSessionUnavailable, "your cart could not be loaded, please retry")
			return
		}

		w.Header().Set(HeaderSessionID, id)
		http.SetCookie(w, &http.Cookie{
			Name:     CookieSession,
			Value:    id,
			Path:     "/",
			MaxAge:   int(h.cookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := context.WithValue(r.Context(), sessionKey{}, s)
		ctx = zctx.With(ctx, zap.String("session", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts a customer token from the Authorization header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}
