package storefront

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/pkg/httpmiddleware"
)

// Storefront-only error codes. Backend rejections keep the backend's code.
const (
	codeValidation         = "validation_failed"
	codeSessionUnavailable = "session_unavailable"
	codeBackendUnavailable = "backend_unavailable"
	codeSubmissionPending  = "submission_in_progress"
	codeCouponSuperseded   = "coupon_superseded"
	codeItemNotInCart      = "item_not_in_cart"
	codeNoGuest            = "guest_not_found"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	httpmiddleware.WriteError(w, status, code, message)
}

// writeFailure maps err to a response by failure kind: local problems are the
// caller's fault, backend rejections pass through, and an unreachable backend
// is a bad gateway.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	lg := zctx.From(r.Context())

	switch {
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		writeError(w, http.StatusConflict, codeSubmissionPending, "your order is already being submitted")
		return
	case errors.Is(err, checkout.ErrCouponSuperseded):
		writeError(w, http.StatusConflict, codeCouponSuperseded, "a newer coupon request replaced this one")
		return
	}

	switch failure.Classify(err) {
	case failure.Local:
		writeError(w, http.StatusBadRequest, codeValidation, failure.Message(err, fallback))
	case failure.Remote:
		var re *failure.RemoteError
		errors.As(err, &re)
		if re.Status >= http.StatusInternalServerError {
			lg.Warn("Backend error", zap.Error(err))
			writeError(w, http.StatusBadGateway, codeBackendUnavailable, fallback)
			return
		}
		writeError(w, re.Status, re.Code, failure.Message(err, fallback))
	case failure.Transport:
		lg.Warn("Backend unreachable", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeBackendUnavailable, fallback)
	default:
		lg.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, failure.CodeInternal, "internal server error")
	}
}
