package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/domain/order"
	"github.com/xenking/cheese-kart/internal/failure"
	"github.com/xenking/cheese-kart/internal/money"
	"github.com/xenking/cheese-kart/pkg/httpmiddleware"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	httpmiddleware.WriteError(w, status, code, message)
}

// writeDomainError converts domain errors to error responses. Anything
// unrecognised is logged and reported as an internal error.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *failure.ValidationError
		quantity   *order.InvalidQuantityError
		notFound   *order.ProductNotFoundError
		price      *order.PriceChangedError
		stock      *order.OutOfStockError
		mismatch   *order.TotalsMismatchError
		minimum    *coupon.MinimumNotMetError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, failure.CodeBadRequest, validation.Error())
	case errors.As(err, &quantity):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeInvalidQuantity, quantity.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeProductNotFound, notFound.Error())
	case errors.As(err, &price):
		writeError(w, http.StatusConflict, failure.CodePriceChanged,
			fmt.Sprintf("The price of %s changed to %s. Please review your cart.", price.ProductID, price.Current))
	case errors.As(err, &stock):
		writeError(w, http.StatusConflict, failure.CodeOutOfStock,
			fmt.Sprintf("Only %d of %s left in stock.", stock.Available, stock.ProductID))
	case errors.As(err, &mismatch):
		writeError(w, http.StatusConflict, failure.CodeTotalsMismatch, mismatch.Error())
	case errors.Is(err, order.ErrUnknownAddress):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeInvalidDelivery, "unknown delivery address")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, failure.CodeUnauthorized, "sign in to deliver to a saved address")
	case errors.As(err, &minimum):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeInvalidCoupon,
			fmt.Sprintf("This coupon needs a cart total of at least %s.", money.Format(minimum.Minimum)))
	case errors.Is(err, coupon.ErrCouponExpired):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeInvalidCoupon, "This coupon has expired.")
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeInvalidCoupon, "This coupon is no longer available.")
	case errors.Is(err, coupon.ErrInvalidCoupon):
		writeError(w, http.StatusUnprocessableEntity, failure.CodeInvalidCoupon, "This coupon code is not valid.")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, failure.CodeInternal, "internal server error")
	}
}
