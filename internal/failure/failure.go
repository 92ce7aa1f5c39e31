// Package failure classifies checkout errors into the three kinds the UI
// reacts to differently: local validation problems caught before any network
// call, rejections returned by the backend, and transport failures.
package failure

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind is the broad class of a failure.
type Kind int

const (
	// Unknown is anything not produced by this package's types.
	Unknown Kind = iota
	// Local failures never reached the network.
	Local
	// Remote failures were rejected by the backend.
	Remote
	// Transport failures could not reach the backend or read its answer.
	Transport
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Remote:
		return "remote"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error codes shared by the backend's error bodies and the storefront.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeInvalidCoupon   = "invalid_coupon"
	CodeProductNotFound = "product_not_found"
	CodeOutOfStock      = "out_of_stock"
	CodePriceChanged    = "price_changed"
	CodeTotalsMismatch  = "totals_mismatch"
	CodeInvalidDelivery = "invalid_delivery"
	CodeInvalidQuantity = "invalid_quantity"
	CodeInternal        = "internal"
)

// ValidationError is a local validation failure on a specific field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RemoteError is a structured rejection from the backend.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("remote error %d (%s): %s", e.Status, e.Code, e.Message)
}

// TransportError wraps a network or decoding failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	var (
		ve *ValidationError
		re *RemoteError
		te *TransportError
	)
	switch {
	case errors.As(err, &ve):
		return Local
	case errors.As(err, &re):
		return Remote
	case errors.As(err, &te):
		return Transport
	default:
		return Unknown
	}
}

// HasCode reports whether err is a RemoteError with the given code.
func HasCode(err error, code string) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Code == code
}

// Message returns the user-facing text for err: the server message for
// remote rejections, the field reason for validation errors, and fallback
// otherwise.
func Message(err error, fallback string) string {
	var (
		ve *ValidationError
		re *RemoteError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &re) && re.Message != "":
		return re.Message
	default:
		return fallback
	}
}
