package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/failure"
)

// CouponStatus is the state of the coupon subsystem.
type CouponStatus string

const (
	// CouponIdle means no coupon is entered.
	CouponIdle CouponStatus = "idle"
	// CouponValidating means a code is being checked by the pricing service.
	CouponValidating CouponStatus = "validating"
	// CouponApplied means the discount counts toward the total.
	CouponApplied CouponStatus = "applied"
	// CouponRejected means the last code was refused; Message says why.
	CouponRejected CouponStatus = "rejected"
)

// User-facing coupon messages.
const (
	MessageInvalidCoupon = "This coupon code is invalid or has expired."
	MessageCouponFailed  = "The coupon could not be applied right now. Please try again."
)

var (
	// ErrEmptyCouponCode is returned for blank codes; no request is made.
	ErrEmptyCouponCode = &failure.ValidationError{Field: "code", Reason: "coupon code is required"}
	// ErrCouponSuperseded is returned when a newer apply or a removal
	// happened while the validation was in flight. Its result is discarded.
	ErrCouponSuperseded = errors.New("coupon validation superseded")
)

// CouponValidator checks a code against the pricing service and returns the
// absolute discount amount.
type CouponValidator interface {
	ApplyCoupon(ctx context.Context, code string, cartTotal decimal.Decimal) (decimal.Decimal, error)
}

// CouponState is a snapshot of the coupon subsystem.
type CouponState struct {
	Code           string
	DiscountAmount decimal.Decimal
	Status         CouponStatus
	// Message explains a rejection.
	Message string
}

// Active reports whether the coupon currently discounts the cart.
func (s CouponState) Active() bool {
	return s.Status == CouponApplied
}

// Discount returns the discount to price with: the stored amount when
// applied, zero otherwise.
func (s CouponState) Discount() decimal.Decimal {
	if !s.Active() {
		return decimal.Zero
	}
	return s.DiscountAmount
}

// Coupon holds at most one coupon code and its validated discount.
//
// Every Apply and Remove bumps a generation counter. A validation response is
// only stored if its generation is still current, so the most recently
// started request wins regardless of the order responses arrive in.
type Coupon struct {
	validator CouponValidator
	lg        *zap.Logger

	mu         sync.Mutex
	state      CouponState
	generation uint64
}

// NewCoupon creates an idle coupon subsystem.
func NewCoupon(validator CouponValidator, lg *zap.Logger) *Coupon {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Coupon{
		validator: validator,
		lg:        lg,
		state:     idleState(),
	}
}

func idleState() CouponState {
	return CouponState{Status: CouponIdle, DiscountAmount: decimal.Zero}
}

// State returns the current coupon state.
func (c *Coupon) State() CouponState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Apply validates code against cartTotal and, on success, replaces any
// previously applied coupon. Blank codes fail locally without touching the
// state. While the request is in flight the state is validating and no
// discount is counted.
func (c *Coupon) Apply(ctx context.Context, code string, cartTotal decimal.Decimal) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ErrEmptyCouponCode
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = CouponState{Code: code, Status: CouponValidating, DiscountAmount: decimal.Zero}
	c.mu.Unlock()

	amount, err := c.validator.ApplyCoupon(ctx, code, cartTotal)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.lg.Debug("Discarding stale coupon response",
			zap.String("code", code),
			zap.Uint64("generation", gen),
			zap.Uint64("current", c.generation),
		)
		return ErrCouponSuperseded
	}

	if err != nil {
		msg := MessageCouponFailed
		if failure.HasCode(err, failure.CodeInvalidCoupon) {
			msg = failure.Message(err, MessageInvalidCoupon)
		}
		c.state = CouponState{
			Code:           code,
			Status:         CouponRejected,
			DiscountAmount: decimal.Zero,
			Message:        msg,
		}
		return errors.Wrap(err, "apply coupon")
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	c.state = CouponState{Code: code, Status: CouponApplied, DiscountAmount: amount}
	return nil
}

// snapshot returns the state and the generation it belongs to.
func (c *Coupon) snapshot() (CouponState, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state, c.generation
}

// removeIf clears the coupon unless it was applied or removed after gen.
func (c *Coupon) removeIf(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return
	}
	c.generation++
	c.state = idleState()
}

// Remove clears the coupon and discards any in-flight validation.
func (c *Coupon) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.state = idleState()
}

// Reset returns a rejected coupon to idle. Other states are left alone.
func (c *Coupon) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status == CouponRejected {
		c.state = idleState()
	}
}
