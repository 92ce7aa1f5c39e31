package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cheese-kart/internal/failure"
)

// --- Mock implementations ---

type couponResult struct {
	amount decimal.Decimal
	err    error
}

// fakeValidator answers from a fixed table.
type fakeValidator struct {
	mu      sync.Mutex
	results map[string]couponResult
	calls   []string
}

func (f *fakeValidator) ApplyCoupon(_ context.Context, code string, _ decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, code)
	r, ok := f.results[code]
	if !ok {
		return decimal.Zero, &failure.RemoteError{Status: 422, Code: failure.CodeInvalidCoupon}
	}
	return r.amount, r.err
}

// gatedValidator blocks each call until the test releases that code.
type gatedValidator struct {
	mu      sync.Mutex
	started map[string]chan struct{}
	release map[string]chan couponResult
}

func newGatedValidator(codes ...string) *gatedValidator {
	g := &gatedValidator{
		started: make(map[string]chan struct{}),
		release: make(map[string]chan couponResult),
	}
	for _, c := range codes {
		g.started[c] = make(chan struct{})
		g.release[c] = make(chan couponResult, 1)
	}
	return g
}

func (g *gatedValidator) ApplyCoupon(ctx context.Context, code string, _ decimal.Decimal) (decimal.Decimal, error) {
	g.mu.Lock()
	started, release := g.started[code], g.release[code]
	g.mu.Unlock()

	close(started)
	select {
	case r := <-release:
		return r.amount, r.err
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

// --- Tests ---

func TestCoupon_ApplySuccess(t *testing.T) {
	v := &fakeValidator{results: map[string]couponResult{
		"CHEESE10": {amount: d("40")},
	}}
	c := NewCoupon(v, nil)

	require.NoError(t, c.Apply(context.Background(), "  cheese10 ", d("400")))

	st := c.State()
	assert.Equal(t, CouponApplied, st.Status)
	assert.Equal(t, "CHEESE10", st.Code)
	assert.True(t, d("40").Equal(st.Discount()))
	assert.True(t, st.Active())
	assert.Equal(t, []string{"CHEESE10"}, v.calls)
}

func TestCoupon_ApplyEmptyCode(t *testing.T) {
	v := &fakeValidator{}
	c := NewCoupon(v, nil)

	for _, code := range []string{"", "   ", "\t\n"} {
		err := c.Apply(context.Background(), code, d("400"))
		require.ErrorIs(t, err, ErrEmptyCouponCode)
		assert.Equal(t, failure.Local, failure.Classify(err))
	}
	assert.Empty(t, v.calls, "blank codes never reach the validator")
	assert.Equal(t, CouponIdle, c.State().Status)
}

func TestCoupon_ApplyRejected(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "invalid coupon with server message",
			err:     &failure.RemoteError{Status: 422, Code: failure.CodeInvalidCoupon, Message: "Coupon expired"},
			wantMsg: "Coupon expired",
		},
		{
			name:    "invalid coupon without message",
			err:     &failure.RemoteError{Status: 422, Code: failure.CodeInvalidCoupon},
			wantMsg: MessageInvalidCoupon,
		},
		{
			name:    "server error",
			err:     &failure.RemoteError{Status: 500, Code: failure.CodeInternal, Message: "boom"},
			wantMsg: MessageCouponFailed,
		},
		{
			name:    "transport",
			err:     &failure.TransportError{Op: "apply coupon", Err: errors.New("connection refused")},
			wantMsg: MessageCouponFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeValidator{results: map[string]couponResult{
				"GOOD":  {amount: d("25")},
				"OTHER": {err: tt.err},
			}}
			c := NewCoupon(v, nil)
			require.NoError(t, c.Apply(context.Background(), "GOOD", d("400")))

			err := c.Apply(context.Background(), "OTHER", d("400"))
			require.Error(t, err)

			st := c.State()
			assert.Equal(t, CouponRejected, st.Status)
			assert.Equal(t, tt.wantMsg, st.Message)
			assert.True(t, st.Discount().IsZero(), "a rejection clears the previous discount")
			assert.False(t, st.Active())

			c.Reset()
			assert.Equal(t, CouponIdle, c.State().Status)
		})
	}
}

func TestCoupon_NegativeAmountClamped(t *testing.T) {
	v := &fakeValidator{results: map[string]couponResult{"ODD": {amount: d("-5")}}}
	c := NewCoupon(v, nil)

	require.NoError(t, c.Apply(context.Background(), "ODD", d("100")))
	assert.True(t, c.State().Discount().IsZero())
}

func TestCoupon_ResetIgnoresApplied(t *testing.T) {
	v := &fakeValidator{results: map[string]couponResult{"GOOD": {amount: d("10")}}}
	c := NewCoupon(v, nil)
	require.NoError(t, c.Apply(context.Background(), "GOOD", d("100")))

	c.Reset()
	assert.Equal(t, CouponApplied, c.State().Status)
}

func TestCoupon_LastStartedWins(t *testing.T) {
	// Two rapid applies; the older request answers last.
	g := newGatedValidator("FIRST", "SECOND")
	c := NewCoupon(g, nil)
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- c.Apply(ctx, "FIRST", d("400")) }()
	<-g.started["FIRST"]
	go func() { errs <- c.Apply(ctx, "SECOND", d("400")) }()
	<-g.started["SECOND"]

	assert.Equal(t, CouponValidating, c.State().Status)
	assert.True(t, c.State().Discount().IsZero(), "no discount while validating")

	g.release["SECOND"] <- couponResult{amount: d("20")}
	require.NoError(t, <-errs)
	g.release["FIRST"] <- couponResult{amount: d("99")}
	require.ErrorIs(t, <-errs, ErrCouponSuperseded)

	st := c.State()
	assert.Equal(t, CouponApplied, st.Status)
	assert.Equal(t, "SECOND", st.Code)
	assert.True(t, d("20").Equal(st.DiscountAmount))
}

func TestCoupon_LastStartedWinsInOrder(t *testing.T) {
	g := newGatedValidator("FIRST", "SECOND")
	c := NewCoupon(g, nil)
	ctx := context.Background()

	first := make(chan error, 1)
	second := make(chan error, 1)
	go func() { first <- c.Apply(ctx, "FIRST", d("400")) }()
	<-g.started["FIRST"]
	go func() { second <- c.Apply(ctx, "SECOND", d("400")) }()
	<-g.started["SECOND"]

	g.release["FIRST"] <- couponResult{amount: d("99")}
	require.ErrorIs(t, <-first, ErrCouponSuperseded)
	assert.Equal(t, CouponValidating, c.State().Status, "stale response does not leave validating")

	g.release["SECOND"] <- couponResult{err: &failure.RemoteError{Status: 422, Code: failure.CodeInvalidCoupon}}
	require.Error(t, <-second)

	st := c.State()
	assert.Equal(t, CouponRejected, st.Status)
	assert.Equal(t, "SECOND", st.Code)
}

func TestCoupon_RemoveDiscardsInFlight(t *testing.T) {
	g := newGatedValidator("LATE")
	c := NewCoupon(g, nil)

	done := make(chan error, 1)
	go func() { done <- c.Apply(context.Background(), "LATE", d("400")) }()
	<-g.started["LATE"]

	c.Remove()
	g.release["LATE"] <- couponResult{amount: d("50")}
	require.ErrorIs(t, <-done, ErrCouponSuperseded)

	st := c.State()
	assert.Equal(t, CouponIdle, st.Status)
	assert.Empty(t, st.Code)
	assert.True(t, st.Discount().IsZero())
}
