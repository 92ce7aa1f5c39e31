package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/pricing"
	"github.com/xenking/cheese-kart/internal/storage"
)

// ErrSubmissionInProgress is returned when an order is placed while a previous
// submission for the same session has not finished.
var ErrSubmissionInProgress = errors.New("order submission already in progress")

// OrderCreator submits an assembled order to the backend.
type OrderCreator interface {
	CreateOrder(ctx context.Context, draft *OrderDraft) (*Confirmation, error)
}

// Confirmation is the backend's answer to a successful order submission.
type Confirmation struct {
	OrderID    string
	FinalPrice string
}

// Session ties together one storefront session's cart, coupon and payment
// choice. Totals are always derived, never stored.
type Session struct {
	id      string
	cart    *cart.Store
	coupon  *Coupon
	rules   pricing.Rules
	creator OrderCreator
	storage storage.Storage
	lg      *zap.Logger

	mu     sync.RWMutex
	method pricing.PaymentMethod

	submitting atomic.Bool
}

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Rules     pricing.Rules
	Validator CouponValidator
	Creator   OrderCreator
	// Storage keeps guest checkout details. Nil disables persistence.
	Storage storage.Storage
	Logger  *zap.Logger
}

// NewSession wires a session around an already loaded cart. The coupon is
// removed whenever the cart becomes empty.
func NewSession(id string, store *cart.Store, cfg SessionConfig) *Session {
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &Session{
		id:      id,
		cart:    store,
		coupon:  NewCoupon(cfg.Validator, lg),
		rules:   cfg.Rules,
		creator: cfg.Creator,
		storage: cfg.Storage,
		lg:      lg,
		method:  pricing.BankTransfer,
	}
	store.OnEmptied(func(context.Context) {
		s.coupon.Remove()
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Cart returns the session's cart store.
func (s *Session) Cart() *cart.Store { return s.cart }

// Coupon returns the current coupon state.
func (s *Session) Coupon() CouponState { return s.coupon.State() }

// Rules returns the pricing rules in effect.
func (s *Session) Rules() pricing.Rules { return s.rules }

// ApplyCoupon validates code against the cart's discounted subtotal.
func (s *Session) ApplyCoupon(ctx context.Context, code string) error {
	return s.coupon.Apply(ctx, code, s.cart.DiscountedSubtotal())
}

// RemoveCoupon clears the coupon.
func (s *Session) RemoveCoupon() { s.coupon.Remove() }

// ResetCoupon dismisses a rejected coupon.
func (s *Session) ResetCoupon() { s.coupon.Reset() }

// PaymentMethod returns the selected payment method.
func (s *Session) PaymentMethod() pricing.PaymentMethod {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.method
}

// SetPaymentMethod selects the payment method.
func (s *Session) SetPaymentMethod(m pricing.PaymentMethod) error {
	m, err := pricing.ParsePaymentMethod(string(m))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.method = m
	return nil
}

// Totals prices the cart as it is right now.
func (s *Session) Totals() pricing.Totals {
	subtotal, discounted := s.cart.Sums()
	return s.rules.Compute(pricing.Input{
		Subtotal:           subtotal,
		DiscountedSubtotal: discounted,
		Discount:           s.coupon.State().Discount(),
		Method:             s.PaymentMethod(),
	})
}

// SaveGuest stores guest checkout details for the session.
func (s *Session) SaveGuest(ctx context.Context, g GuestInfo) error {
	if s.storage == nil {
		return nil
	}
	if err := s.storage.Save(ctx, storage.GuestCheckoutKey(s.id), EncodeGuest(g)); err != nil {
		return errors.Wrap(err, "save guest")
	}
	return nil
}

// Guest returns previously saved guest details. The boolean is false when
// nothing was saved.
func (s *Session) Guest(ctx context.Context) (GuestInfo, bool, error) {
	if s.storage == nil {
		return GuestInfo{}, false, nil
	}
	data, err := s.storage.Load(ctx, storage.GuestCheckoutKey(s.id))
	if errors.Is(err, storage.ErrNotFound) {
		return GuestInfo{}, false, nil
	}
	if err != nil {
		return GuestInfo{}, false, errors.Wrap(err, "load guest")
	}
	g, err := DecodeGuest(data)
	if err != nil {
		s.lg.Warn("Discarding unreadable guest details", zap.String("session", s.id), zap.Error(err))
		return GuestInfo{}, false, nil
	}
	return g, true, nil
}

// Submitting reports whether an order submission is in flight.
func (s *Session) Submitting() bool {
	return s.submitting.Load()
}

// PlaceOrder assembles and submits the cart. Only one submission may be in
// flight per session. The submitted lines leave the cart only after the
// backend accepts the order; on any failure the session is left untouched.
// Changes made while the order is in flight are kept.
func (s *Session) PlaceOrder(ctx context.Context, delivery Delivery) (*Confirmation, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer s.submitting.Store(false)

	items, version := s.cart.Snapshot()
	coupon, couponGen := s.coupon.snapshot()
	draft, err := Assemble(items, coupon, s.PaymentMethod(), s.rules, delivery)
	if err != nil {
		return nil, err
	}

	conf, err := s.creator.CreateOrder(ctx, draft)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.lg.Info("Order placed",
		zap.String("session", s.id),
		zap.String("order_id", conf.OrderID),
		zap.String("final_price", conf.FinalPrice),
	)
	s.cart.Settle(ctx, version, items)
	if draft.CouponCode != nil {
		// The order redeemed the coupon.
		s.coupon.removeIf(couponGen)
	}
	if _, ok := delivery.(GuestDelivery); ok && s.storage != nil {
		if err := s.storage.Delete(ctx, storage.GuestCheckoutKey(s.id)); err != nil {
			s.lg.Warn("Failed to drop guest details", zap.String("session", s.id), zap.Error(err))
		}
	}
	return conf, nil
}
