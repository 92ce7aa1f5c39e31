package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/storage"
)

// EmptiedFunc is notified after a mutation leaves the cart empty.
type EmptiedFunc func(ctx context.Context)

// Store is the canonical ordered set of line items for one storefront
// session. It is safe for concurrent use; readers receive copies.
//
// Every mutation is applied in memory first and then persisted. A failed
// write is logged and does not roll back or block the in-memory change.
type Store struct {
	mu    sync.RWMutex
	items []LineItem
	index map[string]int // productID -> position in items

	subtotal           decimal.Decimal
	discountedSubtotal decimal.Decimal

	onEmptied []EmptiedFunc

	// seq orders snapshots so a slow write never overwrites a newer one.
	seq       uint64
	persistMu sync.Mutex
	persisted uint64

	storage        storage.Storage
	key            string
	persistTimeout time.Duration
	lg             *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersistTimeout bounds each write to storage.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) { s.persistTimeout = d }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) { s.lg = lg }
}

// NewStore creates an empty store persisting under the given session's key.
// A nil storage disables persistence.
func NewStore(st storage.Storage, sessionID string, opts ...Option) *Store {
	s := &Store{
		index:              make(map[string]int),
		subtotal:           decimal.Zero,
		discountedSubtotal: decimal.Zero,
		storage:            st,
		key:                storage.CartKey(sessionID),
		persistTimeout:     2 * time.Second,
		lg:                 zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load restores the session's cart from storage. A missing snapshot yields an
// empty store; an unreadable one is logged and discarded.
func Load(ctx context.Context, st storage.Storage, sessionID string, opts ...Option) (*Store, error) {
	s := NewStore(st, sessionID, opts...)
	if st == nil {
		return s, nil
	}

	data, err := st.Load(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	items, err := DecodeItems(data)
	if err != nil {
		s.lg.Warn("Discarding unreadable cart snapshot",
			zap.String("key", s.key),
			zap.Error(err),
		)
		return s, nil
	}

	for _, it := range items {
		if _, ok := s.index[it.ProductID]; ok {
			continue
		}
		s.index[it.ProductID] = len(s.items)
		s.items = append(s.items, it)
	}
	s.subtotal, s.discountedSubtotal = sums(s.items)
	return s, nil
}

// OnEmptied registers fn to be called whenever a mutation leaves the cart
// empty. Callbacks run after the store lock is released.
func (s *Store) OnEmptied(fn EmptiedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onEmptied = append(s.onEmptied, fn)
}

// Add appends a new line item for p, or increments the quantity of the
// existing one. Non-positive quantities count as 1.
func (s *Store) Add(ctx context.Context, p Product, qty int) {
	s.mu.Lock()
	if i, ok := s.index[p.ID]; ok {
		old := s.items[i]
		s.replace(i, old.WithQuantity(old.Quantity+clampQuantity(qty)))
	} else {
		it := NewLineItem(p, qty)
		s.index[it.ProductID] = len(s.items)
		s.items = append(s.items, it)
		s.subtotal = s.subtotal.Add(it.BaseTotal())
		s.discountedSubtotal = s.discountedSubtotal.Add(it.LineTotal())
	}
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// UpdateQuantity sets the quantity of an existing item, clamped to at least 1.
// Unknown product IDs are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) {
	s.mu.Lock()
	i, ok := s.index[productID]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.replace(i, s.items[i].WithQuantity(qty))
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// Remove deletes the item for productID. Unknown IDs are ignored. Removing
// the last item notifies OnEmptied subscribers.
func (s *Store) Remove(ctx context.Context, productID string) {
	s.mu.Lock()
	i, ok := s.index[productID]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.removeAt(i)

	emptied := len(s.items) == 0
	snapshot := s.snapshot()
	listeners := s.listeners(emptied)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	notify(ctx, listeners)
}

// Clear empties the cart and notifies OnEmptied subscribers.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.reset()
	listeners := s.listeners(true)
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	notify(ctx, listeners)
}

// Settle takes submitted lines out of the cart once an order for them was
// accepted. A cart that has not changed since version is cleared. Otherwise
// only the submitted quantities are removed, so lines added or grown after
// the order was assembled stay in the cart.
func (s *Store) Settle(ctx context.Context, version uint64, submitted []LineItem) {
	s.mu.Lock()
	if s.seq == version {
		s.reset()
	} else {
		for _, sub := range submitted {
			i, ok := s.index[sub.ProductID]
			if !ok {
				continue
			}
			cur := s.items[i]
			if left := cur.Quantity - sub.Quantity; left > 0 {
				s.replace(i, cur.WithQuantity(left))
				continue
			}
			s.removeAt(i)
		}
	}

	emptied := len(s.items) == 0
	snapshot := s.snapshot()
	listeners := s.listeners(emptied)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	notify(ctx, listeners)
}

// Snapshot returns a copy of the items and the mutation number they reflect.
func (s *Store) Snapshot() ([]LineItem, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyItems(), s.seq
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyItems()
}

// Item returns the line item for productID.
func (s *Store) Item(productID string) (LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[productID]
	if !ok {
		return LineItem{}, false
	}
	return s.items[i].clone(), true
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// Quantity returns the total number of units across all items.
func (s *Store) Quantity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// Subtotal is the sum of BasePrice * Quantity, before any discount.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.subtotal
}

// DiscountedSubtotal is the sum of line totals after catalog discounts. It is
// the base the coupon discount applies to.
func (s *Store) DiscountedSubtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.discountedSubtotal
}

// Sums returns both subtotals under one lock.
func (s *Store) Sums() (subtotal, discounted decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.subtotal, s.discountedSubtotal
}

// Recompute sums the current items from scratch.
func (s *Store) Recompute() (subtotal, discounted decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sums(s.items)
}

// replace swaps item i and adjusts running sums. Caller holds mu.
func (s *Store) replace(i int, it LineItem) {
	old := s.items[i]
	s.subtotal = s.subtotal.Sub(old.BaseTotal()).Add(it.BaseTotal())
	s.discountedSubtotal = s.discountedSubtotal.Sub(old.LineTotal()).Add(it.LineTotal())
	s.items[i] = it
}

// removeAt deletes item i and adjusts running sums. Caller holds mu.
func (s *Store) removeAt(i int) {
	it := s.items[i]
	s.subtotal = s.subtotal.Sub(it.BaseTotal())
	s.discountedSubtotal = s.discountedSubtotal.Sub(it.LineTotal())

	items := make([]LineItem, 0, len(s.items)-1)
	items = append(items, s.items[:i]...)
	items = append(items, s.items[i+1:]...)
	s.items = items
	s.reindex()
}

// reset drops every item. Caller holds mu.
func (s *Store) reset() {
	s.items = nil
	s.index = make(map[string]int)
	s.subtotal = decimal.Zero
	s.discountedSubtotal = decimal.Zero
}

// copyItems deep-copies the items. Caller holds mu.
func (s *Store) copyItems() []LineItem {
	out := make([]LineItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.clone()
	}
	return out
}

// reindex rebuilds the position index. Caller holds mu.
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, it := range s.items {
		s.index[it.ProductID] = i
	}
}

// listeners copies the subscriber list when emptied is set. Caller holds mu.
func (s *Store) listeners(emptied bool) []EmptiedFunc {
	if !emptied || len(s.onEmptied) == 0 {
		return nil
	}
	out := make([]EmptiedFunc, len(s.onEmptied))
	copy(out, s.onEmptied)
	return out
}

func (s *Store) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	// Persistence outlives a cancelled request: the in-memory state already
	// changed.
	return context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
}

// pendingSnapshot is an encoded cart state tagged with its mutation number.
// A nil data slice means the cart was cleared.
type pendingSnapshot struct {
	seq  uint64
	data []byte
}

// snapshot encodes the current items. Caller holds mu.
func (s *Store) snapshot() pendingSnapshot {
	s.seq++
	if len(s.items) == 0 {
		return pendingSnapshot{seq: s.seq}
	}
	return pendingSnapshot{seq: s.seq, data: EncodeItems(s.items)}
}

func (s *Store) persist(ctx context.Context, snap pendingSnapshot) {
	if s.storage == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if snap.seq <= s.persisted {
		return
	}
	s.persisted = snap.seq

	pctx, cancel := s.persistContext(ctx)
	defer cancel()

	if snap.data == nil {
		if err := s.storage.Delete(pctx, s.key); err != nil {
			s.lg.Warn("Failed to delete cart snapshot", zap.String("key", s.key), zap.Error(err))
		}
		return
	}
	if err := s.storage.Save(pctx, s.key, snap.data); err != nil {
		s.lg.Warn("Failed to persist cart", zap.String("key", s.key), zap.Error(err))
	}
}

func notify(ctx context.Context, listeners []EmptiedFunc) {
	for _, fn := range listeners {
		fn(ctx)
	}
}

func sums(items []LineItem) (subtotal, discounted decimal.Decimal) {
	subtotal, discounted = decimal.Zero, decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.BaseTotal())
		discounted = discounted.Add(it.LineTotal())
	}
	return subtotal, discounted
}
