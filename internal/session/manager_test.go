package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/pricing"
	"github.com/xenking/cheese-kart/internal/storage/memory"
)

func newTestManager(t *testing.T) (*Manager, *memory.Storage) {
	t.Helper()

	st := memory.New()
	return NewManager(Config{Storage: st, Rules: pricing.DefaultRules()}), st
}

func brie() cart.Product {
	return cart.Product{ID: "brie", Name: "Brie de Meaux", BasePrice: decimal.RequireFromString("320")}
}

func TestManager_GetCachesSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s1, err := m.Get(ctx, "abc")
	require.NoError(t, err)
	s2, err := m.Get(ctx, "abc")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, "abc", s1.ID())
	assert.Equal(t, 1, m.Len())
}

func TestManager_GetRejectsEmptyID(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "")
	require.Error(t, err)
}

func TestManager_RestoresCartFromStorage(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	first := NewManager(Config{Storage: st, Rules: pricing.DefaultRules()})
	s, err := first.Get(ctx, "abc")
	require.NoError(t, err)
	s.Cart().Add(ctx, brie(), 2)

	// A fresh manager stands in for a restarted process.
	second := NewManager(Config{Storage: st, Rules: pricing.DefaultRules()})
	restored, err := second.Get(ctx, "abc")
	require.NoError(t, err)

	items := restored.Cart().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "brie", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("640").Equal(restored.Cart().Subtotal()))
}

func TestManager_ConcurrentGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	const callers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[any]struct{}{}
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Get(ctx, "shared")
			assert.NoError(t, err)
			mu.Lock()
			ids[s] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "all callers share one session")
}

func TestManager_Evict(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	s.Cart().Add(ctx, brie(), 1)
	_, err = m.Get(ctx, "active")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = m.Get(ctx, "active")
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, m.Evict())
	assert.Equal(t, 1, m.Len())

	// The evicted cart is still in storage and comes back on demand.
	assert.Equal(t, 1, st.Len())
	s, err = m.Get(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cart().Len())
}
