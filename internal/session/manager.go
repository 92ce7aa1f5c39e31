// Package session keeps one checkout session per storefront session ID,
// restoring carts from storage on first use.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/cheese-kart/internal/cart"
	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/pricing"
	"github.com/xenking/cheese-kart/internal/storage"
)

// Config holds the collaborators shared by every session.
type Config struct {
	Storage   storage.Storage
	Rules     pricing.Rules
	Validator checkout.CouponValidator
	Creator   checkout.OrderCreator
	Logger    *zap.Logger
	// IdleTimeout drops sessions from memory after inactivity. Their carts
	// remain in storage.
	IdleTimeout time.Duration
	// PersistTimeout bounds each cart write.
	PersistTimeout time.Duration
}

type entry struct {
	session  *checkout.Session
	lastSeen time.Time
}

// Manager caches loaded sessions.
type Manager struct {
	cfg Config
	lg  *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	loads    singleflight.Group
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = 2 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the session for id, loading its cart from storage the first
// time. Concurrent first requests for the same id share one load.
func (m *Manager) Get(ctx context.Context, id string) (*checkout.Session, error) {
	if id == "" {
		return nil, errors.New("empty session id")
	}
	if s, ok := m.cached(id); ok {
		return s, nil
	}

	v, err, _ := m.loads.Do(id, func() (any, error) {
		if s, ok := m.cached(id); ok {
			return s, nil
		}
		store, err := cart.Load(ctx, m.cfg.Storage, id,
			cart.WithLogger(m.lg.With(zap.String("session", id))),
			cart.WithPersistTimeout(m.cfg.PersistTimeout),
		)
		if err != nil {
			return nil, err
		}
		s := checkout.NewSession(id, store, checkout.SessionConfig{
			Rules:     m.cfg.Rules,
			Validator: m.cfg.Validator,
			Creator:   m.cfg.Creator,
			Storage:   m.cfg.Storage,
			Logger:    m.lg,
		})

		m.mu.Lock()
		m.sessions[id] = &entry{session: s, lastSeen: m.now()}
		m.mu.Unlock()

		m.lg.Debug("Session loaded", zap.String("session", id), zap.Int("items", store.Len()))
		return s, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load session %s", id)
	}
	return v.(*checkout.Session), nil
}

func (m *Manager) cached(id string) (*checkout.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.session, true
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// Evict drops sessions idle for longer than the idle timeout. Sessions with
// an order submission in flight are kept.
func (m *Manager) Evict() int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) && !e.session.Submitting() {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run evicts idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(); n > 0 {
				m.lg.Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
