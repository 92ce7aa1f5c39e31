package app

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/backend"
	"github.com/xenking/cheese-kart/internal/session"
	"github.com/xenking/cheese-kart/internal/storage"
	"github.com/xenking/cheese-kart/internal/storage/memory"
	redisstorage "github.com/xenking/cheese-kart/internal/storage/redis"
	"github.com/xenking/cheese-kart/internal/storefront"
	"github.com/xenking/cheese-kart/pkg/health"
	"github.com/xenking/cheese-kart/pkg/httpmiddleware"
)

// RunStorefront wires the storefront: cart storage, the backend client, the
// session manager and the HTTP API.
func RunStorefront(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *StorefrontConfig) error {
	lg.Info("Initializing storefront",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.BackendURL),
	)

	rules, err := cfg.Pricing.Rules()
	if err != nil {
		return errors.Wrap(err, "pricing rules")
	}

	healthSvc := baseHealth()

	var store storage.Storage
	if cfg.RedisURL != "" {
		client, err := redisstorage.Connect(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		rs := redisstorage.New(client, redisstorage.Options{Namespace: "storefront", TTL: cfg.CartTTL})
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rs))
		store = rs
	} else {
		lg.Warn("No Redis configured, carts are kept in memory")
		store = memory.New()
	}

	client, err := backend.New(backend.Options{
		BaseURL:        cfg.BackendURL,
		Timeout:        cfg.BackendTimeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "backend client")
	}

	sessions := session.NewManager(session.Config{
		Storage:     store,
		Rules:       rules,
		Validator:   client,
		Creator:     client,
		Logger:      lg.Named("session"),
		IdleTimeout: cfg.SessionIdleTimeout,
	})
	go sessions.Run(ctx)

	h, err := storefront.NewHandler(storefront.Config{
		Sessions: sessions,
		Catalog:  client,
		CouponLimit: httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.CouponRateLimit.Max,
			Window:  cfg.CouponRateLimit.Window,
			KeyFunc: storefront.SessionKey,
			Message: "too many coupon attempts, please wait a moment",
		}),
		MeterProvider: m.MeterProvider(),
		CookieMaxAge:  cfg.CartTTL,
		SecureCookie:  cfg.SecureCookie,
	})
	if err != nil {
		return errors.Wrap(err, "storefront handler")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument("storefront", m),
		httpmiddleware.LogRequests(),
	)
	healthSvc.Register(r)
	h.Register(r)

	server := newServer(cfg.Addr, httpmiddleware.Wrap(r,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", storefront.HeaderSessionID},
			ExposeHeaders:    []string{storefront.HeaderSessionID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	))

	return serve(ctx, lg, server, healthSvc, cfg.Graceful)
}
