// Package app wires the API server and the storefront from configuration.
package app

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cheese-kart/internal/domain/auth"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/domain/order"
	"github.com/xenking/cheese-kart/internal/handler"
	"github.com/xenking/cheese-kart/internal/repository"
	"github.com/xenking/cheese-kart/pkg/health"
	"github.com/xenking/cheese-kart/pkg/httpmiddleware"
)

// Run creates all dependencies of the API server, starts it, and handles
// graceful shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	rules, err := cfg.Pricing.Rules()
	if err != nil {
		return errors.Wrap(err, "pricing rules")
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := baseHealth()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)

	authn := auth.NewAuthenticator(customerRepo, []byte(cfg.TokenPepper))
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderService := order.NewService(productRepo, couponValidator, orderRepo, authn, rules)

	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		couponValidator,
		orderService,
		authn,
	)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument("kart-api", m),
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
			AllowHeaders:     []string{"Content-Type", "Authorization"},
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
