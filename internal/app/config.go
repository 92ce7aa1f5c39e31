package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/cheese-kart/internal/money"
	"github.com/xenking/cheese-kart/internal/pricing"
)

// Config holds the API server configuration, loadable from environment
// variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	TokenPepper  string `usage:"HMAC pepper for customer token hashing (KART_TOKEN_PEPPER)" flag:"token-pepper"`
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorefrontConfig holds the storefront configuration (STOREFRONT_ prefix).
type StorefrontConfig struct {
	Addr               string        `default:"0.0.0.0:8081" usage:"Storefront listen address"`
	BackendURL         string        `default:"http://localhost:8080" usage:"Base URL of the API server" flag:"backend-url"`
	BackendTimeout     time.Duration `default:"10s" usage:"Timeout of a single backend call" flag:"backend-timeout"`
	RedisURL           string        `default:"" usage:"Redis URL for carts; empty keeps carts in memory" flag:"redis-url"`
	CartTTL            time.Duration `default:"720h" usage:"How long an untouched cart is kept" flag:"cart-ttl"`
	SessionIdleTimeout time.Duration `default:"30m" usage:"Idle time after which a session leaves memory" flag:"session-idle-timeout"`
	SecureCookie       bool          `default:"false" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
	Pricing            PricingConfig
	CouponRateLimit    CouponRateLimitConfig
	RateLimit          RateLimitConfig
	CORS               CORSConfig
	Graceful           GracefulConfig
}

// PricingConfig holds the shipping and surcharge constants. Both services
// must agree on them or every order fails verification.
type PricingConfig struct {
	FreeShippingThreshold string `default:"1500" usage:"Amount at or above which shipping is free" flag:"free-shipping-threshold"`
	ShippingFee           string `default:"100" usage:"Shipping fee below the threshold" flag:"shipping-fee"`
	CODSurcharge          string `default:"30" usage:"Cash on delivery surcharge" flag:"cod-surcharge"`
}

// Rules parses the configured amounts.
func (c PricingConfig) Rules() (pricing.Rules, error) {
	threshold, err := money.Parse(c.FreeShippingThreshold)
	if err != nil {
		return pricing.Rules{}, errors.Wrap(err, "free shipping threshold")
	}
	fee, err := money.Parse(c.ShippingFee)
	if err != nil {
		return pricing.Rules{}, errors.Wrap(err, "shipping fee")
	}
	surcharge, err := money.Parse(c.CODSurcharge)
	if err != nil {
		return pricing.Rules{}, errors.Wrap(err, "cod surcharge")
	}
	return pricing.Rules{
		FreeShippingThreshold:   threshold,
		ShippingFee:             fee,
		CashOnDeliverySurcharge: surcharge,
	}, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CouponRateLimitConfig limits coupon attempts per storefront session.
type CouponRateLimitConfig struct {
	Max    int           `default:"10" usage:"Max coupon attempts per window and session"`
	Window time.Duration `default:"1m" usage:"Coupon rate limit window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

func load(dst any, prefix string, files ...string) error {
	loader := aconfig.LoaderFor(dst, aconfig.Config{
		EnvPrefix: prefix,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return errors.Wrap(err, "load config")
	}
	return nil
}

// LoadConfig loads the API server configuration from environment variables,
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := load(&cfg, "KART", "config.yaml", "/etc/kart/config.yaml"); err != nil {
		return nil, err
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if cfg.TokenPepper == "" {
		return nil, errors.New("token pepper is required: set KART_TOKEN_PEPPER")
	}
	return &cfg, nil
}

// LoadStorefrontConfig loads the storefront configuration.
func LoadStorefrontConfig() (*StorefrontConfig, error) {
	var cfg StorefrontConfig
	if err := load(&cfg, "STOREFRONT", "storefront.yaml", "/etc/kart/storefront.yaml"); err != nil {
		return nil, err
	}
	cfg.applyPlatformDefaults(os.Getenv)
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		if v := getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *StorefrontConfig) applyPlatformDefaults(getenv func(string) string) {
	if c.RedisURL == "" {
		c.RedisURL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8081" {
		c.Addr = "0.0.0.0:" + port
	}
}
