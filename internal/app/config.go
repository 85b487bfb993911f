package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (UKM_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL     string `usage:"PostgreSQL connection URL (UKM_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL        string `default:"" usage:"Redis URL for the cart store; empty selects the in-memory store" flag:"redis-url"`
	SessionPepper   string `usage:"HMAC pepper for session token hashing (UKM_SESSION_PEPPER)" flag:"session-pepper"`
	DevMode         bool   `default:"false" usage:"Expose internal error detail in responses" flag:"dev-mode"`
	RestockOnCancel bool   `default:"false" usage:"Return item quantities to stock when an order is cancelled" flag:"restock-on-cancel"`
	Cart            CartConfig
	Shipping        ShippingConfig
	RateLimit       RateLimitConfig
	CORS            CORSConfig
	Graceful        GracefulConfig
}

// CartConfig controls session cart retention.
type CartConfig struct {
	TTL           time.Duration `default:"72h" usage:"Idle time before a session cart expires" flag:"cart-ttl"`
	SweepInterval time.Duration `default:"10m" usage:"In-memory store expiry sweep interval" flag:"cart-sweep-interval"`
}

// ShippingConfig configures the courier rate provider. An empty APIKey
// disables rate quoting; checkout still works without a shipping selection.
type ShippingConfig struct {
	BaseURL      string        `default:"https://api.rajaongkir.com/starter" usage:"Rate API base URL" flag:"shipping-base-url"`
	APIKey       string        `default:"" usage:"Rate API key (UKM_SHIPPING_APIKEY)" flag:"shipping-api-key"`
	OriginCityID string        `default:"" usage:"Warehouse origin city ID" flag:"shipping-origin-city"`
	Couriers     []string      `default:"jne,pos,tiki" usage:"Couriers to query when a quote request names none"`
	Timeout      time.Duration `default:"10s" usage:"Per-request rate API timeout" flag:"shipping-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "UKM",
		Files:     []string{"config.yaml", "/etc/ukm-catalog/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set UKM_DATABASE_URL or DATABASE_URL")
	}
	if cfg.SessionPepper == "" {
		return nil, errors.New("session pepper is required: set UKM_SESSION_PEPPER")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's UKM_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
