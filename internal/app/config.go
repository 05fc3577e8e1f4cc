package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (RENTAL_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (RENTAL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (RENTAL_API_KEY_PEPPER)" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Company      CompanyConfig
	Billing      BillingConfig
	LateFee      LateFeeConfig
	Holds        HoldsConfig
	Gateway      GatewayConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Export       ExportConfig
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

// CompanyConfig is the identity printed on settings responses.
type CompanyConfig struct {
	Name  string `default:"Rental Ledger" usage:"Company name"`
	GSTIN string `default:"" usage:"Company GSTIN"`
}

// BillingConfig holds the amounts used when pricing orders and issuing
// invoices. Money values are decimal strings.
type BillingConfig struct {
	TaxRate        string `default:"18" usage:"GST rate in percent"`
	Currency       string `default:"INR" usage:"ISO currency code"`
	DeliveryCharge string `default:"0" usage:"Flat delivery charge for standard delivery"`
	InvoiceDueDays int    `default:"7" usage:"Days between invoice date and due date"`
}

// LateFeeConfig controls late return charges.
type LateFeeConfig struct {
	Policy     string `default:"additive" usage:"Late fee policy: per_day, percentage or additive"`
	PerDay     string `default:"100" usage:"Flat late fee per day"`
	Percentage string `default:"5" usage:"Late fee percent of order total per day"`
}

// HoldsConfig controls cart holds.
type HoldsConfig struct {
	TTL           time.Duration `default:"30m" usage:"How long a cart hold blocks stock"`
	SweepInterval time.Duration `default:"1m" usage:"How often expired holds are released"`
	ReturnWindow  time.Duration `default:"48h" usage:"Look-ahead of the upcoming returns queue"`
}

// GatewayConfig holds payment gateway credentials.
type GatewayConfig struct {
	BaseURL   string        `default:"https://api.razorpay.com/v1" usage:"Gateway API root"`
	KeyID     string        `usage:"Gateway key id" flag:"gateway-key-id"`
	KeySecret string        `usage:"Gateway key secret" flag:"gateway-key-secret"`
	Timeout   time.Duration `default:"10s" usage:"Gateway request timeout"`
}

// RedisConfig enables the payment verification guard. Empty Addr disables it.
type RedisConfig struct {
	Addr           string        `default:"" usage:"Redis address or redis:// URL"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long verified payments are remembered"`
}

// KafkaConfig enables lifecycle event publishing. No brokers means events
// are only logged.
type KafkaConfig struct {
	Brokers      []string      `default:"" usage:"Kafka bootstrap brokers"`
	Topic        string        `default:"rental.events" usage:"Lifecycle event topic"`
	Buffer       int           `default:"1024" usage:"Events queued before publishing drops"`
	FlushTimeout time.Duration `default:"5s" usage:"Time allowed to flush queued events on shutdown"`
}

// ExportConfig controls CSV exports.
type ExportConfig struct {
	PageSize int `default:"500" usage:"Rows fetched per page while streaming exports"`
}

// Billing is BillingConfig and LateFeeConfig parsed into domain values.
type Billing struct {
	TaxRate        decimal.Decimal
	DeliveryCharge decimal.Decimal
	LateFee        pricing.LateFeeRule
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RENTAL",
		Files:     []string{"config.yaml", "/etc/rental/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's RENTAL_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Redis.Addr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	c.Kafka.Brokers = compact(c.Kafka.Brokers)
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set RENTAL_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("API key pepper is required: set RENTAL_API_KEY_PEPPER")
	}
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return errors.New("gateway credentials are required: set RENTAL_GATEWAY_KEY_ID and RENTAL_GATEWAY_KEY_SECRET")
	}
	if c.Holds.SweepInterval <= 0 {
		return errors.New("holds sweep interval must be positive")
	}
	if _, err := c.ParseBilling(); err != nil {
		return err
	}
	return nil
}

// ParseBilling converts the billing and late fee sections into domain values.
func (c *Config) ParseBilling() (Billing, error) {
	var (
		b   Billing
		err error
	)
	if b.TaxRate, err = parseAmount("billing tax rate", c.Billing.TaxRate); err != nil {
		return Billing{}, err
	}
	if b.DeliveryCharge, err = parseAmount("billing delivery charge", c.Billing.DeliveryCharge); err != nil {
		return Billing{}, err
	}
	if b.LateFee.PerDay, err = parseAmount("late fee per day", c.LateFee.PerDay); err != nil {
		return Billing{}, err
	}
	if b.LateFee.Percentage, err = parseAmount("late fee percentage", c.LateFee.Percentage); err != nil {
		return Billing{}, err
	}
	if b.LateFee.Policy, err = pricing.ParseLateFeePolicy(c.LateFee.Policy); err != nil {
		return Billing{}, errors.Wrap(err, "late fee policy")
	}
	return b, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s", name)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("%s must not be negative", name)
	}
	return d, nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
