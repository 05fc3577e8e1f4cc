package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/pricing"
)

func validConfig() Config {
	return Config{
		Addr:         defaultAddr,
		DatabaseURL:  "postgres://localhost/rental",
		APIKeyPepper: "pepper",
		Billing: BillingConfig{
			TaxRate:        "18",
			Currency:       "INR",
			DeliveryCharge: "0",
			InvoiceDueDays: 7,
		},
		LateFee: LateFeeConfig{Policy: "additive", PerDay: "100", Percentage: "5"},
		Holds:   HoldsConfig{SweepInterval: time.Minute},
		Gateway: GatewayConfig{KeyID: "key", KeySecret: "secret"},
	}
}

func TestParseBilling(t *testing.T) {
	cfg := validConfig()
	cfg.Billing.DeliveryCharge = " 49.50 "

	b, err := cfg.ParseBilling()
	require.NoError(t, err)
	assert.True(t, b.TaxRate.Equal(decimal.NewFromInt(18)))
	assert.True(t, b.DeliveryCharge.Equal(decimal.RequireFromString("49.5")))
	assert.Equal(t, pricing.LateFeeAdditive, b.LateFee.Policy)
	assert.True(t, b.LateFee.PerDay.Equal(decimal.NewFromInt(100)))
	assert.True(t, b.LateFee.Percentage.Equal(decimal.NewFromInt(5)))
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{
			name:   "MissingDatabase",
			mutate: func(c *Config) { c.DatabaseURL = "" },
			errMsg: "database URL is required",
		},
		{
			name:   "MissingPepper",
			mutate: func(c *Config) { c.APIKeyPepper = "" },
			errMsg: "API key pepper is required",
		},
		{
			name:   "MissingGatewaySecret",
			mutate: func(c *Config) { c.Gateway.KeySecret = "" },
			errMsg: "gateway credentials are required",
		},
		{
			name:   "NegativeTax",
			mutate: func(c *Config) { c.Billing.TaxRate = "-1" },
			errMsg: "billing tax rate must not be negative",
		},
		{
			name:   "BadAmount",
			mutate: func(c *Config) { c.LateFee.PerDay = "ten" },
			errMsg: "parse late fee per day",
		},
		{
			name:   "UnknownPolicy",
			mutate: func(c *Config) { c.LateFee.Policy = "weekly" },
			errMsg: "late fee policy",
		},
		{
			name:   "ZeroSweepInterval",
			mutate: func(c *Config) { c.Holds.SweepInterval = 0 },
			errMsg: "sweep interval must be positive",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: defaultAddr, Kafka: KafkaConfig{Brokers: []string{" kafka:9092 ", ""}}}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379", cfg.Redis.Addr)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)

	t.Run("ExplicitValuesWin", func(t *testing.T) {
		cfg := Config{
			Addr:        "127.0.0.1:8081",
			DatabaseURL: "postgres://explicit/db",
		}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
		assert.Equal(t, "127.0.0.1:8081", cfg.Addr)
		assert.Nil(t, cfg.Kafka.Brokers)
	})
}
