package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"broker-ledger/models"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Ledger configuration
	Ledger LedgerConfig

	// Fee schedule configuration
	Fees FeesConfig

	// Market data configuration
	MarketData MarketDataConfig

	// HTTP configuration
	HTTP HTTPConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// LedgerConfig holds ledger-wide settings
type LedgerConfig struct {
	Currency string // ISO 4217 code all balances are denominated in
	NodeID   int64  // snowflake node for order number generation
}

// FeesConfig holds the commission schedule. Rates are decimal fractions
// (0.01 means 1%), surcharges are flat per-order amounts.
type FeesConfig struct {
	BrokerageRate decimal.Decimal
	ExchangeRate  decimal.Decimal
	CustodyRate   decimal.Decimal
	TaxRate       decimal.Decimal
	BuySurcharge  decimal.Decimal
	SellSurcharge decimal.Decimal
}

// MarketDataConfig holds quote service configuration
type MarketDataConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Ledger: LedgerConfig{
			Currency: getEnvString("LEDGER_CURRENCY", "USD"),
			NodeID:   int64(getEnvInt("LEDGER_NODE_ID", 1)),
		},
		Fees: FeesConfig{
			BrokerageRate: getEnvDecimal("FEE_BROKERAGE_RATE", "0.01"),
			ExchangeRate:  getEnvDecimal("FEE_EXCHANGE_RATE", "0"),
			CustodyRate:   getEnvDecimal("FEE_CUSTODY_RATE", "0"),
			TaxRate:       getEnvDecimal("FEE_TAX_RATE", "0.16"),
			BuySurcharge:  getEnvDecimal("FEE_BUY_SURCHARGE", "0"),
			SellSurcharge: getEnvDecimal("FEE_SELL_SURCHARGE", "0"),
		},
		MarketData: MarketDataConfig{
			BaseURL:        os.Getenv("MARKET_DATA_BASE_URL"),
			TimeoutSeconds: getEnvInt("MARKET_DATA_TIMEOUT_SECONDS", 5),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if money.GetCurrency(c.Ledger.Currency) == nil {
		return fmt.Errorf("LEDGER_CURRENCY must be a known ISO 4217 code, got %q", c.Ledger.Currency)
	}
	if c.Ledger.NodeID < 0 || c.Ledger.NodeID > 1023 {
		return fmt.Errorf("LEDGER_NODE_ID must be between 0 and 1023, got %d", c.Ledger.NodeID)
	}

	one := decimal.NewFromInt(1)
	rates := map[string]decimal.Decimal{
		"FEE_BROKERAGE_RATE": c.Fees.BrokerageRate,
		"FEE_EXCHANGE_RATE":  c.Fees.ExchangeRate,
		"FEE_CUSTODY_RATE":   c.Fees.CustodyRate,
		"FEE_TAX_RATE":       c.Fees.TaxRate,
	}
	for name, rate := range rates {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s must be in [0, 1), got %s", name, rate)
		}
	}
	if c.Fees.BuySurcharge.IsNegative() {
		return fmt.Errorf("FEE_BUY_SURCHARGE must be non-negative, got %s", c.Fees.BuySurcharge)
	}
	if c.Fees.SellSurcharge.IsNegative() {
		return fmt.Errorf("FEE_SELL_SURCHARGE must be non-negative, got %s", c.Fees.SellSurcharge)
	}

	if c.MarketData.TimeoutSeconds <= 0 {
		return fmt.Errorf("MARKET_DATA_TIMEOUT_SECONDS must be positive, got %d", c.MarketData.TimeoutSeconds)
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasMarketData returns true if a quote service is configured
func (c *Config) HasMarketData() bool {
	return c.MarketData.BaseURL != ""
}

// FeeSchedule builds the commission schedule used by the calculator.
func (c *Config) FeeSchedule() models.FeeSchedule {
	return models.FeeSchedule{
		BrokerageRate: c.Fees.BrokerageRate,
		ExchangeRate:  c.Fees.ExchangeRate,
		CustodyRate:   c.Fees.CustodyRate,
		TaxRate:       c.Fees.TaxRate,
		BuySurcharge:  c.Fees.BuySurcharge,
		SellSurcharge: c.Fees.SellSurcharge,
		Currency:      c.Ledger.Currency,
	}
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if parsed, err := decimal.NewFromString(val); err == nil {
			return parsed
		}
	}
	return decimal.RequireFromString(defaultValue)
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "",
		},
		Ledger: LedgerConfig{
			Currency: "USD",
			NodeID:   1,
		},
		Fees: FeesConfig{
			BrokerageRate: decimal.RequireFromString("0.01"),
			ExchangeRate:  decimal.Zero,
			CustodyRate:   decimal.Zero,
			TaxRate:       decimal.RequireFromString("0.16"),
			BuySurcharge:  decimal.Zero,
			SellSurcharge: decimal.Zero,
		},
		MarketData: MarketDataConfig{
			BaseURL:        "",
			TimeoutSeconds: 5,
		},
		HTTP: HTTPConfig{
			Addr:               ":8080",
			CORSAllowedOrigins: "*",
		},
	}
}
