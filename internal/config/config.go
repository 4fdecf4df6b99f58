package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Config holds all runtime configuration for the trading simulator.
type Config struct {
	Port            int
	LogLevel        string
	TickInterval    time.Duration
	Volatility      float64
	PriceFloor      decimal.Decimal
	HistoryLimit    int
	InitialBalance  decimal.Decimal
	ShockMode       domain.ShockMode
	DatabasePath    string // empty selects the in-memory stores
	CatalogPath     string // empty selects the embedded catalog
	KafkaBrokers    []string
	KafkaTopic      string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// KafkaEnabled reports whether market data should also go to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. A .env file in the working directory is read
// first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	tickInterval, err := getDuration("TICK_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	if tickInterval <= 0 {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %v, must be positive", tickInterval)
	}

	volatility, err := getFloat("VOLATILITY", 0.02)
	if err != nil {
		return nil, fmt.Errorf("invalid VOLATILITY: %w", err)
	}
	if volatility <= 0 || volatility >= 1 {
		return nil, fmt.Errorf("invalid VOLATILITY: %v, must be between 0 and 1", volatility)
	}

	priceFloor, err := getDecimal("PRICE_FLOOR", decimal.NewFromInt(1))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_FLOOR: %w", err)
	}
	if !priceFloor.IsPositive() {
		return nil, fmt.Errorf("invalid PRICE_FLOOR: %s, must be positive", priceFloor)
	}

	historyLimit, err := getInt("HISTORY_LIMIT", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
	}
	if historyLimit <= 0 {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT: %d, must be positive", historyLimit)
	}

	initialBalance, err := getDecimal("INITIAL_BALANCE", domain.DefaultInitialBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: %w", err)
	}
	if !initialBalance.IsPositive() {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: %s, must be positive", initialBalance)
	}

	shockMode, err := domain.ParseShockMode(getStr("SHOCK_MODE", string(domain.ShockRebase)))
	if err != nil {
		return nil, fmt.Errorf("invalid SHOCK_MODE: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		TickInterval:    tickInterval,
		Volatility:      volatility,
		PriceFloor:      priceFloor,
		HistoryLimit:    historyLimit,
		InitialBalance:  initialBalance,
		ShockMode:       shockMode,
		DatabasePath:    getStr("DATABASE_PATH", ""),
		CatalogPath:     getStr("CATALOG_PATH", ""),
		KafkaBrokers:    getList("KAFKA_BROKERS", nil),
		KafkaTopic:      getStr("KAFKA_TOPIC", "market-data"),
		CORSOrigins:     getList("CORS_ORIGINS", []string{"*"}),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated value, dropping empty entries.
func getList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
