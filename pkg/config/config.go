package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string
	HTTPPort  string

	// Basket
	Numeraire string
	Assets    []string
	Venues    []string

	// Engine loop
	PollInterval         time.Duration
	ErrorBackoffInitial  time.Duration
	ErrorBackoffMax      time.Duration
	ErrorBackoffMult     float64
	MaxConsecutiveErrors int

	// Price cache / feeds
	MaxSampleAge     time.Duration
	FeedPollInterval time.Duration
	FeedWSURL        string
	WSDialTimeout    time.Duration
	WSPingInterval   time.Duration
	WSReconnectDelay time.Duration
	WSReconnectMax   time.Duration
	VenueHealthTTL   time.Duration
	FeedConcurrency  int

	// Live venues
	VenueURLs          map[string]string
	VenueAPIKey        string
	VenueAPISecret     string
	VenueAPIPassphrase string
	VenueTimeout       time.Duration

	// Paper simulators
	SimPrices      map[string]float64            // asset -> price on every venue
	SimVenuePrices map[string]map[string]float64 // venue -> asset -> price
	SimLiquidity   float64

	// Arbitrage Detection
	MaxCycleLength    int
	MinProfitPercent  float64
	MinConfidence     float64
	MaxTradeSize      float64
	LiquidityFraction float64
	DefaultLiquidity  float64

	// Risk
	TotalCapital           float64
	MaxDailyTrades         int
	DailyLossLimit         float64
	EmergencyStopLoss      float64
	MaxPositionSize        float64
	MaxDailyVolume         float64
	MaxCorrelationExposure float64
	MaxDrawdown            float64
	MaxKellyFraction       float64
	GateMinConfidence      float64
	DefaultVolatility      float64
	Volatilities           map[string]float64
	Correlations           map[string]float64 // key: "A:B"
	PositionLimits         map[string][2]float64
	HistorySize            int

	// Execution
	ExecutionMode       string
	SlippageBps         float64
	MaxSubmitAttempts   int
	MaxConfirmAttempts  int
	ConfirmInitialDelay time.Duration
	ConfirmMaxDelay     time.Duration
	InterLegDelay       time.Duration
	ExecutionTimeout    time.Duration
	SimFeeBps           float64
	SimConfirmPolls     int

	// Storage
	StorageMode     string // "postgres" or "console"
	PostgresHost    string
	PostgresPort    string
	PostgresUser    string
	PostgresPass    string
	PostgresDB      string
	PostgresSSL     string
	PostgresMigrate bool
	SinkBufferSize  int
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	volatilities, err := ParseFloatMap(os.Getenv("RISK_VOLATILITIES"))
	if err != nil {
		return nil, fmt.Errorf("parse RISK_VOLATILITIES: %w", err)
	}

	correlations, err := ParseCorrelations(os.Getenv("RISK_CORRELATIONS"))
	if err != nil {
		return nil, fmt.Errorf("parse RISK_CORRELATIONS: %w", err)
	}

	limits, err := ParsePositionLimits(os.Getenv("RISK_POSITION_LIMITS"))
	if err != nil {
		return nil, fmt.Errorf("parse RISK_POSITION_LIMITS: %w", err)
	}

	venueURLs, err := ParseStringMap(os.Getenv("VENUE_URLS"))
	if err != nil {
		return nil, fmt.Errorf("parse VENUE_URLS: %w", err)
	}

	simPrices, err := ParseFloatMap(getEnvOrDefault("SIM_PRICES", "SOL=150,ETH=3000,BTC=60000"))
	if err != nil {
		return nil, fmt.Errorf("parse SIM_PRICES: %w", err)
	}

	simVenuePrices, err := ParseVenuePrices(os.Getenv("SIM_VENUE_PRICES"))
	if err != nil {
		return nil, fmt.Errorf("parse SIM_VENUE_PRICES: %w", err)
	}

	cfg := &Config{
		// Application defaults
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),

		// Basket defaults
		Numeraire: getEnvOrDefault("NUMERAIRE", "USDC"),
		Assets:    getListOrDefault("ASSETS", []string{"SOL", "ETH", "BTC"}),
		Venues:    getListOrDefault("VENUES", []string{"Orca", "Raydium", "Phoenix"}),

		// Engine defaults
		PollInterval:         getDurationOrDefault("ENGINE_POLL_INTERVAL", 500*time.Millisecond),
		ErrorBackoffInitial:  getDurationOrDefault("ENGINE_ERROR_BACKOFF_INITIAL", 1*time.Second),
		ErrorBackoffMax:      getDurationOrDefault("ENGINE_ERROR_BACKOFF_MAX", 30*time.Second),
		ErrorBackoffMult:     getFloat64OrDefault("ENGINE_ERROR_BACKOFF_MULTIPLIER", 2.0),
		MaxConsecutiveErrors: getIntOrDefault("ENGINE_MAX_CONSECUTIVE_ERRORS", 10),

		// Feed defaults
		MaxSampleAge:     getDurationOrDefault("PRICE_MAX_SAMPLE_AGE", 5*time.Second),
		FeedPollInterval: getDurationOrDefault("FEED_POLL_INTERVAL", 1*time.Second),
		FeedWSURL:        os.Getenv("FEED_WS_URL"),
		WSDialTimeout:    getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:   getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMax:   getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		VenueHealthTTL:   getDurationOrDefault("VENUE_HEALTH_TTL", 10*time.Second),
		FeedConcurrency:  getIntOrDefault("FEED_CONCURRENCY", 4),

		// Venue defaults
		VenueURLs:          venueURLs,
		VenueAPIKey:        os.Getenv("VENUE_API_KEY"),
		VenueAPISecret:     os.Getenv("VENUE_API_SECRET"),
		VenueAPIPassphrase: os.Getenv("VENUE_API_PASSPHRASE"),
		VenueTimeout:       getDurationOrDefault("VENUE_TIMEOUT", 5*time.Second),

		// Simulator defaults
		SimPrices:      simPrices,
		SimVenuePrices: simVenuePrices,
		SimLiquidity:   getFloat64OrDefault("SIM_LIQUIDITY", 1000000.0),

		// Arbitrage defaults
		MaxCycleLength:    getIntOrDefault("ARB_MAX_CYCLE_LENGTH", 3),
		MinProfitPercent:  getFloat64OrDefault("ARB_MIN_PROFIT_PERCENT", 0.005),
		MinConfidence:     getFloat64OrDefault("ARB_MIN_CONFIDENCE", 0.4),
		MaxTradeSize:      getFloat64OrDefault("ARB_MAX_TRADE_SIZE", 10000.0),
		LiquidityFraction: getFloat64OrDefault("ARB_LIQUIDITY_FRACTION", 0.005),
		DefaultLiquidity:  getFloat64OrDefault("ARB_DEFAULT_LIQUIDITY", 10000.0),

		// Risk defaults
		TotalCapital:           getFloat64OrDefault("RISK_TOTAL_CAPITAL", 100000.0),
		MaxDailyTrades:         getIntOrDefault("RISK_MAX_DAILY_TRADES", 100),
		DailyLossLimit:         getFloat64OrDefault("RISK_DAILY_LOSS_LIMIT", 1000.0),
		EmergencyStopLoss:      getFloat64OrDefault("RISK_EMERGENCY_STOP_LOSS", 2000.0),
		MaxPositionSize:        getFloat64OrDefault("RISK_MAX_POSITION_SIZE", 25000.0),
		MaxDailyVolume:         getFloat64OrDefault("RISK_MAX_DAILY_VOLUME", 250000.0),
		MaxCorrelationExposure: getFloat64OrDefault("RISK_MAX_CORRELATION_EXPOSURE", 0.5),
		MaxDrawdown:            getFloat64OrDefault("RISK_MAX_DRAWDOWN", 0.1),
		MaxKellyFraction:       getFloat64OrDefault("RISK_MAX_KELLY_FRACTION", 0.25),
		GateMinConfidence:      getFloat64OrDefault("RISK_MIN_CONFIDENCE", 0.5),
		DefaultVolatility:      getFloat64OrDefault("RISK_DEFAULT_VOLATILITY", 0.05),
		Volatilities:           volatilities,
		Correlations:           correlations,
		PositionLimits:         limits,
		HistorySize:            getIntOrDefault("RISK_HISTORY_SIZE", 1000),

		// Execution defaults
		ExecutionMode:       getEnvOrDefault("EXECUTION_MODE", "paper"),
		SlippageBps:         getFloat64OrDefault("EXECUTION_SLIPPAGE_BPS", 50),
		MaxSubmitAttempts:   getIntOrDefault("EXECUTION_MAX_SUBMIT_ATTEMPTS", 3),
		MaxConfirmAttempts:  getIntOrDefault("EXECUTION_MAX_CONFIRM_ATTEMPTS", 30),
		ConfirmInitialDelay: getDurationOrDefault("EXECUTION_CONFIRM_INITIAL_DELAY", 200*time.Millisecond),
		ConfirmMaxDelay:     getDurationOrDefault("EXECUTION_CONFIRM_MAX_DELAY", 2*time.Second),
		InterLegDelay:       getDurationOrDefault("EXECUTION_INTER_LEG_DELAY", 400*time.Millisecond),
		ExecutionTimeout:    getDurationOrDefault("EXECUTION_TIMEOUT", time.Minute),
		SimFeeBps:           getFloat64OrDefault("SIM_FEE_BPS", 30),
		SimConfirmPolls:     getIntOrDefault("SIM_CONFIRM_POLLS", 1),

		// Storage defaults
		StorageMode:     getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost:    getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:    getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:    getEnvOrDefault("POSTGRES_USER", "cyclearb"),
		PostgresPass:    getEnvOrDefault("POSTGRES_PASSWORD", "cyclearb"),
		PostgresDB:      getEnvOrDefault("POSTGRES_DB", "cycle_arb"),
		PostgresSSL:     getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		PostgresMigrate: getBoolOrDefault("POSTGRES_MIGRATE", true),
		SinkBufferSize:  getIntOrDefault("SINK_BUFFER_SIZE", 256),
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.Numeraire == "" {
		return fmt.Errorf("NUMERAIRE cannot be empty")
	}

	if len(c.Venues) == 0 {
		return fmt.Errorf("VENUES cannot be empty")
	}

	if c.MaxCycleLength < 2 {
		return fmt.Errorf("ARB_MAX_CYCLE_LENGTH must be at least 2, got %d", c.MaxCycleLength)
	}

	if c.LiquidityFraction <= 0 || c.LiquidityFraction > 1.0 {
		return fmt.Errorf("ARB_LIQUIDITY_FRACTION must be in (0, 1], got %f", c.LiquidityFraction)
	}

	if c.MaxTradeSize <= 0 {
		return fmt.Errorf("ARB_MAX_TRADE_SIZE must be positive, got %f", c.MaxTradeSize)
	}

	if c.TotalCapital <= 0 {
		return fmt.Errorf("RISK_TOTAL_CAPITAL must be positive, got %f", c.TotalCapital)
	}

	if c.MaxKellyFraction < 0 || c.MaxKellyFraction > 1.0 {
		return fmt.Errorf("RISK_MAX_KELLY_FRACTION must be between 0 and 1.0, got %f", c.MaxKellyFraction)
	}

	if c.HistorySize <= 0 {
		return fmt.Errorf("RISK_HISTORY_SIZE must be positive, got %d", c.HistorySize)
	}

	if c.MaxConfirmAttempts <= 0 {
		return fmt.Errorf("EXECUTION_MAX_CONFIRM_ATTEMPTS must be positive, got %d", c.MaxConfirmAttempts)
	}

	if c.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("ENGINE_MAX_CONSECUTIVE_ERRORS must be positive, got %d", c.MaxConsecutiveErrors)
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" && c.ExecutionMode != "dry-run" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper', 'live' or 'dry-run', got %q", c.ExecutionMode)
	}

	if c.ExecutionMode == "live" {
		for _, v := range c.Venues {
			if c.VenueURLs[v] == "" {
				return fmt.Errorf("VENUE_URLS has no endpoint for live venue %s", v)
			}
		}
	}

	if c.SinkBufferSize <= 0 {
		return fmt.Errorf("SINK_BUFFER_SIZE must be positive, got %d", c.SinkBufferSize)
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

// ParseFloatMap parses "SOL=0.8,ETH=0.6".
func ParseFloatMap(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range splitList(raw) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not key=value", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", part, err)
		}
		out[strings.TrimSpace(key)] = f
	}
	return out, nil
}

// ParseStringMap parses "Orca=https://a,Raydium=https://b".
func ParseStringMap(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range splitList(raw) {
		key, value, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("entry %q is not key=value", part)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

// ParseVenuePrices parses "Raydium.SOL=151.2,Phoenix.ETH=2990" into venue -> asset -> price.
func ParseVenuePrices(raw string) (map[string]map[string]float64, error) {
	flat, err := ParseFloatMap(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]float64)
	for key, price := range flat {
		venue, asset, ok := strings.Cut(key, ".")
		if !ok || venue == "" || asset == "" {
			return nil, fmt.Errorf("venue price key %q is not Venue.ASSET", key)
		}
		if price <= 0 {
			return nil, fmt.Errorf("venue price %s=%f must be positive", key, price)
		}
		if out[venue] == nil {
			out[venue] = make(map[string]float64)
		}
		out[venue][asset] = price
	}
	return out, nil
}

// ParseCorrelations parses "SOL:ETH=0.7,ETH:BTC=0.8" into a symmetric map.
func ParseCorrelations(raw string) (map[string]float64, error) {
	pairs, err := ParseFloatMap(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(pairs)*2)
	for key, corr := range pairs {
		a, b, ok := strings.Cut(key, ":")
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf("correlation key %q is not A:B", key)
		}
		if corr < -1 || corr > 1 {
			return nil, fmt.Errorf("correlation %s=%f outside [-1, 1]", key, corr)
		}
		out[a+":"+b] = corr
		out[b+":"+a] = corr
	}
	return out, nil
}

// ParsePositionLimits parses "SOL=25000:250000" (max position : max daily volume).
func ParsePositionLimits(raw string) (map[string][2]float64, error) {
	out := make(map[string][2]float64)
	for _, part := range splitList(raw) {
		asset, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not asset=position:volume", part)
		}
		posStr, volStr, ok := strings.Cut(value, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q is not asset=position:volume", part)
		}
		pos, err := strconv.ParseFloat(strings.TrimSpace(posStr), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", part, err)
		}
		vol, err := strconv.ParseFloat(strings.TrimSpace(volStr), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", part, err)
		}
		out[strings.TrimSpace(asset)] = [2]float64{pos, vol}
	}
	return out, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getListOrDefault(key string, defaultValue []string) []string {
	list := splitList(os.Getenv(key))
	if len(list) == 0 {
		return defaultValue
	}
	return list
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
