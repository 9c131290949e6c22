// Package config holds the explicit application configuration. Every
// recognized option is enumerated here with its default and validated
// at construction time.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Universe and data source
	Symbols        []string
	TwelveAPIKey   string
	Interval       string
	CandleCount    int
	ScanInterval   time.Duration
	RequestTimeout time.Duration

	// Indicator periods
	RSIPeriod        int
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int
	BBPeriod         int
	BBStdDev         float64
	SMAShortPeriod   int
	SMALongPeriod    int
	VolumePeriod     int

	// Indicator weights
	RSIWeight       float64
	MACDWeight      float64
	BollingerWeight float64
	MAWeight        float64
	VolumeWeight    float64

	// Alert gates
	SignalConfidenceMin  float64
	VolumeSpikeRatio     float64
	StrongSignalCooldown time.Duration
	HistoryCapacity      int

	// Channels
	TelegramBotToken string
	SendGridAPIKey   string
	EmailFrom        string
	EmailFromName    string

	// Recipient store
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Serving
	ListenAddr string
	LogLevel   string
}

// Load initializes configuration from environment variables, applying
// documented defaults for anything unset. A .env file is optional; any
// other error reading one is reported to the caller since logging is
// not configured yet at this point.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Symbols:        splitList(getEnvWithDefault("SYMBOLS", "ACB,BID,CTG,FPT,GAS,HPG,MBB,MSN,MWG,SSI,TCB,VCB,VHM,VIC,VNM,VPB")),
		TwelveAPIKey:   os.Getenv("TWELVE_API_KEY"),
		Interval:       getEnvWithDefault("INTERVAL", "5min"),
		CandleCount:    getEnvIntWithDefault("CANDLE_COUNT", 60),
		ScanInterval:   time.Duration(getEnvIntWithDefault("SCAN_INTERVAL_SECONDS", 60)) * time.Second,
		RequestTimeout: time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 30)) * time.Second,

		RSIPeriod:        getEnvIntWithDefault("RSI_PERIOD", 14),
		MACDFastPeriod:   getEnvIntWithDefault("MACD_FAST_PERIOD", 12),
		MACDSlowPeriod:   getEnvIntWithDefault("MACD_SLOW_PERIOD", 26),
		MACDSignalPeriod: getEnvIntWithDefault("MACD_SIGNAL_PERIOD", 9),
		BBPeriod:         getEnvIntWithDefault("BB_PERIOD", 20),
		BBStdDev:         getEnvFloatWithDefault("BB_STD_DEV", 2.0),
		SMAShortPeriod:   getEnvIntWithDefault("SMA_SHORT_PERIOD", 20),
		SMALongPeriod:    getEnvIntWithDefault("SMA_LONG_PERIOD", 50),
		VolumePeriod:     getEnvIntWithDefault("VOLUME_PERIOD", 20),

		RSIWeight:       getEnvFloatWithDefault("WEIGHT_RSI", 0.25),
		MACDWeight:      getEnvFloatWithDefault("WEIGHT_MACD", 0.30),
		BollingerWeight: getEnvFloatWithDefault("WEIGHT_BOLLINGER", 0.20),
		MAWeight:        getEnvFloatWithDefault("WEIGHT_MOVING_AVERAGES", 0.15),
		VolumeWeight:    getEnvFloatWithDefault("WEIGHT_VOLUME", 0.10),

		SignalConfidenceMin:  getEnvFloatWithDefault("SIGNAL_CONFIDENCE_MIN", 0.7),
		VolumeSpikeRatio:     getEnvFloatWithDefault("VOLUME_SPIKE_RATIO", 2.0),
		StrongSignalCooldown: time.Duration(getEnvIntWithDefault("STRONG_SIGNAL_COOLDOWN_SECONDS", 900)) * time.Second,
		HistoryCapacity:      getEnvIntWithDefault("ALERT_HISTORY_CAPACITY", 100),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:        getEnvWithDefault("EMAIL_FROM", "alerts@quantvn.local"),
		EmailFromName:    getEnvWithDefault("EMAIL_FROM_NAME", "Signal Alerts"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),

		ListenAddr: getEnvWithDefault("LISTEN_ADDR", ":8090"),
		LogLevel:   getEnvWithDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values instead of silently falling
// back, so a typo in the environment surfaces at startup.
func (c *Config) Validate() error {
	if c.SignalConfidenceMin < 0 || c.SignalConfidenceMin > 1 {
		return fmt.Errorf("SIGNAL_CONFIDENCE_MIN must be in [0,1], got %g", c.SignalConfidenceMin)
	}
	if c.VolumeSpikeRatio <= 0 {
		return fmt.Errorf("VOLUME_SPIKE_RATIO must be positive, got %g", c.VolumeSpikeRatio)
	}
	if c.StrongSignalCooldown < 0 {
		return fmt.Errorf("STRONG_SIGNAL_COOLDOWN_SECONDS must not be negative")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("ALERT_HISTORY_CAPACITY must be positive, got %d", c.HistoryCapacity)
	}
	if c.RSIPeriod <= 0 || c.BBPeriod <= 0 || c.VolumePeriod <= 0 ||
		c.MACDFastPeriod <= 0 || c.MACDSlowPeriod <= 0 || c.MACDSignalPeriod <= 0 ||
		c.SMAShortPeriod <= 0 || c.SMALongPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if c.MACDFastPeriod >= c.MACDSlowPeriod {
		return fmt.Errorf("MACD_FAST_PERIOD (%d) must be below MACD_SLOW_PERIOD (%d)", c.MACDFastPeriod, c.MACDSlowPeriod)
	}
	if c.SMAShortPeriod >= c.SMALongPeriod {
		return fmt.Errorf("SMA_SHORT_PERIOD (%d) must be below SMA_LONG_PERIOD (%d)", c.SMAShortPeriod, c.SMALongPeriod)
	}
	if c.BBStdDev <= 0 {
		return fmt.Errorf("BB_STD_DEV must be positive, got %g", c.BBStdDev)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must name at least one symbol")
	}
	return nil
}

// Weights returns the indicator weight table for the scorer.
func (c *Config) Weights() map[string]float64 {
	return map[string]float64{
		"rsi":             c.RSIWeight,
		"macd":            c.MACDWeight,
		"bollinger":       c.BollingerWeight,
		"moving_averages": c.MAWeight,
		"volume":          c.VolumeWeight,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
