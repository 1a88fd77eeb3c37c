package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/mcp-trader/errs"
)

// Config is the complete file-level configuration of the trader CLI.
type Config struct {
	Account  AccountConfig `json:"account" yaml:"account"`
	Data     DataConfig    `json:"data" yaml:"data"`
	Strategy Strategy      `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig `json:"journal" yaml:"journal"`
	Cache    CacheConfig   `json:"cache" yaml:"cache"`
	Log      LogConfig     `json:"log" yaml:"log"`
}

// AccountConfig contains the simulated account.
type AccountConfig struct {
	Symbol   string  `json:"symbol" yaml:"symbol"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// DataConfig points at the historical candles. Path may be a candle CSV or
// a saved Bybit kline JSON response.
type DataConfig struct {
	Path     string    `json:"path,omitempty" yaml:"path,omitempty"`
	Interval string    `json:"interval,omitempty" yaml:"interval,omitempty"`
	From     time.Time `json:"from,omitempty" yaml:"from,omitempty"` // inclusive
	To       time.Time `json:"to,omitempty" yaml:"to,omitempty"`     // exclusive
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// CacheConfig enables the Redis result cache.
type CacheConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL     string `json:"ttl,omitempty" yaml:"ttl,omitempty"` // e.g. "1h"
}

// Expiry parses TTL. An empty TTL means one hour.
func (c CacheConfig) Expiry() (time.Duration, error) {
	if c.TTL == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(c.TTL)
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console or json
}

// LoadFromFile loads configuration from a file. ".json" files are decoded
// as JSON, everything else as YAML. Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if isJSON(path) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
	}
	if err != nil {
		return nil, &errs.ConfigError{Msg: "parse " + filepath.Base(path), Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile saves configuration as JSON or YAML based on extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return errs.Config("account.balance", "must be positive")
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if !c.Data.From.IsZero() && !c.Data.To.IsZero() && !c.Data.From.Before(c.Data.To) {
		return errs.Config("data", "from must be before to")
	}

	switch c.Journal.Type {
	case "", "none":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return errs.Config("journal.db_path", "required for sqlite journal")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return errs.Config("journal", "trades_file and equity_file required for csv journal")
		}
	default:
		return errs.Config("journal.type", "must be 'sqlite', 'csv' or 'none', got %q", c.Journal.Type)
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errs.Config("cache.addr", "required when cache is enabled")
	}
	if _, err := c.Cache.Expiry(); err != nil {
		return errs.Config("cache.ttl", "%v", err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errs.Config("log.level", "unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return errs.Config("log.format", "must be 'console' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// Environment variables that override file settings.
const (
	EnvJournalDB = "TRADER_JOURNAL_DB"
	EnvRedisAddr = "TRADER_REDIS_ADDR"
	EnvCacheTTL  = "TRADER_CACHE_TTL"
	EnvLogLevel  = "TRADER_LOG_LEVEL"
)

// LoadEnv reads .env style files into the process environment. Missing
// files are ignored; with no arguments ".env" is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays the TRADER_* environment variables onto c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvJournalDB); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.Enabled = true
		c.Cache.Addr = v
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		c.Cache.TTL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Default returns the configuration from the README example.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Symbol:   "BTCUSDT",
			Currency: "USDT",
			Balance:  10000,
		},
		Data: DataConfig{
			Path:     "./data/btcusdt_1m.csv",
			Interval: "1",
		},
		Strategy: DefaultStrategy(),
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtest.sqlite",
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "trader:bt:",
			TTL:    "1h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultStrategy mirrors the strategy variables documented for run_backtest.
func DefaultStrategy() Strategy {
	return Strategy{
		Indicators: IndicatorConfig{
			RSI:       &OscillatorConfig{Period: 14, BuyThreshold: Float(30), SellThreshold: Float(70)},
			MFI:       &OscillatorConfig{Period: 14, BuyThreshold: Float(20), SellThreshold: Float(80)},
			Bollinger: &BollingerConfig{Period: 20, StdDev: 2.0},
			SMA:       &MovingAverageConfig{Periods: []int{20, 50, 200}},
			EMA:       &MovingAverageConfig{Periods: []int{9, 21, 55}},
		},
		Position: PositionConfig{
			Size:         100,
			ProfitTarget: 0.5,
			StopLoss:     -0.3,
			TrailingStop: 0.2,
		},
		Filters: FilterConfig{
			VolumeThreshold: 1000,
			PriceThreshold:  50000,
		},
	}
}
