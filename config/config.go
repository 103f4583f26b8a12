// Package config loads and validates the simulation configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fxlab/simtrader/feed"
	"github.com/fxlab/simtrader/market"
)

// Config represents the complete simulation configuration.
type Config struct {
	Account    AccountConfig `json:"account" yaml:"account"`
	Feed       FeedConfig    `json:"feed" yaml:"feed"`
	Journal    JournalConfig `json:"journal" yaml:"journal"`
	TicketBase int64         `json:"ticket_base,omitempty" yaml:"ticket_base,omitempty"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	ID         string  `json:"id" yaml:"id"`
	Currency   string  `json:"currency" yaml:"currency"`
	Balance    float64 `json:"balance" yaml:"balance"`
	Leverage   float64 `json:"leverage" yaml:"leverage"`
	DefaultLot float64 `json:"default_lot" yaml:"default_lot"`
}

// FeedConfig contains the tick cadence and the symbol universe.
type FeedConfig struct {
	Cadence string         `json:"cadence" yaml:"cadence"` // e.g. "1s", "250ms"
	Symbols []SymbolConfig `json:"symbols" yaml:"symbols"`
}

// SymbolConfig describes one simulated symbol. All prices are in quote
// currency units, not pips.
type SymbolConfig struct {
	Name         string  `json:"name" yaml:"name"`
	Price        float64 `json:"price" yaml:"price"`
	Spread       float64 `json:"spread" yaml:"spread"`
	Step         float64 `json:"step" yaml:"step"`
	PipSize      float64 `json:"pip_size" yaml:"pip_size"`
	ContractSize float64 `json:"contract_size" yaml:"contract_size"`
}

// JournalConfig selects the session recording backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ParseCadence converts the cadence string to a duration. Empty means the
// feed default.
func (f FeedConfig) ParseCadence() (time.Duration, error) {
	if f.Cadence == "" {
		return feed.DefaultCadence, nil
	}
	d, err := time.ParseDuration(f.Cadence)
	if err != nil {
		return 0, fmt.Errorf("parse cadence: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("cadence must be positive, got %s", f.Cadence)
	}
	return d, nil
}

// FeedSymbols converts the symbol section into feed configurations.
func (c *Config) FeedSymbols() []feed.SymbolConfig {
	out := make([]feed.SymbolConfig, 0, len(c.Feed.Symbols))
	for _, s := range c.Feed.Symbols {
		out = append(out, feed.SymbolConfig{
			Instrument: market.Instrument{
				Name:         s.Name,
				PipSize:      s.PipSize,
				ContractSize: s.ContractSize,
			},
			Price:  s.Price,
			Spread: s.Spread,
			Step:   s.Step,
		})
	}
	return out
}

// LoadFromFile loads configuration from a file (YAML or JSON based on content).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. Symbol parameters get the
// same scrutiny the feed applies, so a bad symbol fails at load time rather
// than at wiring time.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Account.Leverage <= 0 {
		return fmt.Errorf("account.leverage must be positive")
	}
	if c.Account.DefaultLot <= 0 {
		return fmt.Errorf("account.default_lot must be positive")
	}
	if _, err := c.Feed.ParseCadence(); err != nil {
		return fmt.Errorf("feed.cadence: %w", err)
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols must list at least one symbol")
	}
	seen := map[string]bool{}
	for _, s := range c.Feed.Symbols {
		if s.Name == "" {
			return fmt.Errorf("feed symbol with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate symbol: %s", s.Name)
		}
		seen[s.Name] = true
		if s.Price <= 0 {
			return fmt.Errorf("symbol %s: price must be positive", s.Name)
		}
		if s.Spread <= 0 {
			return fmt.Errorf("symbol %s: spread must be positive", s.Name)
		}
		if s.Step <= 0 {
			return fmt.Errorf("symbol %s: step must be positive", s.Name)
		}
		if s.PipSize <= 0 {
			return fmt.Errorf("symbol %s: pip_size must be positive", s.Name)
		}
		if s.ContractSize <= 0 {
			return fmt.Errorf("symbol %s: contract_size must be positive", s.Name)
		}
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults: a demo account and
// the usual majors.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:         "SIM-001",
			Currency:   "USD",
			Balance:    10000,
			Leverage:   100,
			DefaultLot: 0.1,
		},
		Feed: FeedConfig{
			Cadence: "1s",
			Symbols: []SymbolConfig{
				{Name: "EURUSD", Price: 1.1000, Spread: 0.0002, Step: 0.0001, PipSize: 0.0001, ContractSize: 100000},
				{Name: "GBPUSD", Price: 1.2800, Spread: 0.0002, Step: 0.0001, PipSize: 0.0001, ContractSize: 100000},
				{Name: "USDJPY", Price: 148.500, Spread: 0.02, Step: 0.01, PipSize: 0.01, ContractSize: 100000},
				{Name: "AUDUSD", Price: 0.6500, Spread: 0.0002, Step: 0.0001, PipSize: 0.0001, ContractSize: 100000},
			},
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}
