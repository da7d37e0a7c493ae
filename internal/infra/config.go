package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"vend_go/internal/domain"
)

// Handler names accepted in asset configuration. Claim-proxy assets are
// listed programmatically by the embedder, never from config.
const (
	HandlerTransfer = "transfer"
	HandlerPayout   = "payout"
)

// AssetConfig declares one asset to list at startup.
type AssetConfig struct {
	ID      string `yaml:"id"`      // hex asset identifier
	Handler string `yaml:"handler"` // "transfer" or "payout"

	// Transfer grants.
	Source string          `yaml:"source"` // escrow account holding the grant
	Amount decimal.Decimal `yaml:"amount"` // granted amount

	// Payout assets.
	Key string `yaml:"key"` // payout amount in text form

	// Optional artwork URL for the off-engine artwork cache.
	Artwork string `yaml:"artwork"`
}

// PayoutAmount returns the parsed payout key. Zero when the key is not
// a valid amount; Validate has already rejected that for payout assets.
func (a AssetConfig) PayoutAmount() decimal.Decimal {
	amt, err := decimal.NewFromString(a.Key)
	if err != nil {
		return decimal.Zero
	}
	return amt
}

// Config holds all application settings. Sensitive values can be
// overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Payment struct {
		Medium string          `yaml:"medium"`
		Price  decimal.Decimal `yaml:"price"`
		Sink   string          `yaml:"sink"`
	} `yaml:"payment"`

	Handlers struct {
		PayoutTreasury string `yaml:"payout_treasury"`
	} `yaml:"handlers"`

	Assets []AssetConfig `yaml:"assets"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"` // empty -> per-user default location
	} `yaml:"journal"`

	Feed struct {
		Addr string `yaml:"addr"`
	} `yaml:"feed"`

	Artwork struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"artwork"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Payment.Medium == "" {
		return fmt.Errorf("payment medium is required")
	}
	if c.Payment.Sink == "" {
		return fmt.Errorf("payment sink is required")
	}
	if c.Payment.Price.IsNegative() {
		return fmt.Errorf("payment price must not be negative: %s", c.Payment.Price)
	}

	for i, a := range c.Assets {
		if _, err := domain.ParseAssetID(a.ID); err != nil {
			return fmt.Errorf("assets[%d]: %w", i, err)
		}
		switch a.Handler {
		case HandlerTransfer:
			if a.Source == "" {
				return fmt.Errorf("assets[%d]: transfer asset needs a source account", i)
			}
			if !a.Amount.IsPositive() {
				return fmt.Errorf("assets[%d]: transfer amount must be positive", i)
			}
		case HandlerPayout:
			amt, err := decimal.NewFromString(a.Key)
			if err != nil || !amt.IsPositive() {
				return fmt.Errorf("assets[%d]: payout key must be a positive amount, got %q", i, a.Key)
			}
			if c.Handlers.PayoutTreasury == "" {
				return fmt.Errorf("handlers.payout_treasury is required for payout assets")
			}
		default:
			return fmt.Errorf("assets[%d]: unknown handler %q", i, a.Handler)
		}
	}

	if c.Feed.Addr == "" {
		c.Feed.Addr = "localhost:8090"
	}

	return nil
}

// overrideWithEnv applies environment variable overrides where present.
func overrideWithEnv(cfg *Config) {
	if sink := os.Getenv("VEND_SINK"); sink != "" {
		cfg.Payment.Sink = sink
	}
	if price := os.Getenv("VEND_PRICE"); price != "" {
		if p, err := decimal.NewFromString(price); err == nil {
			cfg.Payment.Price = p
		}
	}
	if addr := os.Getenv("VEND_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
	if path := os.Getenv("VEND_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
}
