package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"quant_go/internal/domain"

	"gopkg.in/yaml.v3"
)

// EndpointConfig is one entry of the statically ordered fallback list. The
// URL may carry a {symbol} placeholder filled with the endpoint-normalized
// symbol at dial time.
type EndpointConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Format string `yaml:"format"` // "okx", "binance" or "generic"
}

// Config holds every startup setting. Loaded once, immutable afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Feed struct {
		Symbol             string           `yaml:"symbol"`
		Endpoints          []EndpointConfig `yaml:"endpoints"`
		HandshakeTimeoutMS int              `yaml:"handshake_timeout_ms"`
		ReadTimeoutMS      int              `yaml:"read_timeout_ms"`
		PingIntervalMS     int              `yaml:"ping_interval_ms"`
		Backoff            struct {
			BaseMS         int     `yaml:"base_ms"`
			MaxMS          int     `yaml:"max_ms"`
			Jitter         float64 `yaml:"jitter"`
			MaxPerEndpoint int     `yaml:"max_per_endpoint"`
		} `yaml:"backoff"`
		MaxProtocolErrors int `yaml:"max_protocol_errors"`
	} `yaml:"feed"`

	Estimate struct {
		OrderSize  float64 `yaml:"order_size"`
		Volatility float64 `yaml:"volatility"`
	} `yaml:"estimate"`

	Model struct {
		Slippage struct {
			B0 float64 `yaml:"b0"`
			B1 float64 `yaml:"b1"`
			B2 float64 `yaml:"b2"`
		} `yaml:"slippage"`
		MakerTaker struct {
			B0 float64 `yaml:"b0"`
			B1 float64 `yaml:"b1"`
			B2 float64 `yaml:"b2"`
		} `yaml:"maker_taker"`
		Impact struct {
			Gamma    float64 `yaml:"gamma"`
			Eta      float64 `yaml:"eta"`
			HorizonT float64 `yaml:"horizon_t"`
		} `yaml:"impact"`
		FeeTiers []domain.FeeTier `yaml:"fee_tiers"`
		Store    struct {
			Path string `yaml:"path"`
			Set  string `yaml:"set"`
		} `yaml:"store"`
	} `yaml:"model"`

	Publish struct {
		Path          string `yaml:"path"`
		MinIntervalMS int    `yaml:"min_interval_ms"`
	} `yaml:"publish"`

	Telemetry struct {
		LatencyCapacity        int `yaml:"latency_capacity"`
		MemoryCapacity         int `yaml:"memory_capacity"`
		MemorySampleIntervalMS int `yaml:"memory_sample_interval_ms"`
	} `yaml:"telemetry"`

	Viewer struct {
		PollIntervalMS int `yaml:"poll_interval_ms"`
		StaleAfterMS   int `yaml:"stale_after_ms"`
	} `yaml:"viewer"`

	Analyzer struct {
		URL          string `yaml:"url"`
		Model        string `yaml:"model"`
		APIKeyEnv    string `yaml:"api_key_env"`
		APIKey       string `yaml:"-"`
		TimeoutMS    int    `yaml:"timeout_ms"`
		MinIntervalS int    `yaml:"min_interval_s"`
	} `yaml:"analyzer"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides, fills defaults and validates.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Field: "file", Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	cfg.applyDefaults()
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Feed.HandshakeTimeoutMS <= 0 {
		c.Feed.HandshakeTimeoutMS = 10000
	}
	if c.Feed.ReadTimeoutMS <= 0 {
		c.Feed.ReadTimeoutMS = 30000
	}
	if c.Feed.PingIntervalMS <= 0 {
		c.Feed.PingIntervalMS = 20000
	}
	if c.Feed.Backoff.BaseMS <= 0 {
		c.Feed.Backoff.BaseMS = 1000
	}
	if c.Feed.Backoff.MaxMS <= 0 {
		c.Feed.Backoff.MaxMS = 30000
	}
	if c.Feed.Backoff.MaxPerEndpoint <= 0 {
		c.Feed.Backoff.MaxPerEndpoint = 3
	}
	if c.Feed.MaxProtocolErrors <= 0 {
		c.Feed.MaxProtocolErrors = 20
	}
	if c.Model.Impact.HorizonT == 0 {
		c.Model.Impact.HorizonT = 1
	}
	if c.Publish.MinIntervalMS <= 0 {
		c.Publish.MinIntervalMS = 500
	}
	if c.Telemetry.LatencyCapacity <= 0 {
		c.Telemetry.LatencyCapacity = 1000
	}
	if c.Telemetry.MemoryCapacity <= 0 {
		c.Telemetry.MemoryCapacity = 100
	}
	if c.Telemetry.MemorySampleIntervalMS <= 0 {
		c.Telemetry.MemorySampleIntervalMS = 5000
	}
	if c.Viewer.PollIntervalMS <= 0 {
		c.Viewer.PollIntervalMS = 500
	}
	if c.Viewer.StaleAfterMS <= 0 {
		c.Viewer.StaleAfterMS = 5000
	}
	if c.Analyzer.TimeoutMS <= 0 {
		c.Analyzer.TimeoutMS = 15000
	}
	if c.Analyzer.MinIntervalS <= 0 {
		c.Analyzer.MinIntervalS = 5
	}
	if c.Analyzer.APIKeyEnv == "" {
		c.Analyzer.APIKeyEnv = "QUANT_ANALYZER_KEY"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

func (c *Config) overrideWithEnv() {
	if key := os.Getenv(c.Analyzer.APIKeyEnv); key != "" {
		c.Analyzer.APIKey = key
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Feed.Symbol == "" {
		return &domain.ConfigError{Field: "feed.symbol", Err: errors.New("symbol is required")}
	}
	if len(c.Feed.Endpoints) == 0 {
		return &domain.ConfigError{Field: "feed.endpoints", Err: errors.New("at least one endpoint is required")}
	}
	for i, ep := range c.Feed.Endpoints {
		if ep.Name == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("feed.endpoints[%d].name", i), Err: errors.New("name is required")}
		}
		if !strings.HasPrefix(ep.URL, "ws://") && !strings.HasPrefix(ep.URL, "wss://") {
			return &domain.ConfigError{Field: fmt.Sprintf("feed.endpoints[%d].url", i), Err: fmt.Errorf("invalid WS URL: %s", ep.URL)}
		}
		switch ep.Format {
		case "okx", "binance", "generic":
		default:
			return &domain.ConfigError{Field: fmt.Sprintf("feed.endpoints[%d].format", i), Err: fmt.Errorf("unknown format: %s", ep.Format)}
		}
	}
	if c.Estimate.OrderSize <= 0 {
		return &domain.ConfigError{Field: "estimate.order_size", Err: errors.New("order size must be positive")}
	}
	if c.Estimate.Volatility < 0 {
		return &domain.ConfigError{Field: "estimate.volatility", Err: errors.New("volatility must not be negative")}
	}
	if c.Publish.Path == "" {
		return &domain.ConfigError{Field: "publish.path", Err: errors.New("artifact path is required")}
	}
	if c.Feed.Backoff.Jitter < 0 || c.Feed.Backoff.Jitter > 1 {
		return &domain.ConfigError{Field: "feed.backoff.jitter", Err: errors.New("jitter must be within [0, 1]")}
	}
	if c.Feed.Backoff.MaxMS < c.Feed.Backoff.BaseMS {
		return &domain.ConfigError{Field: "feed.backoff.max_ms", Err: errors.New("cap must be >= base delay")}
	}
	return nil
}

// ModelParameters builds the immutable coefficient set from the YAML block.
// Callers validate via domain.ModelParameters.Validate.
func (c *Config) ModelParameters() *domain.ModelParameters {
	return &domain.ModelParameters{
		SlippageBeta0: c.Model.Slippage.B0,
		SlippageBeta1: c.Model.Slippage.B1,
		SlippageBeta2: c.Model.Slippage.B2,
		MakerBeta0:    c.Model.MakerTaker.B0,
		MakerBeta1:    c.Model.MakerTaker.B1,
		MakerBeta2:    c.Model.MakerTaker.B2,
		Gamma:         c.Model.Impact.Gamma,
		Eta:           c.Model.Impact.Eta,
		HorizonT:      c.Model.Impact.HorizonT,
		FeeTiers:      c.Model.FeeTiers,
	}
}

// Duration accessors; the YAML surface stays in integer milliseconds the way
// the raw file reads.

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Feed.HandshakeTimeoutMS) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Feed.ReadTimeoutMS) * time.Millisecond
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Feed.PingIntervalMS) * time.Millisecond
}

func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Feed.Backoff.BaseMS) * time.Millisecond
}

func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Feed.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.Publish.MinIntervalMS) * time.Millisecond
}

func (c *Config) MemorySampleInterval() time.Duration {
	return time.Duration(c.Telemetry.MemorySampleIntervalMS) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Viewer.PollIntervalMS) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Viewer.StaleAfterMS) * time.Millisecond
}

func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutMS) * time.Millisecond
}

func (c *Config) AnalyzerMinInterval() time.Duration {
	return time.Duration(c.Analyzer.MinIntervalS) * time.Second
}
