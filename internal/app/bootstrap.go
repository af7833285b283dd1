package app

import (
	"errors"
	"fmt"
	"log/slog"

	"quant_go/internal/domain"
	"quant_go/internal/infra"
	"quant_go/internal/infra/storage"

	"github.com/joho/godotenv"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config *infra.Config
	Params *domain.ModelParameters
	Store  *storage.Store
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads environment, config and logging, then resolves the model
// parameters. Any invalid input fails here, before the feed connects.
func (b *Bootstrap) Initialize(configPath string) error {
	// Optional .env next to the binary carries the analyzer API key.
	godotenv.Load()

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("🚀 Bootstrapping", slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))

	if err := b.resolveParams(); err != nil {
		return err
	}
	slog.Info("✅ Model parameters resolved", slog.Int("fee_tiers", len(b.Params.FeeTiers)))

	return nil
}

// resolveParams prefers a named set from the sqlite store when one is
// configured, falling back to the coefficients in the YAML block.
func (b *Bootstrap) resolveParams() error {
	store := b.Config.Model.Store
	if store.Path != "" {
		s, err := storage.NewStore(store.Path)
		if err != nil {
			return fmt.Errorf("parameter store: %w", err)
		}
		b.Store = s
	}

	if b.Store != nil && store.Set != "" {
		set, err := b.Store.LoadSet(store.Set)
		if err != nil {
			return fmt.Errorf("parameter store: %w", err)
		}
		if set == nil {
			return &domain.ConfigError{
				Field: "model.store.set",
				Err:   fmt.Errorf("parameter set %q not found", store.Set),
			}
		}
		params, err := set.ToModelParameters()
		if err != nil {
			return err
		}
		if err := params.Validate(); err != nil {
			return err
		}
		slog.Info("Loaded parameter set", slog.String("name", store.Set), slog.String("path", store.Path))
		b.Params = params
		return nil
	}

	params := b.Config.ModelParameters()
	if err := params.Validate(); err != nil {
		return err
	}
	b.Params = params
	return nil
}

// SaveParams seeds the store with the YAML coefficients under the given
// name, overwriting an existing set.
func (b *Bootstrap) SaveParams(name string) error {
	if b.Store == nil {
		return &domain.ConfigError{Field: "model.store.path", Err: errors.New("no parameter store configured")}
	}
	params := b.Config.ModelParameters()
	if err := params.Validate(); err != nil {
		return err
	}
	set, err := domain.NewParameterSet(name, params)
	if err != nil {
		return err
	}
	if err := b.Store.SaveSet(set); err != nil {
		return err
	}
	slog.Info("✅ Parameter set saved", slog.String("name", name))
	return nil
}
