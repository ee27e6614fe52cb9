// Package extension provides the Forge extension adapter for Concierge.
//
// It implements the forge.Extension interface to integrate Concierge
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.concierge" or
// "concierge" keys.
package extension

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/store"
	"github.com/xraph/concierge/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "concierge"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Shopping concierge order and wallet engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Concierge as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *concierge.Engine
	store      store.Store
	engineOpts []concierge.Option
}

// New creates a new Concierge Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Concierge engine.
// This is nil until Register is called.
func (e *Extension) Engine() *concierge.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the concierge engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	eng := concierge.New(e.store, e.buildEngineOpts()...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*concierge.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("concierge: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("concierge: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs concierge.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []concierge.Option {
	opts := make([]concierge.Option, 0, len(e.engineOpts)+5)

	if e.config.Currency != "" {
		opts = append(opts, concierge.WithCurrency(e.config.Currency))
	}
	if e.config.RefundFeeBps > 0 {
		opts = append(opts, concierge.WithRefundFee(e.config.RefundFeeBps))
	}
	if e.config.TrialDays > 0 {
		opts = append(opts, concierge.WithTrialPeriod(time.Duration(e.config.TrialDays)*24*time.Hour))
	}
	if e.config.MembershipDays > 0 {
		opts = append(opts, concierge.WithMembershipPeriod(time.Duration(e.config.MembershipDays)*24*time.Hour))
	}
	if e.config.DisableExpirer {
		opts = append(opts, concierge.WithExpireInterval(0))
	} else if e.config.ExpireInterval > 0 {
		opts = append(opts, concierge.WithExpireInterval(e.config.ExpireInterval))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("concierge: configuration is required but not found in config files; " +
				"ensure 'extensions.concierge' or 'concierge' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("concierge: configuration loaded",
		forge.F("currency", e.config.Currency),
		forge.F("refund_fee_bps", e.config.RefundFeeBps),
		forge.F("trial_days", e.config.TrialDays),
		forge.F("membership_days", e.config.MembershipDays),
		forge.F("expire_interval", e.config.ExpireInterval),
		forge.F("disable_expirer", e.config.DisableExpirer),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.concierge" first (namespaced pattern).
	if cm.IsSet("extensions.concierge") {
		if err := cm.Bind("extensions.concierge", &cfg); err == nil {
			e.Logger().Debug("concierge: loaded config from file",
				forge.F("key", "extensions.concierge"),
			)
			return cfg, true
		}
		e.Logger().Warn("concierge: failed to bind extensions.concierge config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "concierge" key.
	if cm.IsSet("concierge") {
		if err := cm.Bind("concierge", &cfg); err == nil {
			e.Logger().Debug("concierge: loaded config from file",
				forge.F("key", "concierge"),
			)
			return cfg, true
		}
		e.Logger().Warn("concierge: failed to bind concierge config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.TrialDays == 0 {
		cfg.TrialDays = defaults.TrialDays
	}
	if cfg.MembershipDays == 0 {
		cfg.MembershipDays = defaults.MembershipDays
	}
	if cfg.ExpireInterval == 0 {
		cfg.ExpireInterval = defaults.ExpireInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableExpirer {
		yamlConfig.DisableExpirer = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.RefundFeeBps == 0 && programmaticConfig.RefundFeeBps != 0 {
		yamlConfig.RefundFeeBps = programmaticConfig.RefundFeeBps
	}
	if yamlConfig.TrialDays == 0 && programmaticConfig.TrialDays != 0 {
		yamlConfig.TrialDays = programmaticConfig.TrialDays
	}
	if yamlConfig.MembershipDays == 0 && programmaticConfig.MembershipDays != 0 {
		yamlConfig.MembershipDays = programmaticConfig.MembershipDays
	}
	if yamlConfig.ExpireInterval == 0 && programmaticConfig.ExpireInterval != 0 {
		yamlConfig.ExpireInterval = programmaticConfig.ExpireInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
