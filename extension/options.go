package extension

import (
	"time"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/hook"
	"github.com/xraph/concierge/store"
)

// Option configures the Concierge Forge extension.
type Option func(*Extension)

// WithStore sets the store for the concierge engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a concierge.Option through to the underlying engine.
func WithEngineOption(opt concierge.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithHook registers a concierge lifecycle hook.
func WithHook(h hook.Hook) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, concierge.WithHook(h))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithCurrency sets the engine currency code.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithRefundFee sets the refund fee in basis points.
func WithRefundFee(bps int64) Option {
	return func(e *Extension) { e.config.RefundFeeBps = bps }
}

// WithTrialDays sets the free trial window in days.
func WithTrialDays(days int) Option {
	return func(e *Extension) { e.config.TrialDays = days }
}

// WithMembershipDays sets the paid membership billing window in days.
func WithMembershipDays(days int) Option {
	return func(e *Extension) { e.config.MembershipDays = days }
}

// WithExpireInterval sets how often the expiry worker sweeps.
func WithExpireInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ExpireInterval = d }
}

// WithDisableExpirer turns off the background expiry worker.
func WithDisableExpirer() Option {
	return func(e *Extension) { e.config.DisableExpirer = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
