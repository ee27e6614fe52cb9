package extension

import "time"

// Config holds the Concierge extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.concierge" or "concierge" keys).
type Config struct {
	// Currency is the engine currency code (ISO 4217, lowercase,
	// default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// RefundFeeBps is the refund fee in basis points (default: 0).
	RefundFeeBps int64 `json:"refund_fee_bps" mapstructure:"refund_fee_bps" yaml:"refund_fee_bps"`

	// TrialDays is the free trial window in days (default: 30).
	TrialDays int `json:"trial_days" mapstructure:"trial_days" yaml:"trial_days"`

	// MembershipDays is the paid membership billing window in days
	// (default: 30).
	MembershipDays int `json:"membership_days" mapstructure:"membership_days" yaml:"membership_days"`

	// ExpireInterval is how often the background worker sweeps for due
	// memberships (default: 1h).
	ExpireInterval time.Duration `json:"expire_interval" mapstructure:"expire_interval" yaml:"expire_interval"`

	// DisableExpirer turns off the background expiry worker. An external
	// scheduler can still drive ExpireDue directly.
	DisableExpirer bool `json:"disable_expirer" mapstructure:"disable_expirer" yaml:"disable_expirer"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:       "usd",
		TrialDays:      30,
		MembershipDays: 30,
		ExpireInterval: time.Hour,
	}
}
