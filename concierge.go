package concierge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/concierge/hook"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/store"
	"github.com/xraph/concierge/types"
)

// Default lifecycle windows and fees. All overridable via options.
const (
	defaultCurrency         = "usd"
	defaultTrialPeriod      = 30 * 24 * time.Hour
	defaultMembershipPeriod = 30 * 24 * time.Hour
	defaultExpireInterval   = time.Hour
)

// Engine is the order lifecycle and ledger engine.
type Engine struct {
	store  store.Store
	hooks  *hook.Registry
	logger *slog.Logger

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	currency         string
	refundFeeBps     int64
	trialPeriod      time.Duration
	membershipPeriod time.Duration
	expireInterval   time.Duration
	planPrices       map[membership.Type]types.Money
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		hooks:            hook.NewRegistry(),
		logger:           slog.Default(),
		stopChan:         make(chan struct{}),
		currency:         defaultCurrency,
		trialPeriod:      defaultTrialPeriod,
		membershipPeriod: defaultMembershipPeriod,
		expireInterval:   defaultExpireInterval,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.planPrices == nil {
		e.planPrices = defaultPlanPrices(e.currency)
	}

	return e
}

// defaultPlanPrices returns the built-in plan price list in the engine
// currency. Deployments with real pricing use WithPlanPricing.
func defaultPlanPrices(currency string) map[membership.Type]types.Money {
	return map[membership.Type]types.Money{
		membership.TypeBasic:      types.New(999, currency),
		membership.TypePremium:    types.New(2999, currency),
		membership.TypeEnterprise: types.New(9999, currency),
	}
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.hooks.WithLogger(logger)
	}
}

// WithHook registers a lifecycle hook.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) {
		_ = e.hooks.Register(h) //nolint:errcheck // best-effort hook registration during init
	}
}

// WithCurrency sets the engine currency (ISO 4217, lowercase).
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.currency = currency
	}
}

// WithRefundFee sets the refund fee in basis points (10000 = 100%).
// The fee is configuration, not business logic: settlement applies
// whatever value is configured here.
func WithRefundFee(bps int64) Option {
	return func(e *Engine) {
		e.refundFeeBps = bps
	}
}

// WithTrialPeriod sets the trial membership window.
func WithTrialPeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.trialPeriod = d
	}
}

// WithMembershipPeriod sets the paid membership billing window.
func WithMembershipPeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.membershipPeriod = d
	}
}

// WithExpireInterval sets how often the background worker sweeps for due
// memberships. Zero or negative disables the worker; an external
// scheduler can still call ExpireDue directly.
func WithExpireInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.expireInterval = d
	}
}

// WithPlanPricing replaces the plan price list. Plans absent from the
// map cannot be subscribed to.
func WithPlanPricing(prices map[membership.Type]types.Money) Option {
	return func(e *Engine) {
		e.planPrices = prices
	}
}

// Hooks returns the hook registry for late registration.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.hooks.EmitInit(ctx, e)

	if e.expireInterval > 0 {
		e.wg.Add(1)
		go e.expiryWorker(ctx)
	}

	e.logger.Info("concierge engine started",
		"currency", e.currency,
		"refund_fee_bps", e.refundFeeBps,
		"expire_interval", e.expireInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()

	ctx := context.Background()
	e.hooks.EmitShutdown(ctx)

	return e.store.Close()
}

// expiryWorker periodically sweeps active memberships past their expiry.
// The sweep is idempotent, so an overlapping external scheduler calling
// ExpireDue is harmless.
func (e *Engine) expiryWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return

		case <-ticker.C:
			count, err := e.ExpireDue(ctx, time.Now())
			if err != nil {
				e.logger.Error("membership expiry sweep failed",
					"error", err,
				)
				continue
			}
			if count > 0 {
				e.logger.Debug("membership expiry sweep",
					"expired", count,
				)
			}
		}
	}
}
