package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
)

// callTimeout bounds every hook invocation. Hooks should never block the
// order or settlement pipeline.
const callTimeout = 5 * time.Second

// Registry manages all registered hooks and provides efficient dispatch.
// It uses type-cached discovery so emission is a slice walk, not a
// per-event type assertion over every hook.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger

	// Type-cached hook lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onOrderSubmitted     []OnOrderSubmitted
	onOrderStatusChanged []OnOrderStatusChanged
	onPaymentSettled     []OnPaymentSettled
	onMembershipStarted  []OnMembershipStarted
	onMembershipCanceled []OnMembershipCanceled
	onMembershipExpired  []OnMembershipExpired
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a hook to the registry and caches its interfaces.
func (r *Registry) Register(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hooks {
		if existing.Name() == h.Name() {
			return fmt.Errorf("hook: duplicate registration: %s", h.Name())
		}
	}

	r.hooks = append(r.hooks, h)

	// Type-switch to cache interfaces
	if v, ok := h.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := h.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := h.(OnOrderSubmitted); ok {
		r.onOrderSubmitted = append(r.onOrderSubmitted, v)
	}
	if v, ok := h.(OnOrderStatusChanged); ok {
		r.onOrderStatusChanged = append(r.onOrderStatusChanged, v)
	}
	if v, ok := h.(OnPaymentSettled); ok {
		r.onPaymentSettled = append(r.onPaymentSettled, v)
	}
	if v, ok := h.(OnMembershipStarted); ok {
		r.onMembershipStarted = append(r.onMembershipStarted, v)
	}
	if v, ok := h.(OnMembershipCanceled); ok {
		r.onMembershipCanceled = append(r.onMembershipCanceled, v)
	}
	if v, ok := h.(OnMembershipExpired); ok {
		r.onMembershipExpired = append(r.onMembershipExpired, v)
	}

	return nil
}

// Get returns a hook by name.
func (r *Registry) Get(name string) Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hooks {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// List returns all registered hooks.
func (r *Registry) List() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Hook, len(r.hooks))
	copy(result, r.hooks)
	return result
}

// Count returns the number of registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all hooks that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("hook OnInit failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all hooks that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("hook OnShutdown failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderSubmitted calls OnOrderSubmitted for all hooks that implement it.
func (r *Registry) EmitOrderSubmitted(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	hooks := r.onOrderSubmitted
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnOrderSubmitted(ctx, o)
		}); err != nil {
			r.logger.Warn("hook OnOrderSubmitted failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderStatusChanged calls OnOrderStatusChanged for all hooks that
// implement it.
func (r *Registry) EmitOrderStatusChanged(ctx context.Context, o *order.Order, from, to order.Status) {
	r.mu.RLock()
	hooks := r.onOrderStatusChanged
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnOrderStatusChanged(ctx, o, from, to)
		}); err != nil {
			r.logger.Warn("hook OnOrderStatusChanged failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentSettled calls OnPaymentSettled for all hooks that implement it.
func (r *Registry) EmitPaymentSettled(ctx context.Context, p *payment.Payment) {
	r.mu.RLock()
	hooks := r.onPaymentSettled
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnPaymentSettled(ctx, p)
		}); err != nil {
			r.logger.Warn("hook OnPaymentSettled failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitMembershipStarted calls OnMembershipStarted for all hooks that
// implement it.
func (r *Registry) EmitMembershipStarted(ctx context.Context, m *membership.Membership) {
	r.mu.RLock()
	hooks := r.onMembershipStarted
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnMembershipStarted(ctx, m)
		}); err != nil {
			r.logger.Warn("hook OnMembershipStarted failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitMembershipCanceled calls OnMembershipCanceled for all hooks that
// implement it.
func (r *Registry) EmitMembershipCanceled(ctx context.Context, m *membership.Membership) {
	r.mu.RLock()
	hooks := r.onMembershipCanceled
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnMembershipCanceled(ctx, m)
		}); err != nil {
			r.logger.Warn("hook OnMembershipCanceled failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitMembershipExpired calls OnMembershipExpired for all hooks that
// implement it.
func (r *Registry) EmitMembershipExpired(ctx context.Context, m *membership.Membership) {
	r.mu.RLock()
	hooks := r.onMembershipExpired
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnMembershipExpired(ctx, m)
		}); err != nil {
			r.logger.Warn("hook OnMembershipExpired failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a hook function with a timeout.
// Hooks should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, hookName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(callTimeout):
		return fmt.Errorf("hook timeout: %s", hookName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
