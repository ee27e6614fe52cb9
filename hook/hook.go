// Package hook provides an extensible hook system for Concierge.
// Hooks observe lifecycle events to extend functionality — audit trails,
// metrics, notifications. They are invoked only after the owning store
// transaction has committed, never before, so a hook always sees state
// that is durably true.
package hook

import (
	"context"

	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
)

// Hook is the base interface that all hooks must implement.
type Hook interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Hook
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Hook
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderSubmitted is called when a new order is created.
type OnOrderSubmitted interface {
	Hook
	OnOrderSubmitted(ctx context.Context, o *order.Order) error
}

// OnOrderStatusChanged is called after an order transition commits.
type OnOrderStatusChanged interface {
	Hook
	OnOrderStatusChanged(ctx context.Context, o *order.Order, from, to order.Status) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentSettled is called after a payment record and its balance
// delta have committed together.
type OnPaymentSettled interface {
	Hook
	OnPaymentSettled(ctx context.Context, p *payment.Payment) error
}

// ──────────────────────────────────────────────────
// Membership lifecycle hooks
// ──────────────────────────────────────────────────

// OnMembershipStarted is called when a trial or paid membership begins.
type OnMembershipStarted interface {
	Hook
	OnMembershipStarted(ctx context.Context, m *membership.Membership) error
}

// OnMembershipCanceled is called when a membership is cancelled.
type OnMembershipCanceled interface {
	Hook
	OnMembershipCanceled(ctx context.Context, m *membership.Membership) error
}

// OnMembershipExpired is called for each membership the expiry sweep
// transitions to expired. Emitted at most once per membership. A due
// membership displaced in-store by a new subscription is expired as
// part of that settlement and never reaches this hook.
type OnMembershipExpired interface {
	Hook
	OnMembershipExpired(ctx context.Context, m *membership.Membership) error
}
