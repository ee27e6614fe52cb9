// Package audithook bridges Concierge lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not depend
// on any particular audit system. Callers inject a RecorderFunc adapter
// that bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/concierge/hook"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
)

// Compile-time interface checks.
var (
	_ hook.Hook                 = (*Extension)(nil)
	_ hook.OnOrderSubmitted     = (*Extension)(nil)
	_ hook.OnOrderStatusChanged = (*Extension)(nil)
	_ hook.OnPaymentSettled     = (*Extension)(nil)
	_ hook.OnMembershipStarted  = (*Extension)(nil)
	_ hook.OnMembershipCanceled = (*Extension)(nil)
	_ hook.OnMembershipExpired  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// Defined locally so callers can inject any concrete audit system.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Concierge lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Hook.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderSubmitted implements hook.OnOrderSubmitted.
func (e *Extension) OnOrderSubmitted(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, nil,
		"account_id", o.AccountID.String(),
	)
}

// OnOrderStatusChanged implements hook.OnOrderStatusChanged.
func (e *Extension) OnOrderStatusChanged(ctx context.Context, o *order.Order, from, to order.Status) error {
	return e.record(ctx, orderAction(to), SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, nil,
		"account_id", o.AccountID.String(),
		"from", string(from),
		"to", string(to),
		"total", o.TotalCost.String(),
	)
}

// orderAction maps a target status to its audit action.
func orderAction(to order.Status) string {
	switch to {
	case order.StatusQuoted:
		return ActionOrderQuoted
	case order.StatusAccepted:
		return ActionOrderAccepted
	case order.StatusPaid:
		return ActionOrderPaid
	case order.StatusCancelled:
		return ActionOrderCancelled
	case order.StatusRefunded:
		return ActionOrderRefunded
	default:
		return ActionOrderAdvanced
	}
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentSettled implements hook.OnPaymentSettled.
func (e *Extension) OnPaymentSettled(ctx context.Context, p *payment.Payment) error {
	action := ActionPaymentSettled
	if p.Type == payment.TypeDeposit {
		action = ActionDepositSettled
	}

	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"account_id", p.AccountID.String(),
		"type", string(p.Type),
		"amount", p.Amount.String(),
		"reference", p.Reference,
	)
}

// ──────────────────────────────────────────────────
// Membership lifecycle hooks
// ──────────────────────────────────────────────────

// OnMembershipStarted implements hook.OnMembershipStarted.
func (e *Extension) OnMembershipStarted(ctx context.Context, m *membership.Membership) error {
	return e.record(ctx, ActionMembershipStarted, SeverityInfo, OutcomeSuccess,
		ResourceMembership, m.ID.String(), CategoryMembership, nil,
		"account_id", m.AccountID.String(),
		"plan", string(m.Type),
		"expires_at", m.ExpiresAt,
	)
}

// OnMembershipCanceled implements hook.OnMembershipCanceled.
func (e *Extension) OnMembershipCanceled(ctx context.Context, m *membership.Membership) error {
	return e.record(ctx, ActionMembershipCancelled, SeverityInfo, OutcomeSuccess,
		ResourceMembership, m.ID.String(), CategoryMembership, nil,
		"account_id", m.AccountID.String(),
		"plan", string(m.Type),
	)
}

// OnMembershipExpired implements hook.OnMembershipExpired.
func (e *Extension) OnMembershipExpired(ctx context.Context, m *membership.Membership) error {
	return e.record(ctx, ActionMembershipExpired, SeverityInfo, OutcomeSuccess,
		ResourceMembership, m.ID.String(), CategoryMembership, nil,
		"account_id", m.AccountID.String(),
		"plan", string(m.Type),
		"expired_at", m.ExpiresAt,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}

	// Audit failures never propagate into the settlement path.
	return nil
}
