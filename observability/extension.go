// Package observability provides a metrics hook for Concierge that
// records lifecycle event counts through an injected MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/concierge/hook"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ hook.Hook                 = (*MetricsExtension)(nil)
	_ hook.OnOrderSubmitted     = (*MetricsExtension)(nil)
	_ hook.OnOrderStatusChanged = (*MetricsExtension)(nil)
	_ hook.OnPaymentSettled     = (*MetricsExtension)(nil)
	_ hook.OnMembershipStarted  = (*MetricsExtension)(nil)
	_ hook.OnMembershipCanceled = (*MetricsExtension)(nil)
	_ hook.OnMembershipExpired  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Concierge hook to automatically track order,
// payment, and membership activity.
type MetricsExtension struct {
	factory MetricFactory

	// Order metrics
	OrdersSubmitted Counter
	OrdersPaid      Counter
	OrdersDelivered Counter
	OrdersCancelled Counter
	OrdersRefunded  Counter
	OrderTotal      Histogram

	// Payment metrics
	DepositsSettled Counter
	PaymentsSettled Counter
	RefundsSettled  Counter
	PaymentAmount   Histogram

	// Membership metrics
	MembershipsStarted   Counter
	MembershipsCancelled Counter
	MembershipsExpired   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Order metrics
		OrdersSubmitted: factory.Counter("concierge.orders.submitted"),
		OrdersPaid:      factory.Counter("concierge.orders.paid"),
		OrdersDelivered: factory.Counter("concierge.orders.delivered"),
		OrdersCancelled: factory.Counter("concierge.orders.cancelled"),
		OrdersRefunded:  factory.Counter("concierge.orders.refunded"),
		OrderTotal:      factory.Histogram("concierge.orders.total_amount"),

		// Payment metrics
		DepositsSettled: factory.Counter("concierge.deposits.settled"),
		PaymentsSettled: factory.Counter("concierge.payments.settled"),
		RefundsSettled:  factory.Counter("concierge.refunds.settled"),
		PaymentAmount:   factory.Histogram("concierge.payments.amount"),

		// Membership metrics
		MembershipsStarted:   factory.Counter("concierge.memberships.started"),
		MembershipsCancelled: factory.Counter("concierge.memberships.cancelled"),
		MembershipsExpired:   factory.Counter("concierge.memberships.expired"),
	}
}

// Name implements hook.Hook.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnOrderSubmitted implements hook.OnOrderSubmitted.
func (m *MetricsExtension) OnOrderSubmitted(_ context.Context, _ *order.Order) error {
	m.OrdersSubmitted.Inc()
	return nil
}

// OnOrderStatusChanged implements hook.OnOrderStatusChanged.
func (m *MetricsExtension) OnOrderStatusChanged(_ context.Context, o *order.Order, _, to order.Status) error {
	switch to {
	case order.StatusPaid:
		m.OrdersPaid.Inc()
		m.OrderTotal.Observe(float64(o.TotalCost.Amount))
	case order.StatusDelivered:
		m.OrdersDelivered.Inc()
	case order.StatusCancelled:
		m.OrdersCancelled.Inc()
	case order.StatusRefunded:
		m.OrdersRefunded.Inc()
	}
	return nil
}

// OnPaymentSettled implements hook.OnPaymentSettled.
func (m *MetricsExtension) OnPaymentSettled(_ context.Context, p *payment.Payment) error {
	switch p.Type {
	case payment.TypeDeposit:
		m.DepositsSettled.Inc()
	case payment.TypeRefund:
		m.RefundsSettled.Inc()
	default:
		m.PaymentsSettled.Inc()
	}
	m.PaymentAmount.Observe(float64(p.Amount.Amount))
	return nil
}

// OnMembershipStarted implements hook.OnMembershipStarted.
func (m *MetricsExtension) OnMembershipStarted(_ context.Context, _ *membership.Membership) error {
	m.MembershipsStarted.Inc()
	return nil
}

// OnMembershipCanceled implements hook.OnMembershipCanceled.
func (m *MetricsExtension) OnMembershipCanceled(_ context.Context, _ *membership.Membership) error {
	m.MembershipsCancelled.Inc()
	return nil
}

// OnMembershipExpired implements hook.OnMembershipExpired.
func (m *MetricsExtension) OnMembershipExpired(_ context.Context, _ *membership.Membership) error {
	m.MembershipsExpired.Inc()
	return nil
}
