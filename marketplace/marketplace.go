// Package marketplace maps inbound marketplace webhook events onto
// order lifecycle commands.
//
// The concierge buys from third-party marketplaces on the customer's
// behalf; the marketplace reports progress (purchase confirmed, item
// inspected, shipped, delivered) keyed by the external reference the
// order was submitted with. The Dispatcher resolves that reference to
// an order and advances it.
package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/order"
)

// EventType identifies a marketplace notification.
type EventType string

const (
	EventPurchaseCompleted  EventType = "purchase.completed"
	EventInspectionPassed   EventType = "inspection.passed"
	EventShipmentDispatched EventType = "shipment.dispatched"
	EventShipmentDelivered  EventType = "shipment.delivered"
	EventListingCancelled   EventType = "listing.cancelled"
)

// statusForEvent maps marketplace events to order fulfillment targets.
var statusForEvent = map[EventType]order.Status{
	EventPurchaseCompleted:  order.StatusPurchased,
	EventInspectionPassed:   order.StatusInspected,
	EventShipmentDispatched: order.StatusShipped,
	EventShipmentDelivered:  order.StatusDelivered,
}

// Event is a parsed marketplace notification.
type Event struct {
	Type        EventType         `json:"type"`
	ExternalRef string            `json:"external_ref"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// maxRetries bounds re-dispatch after a concurrent transition. One
// retry is enough: the second read sees the committed state and either
// succeeds or fails with a real transition error.
const maxRetries = 1

// Dispatcher turns marketplace events into engine commands.
type Dispatcher struct {
	engine *concierge.Engine
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher bound to the engine.
func NewDispatcher(engine *concierge.Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch resolves the event's order by external reference and applies
// the matching lifecycle command. Unknown event types are an error;
// a concurrent transition is retried once against fresh state.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) (*order.Order, error) {
	if evt.ExternalRef == "" {
		return nil, fmt.Errorf("%w: marketplace event without external_ref", concierge.ErrInvalidInput)
	}

	o, err := d.engine.OrderByExternalRef(ctx, evt.ExternalRef)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("marketplace event received",
		"type", evt.Type,
		"external_ref", evt.ExternalRef,
		"order", o.ID,
	)

	for attempt := 0; ; attempt++ {
		updated, err := d.apply(ctx, o.ID, evt)
		if err == nil {
			return updated, nil
		}
		if !concierge.IsRetryable(err) || attempt >= maxRetries {
			return nil, err
		}

		d.logger.Debug("marketplace dispatch retry after concurrent transition",
			"order", o.ID,
			"type", evt.Type,
		)
	}
}

func (d *Dispatcher) apply(ctx context.Context, orderID id.OrderID, evt Event) (*order.Order, error) {
	if evt.Type == EventListingCancelled {
		return d.engine.CancelOrder(ctx, orderID)
	}

	target, ok := statusForEvent[evt.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown marketplace event type %q", concierge.ErrInvalidInput, evt.Type)
	}
	return d.engine.AdvanceOrder(ctx, orderID, target)
}
