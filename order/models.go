// Package order holds the order model and its status transition table.
//
// Status is the single source of truth for where an order sits in its
// lifecycle. The per-transition timestamps are denormalized metadata
// written alongside a transition and are never read for control flow.
package order

import (
	"time"

	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/types"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusQuoted    Status = "quoted"
	StatusAccepted  Status = "accepted"
	StatusPaid      Status = "paid"
	StatusPurchased Status = "purchased"
	StatusInspected Status = "inspected"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// fulfillmentChain is the admin-only progression after payment.
// Only the next sequential status is reachable — no skipping.
var fulfillmentChain = map[Status]Status{
	StatusPaid:      StatusPurchased,
	StatusPurchased: StatusInspected,
	StatusInspected: StatusShipped,
	StatusShipped:   StatusDelivered,
}

// forward is the happy-path transition table up to payment.
var forward = map[Status]Status{
	StatusRequested: StatusQuoted,
	StatusQuoted:    StatusAccepted,
	StatusAccepted:  StatusPaid,
}

// Terminal reports whether s is an absorbing state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal transition.
// Cancelled and refunded are reachable from any non-terminal state;
// every other transition must follow the sequential chain.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled || to == StatusRefunded {
		return true
	}
	if next, ok := forward[from]; ok && next == to {
		return true
	}
	if next, ok := fulfillmentChain[from]; ok && next == to {
		return true
	}
	return false
}

// NextFulfillment returns the only legal admin-progression target from s,
// or false if s is not in the fulfillment chain.
func NextFulfillment(s Status) (Status, bool) {
	next, ok := fulfillmentChain[s]
	return next, ok
}

// Request carries the validated fields of a customer purchase request.
type Request struct {
	Description string            `json:"description"`
	ExternalRef string            `json:"external_ref,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Order struct {
	types.Entity
	ID          id.OrderID   `json:"id"`
	AccountID   id.AccountID `json:"account_id"`
	Status      Status       `json:"status"`
	Description string       `json:"description"`

	// Cost components; TotalCost is derived and recomputed whenever any
	// component changes before payment.
	ItemCost         types.Money `json:"item_cost"`
	ServiceFee       types.Money `json:"service_fee"`
	ShippingEstimate types.Money `json:"shipping_estimate"`
	TotalCost        types.Money `json:"total_cost"`

	// ExternalRef correlates the order with a third-party marketplace.
	ExternalRef string `json:"external_ref,omitempty"`

	QuotedAt    *time.Time `json:"quoted_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
	InspectedAt *time.Time `json:"inspected_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Transition moves the order to the target status and stamps the matching
// timestamp. It assumes CanTransition(o.Status, to) was already checked.
func (o *Order) Transition(to Status, now time.Time) {
	o.Status = to
	ts := now.UTC()
	switch to {
	case StatusQuoted:
		o.QuotedAt = &ts
	case StatusPaid:
		o.PaidAt = &ts
	case StatusPurchased:
		o.PurchasedAt = &ts
	case StatusInspected:
		o.InspectedAt = &ts
	case StatusShipped:
		o.ShippedAt = &ts
	case StatusDelivered:
		o.DeliveredAt = &ts
	case StatusCancelled:
		o.CancelledAt = &ts
	case StatusRefunded:
		o.RefundedAt = &ts
	}
	o.UpdatedAt = ts
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	dup := *o
	dup.QuotedAt = cloneTime(o.QuotedAt)
	dup.PaidAt = cloneTime(o.PaidAt)
	dup.PurchasedAt = cloneTime(o.PurchasedAt)
	dup.InspectedAt = cloneTime(o.InspectedAt)
	dup.ShippedAt = cloneTime(o.ShippedAt)
	dup.DeliveredAt = cloneTime(o.DeliveredAt)
	dup.CancelledAt = cloneTime(o.CancelledAt)
	dup.RefundedAt = cloneTime(o.RefundedAt)
	if o.Metadata != nil {
		dup.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	dup := *t
	return &dup
}
