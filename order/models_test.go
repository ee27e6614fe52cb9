package order

import (
	"testing"
	"time"
)

func TestTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusRequested, false},
		{StatusQuoted, false},
		{StatusAccepted, false},
		{StatusPaid, false},
		{StatusPurchased, false},
		{StatusInspected, false},
		{StatusShipped, false},
		{StatusDelivered, true},
		{StatusCancelled, true},
		{StatusRefunded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal(%s): got %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		// Happy path up to payment
		{"requested to quoted", StatusRequested, StatusQuoted, true},
		{"quoted to accepted", StatusQuoted, StatusAccepted, true},
		{"accepted to paid", StatusAccepted, StatusPaid, true},

		// Fulfillment chain
		{"paid to purchased", StatusPaid, StatusPurchased, true},
		{"purchased to inspected", StatusPurchased, StatusInspected, true},
		{"inspected to shipped", StatusInspected, StatusShipped, true},
		{"shipped to delivered", StatusShipped, StatusDelivered, true},

		// No skipping
		{"requested to accepted", StatusRequested, StatusAccepted, false},
		{"requested to paid", StatusRequested, StatusPaid, false},
		{"quoted to paid", StatusQuoted, StatusPaid, false},
		{"paid to inspected", StatusPaid, StatusInspected, false},
		{"paid to delivered", StatusPaid, StatusDelivered, false},
		{"purchased to shipped", StatusPurchased, StatusShipped, false},

		// No going backwards
		{"quoted to requested", StatusQuoted, StatusRequested, false},
		{"paid to accepted", StatusPaid, StatusAccepted, false},
		{"shipped to inspected", StatusShipped, StatusInspected, false},

		// Cancel and refund reachable from any non-terminal state
		{"requested to cancelled", StatusRequested, StatusCancelled, true},
		{"quoted to cancelled", StatusQuoted, StatusCancelled, true},
		{"paid to cancelled", StatusPaid, StatusCancelled, true},
		{"shipped to cancelled", StatusShipped, StatusCancelled, true},
		{"accepted to refunded", StatusAccepted, StatusRefunded, true},
		{"paid to refunded", StatusPaid, StatusRefunded, true},
		{"shipped to refunded", StatusShipped, StatusRefunded, true},

		// Terminal states absorb
		{"delivered to cancelled", StatusDelivered, StatusCancelled, false},
		{"delivered to refunded", StatusDelivered, StatusRefunded, false},
		{"cancelled to refunded", StatusCancelled, StatusRefunded, false},
		{"cancelled to quoted", StatusCancelled, StatusQuoted, false},
		{"refunded to cancelled", StatusRefunded, StatusCancelled, false},
		{"refunded to paid", StatusRefunded, StatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s): got %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestNextFulfillment(t *testing.T) {
	tests := []struct {
		from Status
		next Status
		ok   bool
	}{
		{StatusPaid, StatusPurchased, true},
		{StatusPurchased, StatusInspected, true},
		{StatusInspected, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusRequested, "", false},
		{StatusQuoted, "", false},
		{StatusAccepted, "", false},
		{StatusDelivered, "", false},
		{StatusCancelled, "", false},
		{StatusRefunded, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			next, ok := NextFulfillment(tt.from)
			if ok != tt.ok {
				t.Fatalf("NextFulfillment(%s): ok = %v, want %v", tt.from, ok, tt.ok)
			}
			if ok && next != tt.next {
				t.Errorf("NextFulfillment(%s): got %s, want %s", tt.from, next, tt.next)
			}
		})
	}
}

func TestTransitionStampsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		to    Status
		stamp func(*Order) *time.Time
	}{
		{StatusQuoted, func(o *Order) *time.Time { return o.QuotedAt }},
		{StatusPaid, func(o *Order) *time.Time { return o.PaidAt }},
		{StatusPurchased, func(o *Order) *time.Time { return o.PurchasedAt }},
		{StatusInspected, func(o *Order) *time.Time { return o.InspectedAt }},
		{StatusShipped, func(o *Order) *time.Time { return o.ShippedAt }},
		{StatusDelivered, func(o *Order) *time.Time { return o.DeliveredAt }},
		{StatusCancelled, func(o *Order) *time.Time { return o.CancelledAt }},
		{StatusRefunded, func(o *Order) *time.Time { return o.RefundedAt }},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			o := &Order{Status: StatusRequested}
			o.Transition(tt.to, now)

			if o.Status != tt.to {
				t.Errorf("Status: got %s, want %s", o.Status, tt.to)
			}
			ts := tt.stamp(o)
			if ts == nil {
				t.Fatal("expected transition timestamp to be set")
			}
			if !ts.Equal(now) {
				t.Errorf("timestamp: got %v, want %v", ts, now)
			}
			if !o.UpdatedAt.Equal(now) {
				t.Errorf("UpdatedAt: got %v, want %v", o.UpdatedAt, now)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	o := &Order{
		Status:   StatusPaid,
		PaidAt:   &now,
		Metadata: map[string]string{"note": "fragile"},
	}

	dup := o.Clone()
	dup.Status = StatusPurchased
	*dup.PaidAt = now.Add(time.Hour)
	dup.Metadata["note"] = "changed"

	if o.Status != StatusPaid {
		t.Error("Clone shares Status with original")
	}
	if !o.PaidAt.Equal(now) {
		t.Error("Clone shares PaidAt pointer with original")
	}
	if o.Metadata["note"] != "fragile" {
		t.Error("Clone shares Metadata map with original")
	}
}
