package marketplace_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/marketplace"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/quote"
	"github.com/xraph/concierge/store/memory"
	"github.com/xraph/concierge/types"
)

// paidOrder builds an engine with one paid order correlated to ref.
func paidOrder(t *testing.T, ref string) (*concierge.Engine, *order.Order) {
	t.Helper()
	ctx := context.Background()

	eng := concierge.New(memory.New(),
		concierge.WithExpireInterval(0),
		concierge.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	a, err := eng.CreateAccount(ctx, "ada")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := eng.Deposit(ctx, a.ID, types.USD(10000), "dep-1"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	o, err := eng.SubmitOrder(ctx, a.ID, order.Request{
		Description: "vintage camera",
		ExternalRef: ref,
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	if _, err := eng.QuoteOrder(ctx, o.ID, quote.Quote{
		ItemCost:         types.USD(4000),
		ServiceFee:       types.USD(500),
		ShippingEstimate: types.USD(500),
	}); err != nil {
		t.Fatalf("quote order: %v", err)
	}
	if _, err := eng.AcceptQuote(ctx, o.ID); err != nil {
		t.Fatalf("accept quote: %v", err)
	}
	o, err = eng.PayOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("pay order: %v", err)
	}

	return eng, o
}

func TestDispatchAdvancesFulfillment(t *testing.T) {
	eng, _ := paidOrder(t, "mk-3001")
	d := marketplace.NewDispatcher(eng)
	ctx := context.Background()

	steps := []struct {
		event  marketplace.EventType
		status order.Status
	}{
		{marketplace.EventPurchaseCompleted, order.StatusPurchased},
		{marketplace.EventInspectionPassed, order.StatusInspected},
		{marketplace.EventShipmentDispatched, order.StatusShipped},
		{marketplace.EventShipmentDelivered, order.StatusDelivered},
	}

	for _, step := range steps {
		o, err := d.Dispatch(ctx, marketplace.Event{
			Type:        step.event,
			ExternalRef: "mk-3001",
		})
		if err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", step.event, err)
		}
		if o.Status != step.status {
			t.Errorf("after %s: Status got %s, want %s", step.event, o.Status, step.status)
		}
	}
}

func TestDispatchRejectsOutOfOrderEvents(t *testing.T) {
	eng, _ := paidOrder(t, "mk-3002")
	d := marketplace.NewDispatcher(eng)

	// The item cannot ship before it is purchased and inspected.
	_, err := d.Dispatch(context.Background(), marketplace.Event{
		Type:        marketplace.EventShipmentDispatched,
		ExternalRef: "mk-3002",
	})
	if !errors.Is(err, concierge.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDispatchListingCancelled(t *testing.T) {
	eng, _ := paidOrder(t, "mk-3003")
	d := marketplace.NewDispatcher(eng)

	o, err := d.Dispatch(context.Background(), marketplace.Event{
		Type:        marketplace.EventListingCancelled,
		ExternalRef: "mk-3003",
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if o.Status != order.StatusCancelled {
		t.Errorf("Status: got %s, want %s", o.Status, order.StatusCancelled)
	}
}

func TestDispatchValidation(t *testing.T) {
	eng, _ := paidOrder(t, "mk-3004")
	d := marketplace.NewDispatcher(eng)
	ctx := context.Background()

	// Missing external reference.
	_, err := d.Dispatch(ctx, marketplace.Event{Type: marketplace.EventPurchaseCompleted})
	if !errors.Is(err, concierge.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty ref, got %v", err)
	}

	// Unknown reference.
	_, err = d.Dispatch(ctx, marketplace.Event{
		Type:        marketplace.EventPurchaseCompleted,
		ExternalRef: "mk-unknown",
	})
	if !concierge.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}

	// Unknown event type.
	_, err = d.Dispatch(ctx, marketplace.Event{
		Type:        marketplace.EventType("listing.relisted"),
		ExternalRef: "mk-3004",
	})
	if !errors.Is(err, concierge.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown event type, got %v", err)
	}
}
