package concierge_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/quote"
	"github.com/xraph/concierge/store/memory"
	"github.com/xraph/concierge/types"
)

// newTestEngine builds a started engine on a fresh in-memory store with
// the background expiry worker disabled. Tests drive ExpireDue directly.
func newTestEngine(t *testing.T, opts ...concierge.Option) *concierge.Engine {
	t.Helper()

	base := []concierge.Option{
		concierge.WithExpireInterval(0),
		concierge.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}

	eng := concierge.New(memory.New(), append(base, opts...)...)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(func() {
		_ = eng.Stop()
	})

	return eng
}

// fundedAccount creates an account holding cents in the engine currency.
func fundedAccount(t *testing.T, eng *concierge.Engine, cents int64) *account.Account {
	t.Helper()

	ctx := context.Background()
	a, err := eng.CreateAccount(ctx, "test-customer")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	if cents > 0 {
		if _, err := eng.Deposit(ctx, a.ID, types.USD(cents), "dep-"+a.ID.String()); err != nil {
			t.Fatalf("fund account: %v", err)
		}
	}

	return a
}

// acceptedOrder drives an order to accepted with a $50.00 quote
// (item $40.00, service fee $5.00, shipping $5.00).
func acceptedOrder(t *testing.T, eng *concierge.Engine, accountID id.AccountID) *order.Order {
	t.Helper()

	ctx := context.Background()
	o, err := eng.SubmitOrder(ctx, accountID, order.Request{Description: "vintage camera"})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}

	o, err = eng.QuoteOrder(ctx, o.ID, quote.Quote{
		ItemCost:         types.USD(4000),
		ServiceFee:       types.USD(500),
		ShippingEstimate: types.USD(500),
	})
	if err != nil {
		t.Fatalf("quote order: %v", err)
	}

	o, err = eng.AcceptQuote(ctx, o.ID)
	if err != nil {
		t.Fatalf("accept quote: %v", err)
	}

	return o
}

// mustBalance asserts the account's wallet balance.
func mustBalance(t *testing.T, eng *concierge.Engine, accountID id.AccountID, want types.Money) {
	t.Helper()

	got, err := eng.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("balance: got %v, want %v", got, want)
	}
}
