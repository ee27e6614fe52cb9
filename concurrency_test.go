package concierge_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/types"
)

// The tests in this file hammer a single account from many goroutines
// and assert the invariants hold where it matters, in the store: one
// trial ever, one active membership, one settlement per order, and a
// balance that never over- or double-counts.

const workers = 8

func TestConcurrentStartTrialSingleWinner(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 0)

	start := make(chan struct{})
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = eng.StartTrial(ctx, a.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, concierge.ErrTrialAlreadyUsed),
			errors.Is(err, concierge.ErrMembershipActive):
		default:
			t.Errorf("unexpected StartTrial error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("StartTrial winners: got %d, want 1", wins)
	}

	if _, err := eng.ActiveMembership(ctx, a.ID); err != nil {
		t.Errorf("ActiveMembership after race: %v", err)
	}
}

func TestConcurrentSubscribeSingleDebit(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 5000)

	start := make(chan struct{})
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = eng.Subscribe(ctx, a.ID, membership.TypeBasic)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, concierge.ErrMembershipActive):
		default:
			t.Errorf("unexpected Subscribe error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Subscribe winners: got %d, want 1", wins)
	}

	// Exactly one plan price left the wallet.
	mustBalance(t, eng, a.ID, types.USD(4001))
}

func TestConcurrentPayOrderSingleSettlement(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 10000)
	o := acceptedOrder(t, eng, a.ID)

	start := make(chan struct{})
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = eng.PayOrder(ctx, o.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, concierge.ErrConcurrentModification),
			errors.Is(err, concierge.ErrInvalidTransition):
		default:
			t.Errorf("unexpected PayOrder error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("PayOrder winners: got %d, want 1", wins)
	}

	got, err := eng.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Status != order.StatusPaid {
		t.Errorf("Status: got %s, want %s", got.Status, order.StatusPaid)
	}

	// The order was charged once, not once per goroutine.
	mustBalance(t, eng, a.ID, types.USD(5000))
}

func TestConcurrentPaymentsNeverOverdraw(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	// Five $50.00 orders against a $120.00 wallet: exactly two can settle.
	a := fundedAccount(t, eng, 12000)
	orders := make([]*order.Order, 5)
	for i := range orders {
		orders[i] = acceptedOrder(t, eng, a.ID)
	}

	start := make(chan struct{})
	errs := make([]error, len(orders))
	var wg sync.WaitGroup
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = eng.PayOrder(ctx, orders[i].ID)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, concierge.ErrInsufficientFunds):
		default:
			t.Errorf("unexpected PayOrder error: %v", err)
		}
	}
	if wins != 2 {
		t.Errorf("settled orders: got %d, want 2", wins)
	}
	mustBalance(t, eng, a.ID, types.USD(2000))
}

func TestConcurrentDepositsAllCredit(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 0)

	start := make(chan struct{})
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ref := fmt.Sprintf("topup-%d-%s", i, a.ID)
			_, errs[i] = eng.Deposit(ctx, a.ID, types.USD(250), ref)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Errorf("Deposit failed: %v", err)
		}
	}
	mustBalance(t, eng, a.ID, types.USD(workers*250))
}
