package concierge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/payment"
	"github.com/xraph/concierge/types"
)

func TestCreateAccount(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateAccount(ctx, "ada")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if a.ID.IsNil() {
		t.Error("expected a non-nil account ID")
	}
	if a.Name != "ada" {
		t.Errorf("Name: got %q, want %q", a.Name, "ada")
	}
	if !a.Balance.Equal(types.USD(0)) {
		t.Errorf("new account balance: got %v, want %v", a.Balance, types.USD(0))
	}
}

func TestGetAccountNotFound(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.GetAccount(context.Background(), id.NewAccountID())
	if !errors.Is(err, concierge.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if !concierge.IsNotFound(err) {
		t.Error("expected IsNotFound to classify the error")
	}
}

func TestDepositCreditsBalance(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateAccount(ctx, "ada")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	p, err := eng.Deposit(ctx, a.ID, types.USD(10000), "dep-001")
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	if p.Type != payment.TypeDeposit {
		t.Errorf("Type: got %s, want %s", p.Type, payment.TypeDeposit)
	}
	if p.Status != payment.StatusCompleted {
		t.Errorf("Status: got %s, want %s", p.Status, payment.StatusCompleted)
	}
	if p.Reference != "dep-001" {
		t.Errorf("Reference: got %q, want %q", p.Reference, "dep-001")
	}
	if !p.Amount.Equal(types.USD(10000)) {
		t.Errorf("Amount: got %v, want %v", p.Amount, types.USD(10000))
	}

	mustBalance(t, eng, a.ID, types.USD(10000))

	// A second deposit accumulates.
	if _, err := eng.Deposit(ctx, a.ID, types.USD(2500), "dep-002"); err != nil {
		t.Fatalf("second Deposit failed: %v", err)
	}
	mustBalance(t, eng, a.ID, types.USD(12500))
}

func TestDepositIdempotentReference(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateAccount(ctx, "ada")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	first, err := eng.Deposit(ctx, a.ID, types.USD(10000), "dep-retry")
	if err != nil {
		t.Fatalf("first Deposit failed: %v", err)
	}

	// A retried deposit with the same reference resolves to the original
	// record and must not credit the balance a second time.
	second, err := eng.Deposit(ctx, a.ID, types.USD(10000), "dep-retry")
	if err != nil {
		t.Fatalf("retried Deposit failed: %v", err)
	}

	if second.ID.String() != first.ID.String() {
		t.Errorf("retry returned a new payment: %s != %s", second.ID, first.ID)
	}
	mustBalance(t, eng, a.ID, types.USD(10000))
}

func TestDepositValidation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateAccount(ctx, "ada")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	tests := []struct {
		name      string
		accountID id.AccountID
		amount    types.Money
		reference string
		wantErr   error
	}{
		{"zero amount", a.ID, types.USD(0), "dep-1", concierge.ErrInvalidAmount},
		{"negative amount", a.ID, types.USD(-100), "dep-2", concierge.ErrInvalidAmount},
		{"currency mismatch", a.ID, types.EUR(100), "dep-3", concierge.ErrInvalidInput},
		{"empty reference", a.ID, types.USD(100), "", concierge.ErrInvalidInput},
		{"unknown account", id.NewAccountID(), types.USD(100), "dep-4", concierge.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Deposit(ctx, tt.accountID, tt.amount, tt.reference)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// None of the rejected deposits may have touched the balance.
	mustBalance(t, eng, a.ID, types.USD(0))
}

func TestPaymentByReference(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 10000)

	p, err := eng.PaymentByReference(ctx, "dep-"+a.ID.String())
	if err != nil {
		t.Fatalf("PaymentByReference failed: %v", err)
	}
	if p.Type != payment.TypeDeposit {
		t.Errorf("Type: got %s, want %s", p.Type, payment.TypeDeposit)
	}

	if _, err := eng.PaymentByReference(ctx, ""); !errors.Is(err, concierge.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty reference, got %v", err)
	}
	if _, err := eng.PaymentByReference(ctx, "no-such-ref"); !concierge.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

func TestListPayments(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 10000)
	o := acceptedOrder(t, eng, a.ID)
	if _, err := eng.PayOrder(ctx, o.ID); err != nil {
		t.Fatalf("PayOrder failed: %v", err)
	}

	all, err := eng.ListPayments(ctx, a.ID, payment.ListOpts{})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 payments (deposit + order payment), got %d", len(all))
	}

	deposits, err := eng.ListPayments(ctx, a.ID, payment.ListOpts{Type: payment.TypeDeposit})
	if err != nil {
		t.Fatalf("ListPayments(deposit) failed: %v", err)
	}
	if len(deposits) != 1 || deposits[0].Type != payment.TypeDeposit {
		t.Errorf("deposit filter: got %d payments", len(deposits))
	}

	limited, err := eng.ListPayments(ctx, a.ID, payment.ListOpts{Limit: 1})
	if err != nil {
		t.Fatalf("ListPayments(limit) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1: got %d payments", len(limited))
	}
}
