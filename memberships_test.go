package concierge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/payment"
	"github.com/xraph/concierge/types"
)

func TestStartTrial(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 0)

	m, err := eng.StartTrial(ctx, a.ID)
	if err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}

	if m.Type != membership.TypeTrial {
		t.Errorf("Type: got %s, want %s", m.Type, membership.TypeTrial)
	}
	if m.Status != membership.StatusActive {
		t.Errorf("Status: got %s, want %s", m.Status, membership.StatusActive)
	}
	if !m.AmountPaid.IsZero() {
		t.Errorf("AmountPaid: got %v, want zero", m.AmountPaid)
	}
	if !m.ExpiresAt.After(m.StartedAt) {
		t.Errorf("ExpiresAt %v not after StartedAt %v", m.ExpiresAt, m.StartedAt)
	}

	active, err := eng.ActiveMembership(ctx, a.ID)
	if err != nil {
		t.Fatalf("ActiveMembership failed: %v", err)
	}
	if active.ID.String() != m.ID.String() {
		t.Errorf("ActiveMembership: got %s, want %s", active.ID, m.ID)
	}
}

func TestStartTrialOnlyOnce(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 0)

	m, err := eng.StartTrial(ctx, a.ID)
	if err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}

	// A second trial while the first is active.
	if _, err := eng.StartTrial(ctx, a.ID); !errors.Is(err, concierge.ErrTrialAlreadyUsed) {
		t.Errorf("expected ErrTrialAlreadyUsed, got %v", err)
	}

	// Cancelling the trial does not earn a fresh one.
	if _, err := eng.CancelMembership(ctx, m.ID); err != nil {
		t.Fatalf("CancelMembership failed: %v", err)
	}
	if _, err := eng.StartTrial(ctx, a.ID); !errors.Is(err, concierge.ErrTrialAlreadyUsed) {
		t.Errorf("expected ErrTrialAlreadyUsed after cancellation, got %v", err)
	}
}

func TestStartTrialUnknownAccount(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.StartTrial(context.Background(), id.NewAccountID())
	if !concierge.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

func TestSubscribeDebitsPlanPrice(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 5000)

	m, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if m.Type != membership.TypeBasic {
		t.Errorf("Type: got %s, want %s", m.Type, membership.TypeBasic)
	}
	if m.Status != membership.StatusActive {
		t.Errorf("Status: got %s, want %s", m.Status, membership.StatusActive)
	}
	if !m.AmountPaid.Equal(types.USD(999)) {
		t.Errorf("AmountPaid: got %v, want %v", m.AmountPaid, types.USD(999))
	}
	mustBalance(t, eng, a.ID, types.USD(4001))

	p, err := eng.PaymentByReference(ctx, "membership:"+m.ID.String())
	if err != nil {
		t.Fatalf("PaymentByReference failed: %v", err)
	}
	if p.Type != payment.TypeMembership {
		t.Errorf("payment Type: got %s, want %s", p.Type, payment.TypeMembership)
	}
	if !p.Amount.Equal(types.USD(999)) {
		t.Errorf("payment Amount: got %v, want %v", p.Amount, types.USD(999))
	}
}

func TestSubscribeInsufficientFunds(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 500)

	_, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic)
	if !errors.Is(err, concierge.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed settlement created nothing.
	mustBalance(t, eng, a.ID, types.USD(500))
	if _, err := eng.ActiveMembership(ctx, a.ID); !concierge.IsNotFound(err) {
		t.Errorf("expected no active membership, got %v", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 100000)

	// Trial is not a purchasable plan.
	if _, err := eng.Subscribe(ctx, a.ID, membership.TypeTrial); !errors.Is(err, concierge.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for trial plan, got %v", err)
	}

	// Unknown plan.
	if _, err := eng.Subscribe(ctx, a.ID, membership.Type("platinum")); !errors.Is(err, concierge.ErrUnknownPlan) {
		t.Errorf("expected ErrUnknownPlan, got %v", err)
	}

	// Only one active membership at a time.
	if _, err := eng.Subscribe(ctx, a.ID, membership.TypePremium); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic); !errors.Is(err, concierge.ErrMembershipActive) {
		t.Errorf("expected ErrMembershipActive, got %v", err)
	}
}

func TestTrialBlockedWhileMembershipActive(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 5000)

	if _, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := eng.StartTrial(ctx, a.ID); !errors.Is(err, concierge.ErrMembershipActive) {
		t.Errorf("expected ErrMembershipActive, got %v", err)
	}
}

func TestCancelMembership(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 5000)
	m, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	m, err = eng.CancelMembership(ctx, m.ID)
	if err != nil {
		t.Fatalf("CancelMembership failed: %v", err)
	}
	if m.Status != membership.StatusCancelled {
		t.Errorf("Status: got %s, want %s", m.Status, membership.StatusCancelled)
	}

	// Cancellation has no ledger effect.
	mustBalance(t, eng, a.ID, types.USD(4001))

	// Cancelled is absorbing.
	if _, err := eng.CancelMembership(ctx, m.ID); !errors.Is(err, concierge.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// The account is free to subscribe again.
	if _, err := eng.Subscribe(ctx, a.ID, membership.TypePremium); err != nil {
		t.Errorf("Subscribe after cancel failed: %v", err)
	}
}

func TestExtendMembership(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a := fundedAccount(t, eng, 5000)
	m, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	extended, err := eng.ExtendMembership(ctx, m.ID, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("ExtendMembership failed: %v", err)
	}
	want := m.ExpiresAt.Add(7 * 24 * time.Hour)
	if !extended.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt: got %v, want %v", extended.ExpiresAt, want)
	}

	// Non-positive extensions are rejected.
	if _, err := eng.ExtendMembership(ctx, m.ID, 0); !errors.Is(err, concierge.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero extension, got %v", err)
	}
	if _, err := eng.ExtendMembership(ctx, m.ID, -time.Hour); !errors.Is(err, concierge.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative extension, got %v", err)
	}

	// Extension never resurrects a cancelled membership.
	if _, err := eng.CancelMembership(ctx, m.ID); err != nil {
		t.Fatalf("CancelMembership failed: %v", err)
	}
	if _, err := eng.ExtendMembership(ctx, m.ID, time.Hour); !errors.Is(err, concierge.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for cancelled membership, got %v", err)
	}
}

func TestExpireDue(t *testing.T) {
	// A negative trial period creates memberships that are already due.
	eng := newTestEngine(t, concierge.WithTrialPeriod(-time.Hour))
	ctx := context.Background()

	a := fundedAccount(t, eng, 0)
	m, err := eng.StartTrial(ctx, a.ID)
	if err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}

	now := time.Now()

	count, err := eng.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired membership, got %d", count)
	}

	got, err := eng.GetMembership(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if got.Status != membership.StatusExpired {
		t.Errorf("Status: got %s, want %s", got.Status, membership.StatusExpired)
	}
	if _, err := eng.ActiveMembership(ctx, a.ID); !concierge.IsNotFound(err) {
		t.Errorf("expected no active membership after expiry, got %v", err)
	}

	// The sweep is idempotent: running it again moves nothing.
	count, err = eng.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("second ExpireDue failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 on second sweep, got %d", count)
	}
}

func TestExpireDueSkipsCancelledAndCurrent(t *testing.T) {
	eng := newTestEngine(t, concierge.WithTrialPeriod(-time.Hour))
	ctx := context.Background()

	// A due-but-cancelled trial: the sweep must not touch it.
	cancelled := fundedAccount(t, eng, 0)
	m, err := eng.StartTrial(ctx, cancelled.ID)
	if err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}
	if _, err := eng.CancelMembership(ctx, m.ID); err != nil {
		t.Fatalf("CancelMembership failed: %v", err)
	}

	// A paid membership with a future expiry: not due yet.
	current := fundedAccount(t, eng, 5000)
	if _, err := eng.Subscribe(ctx, current.ID, membership.TypeBasic); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	count, err := eng.ExpireDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 expired memberships, got %d", count)
	}

	got, err := eng.GetMembership(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if got.Status != membership.StatusCancelled {
		t.Errorf("cancelled membership Status: got %s, want %s", got.Status, membership.StatusCancelled)
	}
}

func TestSubscribeAfterTrialExpired(t *testing.T) {
	eng := newTestEngine(t, concierge.WithTrialPeriod(-time.Hour))
	ctx := context.Background()

	a := fundedAccount(t, eng, 5000)
	if _, err := eng.StartTrial(ctx, a.ID); err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}
	if _, err := eng.ExpireDue(ctx, time.Now()); err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}

	// An expired trial no longer blocks a paid subscription.
	m, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if m.Status != membership.StatusActive {
		t.Errorf("Status: got %s, want %s", m.Status, membership.StatusActive)
	}
}

func TestWithPlanPricing(t *testing.T) {
	eng := newTestEngine(t, concierge.WithPlanPricing(map[membership.Type]types.Money{
		membership.TypeBasic: types.USD(1500),
	}))
	ctx := context.Background()

	a := fundedAccount(t, eng, 2000)

	m, err := eng.Subscribe(ctx, a.ID, membership.TypeBasic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if !m.AmountPaid.Equal(types.USD(1500)) {
		t.Errorf("AmountPaid: got %v, want %v", m.AmountPaid, types.USD(1500))
	}
	mustBalance(t, eng, a.ID, types.USD(500))

	// Plans absent from the custom price list are unknown.
	b := fundedAccount(t, eng, 100000)
	if _, err := eng.Subscribe(ctx, b.ID, membership.TypePremium); !errors.Is(err, concierge.ErrUnknownPlan) {
		t.Errorf("expected ErrUnknownPlan for unlisted plan, got %v", err)
	}
}
