package concierge

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/payment"
	"github.com/xraph/concierge/types"
)

// ──────────────────────────────────────────────────
// Membership lifecycle
// ──────────────────────────────────────────────────

// StartTrial begins a free trial membership for the account. Each
// account gets exactly one trial, ever; a cancelled or expired trial
// still counts as used. The checks here give friendly errors on the
// fast path, but the store re-enforces both invariants inside the
// insert, so concurrent calls cannot start two memberships.
func (e *Engine) StartTrial(ctx context.Context, accountID id.AccountID) (*membership.Membership, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	used, err := e.store.HasTrialMembership(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrTrialAlreadyUsed
	}

	now := time.Now()
	if _, err := e.activeMembership(ctx, accountID, now); err == nil {
		return nil, ErrMembershipActive
	} else if !IsNotFound(err) {
		return nil, err
	}

	m := &membership.Membership{
		Entity:     types.NewEntity(),
		ID:         id.NewMembershipID(),
		AccountID:  accountID,
		Type:       membership.TypeTrial,
		Status:     membership.StatusActive,
		StartedAt:  now,
		ExpiresAt:  now.Add(e.trialPeriod),
		AmountPaid: types.Zero(e.currency),
	}

	if err := e.store.CreateMembership(ctx, m); err != nil {
		return nil, err
	}

	e.hooks.EmitMembershipStarted(ctx, m)

	e.logger.Info("trial started",
		"membership", m.ID,
		"account", accountID,
		"expires", m.ExpiresAt,
	)

	return m, nil
}

// Subscribe starts a paid membership on the given plan, debiting the
// account for the plan price. The debit, the payment record, and the
// membership row commit atomically; an insufficient balance fails with
// ErrInsufficientFunds and creates nothing. The store rejects the
// insert with ErrMembershipActive if a concurrent caller claimed the
// active slot after the pre-check here.
func (e *Engine) Subscribe(ctx context.Context, accountID id.AccountID, plan membership.Type) (*membership.Membership, error) {
	if plan == membership.TypeTrial {
		return nil, fmt.Errorf("%w: trial is not a purchasable plan, use StartTrial", ErrInvalidInput)
	}

	price, ok := e.planPrices[plan]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := e.activeMembership(ctx, accountID, now); err == nil {
		return nil, ErrMembershipActive
	} else if !IsNotFound(err) {
		return nil, err
	}

	m := &membership.Membership{
		Entity:     types.NewEntity(),
		ID:         id.NewMembershipID(),
		AccountID:  accountID,
		Type:       plan,
		Status:     membership.StatusActive,
		StartedAt:  now,
		ExpiresAt:  now.Add(e.membershipPeriod),
		AmountPaid: price,
	}

	pay := &payment.Payment{
		Entity:       types.NewEntity(),
		ID:           id.NewPaymentID(),
		AccountID:    accountID,
		MembershipID: m.ID,
		Type:         payment.TypeMembership,
		Amount:       price,
		Status:       payment.StatusCompleted,
		Reference:    "membership:" + m.ID.String(),
		Method:       "wallet",
	}

	if err := e.store.SettleMembershipPayment(ctx, pay, m); err != nil {
		return nil, err
	}

	e.hooks.EmitPaymentSettled(ctx, pay)
	e.hooks.EmitMembershipStarted(ctx, m)

	e.logger.Info("membership started",
		"membership", m.ID,
		"account", accountID,
		"plan", plan,
		"amount", price,
	)

	return m, nil
}

// CancelMembership cancels an active membership. Cancellation is
// immediate and has no ledger effect; cancelled is an absorbing state.
func (e *Engine) CancelMembership(ctx context.Context, membershipID id.MembershipID) (*membership.Membership, error) {
	m, err := e.store.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	if m.Status != membership.StatusActive {
		return nil, fmt.Errorf("%w: membership is %s, not active", ErrInvalidTransition, m.Status)
	}

	from := m.Status
	m.Status = membership.StatusCancelled
	m.Touch()

	if err := e.store.TransitionMembership(ctx, m, from); err != nil {
		return nil, err
	}

	e.hooks.EmitMembershipCanceled(ctx, m)

	e.logger.Info("membership cancelled",
		"membership", m.ID,
		"account", m.AccountID,
	)

	return m, nil
}

// ExtendMembership pushes an active membership's expiry forward by d.
// Extension never resurrects access: a cancelled or expired membership
// cannot be extended.
func (e *Engine) ExtendMembership(ctx context.Context, membershipID id.MembershipID, d time.Duration) (*membership.Membership, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: extension must be positive, got %s", ErrInvalidInput, d)
	}

	m, err := e.store.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	if m.Status != membership.StatusActive {
		return nil, fmt.Errorf("%w: membership is %s, not active", ErrInvalidTransition, m.Status)
	}

	m.ExpiresAt = m.ExpiresAt.Add(d)
	m.Touch()

	if err := e.store.TransitionMembership(ctx, m, membership.StatusActive); err != nil {
		return nil, err
	}

	e.logger.Info("membership extended",
		"membership", m.ID,
		"expires", m.ExpiresAt,
	)

	return m, nil
}

// ExpireDue sweeps all active memberships whose expiry is at or before
// now into the expired state and returns how many it moved. The sweep is
// idempotent: a membership already expired, cancelled, or not yet due is
// untouched, so overlapping sweeps are harmless.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired, err := e.store.ExpireMemberships(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, m := range expired {
		e.hooks.EmitMembershipExpired(ctx, m)
	}

	if len(expired) > 0 {
		e.logger.Info("memberships expired",
			"count", len(expired),
		)
	}

	return len(expired), nil
}

// ──────────────────────────────────────────────────
// Membership queries
// ──────────────────────────────────────────────────

// GetMembership retrieves a membership by ID.
func (e *Engine) GetMembership(ctx context.Context, membershipID id.MembershipID) (*membership.Membership, error) {
	return e.store.GetMembership(ctx, membershipID)
}

// ActiveMembership returns the account's currently active membership, or
// ErrMembershipNotFound when there is none.
func (e *Engine) ActiveMembership(ctx context.Context, accountID id.AccountID) (*membership.Membership, error) {
	return e.activeMembership(ctx, accountID, time.Now())
}

func (e *Engine) activeMembership(ctx context.Context, accountID id.AccountID, now time.Time) (*membership.Membership, error) {
	return e.store.GetActiveMembership(ctx, accountID, now)
}
