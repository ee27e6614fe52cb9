package concierge

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/payment"
	"github.com/xraph/concierge/types"
)

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// CreateAccount creates a new wallet account with a zero balance in the
// engine currency.
func (e *Engine) CreateAccount(ctx context.Context, name string) (*account.Account, error) {
	a := &account.Account{
		Entity:  types.NewEntity(),
		ID:      id.NewAccountID(),
		Name:    name,
		Balance: types.Zero(e.currency),
	}

	if err := e.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}

	e.logger.Info("account created",
		"account", a.ID,
		"name", name,
	)

	return a, nil
}

// GetAccount retrieves an account by ID.
func (e *Engine) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// Balance returns the account's current wallet balance.
func (e *Engine) Balance(ctx context.Context, accountID id.AccountID) (types.Money, error) {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return types.Money{}, err
	}
	return a.Balance, nil
}

// ──────────────────────────────────────────────────
// Deposits
// ──────────────────────────────────────────────────

// Deposit credits the account's wallet balance and records a completed
// deposit payment, atomically. The reference is the caller's idempotency
// key: retrying with a reference that already settled returns the
// original payment record instead of crediting again.
func (e *Engine) Deposit(ctx context.Context, accountID id.AccountID, amount types.Money, reference string) (*payment.Payment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	if amount.Currency != e.currency {
		return nil, fmt.Errorf("%w: deposit currency %q, engine currency %q",
			ErrInvalidInput, amount.Currency, e.currency)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: deposit reference is required", ErrInvalidInput)
	}

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	pay := &payment.Payment{
		Entity:    types.NewEntity(),
		ID:        id.NewPaymentID(),
		AccountID: accountID,
		Type:      payment.TypeDeposit,
		Amount:    amount,
		Status:    payment.StatusCompleted,
		Reference: reference,
		Method:    "external",
	}

	err := e.store.SettleDeposit(ctx, pay)
	if errors.Is(err, ErrDuplicateReference) {
		// A prior attempt with this reference already settled. Return it
		// without crediting a second time.
		prior, getErr := e.store.GetPaymentByReference(ctx, reference)
		if getErr != nil {
			return nil, getErr
		}

		e.logger.Debug("duplicate deposit reference, returning prior settlement",
			"account", accountID,
			"reference", reference,
			"payment", prior.ID,
		)

		return prior, nil
	}
	if err != nil {
		return nil, err
	}

	e.hooks.EmitPaymentSettled(ctx, pay)

	e.logger.Info("deposit settled",
		"account", accountID,
		"amount", amount,
		"reference", reference,
	)

	return pay, nil
}

// ──────────────────────────────────────────────────
// Payment queries
// ──────────────────────────────────────────────────

// GetPayment retrieves a payment by ID.
func (e *Engine) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return e.store.GetPayment(ctx, paymentID)
}

// PaymentByReference retrieves a payment by its idempotency reference.
func (e *Engine) PaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidInput)
	}
	return e.store.GetPaymentByReference(ctx, reference)
}

// ListPayments lists an account's payment records.
func (e *Engine) ListPayments(ctx context.Context, accountID id.AccountID, opts payment.ListOpts) ([]*payment.Payment, error) {
	return e.store.ListPayments(ctx, accountID, opts)
}
