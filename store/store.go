package store

import (
	"context"
	"time"

	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
)

// Store is the unified storage interface for all Concierge entities.
// Instead of embedding the sub-interfaces, we explicitly declare all
// methods to avoid naming conflicts.
//
// Every Settle* method and every *Transition method executes as a single
// atomic, isolated unit of work: the triad {balance delta, payment
// record, status change} either fully commits or leaves no trace. That
// guarantee is the reason these are store methods and not engine-side
// compositions of finer calls.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)

	// Order methods
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error)
	GetOrderByExternalRef(ctx context.Context, ref string) (*order.Order, error)
	ListOrders(ctx context.Context, accountID id.AccountID, opts order.ListOpts) ([]*order.Order, error)

	// TransitionOrder persists o only if the stored status still equals
	// from; otherwise it fails with ErrConcurrentModification.
	TransitionOrder(ctx context.Context, o *order.Order, from order.Status) error

	// Payment methods
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error)
	GetCompletedOrderPayment(ctx context.Context, orderID id.OrderID) (*payment.Payment, error)
	ListPayments(ctx context.Context, accountID id.AccountID, opts payment.ListOpts) ([]*payment.Payment, error)

	// Settlement methods — each is one atomic unit of work.

	// SettleDeposit inserts pay and credits its account. Fails with
	// ErrDuplicateReference when a payment with the same reference
	// already exists (idempotent-retry detection).
	SettleDeposit(ctx context.Context, pay *payment.Payment) error

	// SettleOrderPayment debits the account by pay.Amount (failing with
	// ErrInsufficientFunds inside the same atomic step that checks the
	// balance), inserts pay, and transitions the order from the expected
	// status.
	SettleOrderPayment(ctx context.Context, pay *payment.Payment, o *order.Order, from order.Status) error

	// SettleOrderRefund credits the account by pay.Amount, inserts pay,
	// marks the original payment refunded (failing with
	// ErrAlreadyRefunded if it no longer is completed), and transitions
	// the order from the expected status.
	SettleOrderRefund(ctx context.Context, pay *payment.Payment, original *payment.Payment, o *order.Order, from order.Status) error

	// SettleMembershipPayment debits the account by pay.Amount, inserts
	// pay, and creates the membership. Payment success is a precondition
	// of the membership existing, not a side effect to roll back. Like
	// CreateMembership, the insert enforces the per-account invariants.
	SettleMembershipPayment(ctx context.Context, pay *payment.Payment, m *membership.Membership) error

	// Membership methods

	// CreateMembership inserts the membership, enforcing the per-account
	// invariants atomically with the insert: at most one trial ever
	// (ErrTrialAlreadyUsed) and at most one active membership
	// (ErrMembershipActive). An active row already past its expiry does
	// not block the insert; the store expires it in place.
	CreateMembership(ctx context.Context, m *membership.Membership) error
	GetMembership(ctx context.Context, membershipID id.MembershipID) (*membership.Membership, error)
	GetActiveMembership(ctx context.Context, accountID id.AccountID, now time.Time) (*membership.Membership, error)
	HasTrialMembership(ctx context.Context, accountID id.AccountID) (bool, error)
	TransitionMembership(ctx context.Context, m *membership.Membership, from membership.Status) error
	ExpireMemberships(ctx context.Context, now time.Time) ([]*membership.Membership, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
