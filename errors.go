package concierge

import (
	"errors"
	"fmt"

	"github.com/xraph/concierge/order"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("concierge: not found")
	ErrAlreadyExists = errors.New("concierge: already exists")
	ErrInvalidInput  = errors.New("concierge: invalid input")
	ErrInvalidAmount = errors.New("concierge: invalid amount")

	// Account / ledger errors
	ErrAccountNotFound   = errors.New("concierge: account not found")
	ErrInsufficientFunds = errors.New("concierge: insufficient funds")

	// Order errors
	ErrOrderNotFound      = errors.New("concierge: order not found")
	ErrInvalidTransition  = errors.New("concierge: invalid order transition")
	ErrNoCompletedPayment = errors.New("concierge: no completed payment for order")

	// Payment errors
	ErrPaymentNotFound    = errors.New("concierge: payment not found")
	ErrDuplicateReference = errors.New("concierge: duplicate payment reference")
	ErrAlreadyRefunded    = errors.New("concierge: payment already refunded")

	// Membership errors
	ErrMembershipNotFound = errors.New("concierge: membership not found")
	ErrTrialAlreadyUsed   = errors.New("concierge: trial already used")
	ErrMembershipActive   = errors.New("concierge: account already has an active membership")
	ErrUnknownPlan        = errors.New("concierge: unknown membership plan")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concierge: concurrent modification, retry with fresh state")

	// Store errors
	ErrStoreClosed = errors.New("concierge: store is closed")
)

// TransitionError reports an order transition that is illegal from the
// order's current status. It unwraps to ErrInvalidTransition.
type TransitionError struct {
	From order.Status
	To   order.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("concierge: invalid order transition %s → %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// newTransitionError builds a TransitionError for the given statuses.
func newTransitionError(from, to order.Status) error {
	return &TransitionError{From: from, To: to}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrNoCompletedPayment)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried after re-reading current state. ConcurrentModification is the
// only core error that invites a retry; everything else needs caller or
// user correction.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
