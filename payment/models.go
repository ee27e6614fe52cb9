// Package payment holds the append-only payment record model.
//
// Payments are immutable once completed: a completed record is never
// deleted or rewritten, only superseded by a new refund-type record that
// flips the original's status to refunded inside the same settlement
// transaction.
package payment

import (
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/types"
)

type Type string

const (
	TypeDeposit      Type = "deposit"
	TypeOrderPayment Type = "order_payment"
	TypeRefund       Type = "refund"
	TypeMembership   Type = "membership"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

type Payment struct {
	types.Entity
	ID        id.PaymentID `json:"id"`
	AccountID id.AccountID `json:"account_id"`

	// OrderID / MembershipID are set when the payment settles an order
	// or a membership; Nil otherwise.
	OrderID      id.OrderID      `json:"order_id,omitempty"`
	MembershipID id.MembershipID `json:"membership_id,omitempty"`

	Type   Type        `json:"type"`
	Amount types.Money `json:"amount"`
	Status Status      `json:"status"`

	// Reference is unique across all payments. For deposits it carries
	// the caller-supplied idempotency key; a retried deposit with the
	// same key resolves to the prior record instead of double-crediting.
	Reference string `json:"reference"`

	// Method records how the money moved (e.g. "card", "bank_transfer",
	// "wallet"). Free-form, informational only.
	Method string `json:"method,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the payment.
func (p *Payment) Clone() *Payment {
	dup := *p
	if p.Metadata != nil {
		dup.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
