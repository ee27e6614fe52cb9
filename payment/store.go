package payment

import (
	"context"

	"github.com/xraph/concierge/id"
)

type Store interface {
	Get(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	GetByReference(ctx context.Context, reference string) (*Payment, error)

	// GetCompletedOrderPayment returns the single completed order_payment
	// for the order, if any.
	GetCompletedOrderPayment(ctx context.Context, orderID id.OrderID) (*Payment, error)

	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Payment, error)
}

type ListOpts struct {
	Type   Type
	Status Status
	Limit  int
	Offset int
}
