package order

import (
	"context"

	"github.com/xraph/concierge/id"
)

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID id.OrderID) (*Order, error)
	GetByExternalRef(ctx context.Context, ref string) (*Order, error)
	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Order, error)

	// Transition persists o only if the stored status still equals from.
	// A mismatch means a concurrent transition committed first.
	Transition(ctx context.Context, o *Order, from Status) error
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
