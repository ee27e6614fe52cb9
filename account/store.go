package account

import (
	"context"

	"github.com/xraph/concierge/id"
)

type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID id.AccountID) (*Account, error)
}
