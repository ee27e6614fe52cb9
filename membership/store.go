package membership

import (
	"context"
	"time"

	"github.com/xraph/concierge/id"
)

type Store interface {
	Create(ctx context.Context, m *Membership) error
	Get(ctx context.Context, membershipID id.MembershipID) (*Membership, error)

	// GetActive returns the membership that grants access at now, if any.
	GetActive(ctx context.Context, accountID id.AccountID, now time.Time) (*Membership, error)

	// HasTrial reports whether a trial-type membership ever existed for
	// the account, regardless of its current status.
	HasTrial(ctx context.Context, accountID id.AccountID) (bool, error)

	// Transition persists m only if the stored status still equals from.
	Transition(ctx context.Context, m *Membership, from Status) error

	// ExpireDue transitions every active membership with expires_at <= now
	// to expired and returns the transitioned memberships. Idempotent:
	// a second run finds nothing to do.
	ExpireDue(ctx context.Context, now time.Time) ([]*Membership, error)
}
