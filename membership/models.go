// Package membership holds the membership subscription model.
package membership

import (
	"time"

	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/types"
)

type Type string

const (
	TypeTrial      Type = "trial"
	TypeBasic      Type = "basic"
	TypePremium    Type = "premium"
	TypeEnterprise Type = "enterprise"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

type Membership struct {
	types.Entity
	ID         id.MembershipID   `json:"id"`
	AccountID  id.AccountID      `json:"account_id"`
	Type       Type              `json:"type"`
	Status     Status            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	AmountPaid types.Money       `json:"amount_paid"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ActiveAt reports whether the membership grants access at the given
// instant: status active AND not yet past its expiry. Extending a
// cancelled or expired membership moves ExpiresAt but never restores
// access, because status stays non-active.
func (m *Membership) ActiveAt(now time.Time) bool {
	return m.Status == StatusActive && m.ExpiresAt.After(now)
}

// Clone returns a deep copy of the membership.
func (m *Membership) Clone() *Membership {
	dup := *m
	if m.Metadata != nil {
		dup.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
