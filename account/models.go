// Package account holds the wallet account model.
//
// Account.Balance is the single contended resource of the engine. It is
// mutated exclusively through Credit and TryDebit — feature code never
// writes the field directly, so the non-negative invariant has exactly
// one enforcement point. Persistent stores express the same contract as
// a conditional update inside the settlement transaction.
package account

import (
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/types"
)

type Account struct {
	types.Entity
	ID       id.AccountID      `json:"id"`
	Name     string            `json:"name"`
	Balance  types.Money       `json:"balance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Credit adds amount to the balance. The amount must be positive.
func (a *Account) Credit(amount types.Money) bool {
	if !amount.IsPositive() || !amount.SameCurrency(a.Balance) {
		return false
	}
	a.Balance = a.Balance.Add(amount)
	return true
}

// TryDebit atomically checks balance >= amount and subtracts in one step.
// Returns false (no mutation) if the balance is insufficient, the amount
// is not positive, or the currencies differ.
func (a *Account) TryDebit(amount types.Money) bool {
	if !amount.IsPositive() || !amount.SameCurrency(a.Balance) {
		return false
	}
	if a.Balance.LessThan(amount) {
		return false
	}
	a.Balance = a.Balance.Subtract(amount)
	return true
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	dup := *a
	dup.Metadata = cloneMeta(a.Metadata)
	return &dup
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	dup := make(map[string]string, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
