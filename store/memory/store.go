// Package memory provides an in-memory store implementation.
// Useful for testing and development. All data is lost on restart.
//
// Every entity is cloned on the way in and on the way out, so callers
// can mutate what they hold without racing the store's copy. The single
// mutex makes each settlement method trivially atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
)

type Store struct {
	mu sync.RWMutex

	// Account storage
	accounts map[string]*account.Account

	// Order storage
	orders map[string]*order.Order

	// Payment storage, plus a reference index for idempotency lookups
	payments      map[string]*payment.Payment
	paymentsByRef map[string]string // reference -> payment ID

	// Membership storage
	memberships map[string]*membership.Membership

	closed bool
}

func New() *Store {
	return &Store{
		accounts:      make(map[string]*account.Account),
		orders:        make(map[string]*order.Order),
		payments:      make(map[string]*payment.Payment),
		paymentsByRef: make(map[string]string),
		memberships:   make(map[string]*membership.Membership),
	}
}

// Account Store implementation

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID.String()]; exists {
		return concierge.ErrAlreadyExists
	}
	s.accounts[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID.String()]; ok {
		return a.Clone(), nil
	}
	return nil, concierge.ErrAccountNotFound
}

// Order Store implementation

func (s *Store) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}
	if _, exists := s.orders[o.ID.String()]; exists {
		return concierge.ErrAlreadyExists
	}
	s.orders[o.ID.String()] = o.Clone()
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID.String()]; ok {
		return o.Clone(), nil
	}
	return nil, concierge.ErrOrderNotFound
}

func (s *Store) GetOrderByExternalRef(_ context.Context, ref string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ExternalRef == ref {
			return o.Clone(), nil
		}
	}
	return nil, concierge.ErrOrderNotFound
}

func (s *Store) ListOrders(_ context.Context, accountID id.AccountID, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if o.AccountID.String() != accountID.String() {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		result = append(result, o.Clone())
	}

	// Map iteration order is random; newest first keeps pagination stable.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) TransitionOrder(_ context.Context, o *order.Order, from order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionOrderLocked(o, from)
}

// transitionOrderLocked is the compare-and-swap core shared by
// TransitionOrder and the settlement methods. Caller holds the lock.
func (s *Store) transitionOrderLocked(o *order.Order, from order.Status) error {
	stored, ok := s.orders[o.ID.String()]
	if !ok {
		return concierge.ErrOrderNotFound
	}
	if stored.Status != from {
		return concierge.ErrConcurrentModification
	}
	s.orders[o.ID.String()] = o.Clone()
	return nil
}

// Payment Store implementation

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[paymentID.String()]; ok {
		return p.Clone(), nil
	}
	return nil, concierge.ErrPaymentNotFound
}

func (s *Store) GetPaymentByReference(_ context.Context, reference string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if payID, ok := s.paymentsByRef[reference]; ok {
		return s.payments[payID].Clone(), nil
	}
	return nil, concierge.ErrPaymentNotFound
}

func (s *Store) GetCompletedOrderPayment(_ context.Context, orderID id.OrderID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.Type == payment.TypeOrderPayment &&
			p.Status == payment.StatusCompleted &&
			p.OrderID.String() == orderID.String() {
			return p.Clone(), nil
		}
	}
	return nil, concierge.ErrNoCompletedPayment
}

func (s *Store) ListPayments(_ context.Context, accountID id.AccountID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.AccountID.String() != accountID.String() {
			continue
		}
		if opts.Type != "" && p.Type != opts.Type {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// insertPaymentLocked adds a payment and indexes its reference.
// Caller holds the lock and has already checked for duplicates.
func (s *Store) insertPaymentLocked(pay *payment.Payment) {
	s.payments[pay.ID.String()] = pay.Clone()
	if pay.Reference != "" {
		s.paymentsByRef[pay.Reference] = pay.ID.String()
	}
}

// Settlement methods

func (s *Store) SettleDeposit(_ context.Context, pay *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}
	if _, exists := s.paymentsByRef[pay.Reference]; exists {
		return concierge.ErrDuplicateReference
	}

	a, ok := s.accounts[pay.AccountID.String()]
	if !ok {
		return concierge.ErrAccountNotFound
	}
	if !a.Credit(pay.Amount) {
		return concierge.ErrInvalidAmount
	}
	a.Touch()

	s.insertPaymentLocked(pay)
	return nil
}

func (s *Store) SettleOrderPayment(_ context.Context, pay *payment.Payment, o *order.Order, from order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}

	// Validate the order CAS before touching the balance so a concurrent
	// transition never costs the customer money.
	stored, ok := s.orders[o.ID.String()]
	if !ok {
		return concierge.ErrOrderNotFound
	}
	if stored.Status != from {
		return concierge.ErrConcurrentModification
	}

	a, ok := s.accounts[pay.AccountID.String()]
	if !ok {
		return concierge.ErrAccountNotFound
	}
	if !a.TryDebit(pay.Amount) {
		return concierge.ErrInsufficientFunds
	}
	a.Touch()

	s.insertPaymentLocked(pay)
	s.orders[o.ID.String()] = o.Clone()
	return nil
}

func (s *Store) SettleOrderRefund(_ context.Context, pay *payment.Payment, original *payment.Payment, o *order.Order, from order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}

	stored, ok := s.orders[o.ID.String()]
	if !ok {
		return concierge.ErrOrderNotFound
	}
	if stored.Status != from {
		return concierge.ErrConcurrentModification
	}

	orig, ok := s.payments[original.ID.String()]
	if !ok {
		return concierge.ErrPaymentNotFound
	}
	if orig.Status != payment.StatusCompleted {
		return concierge.ErrAlreadyRefunded
	}

	a, ok := s.accounts[pay.AccountID.String()]
	if !ok {
		return concierge.ErrAccountNotFound
	}
	if !a.Credit(pay.Amount) {
		return concierge.ErrInvalidAmount
	}
	a.Touch()

	orig.Status = payment.StatusRefunded
	orig.Touch()

	s.insertPaymentLocked(pay)
	s.orders[o.ID.String()] = o.Clone()
	return nil
}

func (s *Store) SettleMembershipPayment(_ context.Context, pay *payment.Payment, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}
	if _, exists := s.memberships[m.ID.String()]; exists {
		return concierge.ErrAlreadyExists
	}
	if err := s.claimMembershipSlotLocked(m); err != nil {
		return err
	}

	a, ok := s.accounts[pay.AccountID.String()]
	if !ok {
		return concierge.ErrAccountNotFound
	}
	if !a.TryDebit(pay.Amount) {
		return concierge.ErrInsufficientFunds
	}
	a.Touch()

	s.insertPaymentLocked(pay)
	s.memberships[m.ID.String()] = m.Clone()
	return nil
}

// Membership Store implementation

// claimMembershipSlotLocked enforces the per-account membership
// invariants at the insertion point, where racing callers serialize on
// the store lock: at most one trial ever, and at most one active
// membership. Active rows already past their expiry no longer hold the
// slot; they are flipped to expired here, ahead of the sweep, without
// an expiry notification.
func (s *Store) claimMembershipSlotLocked(m *membership.Membership) error {
	for _, existing := range s.memberships {
		if existing.AccountID.String() != m.AccountID.String() {
			continue
		}
		if existing.Status == membership.StatusActive && !existing.ExpiresAt.After(m.StartedAt) {
			existing.Status = membership.StatusExpired
			existing.Touch()
		}
		if m.Type == membership.TypeTrial && existing.Type == membership.TypeTrial {
			return concierge.ErrTrialAlreadyUsed
		}
		if existing.Status == membership.StatusActive {
			return concierge.ErrMembershipActive
		}
	}
	return nil
}

func (s *Store) CreateMembership(_ context.Context, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}
	if _, exists := s.memberships[m.ID.String()]; exists {
		return concierge.ErrAlreadyExists
	}
	if err := s.claimMembershipSlotLocked(m); err != nil {
		return err
	}
	s.memberships[m.ID.String()] = m.Clone()
	return nil
}

func (s *Store) GetMembership(_ context.Context, membershipID id.MembershipID) (*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.memberships[membershipID.String()]; ok {
		return m.Clone(), nil
	}
	return nil, concierge.ErrMembershipNotFound
}

func (s *Store) GetActiveMembership(_ context.Context, accountID id.AccountID, now time.Time) (*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.memberships {
		if m.AccountID.String() == accountID.String() && m.ActiveAt(now) {
			return m.Clone(), nil
		}
	}
	return nil, concierge.ErrMembershipNotFound
}

func (s *Store) HasTrialMembership(_ context.Context, accountID id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.memberships {
		if m.AccountID.String() == accountID.String() && m.Type == membership.TypeTrial {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TransitionMembership(_ context.Context, m *membership.Membership, from membership.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.memberships[m.ID.String()]
	if !ok {
		return concierge.ErrMembershipNotFound
	}
	if stored.Status != from {
		return concierge.ErrConcurrentModification
	}
	s.memberships[m.ID.String()] = m.Clone()
	return nil
}

func (s *Store) ExpireMemberships(_ context.Context, now time.Time) ([]*membership.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]*membership.Membership, 0)
	for _, m := range s.memberships {
		if m.Status != membership.StatusActive {
			continue
		}
		if m.ExpiresAt.After(now) {
			continue
		}
		m.Status = membership.StatusExpired
		m.Touch()
		expired = append(expired, m.Clone())
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})

	return expired, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return concierge.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
