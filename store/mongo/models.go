package mongo

import (
	"time"

	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
	"github.com/xraph/concierge/types"
)

// BSON document models. IDs are stored as their TypeID string form in
// _id; money is split into minor-unit amount plus currency code.

type accountModel struct {
	ID        string            `bson:"_id"`
	Name      string            `bson:"name"`
	Balance   int64             `bson:"balance"`
	Currency  string            `bson:"currency"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:        a.ID.String(),
		Name:      a.Name,
		Balance:   a.Balance.Amount,
		Currency:  a.Balance.Currency,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       accountID,
		Name:     m.Name,
		Balance:  types.New(m.Balance, m.Currency),
		Metadata: m.Metadata,
	}, nil
}

type orderModel struct {
	ID               string            `bson:"_id"`
	AccountID        string            `bson:"account_id"`
	Status           string            `bson:"status"`
	Description      string            `bson:"description"`
	ItemCost         int64             `bson:"item_cost"`
	ServiceFee       int64             `bson:"service_fee"`
	ShippingEstimate int64             `bson:"shipping_estimate"`
	TotalCost        int64             `bson:"total_cost"`
	Currency         string            `bson:"currency"`
	ExternalRef      string            `bson:"external_ref,omitempty"`
	QuotedAt         *time.Time        `bson:"quoted_at,omitempty"`
	PaidAt           *time.Time        `bson:"paid_at,omitempty"`
	PurchasedAt      *time.Time        `bson:"purchased_at,omitempty"`
	InspectedAt      *time.Time        `bson:"inspected_at,omitempty"`
	ShippedAt        *time.Time        `bson:"shipped_at,omitempty"`
	DeliveredAt      *time.Time        `bson:"delivered_at,omitempty"`
	CancelledAt      *time.Time        `bson:"cancelled_at,omitempty"`
	RefundedAt       *time.Time        `bson:"refunded_at,omitempty"`
	Metadata         map[string]string `bson:"metadata,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at"`
}

func toOrderModel(o *order.Order) *orderModel {
	return &orderModel{
		ID:               o.ID.String(),
		AccountID:        o.AccountID.String(),
		Status:           string(o.Status),
		Description:      o.Description,
		ItemCost:         o.ItemCost.Amount,
		ServiceFee:       o.ServiceFee.Amount,
		ShippingEstimate: o.ShippingEstimate.Amount,
		TotalCost:        o.TotalCost.Amount,
		Currency:         o.TotalCost.Currency,
		ExternalRef:      o.ExternalRef,
		QuotedAt:         o.QuotedAt,
		PaidAt:           o.PaidAt,
		PurchasedAt:      o.PurchasedAt,
		InspectedAt:      o.InspectedAt,
		ShippedAt:        o.ShippedAt,
		DeliveredAt:      o.DeliveredAt,
		CancelledAt:      o.CancelledAt,
		RefundedAt:       o.RefundedAt,
		Metadata:         o.Metadata,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	return &order.Order{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               orderID,
		AccountID:        accountID,
		Status:           order.Status(m.Status),
		Description:      m.Description,
		ItemCost:         types.New(m.ItemCost, m.Currency),
		ServiceFee:       types.New(m.ServiceFee, m.Currency),
		ShippingEstimate: types.New(m.ShippingEstimate, m.Currency),
		TotalCost:        types.New(m.TotalCost, m.Currency),
		ExternalRef:      m.ExternalRef,
		QuotedAt:         m.QuotedAt,
		PaidAt:           m.PaidAt,
		PurchasedAt:      m.PurchasedAt,
		InspectedAt:      m.InspectedAt,
		ShippedAt:        m.ShippedAt,
		DeliveredAt:      m.DeliveredAt,
		CancelledAt:      m.CancelledAt,
		RefundedAt:       m.RefundedAt,
		Metadata:         m.Metadata,
	}, nil
}

type paymentModel struct {
	ID           string            `bson:"_id"`
	AccountID    string            `bson:"account_id"`
	OrderID      string            `bson:"order_id,omitempty"`
	MembershipID string            `bson:"membership_id,omitempty"`
	Type         string            `bson:"type"`
	Amount       int64             `bson:"amount"`
	Currency     string            `bson:"currency"`
	Status       string            `bson:"status"`
	Reference    string            `bson:"reference"`
	Method       string            `bson:"method,omitempty"`
	Metadata     map[string]string `bson:"metadata,omitempty"`
	CreatedAt    time.Time         `bson:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	m := &paymentModel{
		ID:        p.ID.String(),
		AccountID: p.AccountID.String(),
		Type:      string(p.Type),
		Amount:    p.Amount.Amount,
		Currency:  p.Amount.Currency,
		Status:    string(p.Status),
		Reference: p.Reference,
		Method:    p.Method,
		Metadata:  p.Metadata,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if !p.OrderID.IsNil() {
		m.OrderID = p.OrderID.String()
	}
	if !p.MembershipID.IsNil() {
		m.MembershipID = p.MembershipID.String()
	}
	return m
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	p := &payment.Payment{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        paymentID,
		AccountID: accountID,
		Type:      payment.Type(m.Type),
		Amount:    types.New(m.Amount, m.Currency),
		Status:    payment.Status(m.Status),
		Reference: m.Reference,
		Method:    m.Method,
		Metadata:  m.Metadata,
	}
	if m.OrderID != "" {
		if p.OrderID, err = id.ParseOrderID(m.OrderID); err != nil {
			return nil, err
		}
	}
	if m.MembershipID != "" {
		if p.MembershipID, err = id.ParseMembershipID(m.MembershipID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type membershipModel struct {
	ID         string            `bson:"_id"`
	AccountID  string            `bson:"account_id"`
	Type       string            `bson:"type"`
	Status     string            `bson:"status"`
	StartedAt  time.Time         `bson:"started_at"`
	ExpiresAt  time.Time         `bson:"expires_at"`
	AmountPaid int64             `bson:"amount_paid"`
	Currency   string            `bson:"currency"`
	Metadata   map[string]string `bson:"metadata,omitempty"`
	CreatedAt  time.Time         `bson:"created_at"`
	UpdatedAt  time.Time         `bson:"updated_at"`
}

func toMembershipModel(m *membership.Membership) *membershipModel {
	return &membershipModel{
		ID:         m.ID.String(),
		AccountID:  m.AccountID.String(),
		Type:       string(m.Type),
		Status:     string(m.Status),
		StartedAt:  m.StartedAt,
		ExpiresAt:  m.ExpiresAt,
		AmountPaid: m.AmountPaid.Amount,
		Currency:   m.AmountPaid.Currency,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromMembershipModel(m *membershipModel) (*membership.Membership, error) {
	membershipID, err := id.ParseMembershipID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	return &membership.Membership{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         membershipID,
		AccountID:  accountID,
		Type:       membership.Type(m.Type),
		Status:     membership.Status(m.Status),
		StartedAt:  m.StartedAt,
		ExpiresAt:  m.ExpiresAt,
		AmountPaid: types.New(m.AmountPaid, m.Currency),
		Metadata:   m.Metadata,
	}, nil
}
