package concierge

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
	"github.com/xraph/concierge/quote"
	"github.com/xraph/concierge/types"
)

// ──────────────────────────────────────────────────
// Order lifecycle
// ──────────────────────────────────────────────────

// SubmitOrder creates a new order in status requested for the account.
func (e *Engine) SubmitOrder(ctx context.Context, accountID id.AccountID, req order.Request) (*order.Order, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	o := &order.Order{
		Entity:           types.NewEntity(),
		ID:               id.NewOrderID(),
		AccountID:        accountID,
		Status:           order.StatusRequested,
		Description:      req.Description,
		ExternalRef:      req.ExternalRef,
		ItemCost:         types.Zero(e.currency),
		ServiceFee:       types.Zero(e.currency),
		ShippingEstimate: types.Zero(e.currency),
		TotalCost:        types.Zero(e.currency),
		Metadata:         req.Metadata,
	}

	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	e.hooks.EmitOrderSubmitted(ctx, o)

	e.logger.Info("order submitted",
		"order", o.ID,
		"account", accountID,
	)

	return o, nil
}

// QuoteOrder prices an order. The total is the fixed-point sum of the
// three components; any cost change before acceptance goes through here
// again, so TotalCost is always derived, never hand-set. Quoting is
// legal from requested and, deliberately wider than that, from quoted:
// the concierge may re-price an order any number of times until the
// customer accepts, and acceptance locks the price.
func (e *Engine) QuoteOrder(ctx context.Context, orderID id.OrderID, q quote.Quote) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Re-quoting an already quoted order is allowed until the customer
	// accepts; past that point the price is locked.
	if o.Status != order.StatusRequested && o.Status != order.StatusQuoted {
		return nil, newTransitionError(o.Status, order.StatusQuoted)
	}

	total, err := q.Total()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if total.Currency != e.currency {
		return nil, fmt.Errorf("%w: quote currency %q, engine currency %q",
			ErrInvalidInput, total.Currency, e.currency)
	}

	from := o.Status
	o.ItemCost = q.ItemCost
	o.ServiceFee = q.ServiceFee
	o.ShippingEstimate = q.ShippingEstimate
	o.TotalCost = total
	o.Transition(order.StatusQuoted, time.Now())

	if err := e.store.TransitionOrder(ctx, o, from); err != nil {
		return nil, err
	}

	e.hooks.EmitOrderStatusChanged(ctx, o, from, order.StatusQuoted)

	e.logger.Info("order quoted",
		"order", o.ID,
		"total", o.TotalCost,
	)

	return o, nil
}

// AcceptQuote records the customer's acceptance of the quoted price.
func (e *Engine) AcceptQuote(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status != order.StatusQuoted {
		return nil, newTransitionError(o.Status, order.StatusAccepted)
	}

	from := o.Status
	o.Transition(order.StatusAccepted, time.Now())

	if err := e.store.TransitionOrder(ctx, o, from); err != nil {
		return nil, err
	}

	e.hooks.EmitOrderStatusChanged(ctx, o, from, order.StatusAccepted)

	return o, nil
}

// PayOrder settles an accepted order from the owning account's wallet
// balance. The debit, the payment record, and the status change commit
// as one unit of work — either all happen or none do. An insufficient
// balance fails with ErrInsufficientFunds and changes nothing.
func (e *Engine) PayOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status != order.StatusAccepted {
		return nil, newTransitionError(o.Status, order.StatusPaid)
	}
	if !o.TotalCost.IsPositive() {
		return nil, fmt.Errorf("%w: order total is %s", ErrInvalidAmount, o.TotalCost)
	}

	pay := &payment.Payment{
		Entity:    types.NewEntity(),
		ID:        id.NewPaymentID(),
		AccountID: o.AccountID,
		OrderID:   o.ID,
		Type:      payment.TypeOrderPayment,
		Amount:    o.TotalCost,
		Status:    payment.StatusCompleted,
		Reference: "order:" + o.ID.String(),
		Method:    "wallet",
	}

	from := o.Status
	o.Transition(order.StatusPaid, time.Now())

	if err := e.store.SettleOrderPayment(ctx, pay, o, from); err != nil {
		return nil, err
	}

	e.hooks.EmitPaymentSettled(ctx, pay)
	e.hooks.EmitOrderStatusChanged(ctx, o, from, order.StatusPaid)

	e.logger.Info("order paid",
		"order", o.ID,
		"account", o.AccountID,
		"amount", pay.Amount,
	)

	return o, nil
}

// AdvanceOrder moves a paid order one step along the fulfillment chain
// purchased → inspected → shipped → delivered. Only the next sequential
// status is legal; skipping fails with ErrInvalidTransition.
func (e *Engine) AdvanceOrder(ctx context.Context, orderID id.OrderID, target order.Status) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next, ok := order.NextFulfillment(o.Status)
	if !ok || next != target {
		return nil, newTransitionError(o.Status, target)
	}

	from := o.Status
	o.Transition(target, time.Now())

	if err := e.store.TransitionOrder(ctx, o, from); err != nil {
		return nil, err
	}

	e.hooks.EmitOrderStatusChanged(ctx, o, from, target)

	e.logger.Info("order advanced",
		"order", o.ID,
		"from", from,
		"to", target,
	)

	return o, nil
}

// CancelOrder cancels a non-terminal order. Cancellation has no ledger
// effect: money already taken stays taken until an explicit refund.
func (e *Engine) CancelOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status.Terminal() {
		return nil, newTransitionError(o.Status, order.StatusCancelled)
	}

	from := o.Status
	o.Transition(order.StatusCancelled, time.Now())

	if err := e.store.TransitionOrder(ctx, o, from); err != nil {
		return nil, err
	}

	e.hooks.EmitOrderStatusChanged(ctx, o, from, order.StatusCancelled)

	e.logger.Info("order cancelled",
		"order", o.ID,
		"from", from,
	)

	return o, nil
}

// RefundOrder refunds a paid, non-terminal order: the completed payment
// is superseded by a refund record for the paid amount minus the
// configured fee, the account is credited, and the order moves to
// refunded — all in one unit of work. The fee is computed at basis-point
// precision and rounded exactly once.
func (e *Engine) RefundOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status.Terminal() {
		return nil, newTransitionError(o.Status, order.StatusRefunded)
	}

	original, err := e.store.GetCompletedOrderPayment(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	fee, refundAmount := original.Amount.SplitFee(e.refundFeeBps)

	pay := &payment.Payment{
		Entity:    types.NewEntity(),
		ID:        id.NewPaymentID(),
		AccountID: o.AccountID,
		OrderID:   o.ID,
		Type:      payment.TypeRefund,
		Amount:    refundAmount,
		Status:    payment.StatusCompleted,
		Reference: "refund:" + o.ID.String(),
		Method:    "wallet",
	}
	if fee.IsPositive() {
		pay.Metadata = map[string]string{"refund_fee": fee.FormatMajor()}
	}

	from := o.Status
	o.Transition(order.StatusRefunded, time.Now())

	if err := e.store.SettleOrderRefund(ctx, pay, original, o, from); err != nil {
		return nil, err
	}

	e.hooks.EmitPaymentSettled(ctx, pay)
	e.hooks.EmitOrderStatusChanged(ctx, o, from, order.StatusRefunded)

	e.logger.Info("order refunded",
		"order", o.ID,
		"amount", refundAmount,
		"fee", fee,
	)

	return o, nil
}

// ──────────────────────────────────────────────────
// Order queries
// ──────────────────────────────────────────────────

// GetOrder retrieves an order by ID.
func (e *Engine) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// OrderByExternalRef retrieves an order by its marketplace correlation
// reference.
func (e *Engine) OrderByExternalRef(ctx context.Context, ref string) (*order.Order, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty external reference", ErrInvalidInput)
	}
	return e.store.GetOrderByExternalRef(ctx, ref)
}

// ListOrders lists an account's orders.
func (e *Engine) ListOrders(ctx context.Context, accountID id.AccountID, opts order.ListOpts) ([]*order.Order, error) {
	return e.store.ListOrders(ctx, accountID, opts)
}
