// Package quote computes order totals from their cost components.
//
// Quote is a pure value: computing a total has no side effects, so the
// same inputs always produce the same total. All math is fixed-point
// integer addition — there is no floating point anywhere on this path.
package quote

import (
	"errors"
	"fmt"

	"github.com/xraph/concierge/types"
)

var (
	// ErrNegativeComponent is returned when a cost component is negative.
	ErrNegativeComponent = errors.New("quote: negative cost component")

	// ErrCurrencyMismatch is returned when components disagree on currency.
	ErrCurrencyMismatch = errors.New("quote: currency mismatch between components")
)

// Quote is the operator-priced breakdown of an order.
type Quote struct {
	ItemCost         types.Money `json:"item_cost"`
	ServiceFee       types.Money `json:"service_fee"`
	ShippingEstimate types.Money `json:"shipping_estimate"`
}

// Total validates the components and returns their sum.
// Every component must be non-negative and share one currency.
func (q Quote) Total() (types.Money, error) {
	components := []struct {
		name  string
		value types.Money
	}{
		{"item_cost", q.ItemCost},
		{"service_fee", q.ServiceFee},
		{"shipping_estimate", q.ShippingEstimate},
	}

	for _, c := range components {
		if c.value.IsNegative() {
			return types.Money{}, fmt.Errorf("%w: %s is %s", ErrNegativeComponent, c.name, c.value)
		}
		if !c.value.SameCurrency(q.ItemCost) {
			return types.Money{}, fmt.Errorf("%w: %s is %s, item_cost is %s",
				ErrCurrencyMismatch, c.name, c.value.Currency, q.ItemCost.Currency)
		}
	}

	return q.ItemCost.Add(q.ServiceFee).Add(q.ShippingEstimate), nil
}
