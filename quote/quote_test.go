package quote_test

import (
	"errors"
	"testing"

	"github.com/xraph/concierge/quote"
	"github.com/xraph/concierge/types"
)

func TestQuoteTotal(t *testing.T) {
	tests := []struct {
		name     string
		quote    quote.Quote
		expected types.Money
	}{
		{
			"typical quote",
			quote.Quote{
				ItemCost:         types.USD(4000),
				ServiceFee:       types.USD(500),
				ShippingEstimate: types.USD(500),
			},
			types.USD(5000),
		},
		{
			"free shipping",
			quote.Quote{
				ItemCost:         types.USD(4000),
				ServiceFee:       types.USD(500),
				ShippingEstimate: types.USD(0),
			},
			types.USD(4500),
		},
		{
			"all zero",
			quote.Quote{
				ItemCost:         types.USD(0),
				ServiceFee:       types.USD(0),
				ShippingEstimate: types.USD(0),
			},
			types.USD(0),
		},
		{
			"euro quote",
			quote.Quote{
				ItemCost:         types.EUR(19900),
				ServiceFee:       types.EUR(1000),
				ShippingEstimate: types.EUR(1500),
			},
			types.EUR(22400),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := tt.quote.Total()
			if err != nil {
				t.Fatalf("Total failed: %v", err)
			}
			if !total.Equal(tt.expected) {
				t.Errorf("Total: got %v, want %v", total, tt.expected)
			}
		})
	}
}

func TestQuoteTotalIsPure(t *testing.T) {
	q := quote.Quote{
		ItemCost:         types.USD(4000),
		ServiceFee:       types.USD(500),
		ShippingEstimate: types.USD(500),
	}

	first, err := q.Total()
	if err != nil {
		t.Fatalf("Total failed: %v", err)
	}
	second, err := q.Total()
	if err != nil {
		t.Fatalf("Total failed: %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("same inputs produced different totals: %v != %v", first, second)
	}
}

func TestQuoteTotalNegativeComponent(t *testing.T) {
	tests := []struct {
		name  string
		quote quote.Quote
	}{
		{"negative item cost", quote.Quote{
			ItemCost:         types.USD(-4000),
			ServiceFee:       types.USD(500),
			ShippingEstimate: types.USD(500),
		}},
		{"negative service fee", quote.Quote{
			ItemCost:         types.USD(4000),
			ServiceFee:       types.USD(-500),
			ShippingEstimate: types.USD(500),
		}},
		{"negative shipping", quote.Quote{
			ItemCost:         types.USD(4000),
			ServiceFee:       types.USD(500),
			ShippingEstimate: types.USD(-500),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.quote.Total()
			if !errors.Is(err, quote.ErrNegativeComponent) {
				t.Errorf("expected ErrNegativeComponent, got %v", err)
			}
		})
	}
}

func TestQuoteTotalCurrencyMismatch(t *testing.T) {
	q := quote.Quote{
		ItemCost:         types.USD(4000),
		ServiceFee:       types.EUR(500),
		ShippingEstimate: types.USD(500),
	}

	_, err := q.Total()
	if !errors.Is(err, quote.ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
}
