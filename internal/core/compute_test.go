package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLineItemDerivesFields(t *testing.T) {
	got := ComputeLineItem(LineItem{Quantity: "5", Rate: "100", TaxPercent: "18"})

	assert.Equal(t, "500", got.Amount)
	assert.Equal(t, "90", got.TaxAmount)
	assert.Equal(t, "590", got.TotalAmount)
}

func TestComputeLineItemExplicitAmountWins(t *testing.T) {
	got := ComputeLineItem(LineItem{Quantity: "5", Rate: "100", Amount: "1000"})

	assert.Equal(t, "1000", got.Amount)
	assert.Equal(t, "", got.TaxAmount)
	assert.Equal(t, "1000", got.TotalAmount)
}

func TestComputeLineItemPrecedence(t *testing.T) {
	tests := []struct {
		name string
		in   LineItem
		want LineItem
	}{
		{
			name: "explicit tax amount wins over percent",
			in:   LineItem{Amount: "200", TaxPercent: "18", TaxAmount: "10"},
			want: LineItem{Amount: "200", TaxPercent: "18", TaxAmount: "10", TotalAmount: "210"},
		},
		{
			name: "explicit total wins over sum",
			in:   LineItem{Amount: "200", TaxAmount: "10", TotalAmount: "999"},
			want: LineItem{Amount: "200", TaxAmount: "10", TotalAmount: "999"},
		},
		{
			name: "formatted inputs are normalized",
			in:   LineItem{Quantity: "2", Rate: "1,250.50"},
			want: LineItem{Quantity: "2", Rate: "1,250.50", Amount: "2501", TotalAmount: "2501"},
		},
		{
			name: "fractional tax",
			in:   LineItem{Amount: "99.99", TaxPercent: "5"},
			want: LineItem{Amount: "99.99", TaxPercent: "5", TaxAmount: "4.9995", TotalAmount: "104.9895"},
		},
		{
			name: "zero stays unset",
			in:   LineItem{Particular: "note only"},
			want: LineItem{Particular: "note only"},
		},
		{
			name: "overflowing exponents read as zero",
			in:   LineItem{Quantity: "1e2000000000", Rate: "1e2000000000"},
			want: LineItem{Quantity: "1e2000000000", Rate: "1e2000000000"},
		},
		{
			name: "oversized exponent read as zero",
			in:   LineItem{Quantity: "1e50000000", Rate: "1", TaxPercent: "1e-2000000000"},
			want: LineItem{Quantity: "1e50000000", Rate: "1", TaxPercent: "1e-2000000000"},
		},
		{
			name: "small exponent is accepted",
			in:   LineItem{Quantity: "2", Rate: "1.5e2"},
			want: LineItem{Quantity: "2", Rate: "1.5e2", Amount: "300", TotalAmount: "300"},
		},
		{
			name: "invalid numbers read as zero",
			in:   LineItem{Quantity: "many", Rate: "100"},
			want: LineItem{Quantity: "many", Rate: "100"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeLineItem(tt.in))
		})
	}
}

func TestComputeLineItemIsIdempotent(t *testing.T) {
	inputs := []LineItem{
		{Quantity: "5", Rate: "100", TaxPercent: "18"},
		{Quantity: "5", Rate: "100", Amount: "1000"},
		{Amount: "0", TaxPercent: "18"},
		{Quantity: "3", Rate: "33.333", TaxPercent: "12.5"},
		{Particular: "empty"},
		{TotalAmount: "77"},
	}
	for _, in := range inputs {
		once := ComputeLineItem(in)
		twice := ComputeLineItem(once)
		assert.Equal(t, once.Amount, twice.Amount)
		assert.Equal(t, once.TaxAmount, twice.TaxAmount)
		assert.Equal(t, once.TotalAmount, twice.TotalAmount)
	}
}
