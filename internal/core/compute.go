package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeLineItem resolves Amount, TaxAmount and TotalAmount with a strict
// precedence: an explicit value always wins, otherwise
//
//	amount      = quantity * rate
//	taxAmount   = amount * taxPercent / 100
//	totalAmount = amount + taxAmount
//
// Derived values that come out as zero are left as "" (unset), matching the
// way the sheet shows blank cells. Explicit values are kept verbatim, which
// makes the rule idempotent on its own output.
func ComputeLineItem(li LineItem) LineItem {
	out := li

	amount := ParseDecimal(li.Amount)
	if isBlank(li.Amount) {
		amount = ParseDecimal(li.Quantity).Mul(ParseDecimal(li.Rate))
		out.Amount = cell(amount)
	}

	tax := ParseDecimal(li.TaxAmount)
	if isBlank(li.TaxAmount) {
		tax = amount.Mul(ParseDecimal(li.TaxPercent)).Div(hundred)
		out.TaxAmount = cell(tax)
	}

	if isBlank(li.TotalAmount) {
		out.TotalAmount = cell(amount.Add(tax))
	}
	return out
}

// Total is the numeric total of a line item.
func (li LineItem) Total() decimal.Decimal {
	return ParseDecimal(li.TotalAmount)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func cell(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
