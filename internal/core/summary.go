package core

import "github.com/shopspring/decimal"

// HeadTotal is the subtotal of one head.
type HeadTotal struct {
	Head  string
	Total decimal.Decimal
}

// SheetTotals is the derived total of one cost sheet.
type SheetTotals struct {
	Heads  []HeadTotal // vocabulary order
	ByHead map[string]float64
	Grand  float64
	// Excluded counts active items whose head is outside the vocabulary.
	Excluded int
}

// Aggregate sums TotalAmount of active items per head.
//
// Every head in heads gets an entry, zero when it has no items. Items whose
// head is not in heads are left out of both the per-head map and the grand
// total, and the grand total is the sum of the map. This mirrors how the
// dashboard has always reported totals; a head missing from the vocabulary
// silently drops its items. Excluded reports how many were dropped.
func Aggregate(heads []string, items []LineItem) SheetTotals {
	sums := make(map[string]decimal.Decimal, len(heads))
	for _, h := range heads {
		sums[h] = decimal.Zero
	}

	excluded := 0
	for _, it := range items {
		if !it.Active {
			continue
		}
		sum, ok := sums[it.Head]
		if !ok {
			excluded++
			continue
		}
		sums[it.Head] = sum.Add(it.Total())
	}

	out := SheetTotals{
		Heads:    make([]HeadTotal, 0, len(sums)),
		ByHead:   make(map[string]float64, len(sums)),
		Excluded: excluded,
	}
	grand := decimal.Zero
	seen := make(map[string]bool, len(heads))
	for _, h := range heads {
		if seen[h] {
			continue
		}
		seen[h] = true
		out.Heads = append(out.Heads, HeadTotal{Head: h, Total: sums[h]})
		out.ByHead[h] = sums[h].InexactFloat64()
		grand = grand.Add(sums[h])
	}
	out.Grand = grand.InexactFloat64()
	return out
}

// GrandDecimal returns the exact grand total.
func (t SheetTotals) GrandDecimal() decimal.Decimal {
	g := decimal.Zero
	for _, h := range t.Heads {
		g = g.Add(h.Total)
	}
	return g
}
