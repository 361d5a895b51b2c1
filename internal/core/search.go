package core

import "strings"

// ActiveItems drops soft-deleted items, preserving order.
func ActiveItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.Active {
			out = append(out, it)
		}
	}
	return out
}

// SearchItems returns active items whose text fields contain query,
// case-insensitively. An empty query returns every active item.
func SearchItems(items []LineItem, query string) []LineItem {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if !it.Active {
			continue
		}
		if q == "" || it.matches(q) {
			out = append(out, it)
		}
	}
	return out
}

func (li LineItem) matches(q string) bool {
	for _, f := range []string{li.Particular, li.Details, li.Tag, li.Subcategory, li.Voucher, li.EnteredBy} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// MatchParticular returns the indexes of items whose particular equals p.
// Particulars are not unique, so callers must expect several matches.
func MatchParticular(items []LineItem, p string) []int {
	var idx []int
	for i, it := range items {
		if it.Particular == p {
			idx = append(idx, i)
		}
	}
	return idx
}
