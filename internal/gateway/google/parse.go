package google

import (
	"fmt"
	"strings"
)

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toRow(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// rowMap keys a data row by its header. Blank headers are skipped; missing
// trailing cells read as "".
func rowMap(headers []string, row []any) map[string]any {
	m := make(map[string]any, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(row) {
			m[h] = row[i]
		} else {
			m[h] = ""
		}
	}
	return m
}

func normHeader(h string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(h)))
}

func findColumn(headers []string, names ...string) int {
	for i, h := range headers {
		nh := normHeader(h)
		for _, n := range names {
			if nh == n {
				return i
			}
		}
	}
	return -1
}

func cellAt(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

// usable drops blanks and "#" comment cells.
func usable(v string) bool {
	return v != "" && !strings.HasPrefix(v, "#")
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// quoteTab quotes a tab name for A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// columnName converts a zero-based index to a column letter (0 -> A, 26 -> AA).
func columnName(idx int) string {
	name := ""
	for idx >= 0 {
		name = string(rune('A'+idx%26)) + name
		idx = idx/26 - 1
	}
	return name
}
