// Package core holds the cost sheet domain: line items, the money
// normalizer, the line-item computation rule and the aggregation engine.
//
// Everything here is pure. Nothing in this package performs I/O.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale matches the dashboard's currency grouping (12,34,567.89).
var DefaultLocale = language.MustParse("en-IN")

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// maxMagnitude bounds accepted amounts. Larger values, and anything the
// float parser rejects as out of range, read as zero so that exponent
// notation cannot blow up decimal arithmetic.
const maxMagnitude = 1e15

// currencyWords are textual currency markers seen in hand-typed cells.
var currencyWords = []string{"inr", "rs.", "rs", "usd", "eur"}

// ParseDecimal converts a loosely formatted amount into an exact decimal.
//
// Thousands separators, whitespace and currency symbols are removed and the
// leading numeric prefix is parsed, so "₹ 1,234.50" and "1234.5/-" both read
// as 1234.5. Anything without a numeric prefix is zero. It never fails.
func ParseDecimal(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxMagnitude {
			return decimal.Zero
		}
		return decimal.NewFromFloat(v)
	case float32:
		return ParseDecimal(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		return parseDecimalString(v.String())
	case string:
		return parseDecimalString(v)
	default:
		return parseDecimalString(fmt.Sprint(v))
	}
}

func parseDecimalString(s string) decimal.Decimal {
	s = cleanAmount(s)
	m := strings.TrimPrefix(numericPrefix.FindString(s), "+")
	if m == "" {
		return decimal.Zero
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.Abs(f) > maxMagnitude {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, w := range currencyWords {
		if strings.HasPrefix(lower, w) {
			s = s[len(w):]
			break
		}
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ',':
			return -1
		case unicode.IsSpace(r):
			return -1
		case unicode.Is(unicode.Sc, r):
			return -1
		}
		return r
	}, s)
}

// ParseAmount is the float view of ParseDecimal. It never returns NaN or Inf.
func ParseAmount(raw any) float64 {
	f := ParseDecimal(raw).InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Formatter renders amounts with a locale's grouping and at most two
// fraction digits.
type Formatter struct {
	mu      sync.Mutex
	printer *message.Printer
}

func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Format never panics; on any failure it falls back to the plain number.
func (f *Formatter) Format(n float64) (out string) {
	plain := strconv.FormatFloat(n, 'f', -1, 64)
	if math.IsNaN(n) || math.IsInf(n, 0) || f == nil || f.printer == nil {
		return plain
	}
	defer func() {
		if r := recover(); r != nil {
			out = plain
		}
	}()
	f.mu.Lock()
	defer f.mu.Unlock()
	out = f.printer.Sprint(number.Decimal(n, number.MaxFractionDigits(2)))
	if out == "" {
		return plain
	}
	return out
}

var defaultFormatter = NewFormatter(DefaultLocale)

// FormatCurrency formats n with the default locale.
func FormatCurrency(n float64) string {
	return defaultFormatter.Format(n)
}

// DisplayAmount formats a raw cell for display, keeping "" for unset values.
func DisplayAmount(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return FormatCurrency(ParseAmount(raw))
}
