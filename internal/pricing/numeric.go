package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultMargin is the commission fraction applied when a quote carries none (16.27%).
const DefaultMargin = 0.1627

// ParseNumber converts arbitrary input into a finite number. Nil, empty
// strings, unsupported types and anything that does not parse to a finite
// value yield 0. Strings are stripped of every character other than digits,
// '.' and '-' before parsing.
func ParseNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(n)
	case float32:
		return finiteOrZero(float64(n))
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case *float64:
		if n == nil {
			return 0
		}
		return finiteOrZero(*n)
	case json.Number:
		return parseStripped(string(n), true)
	case string:
		return parseStripped(n, true)
	default:
		return 0
	}
}

// ParseAmountText parses user-typed currency text. A comma decimal separator
// is accepted ("27,5" == 27.5).
func ParseAmountText(s string) float64 {
	return parseStripped(strings.Replace(s, ",", ".", 1), true)
}

// ParseMargin converts a displayed percentage ("16,27", "16.27 %") into the
// stored fraction. Text that does not produce a finite number falls back to
// DefaultMargin.
func ParseMargin(text string) float64 {
	cleaned := strip(strings.Replace(text, ",", ".", 1), false)
	if cleaned == "" {
		return DefaultMargin
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return DefaultMargin
	}
	return n / 100
}

// FormatMargin renders a margin fraction as the committed two-decimal percent.
func FormatMargin(m float64) string {
	return strconv.FormatFloat(m*100, 'f', 2, 64)
}

// MarginEditBuffer renders the margin as shown while the field has focus:
// shortest form, comma separated.
func MarginEditBuffer(m float64) string {
	pct := math.Round(m*100*1e6) / 1e6
	return strings.Replace(strconv.FormatFloat(pct, 'f', -1, 64), ".", ",", 1)
}

// Round2 rounds half-up to two decimals.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Floor(x*100+0.5) / 100
}

// RoundWhole rounds half-up to the nearest integer.
func RoundWhole(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Floor(x + 0.5)
}

func parseStripped(s string, allowMinus bool) float64 {
	cleaned := strip(s, allowMinus)
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finiteOrZero(n)
}

func strip(s string, allowMinus bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && allowMinus:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func finiteOrZero(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}
