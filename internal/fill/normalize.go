package fill

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Fixed-width digit-box identifiers: SSN (077-49-4905) and EIN
	// (12-3456789), with or without separators. Nine bare digits are
	// SSN/EIN width and are never treated as an amount.
	identifierRe = regexp.MustCompile(`^(\d{9}|\d{3}[- ]\d{2}[- ]\d{4}|\d{2}[- ]\d{7})$`)

	// Currency-shaped strings: optional sign/$, digit groups, optional cents.
	currencyRe = regexp.MustCompile(`^[-($]*[$]?\s*\d[\d,]*(\.\d+)?\)?$`)
)

// NormalizeText prepares a semantic value for a text widget:
//   - numbers format as currency with two decimals,
//   - strings carrying a money marker are stripped to digits/./- and
//     reformatted,
//   - digit-box identifiers lose their separators (the widget has no room
//     for them),
//   - anything else passes through verbatim. Bare digit strings stay
//     untouched: a year, zip code or separator-free SSN is not currency.
func NormalizeText(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', 2, 64)
	case int:
		return fmt.Sprintf("%d.00", v)
	case int64:
		return fmt.Sprintf("%d.00", v)
	case string:
		s := strings.TrimSpace(v)
		if identifierRe.MatchString(s) {
			return stripNonDigits(s)
		}
		if looksLikeCurrency(s) {
			return normalizeCurrency(s)
		}
		return s
	default:
		return fmt.Sprintf("%v", value)
	}
}

// looksLikeCurrency requires an explicit money marker before a string is
// reformatted: a dollar sign, comma grouping, a decimal point, or accounting
// parentheses.
func looksLikeCurrency(s string) bool {
	if !currencyRe.MatchString(s) {
		return false
	}
	if strings.ContainsAny(s, "$,.") {
		return true
	}
	return strings.Contains(s, "(") && strings.Contains(s, ")")
}

// normalizeCurrency strips everything but digits, '.' and '-', then formats
// to two decimals. Accounting-style parentheses negate.
func normalizeCurrency(s string) string {
	negative := strings.Contains(s, "(") && strings.Contains(s, ")")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return cleaned
	}
	if negative && f > 0 {
		f = -f
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AsBool interprets a semantic value as a checkbox state.
func AsBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "x", "checked", "1":
			return true, true
		case "false", "no", "off", "", "unchecked", "0":
			return false, true
		}
	}
	return false, false
}
