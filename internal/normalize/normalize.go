// Package normalize cleans the free-text values a vision model returns.
// Every function is total: it accepts anything and never fails.
package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Text turns a nullable scalar into display text. Nil becomes "".
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// CleanText trims value and collapses internal whitespace runs to one space.
func CleanText(value any) string {
	return strings.Join(strings.Fields(Text(value)), " ")
}

// CleanCurrency reduces value to digits and at most one decimal point.
//
// Separators are guessed, not parsed: with both ',' and '.' present the comma
// is a thousands separator; with only commas, a trailing group of at most two
// digits makes the comma a decimal point, otherwise it is a thousands
// separator. When several points remain, only the last one is kept.
func CleanCurrency(value any) string {
	if value == nil {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			return r
		}
		return -1
	}, Text(value))

	hasComma := strings.Contains(cleaned, ",")
	hasPoint := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasPoint:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		last := cleaned[strings.LastIndex(cleaned, ",")+1:]
		if len(last) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	if strings.Count(cleaned, ".") > 1 {
		i := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:i], ".", "") + cleaned[i:]
	}
	return cleaned
}

// FormatCurrency renders amount as "CODE 1,234.50". Empty amounts render as
// "N/A"; amounts that are not numbers are shown as given.
func FormatCurrency(amount, currency string) string {
	if amount == "" {
		return "N/A"
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return strings.TrimSpace(currency + " " + amount)
	}
	return strings.TrimSpace(currency + " " + groupThousands(d.StringFixed(2)))
}

func groupThousands(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
