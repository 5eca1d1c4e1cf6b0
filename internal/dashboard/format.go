package dashboard

import (
	"fmt"
	"strings"
)

// FormatMoney formats a dollar amount with comma separators and two decimals.
func FormatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	start := len(intPart) % 3
	if start > 0 {
		b.WriteString(intPart[:start])
	}
	for i := start; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	out := "$" + b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatPct formats a percentage with an explicit sign, e.g. "+2.41%".
func FormatPct(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}

// FormatPrice formats a price value as X.XX, or "-" for zero.
func FormatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}
